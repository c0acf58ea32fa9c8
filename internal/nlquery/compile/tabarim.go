// internal/nlquery/compile/tabarim.go
package compile

import (
	"fmt"

	"budget-nlq/internal/nlquery/intent"
)

var tabarimFields = []fieldExpr{
	{"tabar_number", "t.tabar_number"},
	{"name", "t.name"},
	{"ministry_name", "t.ministry_name"},
	{"status", "t.status"},
	{"total_authorized", "t.total_authorized"},
	{"year", "t.year"},
	{"open_date", "t.open_date"},
	{"close_date", "t.close_date"},
}

// TabarimBuilder compiles intents over the development-budget projects
// table.
type TabarimBuilder struct{}

func (b *TabarimBuilder) Build(parsed *intent.ParsedIntent, scope Scope) (*Query, error) {
	c := &clauses{}
	c.add("t.municipality_id", "=", scope.MunicipalityID)
	b.applyFilters(c, parsed.Filters)

	var sql string
	switch parsed.Action {
	case intent.ActionCount:
		sql = "SELECT COUNT(*) AS count FROM tabarim t" + c.where()
	case intent.ActionSum:
		sql = "SELECT COALESCE(SUM(t.total_authorized), 0) AS total_authorized FROM tabarim t" + c.where()
	case intent.ActionAverage:
		sql = "SELECT COALESCE(AVG(t.total_authorized), 0) AS average_authorized FROM tabarim t" + c.where()
	case intent.ActionGroup:
		sql = "SELECT t.ministry_name, COUNT(*) AS count, COALESCE(SUM(t.total_authorized), 0) AS total_authorized" +
			" FROM tabarim t" + c.where() +
			" GROUP BY t.ministry_name ORDER BY total_authorized DESC, t.ministry_name" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	case intent.ActionList:
		sql = "SELECT " + selectList(parsed.Fields, scope.DefaultFields, tabarimFields) +
			" FROM tabarim t" + c.where() +
			" ORDER BY t.open_date DESC, t.tabar_number" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	default:
		return nil, fmt.Errorf("unsupported action %q", parsed.Action)
	}

	return &Query{SQL: sql, Args: c.args}, nil
}

func (b *TabarimBuilder) applyFilters(c *clauses, filters map[string]interface{}) {
	if v, ok := asInt(filters["tabar_number"]); ok {
		c.add("t.tabar_number", "=", v)
	}
	if v, ok := asString(filters["status"]); ok {
		c.add("t.status", "=", v)
	}
	if v, ok := asInt(filters["year"]); ok {
		c.add("t.year", "=", v)
	}
	if v, ok := asString(filters["ministry_name"]); ok {
		c.addContains("t.ministry_name", v)
	}
	if v, ok := asString(filters["name"]); ok {
		c.addContains("t.name", v)
	}
	addNumericRange(c, filters, "total_authorized", "t.total_authorized")
	addDateRange(c, filters, "open_date", "t.open_date")
	if v, ok := asString(filters["search"]); ok {
		c.addSearch(v, "t.name", "t.ministry_name")
	}
}
