// internal/nlquery/compile/items.go
package compile

import (
	"fmt"

	"budget-nlq/internal/nlquery/intent"
)

var itemsFields = []fieldExpr{
	{"id", "bi.id"},
	{"tabar_number", "bi.tabar_number"},
	{"budget_item_code", "bi.budget_item_code"},
	{"budget_item_name", "bi.budget_item_name"},
	{"authorized_amount", "bi.authorized_amount"},
	{"executed_amount", "bi.executed_amount"},
	{"updated_at", "bi.updated_at"},
}

// ItemsBuilder compiles intents over the budget line items table.
type ItemsBuilder struct{}

func (b *ItemsBuilder) Build(parsed *intent.ParsedIntent, scope Scope) (*Query, error) {
	c := &clauses{}
	c.add("bi.municipality_id", "=", scope.MunicipalityID)
	b.applyFilters(c, parsed.Filters)

	var sql string
	switch parsed.Action {
	case intent.ActionCount:
		sql = "SELECT COUNT(*) AS count FROM tabar_items bi" + c.where()
	case intent.ActionSum:
		sql = "SELECT COALESCE(SUM(bi.authorized_amount), 0) AS total_authorized, COALESCE(SUM(bi.executed_amount), 0) AS total_executed" +
			" FROM tabar_items bi" + c.where()
	case intent.ActionAverage:
		sql = "SELECT COALESCE(AVG(bi.executed_amount), 0) AS average_executed FROM tabar_items bi" + c.where()
	case intent.ActionGroup:
		sql = "SELECT bi.budget_item_name, COUNT(*) AS count, COALESCE(SUM(bi.executed_amount), 0) AS total_executed" +
			" FROM tabar_items bi" + c.where() +
			" GROUP BY bi.budget_item_name ORDER BY total_executed DESC, bi.budget_item_name" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	case intent.ActionList:
		sql = "SELECT " + selectList(parsed.Fields, scope.DefaultFields, itemsFields) +
			" FROM tabar_items bi" + c.where() +
			" ORDER BY bi.updated_at DESC, bi.id" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	default:
		return nil, fmt.Errorf("unsupported action %q", parsed.Action)
	}

	return &Query{SQL: sql, Args: c.args}, nil
}

func (b *ItemsBuilder) applyFilters(c *clauses, filters map[string]interface{}) {
	if v, ok := asInt(filters["tabar_number"]); ok {
		c.add("bi.tabar_number", "=", v)
	}
	if v, ok := asString(filters["budget_item_code"]); ok {
		c.add("bi.budget_item_code", "=", v)
	}
	if v, ok := asString(filters["budget_item_name"]); ok {
		c.addContains("bi.budget_item_name", v)
	}
	addNumericRange(c, filters, "authorized_amount", "bi.authorized_amount")
	addNumericRange(c, filters, "executed_amount", "bi.executed_amount")
	if v, ok := asString(filters["search"]); ok {
		c.addSearch(v, "bi.budget_item_name", "bi.budget_item_code")
	}
}
