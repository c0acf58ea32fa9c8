// internal/nlquery/compile/comprehensive.go
package compile

import (
	"fmt"

	"budget-nlq/internal/nlquery/intent"
)

var comprehensiveFields = []fieldExpr{
	{"tabar_number", "t.tabar_number"},
	{"name", "t.name"},
	{"ministry_name", "t.ministry_name"},
	{"status", "t.status"},
	{"total_authorized", "t.total_authorized"},
	{"transaction_total", "COALESCE(tx.total, 0) AS transaction_total"},
	{"transaction_count", "COALESCE(tx.cnt, 0) AS transaction_count"},
	{"item_count", "COALESCE(it.cnt, 0) AS item_count"},
	{"last_activity", "GREATEST(tx.last_tx, it.last_update) AS last_activity"},
}

// The rollup joins reference $1 directly, which is always the municipality
// parameter emitted first by Build.
const comprehensiveFrom = " FROM tabarim t" +
	" LEFT JOIN (SELECT tabar_number, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS cnt, MAX(transaction_date) AS last_tx" +
	" FROM tabar_transactions WHERE municipality_id = $1 GROUP BY tabar_number) tx ON tx.tabar_number = t.tabar_number" +
	" LEFT JOIN (SELECT tabar_number, COUNT(*) AS cnt, MAX(updated_at) AS last_update" +
	" FROM tabar_items WHERE municipality_id = $1 GROUP BY tabar_number) it ON it.tabar_number = t.tabar_number"

// ComprehensiveBuilder compiles intents over the per-project rollup of all
// three tables.
type ComprehensiveBuilder struct{}

func (b *ComprehensiveBuilder) Build(parsed *intent.ParsedIntent, scope Scope) (*Query, error) {
	c := &clauses{}
	c.add("t.municipality_id", "=", scope.MunicipalityID)
	b.applyFilters(c, parsed.Filters)

	var sql string
	switch parsed.Action {
	case intent.ActionCount:
		sql = "SELECT COUNT(*) AS count" + comprehensiveFrom + c.where()
	case intent.ActionSum:
		sql = "SELECT COALESCE(SUM(t.total_authorized), 0) AS total_authorized, COALESCE(SUM(tx.total), 0) AS transaction_total" +
			comprehensiveFrom + c.where()
	case intent.ActionAverage:
		sql = "SELECT COALESCE(AVG(t.total_authorized), 0) AS average_authorized" + comprehensiveFrom + c.where()
	case intent.ActionGroup:
		sql = "SELECT t.ministry_name, COUNT(*) AS count, COALESCE(SUM(t.total_authorized), 0) AS total_authorized," +
			" COALESCE(SUM(tx.total), 0) AS transaction_total" +
			comprehensiveFrom + c.where() +
			" GROUP BY t.ministry_name ORDER BY total_authorized DESC, t.ministry_name" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	case intent.ActionList:
		// Ordered by the full expression, not the alias, so the sort
		// survives a projection that leaves last_activity out.
		sql = "SELECT " + selectList(parsed.Fields, scope.DefaultFields, comprehensiveFields) +
			comprehensiveFrom + c.where() +
			" ORDER BY GREATEST(tx.last_tx, it.last_update) DESC NULLS LAST, t.tabar_number" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	default:
		return nil, fmt.Errorf("unsupported action %q", parsed.Action)
	}

	return &Query{SQL: sql, Args: c.args}, nil
}

func (b *ComprehensiveBuilder) applyFilters(c *clauses, filters map[string]interface{}) {
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
	addNumericRange(c, filters, "total_authorized", "t.total_authorized")
	addNumericRange(c, filters, "transaction_total", "COALESCE(tx.total, 0)")
	if v, ok := asString(filters["search"]); ok {
		c.addSearch(v, "t.name", "t.ministry_name")
	}
}
