// internal/nlquery/compile/transactions.go
package compile

import (
	"fmt"

	"budget-nlq/internal/nlquery/intent"
)

var transactionsFields = []fieldExpr{
	{"id", "tr.id"},
	{"tabar_number", "tr.tabar_number"},
	{"transaction_type", "tr.transaction_type"},
	{"order_number", "tr.order_number"},
	{"amount", "tr.amount"},
	{"transaction_date", "tr.transaction_date"},
	{"status", "tr.status"},
	{"description", "tr.description"},
	{"reported", "tr.reported"},
}

// TransactionsBuilder compiles intents over the per-project financial
// movements table.
type TransactionsBuilder struct{}

func (b *TransactionsBuilder) Build(parsed *intent.ParsedIntent, scope Scope) (*Query, error) {
	c := &clauses{}
	c.add("tr.municipality_id", "=", scope.MunicipalityID)
	b.applyFilters(c, parsed.Filters)

	var sql string
	switch parsed.Action {
	case intent.ActionCount:
		sql = "SELECT COUNT(*) AS count FROM tabar_transactions tr" + c.where()
	case intent.ActionSum:
		sql = "SELECT COALESCE(SUM(tr.amount), 0) AS total_amount FROM tabar_transactions tr" + c.where()
	case intent.ActionAverage:
		sql = "SELECT COALESCE(AVG(tr.amount), 0) AS average_amount FROM tabar_transactions tr" + c.where()
	case intent.ActionGroup:
		sql = "SELECT tr.transaction_type, COUNT(*) AS count, COALESCE(SUM(tr.amount), 0) AS total_amount" +
			" FROM tabar_transactions tr" + c.where() +
			" GROUP BY tr.transaction_type ORDER BY total_amount DESC, tr.transaction_type" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	case intent.ActionList:
		sql = "SELECT " + selectList(parsed.Fields, scope.DefaultFields, transactionsFields) +
			" FROM tabar_transactions tr" + c.where() +
			" ORDER BY tr.transaction_date DESC, tr.id" +
			c.limitArg(rowLimit(parsed.Filters, scope))
	default:
		return nil, fmt.Errorf("unsupported action %q", parsed.Action)
	}

	return &Query{SQL: sql, Args: c.args}, nil
}

func (b *TransactionsBuilder) applyFilters(c *clauses, filters map[string]interface{}) {
	if v, ok := asInt(filters["tabar_number"]); ok {
		c.add("tr.tabar_number", "=", v)
	}
	if v, ok := asString(filters["transaction_type"]); ok {
		c.add("tr.transaction_type", "=", v)
	}
	if v, ok := asString(filters["status"]); ok {
		c.add("tr.status", "=", v)
	}
	if v, ok := asString(filters["order_number"]); ok {
		c.add("tr.order_number", "=", v)
	}
	if v, ok := asString(filters["reported"]); ok {
		c.add("tr.reported", "=", v)
	}
	if v, ok := asInt(filters["year"]); ok {
		c.add("EXTRACT(YEAR FROM tr.transaction_date)", "=", v)
	}
	addNumericRange(c, filters, "amount", "tr.amount")
	addDateRange(c, filters, "transaction_date", "tr.transaction_date")
	if v, ok := asString(filters["search"]); ok {
		c.addSearch(v, "tr.description", "tr.order_number")
	}
}
