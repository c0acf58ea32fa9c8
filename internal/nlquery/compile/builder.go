// Package compile implements Stage 2 of the query compiler: turning a
// validated intent into one parameterized SQL statement and executing it.
package compile

import (
	"fmt"
	"strconv"
	"strings"

	"budget-nlq/internal/nlquery/intent"
)

// DefaultMaxRows caps every compiled query. Callers may ask for fewer rows
// through the limit filter, never more.
const DefaultMaxRows = 100

// Scope carries the per-request constraints every builder must honor.
// MunicipalityID is always emitted as the first query parameter.
// DefaultFields is the domain's default projection, used when the intent
// requests no fields.
type Scope struct {
	MunicipalityID int
	MaxRows        int
	DefaultFields  []string
}

// Query is one ready-to-execute statement. Filter values travel only
// through Args; the SQL text never embeds user input.
type Query struct {
	SQL  string
	Args []interface{}
}

// Builder compiles an intent for a single domain. Implementations hold a
// static field-to-column mapping and silently skip filter keys they do not
// recognize.
type Builder interface {
	Build(parsed *intent.ParsedIntent, scope Scope) (*Query, error)
}

// fieldExpr is one entry of a builder's static field-to-column table.
// Slice order is the domain's declaration order and keeps the fallback
// projection stable.
type fieldExpr struct {
	name string
	expr string
}

// selectList resolves the projection for list-shaped queries: requested
// field names first, the domain defaults when none of them are known, the
// full table as a last resort. Names missing from the table are dropped.
func selectList(requested, defaults []string, fields []fieldExpr) string {
	cols := projectFields(requested, fields)
	if len(cols) == 0 {
		cols = projectFields(defaults, fields)
	}
	if len(cols) == 0 {
		cols = make([]string, len(fields))
		for i, f := range fields {
			cols[i] = f.expr
		}
	}
	return strings.Join(cols, ", ")
}

func projectFields(names []string, fields []fieldExpr) []string {
	var cols []string
	for _, name := range names {
		for _, f := range fields {
			if f.name == name {
				cols = append(cols, f.expr)
				break
			}
		}
	}
	return cols
}

// clauses accumulates WHERE conditions with positional parameters.
type clauses struct {
	conds []string
	args  []interface{}
}

func (c *clauses) add(expr string, op string, value interface{}) {
	c.args = append(c.args, value)
	c.conds = append(c.conds, fmt.Sprintf("%s %s $%d", expr, op, len(c.args)))
}

// addContains emits a parameterized ILIKE condition. The wildcard wrapping
// happens on the argument, never in the SQL text.
func (c *clauses) addContains(expr string, term string) {
	c.args = append(c.args, "%"+term+"%")
	c.conds = append(c.conds, fmt.Sprintf("%s ILIKE $%d", expr, len(c.args)))
}

// addSearch emits one OR-group matching a term against several columns,
// bound to a single parameter.
func (c *clauses) addSearch(term string, exprs ...string) {
	c.args = append(c.args, "%"+term+"%")
	n := len(c.args)
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", expr, n)
	}
	c.conds = append(c.conds, "("+strings.Join(parts, " OR ")+")")
}

func (c *clauses) where() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

// limitArg appends the row limit as the final parameter.
func (c *clauses) limitArg(limit int) string {
	c.args = append(c.args, limit)
	return fmt.Sprintf(" LIMIT $%d", len(c.args))
}

// rowLimit resolves the effective limit: the filters' explicit limit when
// present and smaller, otherwise the scope cap.
func rowLimit(filters map[string]interface{}, scope Scope) int {
	max := scope.MaxRows
	if max <= 0 || max > DefaultMaxRows {
		max = DefaultMaxRows
	}
	if v, ok := asInt(filters["limit"]); ok && v > 0 && int(v) < max {
		return int(v)
	}
	return max
}

// Filter values arrive from JSON process variables, so numbers are usually
// float64 and occasionally strings. The coercers accept what the wire
// plausibly delivers and reject the rest, which drops the filter.

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	}
	return 0, false
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// addNumericRange applies the _gt/_lt/_from/_to filter family for one
// column.
func addNumericRange(c *clauses, filters map[string]interface{}, key, column string) {
	if v, ok := asFloat(filters[key+"_gt"]); ok {
		c.add(column, ">", v)
	}
	if v, ok := asFloat(filters[key+"_lt"]); ok {
		c.add(column, "<", v)
	}
	if v, ok := asFloat(filters[key+"_from"]); ok {
		c.add(column, ">=", v)
	}
	if v, ok := asFloat(filters[key+"_to"]); ok {
		c.add(column, "<=", v)
	}
}

// addDateRange applies the _from/_to filter family for a date column.
func addDateRange(c *clauses, filters map[string]interface{}, key, column string) {
	if v, ok := asString(filters[key+"_from"]); ok {
		c.add(column, ">=", v)
	}
	if v, ok := asString(filters[key+"_to"]); ok {
		c.add(column, "<=", v)
	}
}
