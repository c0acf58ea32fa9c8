// internal/nlquery/compile/compiler.go
package compile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/common/metrics"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
)

// Executor is the slice of database/sql the compiler needs.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Column describes one output column, carrying the catalog label and type
// of the field behind it.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// QueryResult is the typed outcome of one compiled query, shaped for
// process variables.
type QueryResult struct {
	Columns  []Column                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"rowCount"`
	Summary  string                   `json:"summary"`
	Metadata ResultMetadata           `json:"metadata"`
}

// ResultMetadata describes how the result was produced. It never includes
// the SQL text or parameter values.
type ResultMetadata struct {
	Domain         string  `json:"domain"`
	Action         string  `json:"action"`
	Source         string  `json:"source"`
	Confidence     float64 `json:"confidence"`
	CatalogVersion string  `json:"catalogVersion"`
	ExecutionMs    int64   `json:"executionMs"`
	Truncated      bool    `json:"truncated"`
}

// Compiler is Stage 2. It holds one builder per registered domain and a
// shared executor. Stateless; safe for concurrent use.
type Compiler struct {
	db       Executor
	registry *schema.Registry
	builders map[string]Builder
	maxRows  int
	logger   logger.Logger
}

func NewCompiler(db Executor, registry *schema.Registry, maxRows int, log logger.Logger) *Compiler {
	if maxRows <= 0 || maxRows > DefaultMaxRows {
		maxRows = DefaultMaxRows
	}
	return &Compiler{
		db:       db,
		registry: registry,
		builders: map[string]Builder{
			"tabarim":       &TabarimBuilder{},
			"transactions":  &TransactionsBuilder{},
			"budget_items":  &ItemsBuilder{},
			"comprehensive": &ComprehensiveBuilder{},
		},
		maxRows: maxRows,
		logger:  log.WithFields(map[string]interface{}{"component": "query-compiler"}),
	}
}

// Execute compiles and runs the intent for one municipality. The intent is
// never mutated.
func (c *Compiler) Execute(ctx context.Context, parsed *intent.ParsedIntent, municipalityID int) (*QueryResult, error) {
	if parsed == nil || parsed.Domain == "" {
		return nil, errors.NewDomainNotFoundError("")
	}
	domain, ok := c.registry.Get(parsed.Domain)
	if !ok {
		return nil, errors.NewDomainNotFoundError(parsed.Domain)
	}
	builder, ok := c.builders[domain.Key]
	if !ok {
		return nil, errors.NewDomainNotFoundError(parsed.Domain)
	}

	query, err := builder.Build(parsed, Scope{
		MunicipalityID: municipalityID,
		MaxRows:        c.maxRows,
		DefaultFields:  domain.DefaultFields,
	})
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError(parsed.Domain)
		}
		c.logger.Error("query execution failed", map[string]interface{}{
			"domain": parsed.Domain,
			"action": string(parsed.Action),
			"error":  err.Error(),
		})
		return nil, errors.NewQueryExecutionFailedError(parsed.Domain, err)
	}
	defer rows.Close()

	columns, data, err := scanRows(rows)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(parsed.Domain, err)
	}
	executionMs := time.Since(start).Milliseconds()

	metrics.QueriesExecuted.WithLabelValues(parsed.Domain, string(parsed.Action)).Inc()
	metrics.QueryRowsReturned.WithLabelValues(parsed.Domain).Observe(float64(len(data)))

	limit := rowLimit(parsed.Filters, Scope{MaxRows: c.maxRows})
	result := &QueryResult{
		Columns:  shapeColumns(domain, columns),
		Rows:     data,
		RowCount: len(data),
		Summary:  summarize(domain, parsed.Action, columns, data),
		Metadata: ResultMetadata{
			Domain:         parsed.Domain,
			Action:         string(parsed.Action),
			Source:         string(parsed.Source),
			Confidence:     parsed.Confidence,
			CatalogVersion: c.registry.Version(),
			ExecutionMs:    executionMs,
			Truncated:      isListShape(parsed.Action) && len(data) == limit,
		},
	}

	c.logger.Info("query executed", map[string]interface{}{
		"domain":      parsed.Domain,
		"action":      string(parsed.Action),
		"rowCount":    result.RowCount,
		"executionMs": executionMs,
	})

	return result, nil
}

func isListShape(action intent.Action) bool {
	return action == intent.ActionList || action == intent.ActionGroup
}

// shapeColumns attaches the catalog label and type to every output column.
// Synthetic aggregate columns (count, total_amount and friends) have no
// FieldDefinition and keep their SQL name with a numeric type.
func shapeColumns(domain *schema.DomainSchema, names []string) []Column {
	out := make([]Column, len(names))
	for i, name := range names {
		if f, ok := domain.Field(name); ok {
			out[i] = Column{Key: name, Label: f.Label, Type: string(f.Type)}
			continue
		}
		out[i] = Column{Key: name, Label: name, Type: string(schema.FieldNumber)}
	}
	return out
}

// scanRows reads every row into column-keyed maps. Byte slices become
// strings so the maps serialize cleanly into process variables.
func scanRows(rows *sql.Rows) ([]string, []map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("reading result columns: %w", err)
	}

	data := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		targets := make([]interface{}, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, fmt.Errorf("scanning result row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return columns, data, nil
}

// summarize produces the one-line Hebrew summary attached to every result.
func summarize(domain *schema.DomainSchema, action intent.Action, columns []string, data []map[string]interface{}) string {
	switch action {
	case intent.ActionCount, intent.ActionSum, intent.ActionAverage:
		if len(data) == 1 && len(columns) > 0 {
			return fmt.Sprintf("%s: %v", domain.Label, data[0][columns[0]])
		}
	case intent.ActionGroup:
		return fmt.Sprintf("פילוח %s, %d קבוצות", domain.Label, len(data))
	}
	return fmt.Sprintf("נמצאו %d רשומות בתחום %s", len(data), domain.Label)
}
