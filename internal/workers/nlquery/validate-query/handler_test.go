package validatequery

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
	"budget-nlq/internal/nlquery/service"
)

func newHandlerFixture(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewTestLogger(t)
	registry := schema.NewRegistry()
	parser := intent.NewParser(nil, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(db, registry, compile.DefaultMaxRows, log)
	svc := service.New(parser, compiler, registry, 0.3, log)

	return NewHandler(LoadConfig(), svc, log), mock
}

func TestHandler_ExecuteReportsSurfaceChecks(t *testing.T) {
	handler, mock := newHandlerFixture(t)

	output, err := handler.Execute(context.Background(), &Input{
		Query: "סכום התנועות מעל מיליון",
	})
	require.NoError(t, err)

	assert.True(t, output.Valid)
	assert.True(t, output.HasHebrew)
	assert.False(t, output.HasNumbers)
	assert.Equal(t, "transactions", output.EstimatedDomain)
	require.NoError(t, mock.ExpectationsWereMet(), "validation must never touch the database")
}

func TestHandler_ExecuteFlagsUnrecognizedQuery(t *testing.T) {
	handler, mock := newHandlerFixture(t)

	output, err := handler.Execute(context.Background(), &Input{
		Query: "ספר לי בדיחה",
	})
	require.NoError(t, err)

	assert.True(t, output.Valid)
	assert.Empty(t, output.EstimatedDomain)
	assert.NotEmpty(t, output.Suggestions)
	require.NoError(t, mock.ExpectationsWereMet())
}
