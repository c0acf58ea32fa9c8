package processquery

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "budget-nlq/internal/common/errors"
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

func TestHandler_ExecuteCompletes(t *testing.T) {
	handler, mock := newHandlerFixture(t)

	mock.ExpectQuery("SELECT .+ FROM tabarim t").
		WillReturnRows(sqlmock.NewRows([]string{
			"tabar_number", "name", "ministry_name", "status", "total_authorized", "year", "open_date", "close_date",
		}).AddRow(101, "שיפוץ בית ספר", "משרד החינוך", "active", 2500000.0, 2024, "2024-01-15", nil))

	output, err := handler.Execute(context.Background(), &Input{
		Query:          `תב"רים של משרד החינוך`,
		MunicipalityID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, service.StatusCompleted, output.Status)
	assert.Equal(t, 1, output.Result.RowCount)
	assert.Equal(t, "tabarim", output.Intent.Domain)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_ExecuteAwaitsConfirmation(t *testing.T) {
	handler, mock := newHandlerFixture(t)

	output, err := handler.Execute(context.Background(), &Input{
		Query:          "איך מגישים בקשה",
		MunicipalityID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, service.StatusAwaitingConfirmation, output.Status)
	assert.Nil(t, output.Result)
	assert.NotEmpty(t, output.Suggestions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_ExecuteEmptyQuery(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	_, err := handler.Execute(context.Background(), &Input{Query: ""})
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeInvalidInput, stdErr.Code)
}
