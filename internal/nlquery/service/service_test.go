package service

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "budget-nlq/internal/common/errors"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
)

func newServiceFixture(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewTestLogger(t)
	registry := schema.NewRegistry()
	parser := intent.NewParser(nil, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(db, registry, compile.DefaultMaxRows, log)

	return New(parser, compiler, registry, 0.3, log), mock
}

func tabarimListRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"tabar_number", "name", "ministry_name", "status", "total_authorized", "year", "open_date", "close_date",
	}).AddRow(101, "שיפוץ בית ספר", "משרד החינוך", "active", 2500000.0, 2024, "2024-01-15", nil)
}

func TestService_ProcessCompletes(t *testing.T) {
	svc, mock := newServiceFixture(t)

	mock.ExpectQuery("SELECT .+ FROM tabarim t").
		WithArgs(7, "%משרד החינוך%", 100).
		WillReturnRows(tabarimListRows())

	resp, err := svc.Process(context.Background(), &ProcessRequest{
		Query:          `תב"רים של משרד החינוך`,
		MunicipalityID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resp.Status)
	assert.NotEmpty(t, resp.RequestID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 1, resp.Result.RowCount)
	assert.Equal(t, "tabarim", resp.Intent.Domain)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ProcessGatesLowConfidence(t *testing.T) {
	svc, mock := newServiceFixture(t)

	// No domain keyword matches, so confidence stays under the gate and
	// the database must not be touched.
	resp, err := svc.Process(context.Background(), &ProcessRequest{
		Query:          "מה מזג האוויר מחר",
		MunicipalityID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Intent)
	assert.Empty(t, resp.Intent.Domain)
	assert.NotEmpty(t, resp.Suggestions)
	assert.NotEmpty(t, resp.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ProcessHonorsMinConfidenceOverride(t *testing.T) {
	svc, mock := newServiceFixture(t)

	// "תברים" alone scores 0.55: above the default gate, below 0.9.
	strict := 0.9
	resp, err := svc.Process(context.Background(), &ProcessRequest{
		Query:          "תברים",
		MunicipalityID: 7,
		Options:        &Options{MinConfidence: &strict},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConfirmation, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("SELECT .+ FROM tabarim t").WillReturnRows(tabarimListRows())
	relaxed := 0.5
	resp, err = svc.Process(context.Background(), &ProcessRequest{
		Query:          "תברים",
		MunicipalityID: 7,
		Options:        &Options{MinConfidence: &relaxed},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ProcessEmptyQuery(t *testing.T) {
	svc, _ := newServiceFixture(t)

	_, err := svc.Process(context.Background(), &ProcessRequest{Query: "   "})
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeInvalidInput, stdErr.Code)
}

func TestService_ConfirmRunsGatedIntent(t *testing.T) {
	svc, mock := newServiceFixture(t)

	gated := &intent.ParsedIntent{
		Intent:     "תברים",
		Domain:     "tabarim",
		Action:     intent.ActionList,
		Filters:    map[string]interface{}{},
		Confidence: 0.2,
		Source:     intent.SourceRules,
	}

	mock.ExpectQuery("SELECT .+ FROM tabarim t").WillReturnRows(tabarimListRows())

	resp, err := svc.Confirm(context.Background(), &ConfirmRequest{
		Intent:         gated,
		OriginalQuery:  "תברים",
		MunicipalityID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "תברים", resp.OriginalQuery)
	assert.Equal(t, 1, resp.Result.RowCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ConfirmIdempotent(t *testing.T) {
	svc, mock := newServiceFixture(t)

	confirmed := &intent.ParsedIntent{
		Domain:     "tabarim",
		Action:     intent.ActionCount,
		Filters:    map[string]interface{}{"status": "active"},
		Confidence: 0.2,
		Source:     intent.SourceRules,
	}

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS count FROM tabarim t").
			WithArgs(7, "active").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	}

	first, err := svc.Confirm(context.Background(), &ConfirmRequest{Intent: confirmed, MunicipalityID: 7})
	require.NoError(t, err)
	second, err := svc.Confirm(context.Background(), &ConfirmRequest{Intent: confirmed, MunicipalityID: 7})
	require.NoError(t, err)

	assert.Equal(t, first.Result.Rows, second.Result.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ConfirmRejectsMissingIntent(t *testing.T) {
	svc, _ := newServiceFixture(t)

	for _, req := range []*ConfirmRequest{nil, {Intent: nil}} {
		_, err := svc.Confirm(context.Background(), req)
		require.Error(t, err)

		var stdErr *stderrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, stderrors.ErrCodeInvalidInput, stdErr.Code)
	}
}

// haltExtractor fails the test if Stage 1 is ever reached.
type haltExtractor struct{ t *testing.T }

func (e *haltExtractor) ExtractIntent(context.Context, string) (*intent.ParsedIntent, error) {
	e.t.Fatal("validation must not invoke intent extraction")
	return nil, nil
}

func TestService_ValidateIsSurfaceOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewTestLogger(t)
	registry := schema.NewRegistry()
	parser := intent.NewParser(&haltExtractor{t}, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(db, registry, compile.DefaultMaxRows, log)
	svc := New(parser, compiler, registry, 0.3, log)

	query := "כמה תברים פעילים היו בשנת 2024"
	resp, err := svc.Validate(context.Background(), &ValidateRequest{Query: query})
	require.NoError(t, err)

	assert.True(t, resp.Valid)
	assert.Equal(t, utf8.RuneCountInString(query), resp.Length)
	assert.True(t, resp.HasHebrew)
	assert.True(t, resp.HasNumbers)
	assert.Equal(t, "tabarim", resp.EstimatedDomain)
	assert.Empty(t, resp.Suggestions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ValidateUnrecognizedDomain(t *testing.T) {
	svc, mock := newServiceFixture(t)

	resp, err := svc.Validate(context.Background(), &ValidateRequest{Query: "ספר לי בדיחה"})
	require.NoError(t, err)

	assert.True(t, resp.Valid)
	assert.True(t, resp.HasHebrew)
	assert.False(t, resp.HasNumbers)
	assert.Empty(t, resp.EstimatedDomain)
	assert.NotEmpty(t, resp.Suggestions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ValidateEmptyQuery(t *testing.T) {
	svc, _ := newServiceFixture(t)

	resp, err := svc.Validate(context.Background(), &ValidateRequest{Query: "   "})
	require.NoError(t, err)

	assert.False(t, resp.Valid)
	assert.Equal(t, 0, resp.Length)
	assert.NotEmpty(t, resp.Suggestions)

	_, err = svc.Validate(context.Background(), nil)
	require.Error(t, err)
}

func TestService_Introspection(t *testing.T) {
	svc, _ := newServiceFixture(t)
	ctx := context.Background()

	catalog := svc.ListDomains(ctx)
	assert.Len(t, catalog.Catalog.Domains, 4)
	assert.NotEmpty(t, catalog.Catalog.Version)

	fields, err := svc.DomainFields(ctx, "transactions")
	require.NoError(t, err)
	assert.Equal(t, "transactions", fields.Domain)
	assert.NotEmpty(t, fields.Fields)

	_, err = svc.DomainFields(ctx, "payroll")
	require.Error(t, err)

	all, err := svc.ListExamples(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, all.Examples)

	one, err := svc.ListExamples(ctx, "tabarim")
	require.NoError(t, err)
	for _, ex := range one.Examples {
		assert.Equal(t, "tabarim", ex.Domain)
	}
}
