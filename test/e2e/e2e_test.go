// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"budget-nlq/internal/common/config"
	"budget-nlq/internal/common/database"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
	"budget-nlq/internal/nlquery/service"

	confirmquery "budget-nlq/internal/workers/nlquery/confirm-query"
	processquery "budget-nlq/internal/workers/nlquery/process-query"
	schemaintrospect "budget-nlq/internal/workers/nlquery/schema-introspect"
	validatequery "budget-nlq/internal/workers/nlquery/validate-query"
)

const testMunicipalityID = 9901

var (
	zeebeClient zbc.Client
	zapLog      *zap.Logger
)

func TestMain(m *testing.M) {
	if os.Getenv("E2E_TESTS") == "" {
		fmt.Println("E2E_TESTS not set, skipping e2e suite")
		os.Exit(0)
	}

	var err error
	zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         "localhost:26500",
		UsePlaintextConnection: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Zeebe: %v", err))
	}

	zapLog, _ = zap.NewProduction()

	code := m.Run()

	zeebeClient.Close()
	os.Exit(code)
}

func TestFullE2E(t *testing.T) {
	_, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Log("starting full e2e test against real services")

	assertAllServicesConnectivity(t, cfg)
	createDatabaseTables(t, cfg)
	deployAllBPMN(t, cfg, zapLog)
	testAllWorkers(t, cfg, zapLog)
}

func assertAllServicesConnectivity(t *testing.T, cfg *config.Config) {
	t.Log("checking service connectivity")

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"

	db, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	assert.NoError(t, db.Ping(context.Background()), "PostgreSQL ping failed")
	db.Close()
	t.Log("PostgreSQL connected")

	if cfg.NLQuery.Extractor.CacheEnable {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		require.NoError(t, err, "Redis client creation failed")
		assert.NoError(t, rdb.Ping(context.Background()), "Redis ping failed")
		rdb.Close()
		t.Log("Redis connected")
	}

	_, err = zeebeClient.NewTopologyCommand().Send(context.Background())
	assert.NoError(t, err, "Zeebe topology request failed")
	t.Log("Zeebe connected")
}

// createDatabaseTables provisions the budget schema and seeds a dedicated
// test municipality so the workers have deterministic rows to query.
func createDatabaseTables(t *testing.T, cfg *config.Config) {
	t.Log("creating database tables and inserting test data")

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer dbClient.Close()

	db := dbClient.GetDB()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS tabarim (
			id SERIAL PRIMARY KEY,
			municipality_id INTEGER NOT NULL,
			tabar_number INTEGER NOT NULL,
			name VARCHAR(500),
			year INTEGER,
			status VARCHAR(50),
			ministry_name VARCHAR(255),
			total_authorized NUMERIC(15,2),
			open_date DATE,
			close_date DATE,
			permission_number VARCHAR(100),
			department VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(municipality_id, tabar_number)
		)`,
		`CREATE TABLE IF NOT EXISTS tabar_transactions (
			id SERIAL PRIMARY KEY,
			municipality_id INTEGER NOT NULL,
			tabar_number INTEGER NOT NULL,
			transaction_type VARCHAR(100),
			order_number VARCHAR(100),
			amount NUMERIC(15,2),
			direction VARCHAR(20),
			status VARCHAR(50),
			transaction_date DATE,
			description TEXT,
			reported BOOLEAN DEFAULT false,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tabar_items (
			id SERIAL PRIMARY KEY,
			municipality_id INTEGER NOT NULL,
			tabar_number INTEGER NOT NULL,
			budget_item_code VARCHAR(100),
			budget_item_name VARCHAR(500),
			authorized_amount NUMERIC(15,2),
			executed_amount NUMERIC(15,2),
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		_, err := db.ExecContext(context.Background(), query)
		if err != nil {
			t.Logf("warning: failed to create table: %v", err)
		}
	}

	testData := []string{
		fmt.Sprintf(`INSERT INTO tabarim (municipality_id, tabar_number, name, year, status, ministry_name, total_authorized, open_date)
		 VALUES (%d, 101, 'הרחבת גן ילדים ברחוב הרצל', 2023, 'active', 'משרד החינוך', 2500000, '2023-02-01')
		 ON CONFLICT (municipality_id, tabar_number) DO NOTHING`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabarim (municipality_id, tabar_number, name, year, status, ministry_name, total_authorized, open_date)
		 VALUES (%d, 102, 'שדרוג תשתיות ביוב', 2024, 'active', 'משרד הפנים', 7800000, '2024-01-15')
		 ON CONFLICT (municipality_id, tabar_number) DO NOTHING`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabarim (municipality_id, tabar_number, name, year, status, ministry_name, total_authorized, open_date)
		 VALUES (%d, 103, 'פארק עירוני חדש', 2022, 'closed', 'משרד השיכון', 1200000, '2022-06-10')
		 ON CONFLICT (municipality_id, tabar_number) DO NOTHING`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabar_transactions (municipality_id, tabar_number, transaction_type, order_number, amount, direction, status, transaction_date, description, reported)
		 VALUES (%d, 101, 'חשבונית', 'ORD-1001', 450000, 'expense', 'approved', '2023-05-20', 'עבודות עפר', true)`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabar_transactions (municipality_id, tabar_number, transaction_type, order_number, amount, direction, status, transaction_date, description, reported)
		 VALUES (%d, 102, 'העברה', 'ORD-1002', 1300000, 'income', 'approved', '2024-03-11', 'מקדמה ממשרד הפנים', false)`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabar_items (municipality_id, tabar_number, budget_item_code, budget_item_name, authorized_amount, executed_amount)
		 VALUES (%d, 101, '1-101-200', 'עבודות בינוי', 1800000, 620000)`, testMunicipalityID),
		fmt.Sprintf(`INSERT INTO tabar_items (municipality_id, tabar_number, budget_item_code, budget_item_name, authorized_amount, executed_amount)
		 VALUES (%d, 102, '2-102-300', 'תכנון והנדסה', 900000, 150000)`, testMunicipalityID),
	}

	for _, query := range testData {
		_, err := db.ExecContext(context.Background(), query)
		if err != nil {
			t.Logf("warning: failed to insert test data: %v", err)
		}
	}

	t.Log("database tables created/verified with test data")
}

func deployAllBPMN(t *testing.T, _ *config.Config, _ *zap.Logger) {
	t.Log("deploying BPMN files")

	possiblePaths := []string{
		"bpmn",
		"../bpmn",
		"../../bpmn",
	}

	var bpmnDir string
	var files []os.DirEntry

	for _, path := range possiblePaths {
		if entries, err := os.ReadDir(path); err == nil {
			files = entries
			bpmnDir = path
			break
		}
	}

	if bpmnDir == "" {
		t.Log("BPMN directory not found, skipping deployment")
		return
	}

	deployed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".bpmn") {
			continue
		}

		path := fmt.Sprintf("%s/%s", bpmnDir, f.Name())
		_, err := zeebeClient.NewDeployResourceCommand().AddResourceFile(path).Send(context.Background())
		if err != nil {
			t.Logf("failed to deploy %s: %v", f.Name(), err)
			continue
		}
		deployed++
	}

	t.Logf("deployed %d BPMN files", deployed)
}

// newService assembles the rule-based pipeline against the live database.
// The model extractor stays off so results are deterministic.
func newService(t *testing.T, cfg *config.Config, log *zap.Logger) (*service.Service, func()) {
	t.Helper()

	dbClient, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)

	logAdapter := logger.NewZapAdapter(log)
	registry := schema.NewRegistry()
	parser := intent.NewParser(nil, intent.NewRuleExtractor(registry, logAdapter), logAdapter)
	compiler := compile.NewCompiler(dbClient.GetDB(), registry, cfg.NLQuery.MaxRows, logAdapter)
	svc := service.New(parser, compiler, registry, cfg.NLQuery.MinConfidence, logAdapter)

	return svc, func() { dbClient.Close() }
}

func testAllWorkers(t *testing.T, cfg *config.Config, log *zap.Logger) {
	t.Log("testing all workers with real execution")

	svc, cleanup := newService(t, cfg, log)
	defer cleanup()

	testCases := []struct {
		name   string
		testFn func(*testing.T, *service.Service, *zap.Logger)
	}{
		{"process-query", testProcessQuery},
		{"confirm-query", testConfirmQuery},
		{"validate-query", testValidateQuery},
		{"schema-introspect", testSchemaIntrospect},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.testFn(t, svc, log)
		})
	}
}

func testProcessQuery(t *testing.T, svc *service.Service, log *zap.Logger) {
	handler := processquery.NewHandler(processquery.LoadConfig(), svc, logger.NewZapAdapter(log))

	input := &processquery.Input{
		Query:          "כל התברים של משרד החינוך",
		MunicipalityID: testMunicipalityID,
	}
	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, service.StatusCompleted, output.Status)
	require.NotNil(t, output.Result)
	assert.Equal(t, 1, output.Result.RowCount)
	assert.Equal(t, "tabarim", output.Result.Metadata.Domain)

	// A query with no recognizable domain must gate instead of running.
	vague, err := handler.Execute(context.Background(), &processquery.Input{
		Query:          "מה השעה עכשיו",
		MunicipalityID: testMunicipalityID,
	})
	require.NoError(t, err)
	assert.Equal(t, service.StatusAwaitingConfirmation, vague.Status)
	assert.Nil(t, vague.Result)
	assert.NotEmpty(t, vague.Suggestions)
}

func testConfirmQuery(t *testing.T, svc *service.Service, log *zap.Logger) {
	handler := confirmquery.NewHandler(confirmquery.LoadConfig(), svc, logger.NewZapAdapter(log))

	input := &confirmquery.Input{
		Intent: &intent.ParsedIntent{
			Intent:     "כמה תברים פעילים",
			Domain:     "tabarim",
			Action:     intent.ActionCount,
			Filters:    map[string]interface{}{"status": "active"},
			Confidence: 0.2,
			Source:     intent.SourceRules,
		},
		OriginalQuery:  "כמה תברים פעילים",
		MunicipalityID: testMunicipalityID,
	}
	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, service.StatusCompleted, output.Status)
	assert.Equal(t, "כמה תברים פעילים", output.OriginalQuery)
	require.NotNil(t, output.Result)
	require.Equal(t, 1, output.Result.RowCount)
	assert.EqualValues(t, 2, output.Result.Rows[0]["count"])
}

func testValidateQuery(t *testing.T, svc *service.Service, log *zap.Logger) {
	handler := validatequery.NewHandler(validatequery.LoadConfig(), svc, logger.NewZapAdapter(log))

	output, err := handler.Execute(context.Background(), &validatequery.Input{
		Query: "סכום התנועות מעל מיליון",
	})
	require.NoError(t, err)
	assert.True(t, output.Valid)
	assert.True(t, output.HasHebrew)
	assert.Equal(t, "transactions", output.EstimatedDomain)

	vague, err := handler.Execute(context.Background(), &validatequery.Input{
		Query: "ספר לי בדיחה",
	})
	require.NoError(t, err)
	assert.Empty(t, vague.EstimatedDomain)
	assert.NotEmpty(t, vague.Suggestions)
}

func testSchemaIntrospect(t *testing.T, svc *service.Service, log *zap.Logger) {
	handler := schemaintrospect.NewHandler(schemaintrospect.LoadConfig(), svc, logger.NewZapAdapter(log))

	domains, err := handler.Execute(context.Background(), &schemaintrospect.Input{
		Operation: schemaintrospect.OperationDomains,
	})
	require.NoError(t, err)
	assert.NotNil(t, domains.Catalog)

	fields, err := handler.Execute(context.Background(), &schemaintrospect.Input{
		Operation: schemaintrospect.OperationFields,
		Domain:    "budget_items",
	})
	require.NoError(t, err)
	assert.NotNil(t, fields.Catalog)
}

func BenchmarkHandler_ProcessQuery(b *testing.B) {
	cfg, _ := config.Load()
	dbClient, _ := database.NewPostgres(cfg.Database.Postgres)
	defer dbClient.Close()

	log := logger.NewStructured("info", "json")
	registry := schema.NewRegistry()
	parser := intent.NewParser(nil, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(dbClient.GetDB(), registry, cfg.NLQuery.MaxRows, log)
	svc := service.New(parser, compiler, registry, cfg.NLQuery.MinConfidence, log)

	handler := processquery.NewHandler(processquery.LoadConfig(), svc, log)
	input := &processquery.Input{
		Query:          "כל התברים של משרד החינוך",
		MunicipalityID: testMunicipalityID,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.Execute(context.Background(), input)
	}
}

func BenchmarkHandler_ValidateQuery(b *testing.B) {
	cfg, _ := config.Load()

	log := logger.NewStructured("info", "json")
	registry := schema.NewRegistry()
	parser := intent.NewParser(nil, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(nil, registry, cfg.NLQuery.MaxRows, log)
	svc := service.New(parser, compiler, registry, cfg.NLQuery.MinConfidence, log)

	handler := validatequery.NewHandler(validatequery.LoadConfig(), svc, log)
	input := &validatequery.Input{
		Query: "כמה תברים פעילים בשנת 2023",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.Execute(context.Background(), input)
	}
}
