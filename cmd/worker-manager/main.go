// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"budget-nlq/internal/common/config"
	"budget-nlq/internal/common/database"
	"budget-nlq/internal/common/logger"
	"budget-nlq/internal/common/observability"
	"budget-nlq/internal/nlquery/compile"
	"budget-nlq/internal/nlquery/intent"
	"budget-nlq/internal/nlquery/schema"
	"budget-nlq/internal/nlquery/service"

	cq "budget-nlq/internal/workers/nlquery/confirm-query"
	pq "budget-nlq/internal/workers/nlquery/process-query"
	si "budget-nlq/internal/workers/nlquery/schema-introspect"
	vq "budget-nlq/internal/workers/nlquery/validate-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry (only needed when the extractor cache is on) ---
	var redis *database.RedisClient
	if cfg.NLQuery.Extractor.CacheEnable {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			// Test the connection with context
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Assemble the query compiler pipeline ---
	registry := schema.NewRegistry()

	var modelExtractor intent.Extractor
	if cfg.NLQuery.Extractor.APIKey != "" {
		me, err := intent.NewModelExtractor(cfg.NLQuery.Extractor, registry, log)
		if err != nil {
			zapLog.Fatal("model extractor init failed", zap.Error(err))
		}
		modelExtractor = me

		if cfg.NLQuery.Extractor.CacheEnable && redis != nil {
			ttl := time.Duration(cfg.NLQuery.Extractor.CacheTTL) * time.Second
			modelExtractor = intent.NewCachedExtractor(modelExtractor, redis, registry.Version(), ttl, log)
			zapLog.Info("Intent extraction cache enabled", zap.Duration("ttl", ttl))
		}
	} else {
		zapLog.Info("No extractor API key configured, rule-based extraction only")
	}

	parser := intent.NewParser(modelExtractor, intent.NewRuleExtractor(registry, log), log)
	compiler := compile.NewCompiler(pg.DB, registry, cfg.NLQuery.MaxRows, log)
	svc := service.New(parser, compiler, registry, cfg.NLQuery.MinConfidence, log).WithObservability(obs)

	// --- Register Workers ---
	if cfg.Workers[pq.TaskType].Enabled {
		handler := pq.NewHandler(
			&pq.Config{
				Timeout: time.Duration(cfg.Workers[pq.TaskType].Timeout) * time.Millisecond,
			},
			svc, log,
		)
		startWorker(zeebeClient, pq.TaskType, cfg.Workers[pq.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[cq.TaskType].Enabled {
		handler := cq.NewHandler(
			&cq.Config{
				Timeout: time.Duration(cfg.Workers[cq.TaskType].Timeout) * time.Millisecond,
			},
			svc, log,
		)
		startWorker(zeebeClient, cq.TaskType, cfg.Workers[cq.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[vq.TaskType].Enabled {
		handler := vq.NewHandler(
			&vq.Config{
				Timeout: time.Duration(cfg.Workers[vq.TaskType].Timeout) * time.Millisecond,
			},
			svc, log,
		)
		startWorker(zeebeClient, vq.TaskType, cfg.Workers[vq.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[si.TaskType].Enabled {
		handler := si.NewHandler(
			&si.Config{
				Timeout: time.Duration(cfg.Workers[si.TaskType].Timeout) * time.Millisecond,
			},
			svc, log,
		)
		startWorker(zeebeClient, si.TaskType, cfg.Workers[si.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  "database unreachable",
				})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
