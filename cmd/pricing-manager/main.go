// cmd/pricing-manager/main.go
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

	"homebuilder-pricing/internal/catalog"
	"homebuilder-pricing/internal/common/aws"
	"homebuilder-pricing/internal/common/config"
	"homebuilder-pricing/internal/common/database"
	commonerrors "homebuilder-pricing/internal/common/errors"
	"homebuilder-pricing/internal/common/logger"
	"homebuilder-pricing/internal/common/metrics"
	"homebuilder-pricing/internal/common/observability"
	"homebuilder-pricing/pkg/registry"

	pricecatalogoption "homebuilder-pricing/internal/workers/catalog/price-catalog-option"
	priceinteriorpackage "homebuilder-pricing/internal/workers/catalog/price-interior-package"
	promotebasepackage "homebuilder-pricing/internal/workers/catalog/promote-base-package"
	sendsaveconfirmation "homebuilder-pricing/internal/workers/notification/send-save-confirmation"
	aggregateselectiontotal "homebuilder-pricing/internal/workers/selection/aggregate-selection-total"
	finalizeconfiguration "homebuilder-pricing/internal/workers/selection/finalize-configuration"
)

// retryWithBackoff retries fn with exponentially growing delays.
func retryWithBackoff(fn func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, name string) error {
	var err error
	delay := initialDelay
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn("connection attempt failed, retrying",
			zap.String("service", name),
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("%s unavailable after %d attempts: %w", name, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting pricing manager",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing := observability.NewTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	defer tracing.Shutdown()

	// Zeebe
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var zerr error
		zeebeClient, zerr = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return zerr
	}, 10, 2*time.Second, zapLog, "zeebe")
	if err != nil {
		zapLog.Fatal("failed to connect to Zeebe", zap.Error(err))
	}
	defer zeebeClient.Close()
	zapLog.Info("connected to Zeebe", zap.String("broker", cfg.Camunda.BrokerAddress))

	// PostgreSQL
	var pgClient *database.PostgresClient
	err = retryWithBackoff(func() error {
		var perr error
		pgClient, perr = database.NewPostgres(cfg.Database.Postgres)
		if perr != nil {
			return perr
		}
		return pgClient.Ping(context.Background())
	}, 15, 2*time.Second, zapLog, "postgres")
	if err != nil {
		zapLog.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgClient.Close()
	zapLog.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Postgres.Host))

	// Elasticsearch
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var eserr error
		esClient, eserr = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if eserr != nil {
			return eserr
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "elasticsearch")
	if err != nil {
		zapLog.Fatal("failed to connect to Elasticsearch", zap.Error(err))
	}
	zapLog.Info("connected to Elasticsearch")

	// Redis
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var rerr error
		redisClient, rerr = database.NewRedis(cfg.Database.Redis)
		if rerr != nil {
			return rerr
		}
		return redisClient.Ping(context.Background())
	}, 10, 2*time.Second, zapLog, "redis")
	if err != nil {
		zapLog.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("connected to Redis", zap.String("address", cfg.Database.Redis.Address))

	// AWS notification clients
	sesClient, err := aws.NewSESClient(context.Background(), cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("failed to create SES client", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(context.Background(), cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("failed to create SNS client", zap.Error(err))
	}

	// Activity registry (validated at startup so schema drift fails fast)
	activityRegistry, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("failed to load activity registry", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	zapLog.Info("loaded activity registry",
		zap.String("version", activityRegistry.Version),
		zap.Int("activities", len(activityRegistry.Activities)),
	)

	cacheTTL := time.Duration(cfg.Pricing.CacheTTLSeconds) * time.Second
	store := catalog.NewStore(pgClient.DB, redisClient.Client, cacheTTL, log)
	resolver := catalog.NewResolver(pgClient.DB, store, log)

	// Register workers
	if wcfg, ok := cfg.Workers[pricecatalogoption.TaskType]; ok && wcfg.Enabled {
		handler := pricecatalogoption.NewHandler(&pricecatalogoption.Config{
			Timeout:      time.Duration(wcfg.Timeout) * time.Millisecond,
			IndexOnWrite: cfg.Pricing.IndexOnWrite,
			OptionIndex:  cfg.Database.Elasticsearch.OptionIndex,
		}, store, esClient, log)
		startWorker(zeebeClient, pricecatalogoption.TaskType, wcfg,
			withInputValidation(activityRegistry, pricecatalogoption.TaskType, log, handler.Handle), zapLog)
	}

	if wcfg, ok := cfg.Workers[priceinteriorpackage.TaskType]; ok && wcfg.Enabled {
		handler := priceinteriorpackage.NewHandler(&priceinteriorpackage.Config{
			Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
		}, store, resolver, log)
		startWorker(zeebeClient, priceinteriorpackage.TaskType, wcfg,
			withInputValidation(activityRegistry, priceinteriorpackage.TaskType, log, handler.Handle), zapLog)
	}

	if wcfg, ok := cfg.Workers[promotebasepackage.TaskType]; ok && wcfg.Enabled {
		handler := promotebasepackage.NewHandler(&promotebasepackage.Config{
			Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
		}, resolver, log)
		startWorker(zeebeClient, promotebasepackage.TaskType, wcfg,
			withInputValidation(activityRegistry, promotebasepackage.TaskType, log, handler.Handle), zapLog)
	}

	if wcfg, ok := cfg.Workers[aggregateselectiontotal.TaskType]; ok && wcfg.Enabled {
		handler := aggregateselectiontotal.NewHandler(&aggregateselectiontotal.Config{
			Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
		}, store, log)
		startWorker(zeebeClient, aggregateselectiontotal.TaskType, wcfg,
			withInputValidation(activityRegistry, aggregateselectiontotal.TaskType, log, handler.Handle), zapLog)
	}

	if wcfg, ok := cfg.Workers[finalizeconfiguration.TaskType]; ok && wcfg.Enabled {
		handler := finalizeconfiguration.NewHandler(&finalizeconfiguration.Config{
			Timeout: time.Duration(wcfg.Timeout) * time.Millisecond,
		}, store, log)
		startWorker(zeebeClient, finalizeconfiguration.TaskType, wcfg,
			withInputValidation(activityRegistry, finalizeconfiguration.TaskType, log, handler.Handle), zapLog)
	}

	if wcfg, ok := cfg.Workers[sendsaveconfirmation.TaskType]; ok && wcfg.Enabled {
		handler := sendsaveconfirmation.NewHandler(&sendsaveconfirmation.Config{
			Timeout:      time.Duration(wcfg.Timeout) * time.Millisecond,
			EmailEnabled: cfg.Notifications.Email.Enabled,
			FromEmail:    cfg.Notifications.Email.FromEmail,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			SenderID:     cfg.Notifications.SMS.SenderID,
		}, sesClient, snsClient, log)
		startWorker(zeebeClient, sendsaveconfirmation.TaskType, wcfg,
			withInputValidation(activityRegistry, sendsaveconfirmation.TaskType, log, handler.Handle), zapLog)
	}

	// Health and metrics endpoints
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "ready",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
		})
		mux.Handle("/metrics", promhttp.Handler())

		zapLog.Info("starting health and metrics server", zap.String("address", ":8080"))
		if err := http.ListenAndServe(":8080", mux); err != nil {
			zapLog.Error("health server stopped", zap.Error(err))
		}
	}()

	zapLog.Info("pricing manager running, waiting for jobs")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	zapLog.Info("shutdown signal received, closing workers")
	zeebeClient.Close()
	zapLog.Info("pricing manager stopped")
}

// withInputValidation fails a job against the registry's input schema before
// the handler runs, so malformed variables never reach business code.
func withInputValidation(reg *registry.ActivityRegistry, taskType string, log logger.Logger, next func(worker.JobClient, entities.Job)) func(worker.JobClient, entities.Job) {
	errorHandler := commonerrors.NewErrorHandler(log.WithFields(map[string]interface{}{"taskType": taskType}))
	return func(client worker.JobClient, job entities.Job) {
		if err := reg.ValidateJobInput(taskType, job.Variables); err != nil {
			errorHandler.HandleJobError(context.Background(), client, job,
				commonerrors.NewValidationFailedError(err.Error()))
			metrics.WorkerJobsFailed.WithLabelValues(taskType, string(commonerrors.ErrCodeValidationFailed)).Inc()
			return
		}
		next(client, job)
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker registered",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
	)
}
