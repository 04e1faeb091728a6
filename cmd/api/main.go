package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	txhttp "github.com/smartcab-platform/transaction-service/internal/api/http"
	"github.com/smartcab-platform/transaction-service/internal/application"
	"github.com/smartcab-platform/transaction-service/internal/config"
	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/internal/infrastructure/bus"
	mongoRepo "github.com/smartcab-platform/transaction-service/internal/infrastructure/mongodb"
	"github.com/smartcab-platform/transaction-service/internal/orchestrator"
	"github.com/smartcab-platform/transaction-service/internal/planner"
	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
	"github.com/smartcab-platform/transaction-service/pkg/metrics"
	"github.com/smartcab-platform/transaction-service/pkg/middleware"
	"github.com/smartcab-platform/transaction-service/pkg/mongodb"
	"github.com/smartcab-platform/transaction-service/pkg/outbox"
	"github.com/smartcab-platform/transaction-service/pkg/tracing"
)

const serviceName = "transaction-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(cfg.Logging.Level)
	logConfig.Environment = cfg.Logging.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting transaction service")

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Logging.Environment
	tracingConfig.SampleRate = cfg.Tracing.SampleRate
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoClientConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	db := mongoClient.Database()
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceTransactionService)

	// Repositories
	transactionRepo := mongoRepo.NewTransactionRepository(db, eventFactory)
	binRepo := mongoRepo.NewBinRepository(db)
	stockRepo := mongoRepo.NewStockRepository(db)
	itemRepo := mongoRepo.NewItemRepository(db)

	// Kafka producer chain
	kafkaConfig := cfg.KafkaClientConfig()
	producer := kafka.NewProducer(kafkaConfig)
	instrumentedProducer := kafka.NewInstrumentedProducer(producer, m, logger)
	defer instrumentedProducer.Close()
	breakerProducer := kafka.NewCircuitBreakerProducer(instrumentedProducer, logger)
	logger.Info("Kafka producer initialized", "brokers", kafkaConfig.Brokers)

	// Outbox publisher drains persisted transaction events to Kafka
	outboxPublisher := outbox.NewPublisher(
		transactionRepo.GetOutboxRepository(),
		instrumentedProducer,
		logger,
		m,
		nil,
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	// Orchestrator and inbound event plumbing
	registry := orchestrator.NewRegistry()
	cabinetBus := bus.NewCabinetBus(breakerProducer)
	weightCache := bus.NewWeightCache(cfg.Weighing.MaxReportAge, logger)

	orch := orchestrator.New(
		registry,
		transactionRepo,
		binRepo,
		stockRepo,
		cabinetBus,
		weightCache,
		logger,
		m,
		&cfg.Orchestrator,
	)

	failOrphanedTransactions(ctx, transactionRepo, logger)

	consumer := kafka.NewConsumer(kafkaConfig, logger.Logger)
	instrumentedConsumer := kafka.NewInstrumentedConsumer(consumer, m, logger)
	dispatcher := bus.NewDispatcher(registry, logger)
	dispatcher.RegisterHandlers(instrumentedConsumer)
	weightCache.RegisterHandlers(instrumentedConsumer)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go func() {
		if err := instrumentedConsumer.Start(consumerCtx); err != nil {
			logger.WithError(err).Error("Kafka consumer stopped")
		}
	}()
	defer func() {
		stopConsumer()
		_ = instrumentedConsumer.Close()
	}()
	logger.Info("Kafka consumer started", "group", kafkaConfig.ConsumerGroup)

	// Application services
	txService := application.NewTransactionApplicationService(
		planner.New(stockRepo, binRepo),
		transactionRepo,
		orch,
		registry,
		logger,
	)
	binService := application.NewBinApplicationService(binRepo, logger)
	itemService := application.NewItemApplicationService(itemRepo, logger)

	// HTTP server
	handlers := txhttp.NewHandlers(txService, binService, itemService, logger)

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	txhttp.RegisterRoutes(router, handlers)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	orch.Shutdown("service shutting down")

	logger.Info("Server stopped")
}

// failOrphanedTransactions marks transactions left mid-flight by a previous
// process as failed. Their orchestration goroutines died with that process,
// so the records would otherwise sit in PROCESSING forever.
func failOrphanedTransactions(ctx context.Context, repo domain.TransactionRepository, logger *logging.Logger) {
	for _, status := range []domain.TransactionStatus{
		domain.TransactionStatusProcessing,
		domain.TransactionStatusAwaitingCorrection,
	} {
		orphans, err := repo.FindByStatus(ctx, status)
		if err != nil {
			logger.WithError(err).Warn("Failed to scan for orphaned transactions", "status", string(status))
			continue
		}
		for _, tx := range orphans {
			if err := tx.Fail("orchestration interrupted by service restart"); err != nil {
				continue
			}
			if err := repo.Save(ctx, tx); err != nil {
				logger.WithError(err).Warn("Failed to fail orphaned transaction", "transaction_id", tx.TransactionID)
				continue
			}
			logger.Info("Failed orphaned transaction", "transaction_id", tx.TransactionID, "previous_status", string(status))
		}
	}
}
