package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/api/handler"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/api/router"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/config"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/events"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/marketplace"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/publish"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/ratelimit"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/storage"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/logger"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/postgresql"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("LISTING_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/listing-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting listing service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client when event publishing is enabled
	var rabbitClient *rabbitmq.Client
	var eventSink queue.EventSink
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		eventSink = events.NewPublisher(rabbitClient, appLogger.Logger)
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Info("Event publishing disabled")
	}

	// Wire the publication pipeline
	repo := storage.NewJobRepository(dbClient, appLogger.Logger)
	records := storage.NewListingRecordStore(dbClient, appLogger.Logger)

	limiter := ratelimit.NewTracker(appLogger.Logger)
	apiClient := marketplace.NewClient(&marketplace.Config{
		BaseURL:     cfg.Marketplace.BaseURL,
		APIKey:      cfg.Marketplace.APIKey,
		CallTimeout: cfg.Marketplace.CallTimeout,
	}, limiter, appLogger.Logger)

	publisher := publish.NewPublisher(apiClient, records, appLogger.Logger)
	listingExec := publish.NewListingExecutor(publisher, appLogger.Logger)
	batchExec := publish.NewBatchExecutor(publisher, publish.BatchConfig{
		BatchSize:  cfg.Queue.BatchSize,
		BatchDelay: cfg.Queue.BatchDelay,
	}, appLogger.Logger)

	manager := queue.NewManager(queue.ManagerConfig{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		TickInterval:  cfg.Queue.TickInterval,
		MaxRetries:    cfg.Queue.MaxRetries,
	}, repo, map[queue.JobType]queue.Executor{
		queue.JobTypeCreateListing: listingExec,
		queue.JobTypeBatchUpload:   batchExec,
	}, eventSink, appLogger.Logger)

	// Run the scheduler alongside the HTTP server
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- manager.Run(schedulerCtx)
	}()

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, manager, repo, records, dbClient)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Listing service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")

	// Stop accepting new requests first, then stop the scheduler and wait
	// for in-flight jobs to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	stopScheduler()

	drainTimeout := cfg.Queue.ShutdownTimeout
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	drained := make(chan struct{})
	go func() {
		manager.Drain()
		close(drained)
	}()
	select {
	case <-drained:
		appLogger.Info("Scheduler drained")
	case <-time.After(drainTimeout):
		appLogger.Warn("Scheduler drain timed out, jobs will be recovered on restart")
	}

	select {
	case err := <-schedulerDone:
		if err != nil && err != context.Canceled {
			appLogger.Error("Scheduler stopped with error", slog.Any("error", err))
		}
	default:
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ event publisher client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, manager *queue.Manager, repo queue.Repository, records *storage.ListingRecordStore, dbClient *postgresql.Client) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:   logger,
		Manager:  manager,
		Repo:     repo,
		Records:  records,
		DBClient: dbClient,
	}

	return router.SetupRouter(handlerDeps)
}
