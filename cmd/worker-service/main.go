package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/reqpipe/internal/config"
	"github.com/cuongbtq/reqpipe/internal/queue"
	"github.com/cuongbtq/reqpipe/internal/worker"
	"github.com/cuongbtq/reqpipe/shared/logger"
	"github.com/cuongbtq/reqpipe/shared/postgresql"
	"github.com/cuongbtq/reqpipe/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("role", cfg.Worker.Role),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer schemaCancel()
	if err := dbClient.EnsureSchema(schemaCtx); err != nil {
		return err
	}

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = rabbitmq.NewClient(&rabbitmq.Config{
			Host:              cfg.RabbitMQ.Host,
			Port:              cfg.RabbitMQ.Port,
			User:              cfg.RabbitMQ.User,
			Password:          cfg.RabbitMQ.Password,
			VHost:             cfg.RabbitMQ.VHost,
			ExchangeName:      cfg.RabbitMQ.Exchange,
			ExchangeType:      cfg.RabbitMQ.ExchangeType,
			QueueName:         cfg.RabbitMQ.Queue,
			RoutingKey:        cfg.RabbitMQ.RoutingKey,
			Durable:           cfg.RabbitMQ.Durable,
			RetryAttempts:     cfg.RabbitMQ.RetryAttempts,
			RetryInterval:     cfg.RabbitMQ.RetryInterval,
			Heartbeat:         cfg.RabbitMQ.Heartbeat,
			ConnectionTimeout: cfg.RabbitMQ.ConnectionTimeout,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
	}

	db := dbClient.GetDB()
	itemQueue := queue.NewQueue(db, appLogger.Logger, cfg.Queue.MaxRetries)
	registry := worker.NewRegistry(db, appLogger.Logger)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Queue:             itemQueue,
		Registry:          registry,
		Processor:         newSimulatedProcessor(appLogger.Logger),
		RabbitClient:      rabbitClient,
		Role:              cfg.Worker.Role,
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval,
		ItemTimeout:       cfg.Worker.ItemTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.WorkerID()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
