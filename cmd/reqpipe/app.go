package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/reqpipe/internal/config"
	"github.com/cuongbtq/reqpipe/internal/jobs"
	"github.com/cuongbtq/reqpipe/internal/monitor"
	"github.com/cuongbtq/reqpipe/internal/queue"
	"github.com/cuongbtq/reqpipe/internal/report"
	"github.com/cuongbtq/reqpipe/shared/logger"
	"github.com/cuongbtq/reqpipe/shared/postgresql"
)

// app wires the CLI directly to the manager/monitor/reporter over the shared
// store, one connection per invocation.
type app struct {
	cfg      *config.Config
	dbClient *postgresql.Client
	manager  *jobs.Manager
	monitor  *monitor.Monitor
	reporter *report.Reporter
}

// openApp loads configuration and opens the store. The caller must invoke the
// returned cleanup.
func openApp(configPath string) (*app, func(), error) {
	if configPath == "" {
		configPath = os.Getenv("REQPIPE_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "configs/api-service/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	// Tables and reports go to stdout; keep logs on stderr and quiet.
	cliLogger, err := logger.New(&logger.Config{
		Level:      "warn",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.TimeOnly,
	})
	if err != nil {
		return nil, nil, err
	}

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
	}, cliLogger.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := dbClient.GetDB()
	itemQueue := queue.NewQueue(db, cliLogger.Logger, cfg.Queue.MaxRetries)
	manager := jobs.NewManager(db, itemQueue, nil, cliLogger.Logger)

	return &app{
		cfg:      cfg,
		dbClient: dbClient,
		manager:  manager,
		monitor:  monitor.NewMonitor(manager, itemQueue, cliLogger.Logger, cfg.Monitor.JobTimeout),
		reporter: report.NewReporter(db, cliLogger.Logger),
	}, func() { dbClient.Close() }, nil
}
