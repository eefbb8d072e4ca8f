// Package main provides the registry server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelpark/registry/pkg/config"
	"github.com/modelpark/registry/pkg/db"
	"github.com/modelpark/registry/pkg/integrity"
	"github.com/modelpark/registry/pkg/registration"
	"github.com/modelpark/registry/pkg/search"
	"github.com/modelpark/registry/pkg/server"
	"github.com/modelpark/registry/pkg/validation"
	"github.com/modelpark/registry/pkg/versioning"
)

func main() {
	var (
		configPath string
		listenAddr string
		dbDriver   string
		dbDSN      string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&dbDriver, "db-driver", "", "Database driver: sqlite, postgres, or mysql (overrides config)")
	flag.StringVar(&dbDSN, "db-dsn", "", "Database connection string (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if dbDriver != "" {
		cfg.Database.Driver = dbDriver
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting registry server",
		"listen", cfg.Server.Addr,
		"driver", cfg.Database.Driver)

	handle, err := db.Open(db.Options{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.Database.DSN,
		LogQueries: cfg.Database.LogQueries,
	})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(handle); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	repo := db.NewRepository(handle)
	events := db.NewEventStore(handle)
	validator := validation.NewService(repo, events, logger)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Services{
		Registration: registration.NewService(repo, events, validator, logger),
		Search:       search.NewService(repo, logger),
		Versioning:   versioning.NewService(repo, events, logger),
		Integrity:    integrity.NewService(repo, events, logger),
		Repo:         repo,
		Events:       events,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("registry server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
