package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"chatarchive/internal/config"
	"chatarchive/internal/redis"
	"chatarchive/internal/runlog"
	"chatarchive/internal/service/archive"
	"chatarchive/internal/storage"
)

// app holds what every command needs once config is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *sql.DB
	archive *archive.Service
}

// loadApp reads the config, opens the configured database and ensures the
// tables exist. Every failure here is a setup error.
func loadApp(cli *CLI) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cli.LogLevel
	if level == "" {
		level = cfg.BasicConfig.LogLevel
	}
	logger := createCLILogger(level)

	cols, err := storage.ResolveColumns(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}

	driver := cfg.BasicConfig.Driver
	logger.Debug("opening database", "driver", driver)
	db, err := storage.Open(driver, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(db, driver, cols); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		archive: archive.NewService(db, cols),
	}, nil
}

// runLog connects to redis when it is configured. The store is nil when redis
// is disabled.
func (a *app) runLog(ctx context.Context) (*runlog.Store, func(), error) {
	if !a.cfg.Redis.Enabled() {
		return nil, func() {}, nil
	}
	client, err := redis.NewRedisClient(ctx, a.cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("create redis client: %w", err)
	}
	return runlog.NewStore(client), func() { client.Close() }, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
