// Package app wires the catalog components shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"mangashelf/internal/category"
	"mangashelf/internal/entry"
	"mangashelf/internal/exchange"
	"mangashelf/internal/reconcile"
	"mangashelf/internal/settings"
	"mangashelf/pkg/database"
)

type App struct {
	DB         *sql.DB
	Entries    *entry.Repo
	Settings   *settings.Repo
	Categories *category.Registry
	Engine     *reconcile.Engine
	Exporter   *exchange.Exporter
	Log        *slog.Logger
}

// Open opens the store at cfg and builds every component on top of it.
func Open(ctx context.Context, cfg database.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db, logger), nil
}

// New builds the components over an already opened handle.
func New(db *sql.DB, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	entries := entry.NewRepo(db)
	st := settings.NewRepo(db)
	reg := category.NewRegistry(db, entries, st, logger.With("component", "category"))
	engine := reconcile.NewEngine(entries, reg, database.NewTxManager(db),
		reconcile.WithLogger(logger.With("component", "reconcile")))

	return &App{
		DB:         db,
		Entries:    entries,
		Settings:   st,
		Categories: reg,
		Engine:     engine,
		Exporter:   exchange.NewExporter(entries),
		Log:        logger,
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}
