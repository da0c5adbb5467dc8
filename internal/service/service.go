// Package service assembles the application: config, logging, storage
// backend selection and the HTTP server.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guildpoints/points-ledger/internal/api/handlers"
	"github.com/guildpoints/points-ledger/internal/dbmanager"
	emailsvc "github.com/guildpoints/points-ledger/internal/email"
	"github.com/guildpoints/points-ledger/internal/ledger"
	"github.com/guildpoints/points-ledger/internal/model"
	"github.com/guildpoints/points-ledger/internal/repo"
	"github.com/guildpoints/points-ledger/internal/repo/memory"
	"github.com/guildpoints/points-ledger/internal/repo/pg"
	"github.com/guildpoints/points-ledger/internal/repo/sqlite"
	"github.com/guildpoints/points-ledger/internal/router"
	"github.com/guildpoints/points-ledger/internal/service/config"
	"github.com/guildpoints/points-ledger/internal/utils/logger"
)

// newStore picks the backend from the DSN: postgres scheme, SQLite file
// path, or the in-memory fallback when nothing is configured.
func newStore(dsn string, log *slog.Logger) (repo.Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"):
		const connectTO = 2 * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), connectTO)
		defer cancel()
		dbManager := dbmanager.New(dsn, log).
			Connect(ctx).
			ApplyMigrations(ctx).
			Ping(ctx)
		if err := dbManager.Error(); err != nil {
			return nil, err //nolint: wrapcheck // error from wrapped function
		}
		pool, err := dbManager.GetPool(ctx)
		if err != nil {
			return nil, err //nolint: wrapcheck // error from wrapped function
		}
		return pg.NewStore(pool, log), nil

	case dsn != "":
		return sqlite.Open(dsn, log) //nolint: wrapcheck // error from wrapped function

	default:
		log.LogAttrs(context.Background(),
			slog.LevelWarn,
			"no database configured, falling back to in-memory storage",
		)
		return memory.New(), nil
	}
}

func initService(log *slog.Logger) (*chi.Mux, string) {
	cfg := config.NewBuilder(log).
		FromEnv().
		FromFlags().
		GetConfig()
	log = logger.New(logger.ParseLevel(cfg.LogLevel))

	store, err := newStore(cfg.DatabaseURI, log)
	if err != nil {
		log.LogAttrs(context.Background(),
			slog.LevelError,
			"failed to start service: storage error",
			slog.Any(model.KeyLoggerError, err),
		)
		return nil, ""
	}

	ledgerService := ledger.New(store, log)
	emailService := emailsvc.New(store, log)

	rr := router.New(cfg, log)
	rr.SetRouter(&struct {
		*handlers.PointsHandler
		*handlers.AdminHandler
		*handlers.EmailHandler
		*handlers.HealthHandler
	}{
		PointsHandler: handlers.NewPointsHandler(ledgerService, log),
		AdminHandler: handlers.NewAdminHandler(
			ledgerService, emailService, log,
			[]byte(cfg.SecretKey), cfg.AdminPassword),
		EmailHandler:  handlers.NewEmailHandler(emailService, ledgerService, log),
		HealthHandler: handlers.NewHealthHandler(store),
	})

	return rr.GetRouter(), cfg.RunAddr
}

func RunServer() {
	log := logger.New(slog.LevelInfo)
	mux, addr := initService(log)
	if mux == nil {
		log.LogAttrs(context.TODO(),
			slog.LevelError,
			"failed to init service",
		)
		return
	}

	err := http.ListenAndServe(addr, mux)
	if err != nil {
		log.LogAttrs(context.TODO(),
			slog.LevelError,
			"listen and serve error",
			slog.Any(model.KeyLoggerError, err),
		)
	}
}
