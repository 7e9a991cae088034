package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skillforge/engine/internal/content"
	"github.com/skillforge/engine/internal/engine"
	"github.com/skillforge/engine/internal/platform/cache"
	"github.com/skillforge/engine/internal/platform/config"
	"github.com/skillforge/engine/internal/platform/database"
	"github.com/skillforge/engine/internal/platform/metrics"
	"github.com/skillforge/engine/internal/streak"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("FORGE_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// A cyclic skill graph fails here: the process refuses to start rather
	// than serve inconsistent unlock data.
	library, err := content.NewLibrary(cfg.ContentPath)
	if err != nil {
		slog.Error("failed to load content", "error", err)
		os.Exit(1)
	}

	var (
		store  engine.ProgressStore = engine.NewMemoryStore()
		events engine.EventLogger   = engine.NopEventLogger{}
		db     *database.DB
	)
	if cfg.Store.Backend == config.StorePostgres {
		db, err = database.New(ctx, cfg.Database.URL, database.Options{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore, err := engine.NewPostgresStore(db.Pool)
		if err != nil {
			slog.Error("failed to create store", "error", err)
			os.Exit(1)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		store = pgStore

		pgEvents := engine.NewPostgresEventLogger(db.Pool)
		if err := pgEvents.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure events schema", "error", err)
			os.Exit(1)
		}
		events = pgEvents
	}

	var snapshotCache *cache.Cache
	if cfg.Cache.Enabled {
		snapshotCache, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer snapshotCache.Close()
	}

	recorder, err := engine.NewRecorder(engine.RecorderConfig{
		Store:       store,
		Library:     library,
		Clock:       streak.SystemClock{Location: cfg.Location()},
		Events:      events,
		Cache:       snapshotCache,
		Metrics:     metrics.New(prometheus.DefaultRegisterer),
		SnapshotTTL: cfg.Engine.SnapshotTTL,
	})
	if err != nil {
		slog.Error("failed to create recorder", "error", err)
		os.Exit(1)
	}

	mux := newMux(&server{
		recorder: recorder,
		db:       db,
		cache:    snapshotCache,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
