// Package app wires the tile engine and its diagnostics HTTP surface
// together from configuration.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/podusowski/walkers/internal/cache"
	v1 "github.com/podusowski/walkers/internal/infrastructure/http/v1"
	"github.com/podusowski/walkers/internal/infrastructure/http/v1/handler"
	"github.com/podusowski/walkers/internal/manager"
	"github.com/podusowski/walkers/internal/prefetch"
	"github.com/podusowski/walkers/internal/scheduler"
	"github.com/podusowski/walkers/internal/source"
	"github.com/podusowski/walkers/internal/store"
	"github.com/podusowski/walkers/pkg/config"
	"github.com/podusowski/walkers/pkg/http_server"
	"github.com/podusowski/walkers/pkg/logger"
	"github.com/podusowski/walkers/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger.Level)

	l.Info("starting walkers tile engine", "config", cfg)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	src := buildSource(cfg, l)

	policy, err := scheduler.ParseQueuePolicy(cfg.Engine.QueuePolicy)
	if err != nil {
		l.Fatal("invalid queue policy", "error", err)
	}

	sched := scheduler.New(src, scheduler.Options{
		MaxParallel:  cfg.Engine.MaxParallelDownloads,
		FetchTimeout: cfg.Engine.FetchTimeout,
		Policy:       policy,
		Logger:       l,
	})
	defer sched.Close()

	tileCache := cache.New(cfg.Engine.CacheCapacity)

	mgr := manager.New(tileCache, sched, src, manager.Options{
		ClampZoom: cfg.Engine.ClampZoom,
		Logger:    l,
	})

	validate := validator.New()
	h := handler.NewHandler(validate, mgr)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	server := http_server.NewServer(cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "port", cfg.HTTP.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Fatal("server forced to shutdown", "error", err)
	}

	l.Info("server stopped")
}

// buildSource assembles the tile source chain: local directory or HTTP,
// optionally fronted by a secondary byte store.
func buildSource(cfg *config.Config, l logger.Logger) source.Source {
	var src source.Source
	if cfg.Source.Directory != "" {
		src = source.NewLocalSource(cfg.Source.Directory, cfg.Source.MaxZoom)
	} else {
		src = source.NewHTTPSource(cfg.Source.URLTemplate, source.HTTPOptions{
			UserAgent: cfg.Engine.UserAgent,
			Timeout:   cfg.Engine.FetchTimeout,
			TileSize:  cfg.Source.TileSize,
			MaxZoom:   cfg.Source.MaxZoom,
		})
	}

	st := buildStore(cfg, l)
	if st == nil {
		return src
	}

	cached := source.WithStore(src, st, l)

	if cfg.Warmup.Levels > 0 {
		warmer := prefetch.NewWarmer(src, st, cfg.Warmup.Workers, l)
		go func() {
			if err := warmer.Run(context.Background(), cfg.Warmup.Levels); err != nil {
				l.Error("warmup failed", "error", err)
			}
		}()
	}

	return cached
}

func buildStore(cfg *config.Config, l logger.Logger) store.Store {
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.Store.SQLite.Path, l)
		if err != nil {
			l.Fatal("failed to initialize sqlite tile store", "error", err)
		}
		return st
	case "redis":
		st, err := store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			TTL:      cfg.Store.Redis.TTL,
		})
		if err != nil {
			l.Fatal("failed to initialize redis tile store", "error", err)
		}
		return st
	default:
		return nil
	}
}
