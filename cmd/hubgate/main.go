package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"hubgate/config"
	"hubgate/internal/api"
	"hubgate/internal/application"
	"hubgate/internal/infra"
	"hubgate/internal/infra/cache"
	"hubgate/internal/infra/homeassistant"
	"hubgate/internal/infra/platform"
	"hubgate/internal/infra/postgres"
	"hubgate/internal/infra/postgrest"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hubgate error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := createStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, closeSnapshots, err := createSnapshotStore(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	platformCfg := platform.Config{
		AuthBaseURL:    cfg.Platform.AuthBaseURL,
		HistoryBaseURL: cfg.Platform.HistoryBaseURL,
		APIKey:         cfg.Platform.APIKey,
		Timeout:        cfg.Platform.Timeout,
	}
	auth := platform.NewAuthClient(platformCfg, logger)

	var historyAPI application.HistoryAPI
	if cfg.Platform.HistoryBaseURL != "" {
		historyAPI = platform.NewHistoryClient(platformCfg, logger)
	}

	hub := homeassistant.NewClient(cfg.Hub.RequestTimeout, logger)
	resolver := application.NewConnectionResolver(store.Users, store.Connections, logger)

	synchronizer := application.NewSynchronizer(resolver, hub, store.Overrides, application.ProbeTimeouts{
		Home:  cfg.Hub.HomeProbeTimeout,
		Cloud: cfg.Hub.CloudProbeTimeout,
	}, logger)

	syncCache := application.NewSyncCache(synchronizer, snapshots, application.SyncCacheConfig{
		TTL:               cfg.Cache.TTL,
		BackgroundTimeout: cfg.Cache.BackgroundTimeout,
	}, logger)
	defer syncCache.Wait()

	server := api.NewServer(api.Config{
		Addr:            cfg.Server.Addr,
		LoginRateLimit:  cfg.Server.LoginRateLimit,
		LoginRateWindow: cfg.Server.LoginRateWindow,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, api.Services{
		Sessions: application.NewSessions(auth, resolver, syncCache, auth, logger).WithIdleTimeout(cfg.Server.SessionIdleTimeout),
		Devices:  syncCache,
		Commands: application.NewDispatcher(resolver, hub, syncCache, logger),
		History:  application.NewHistoryAggregator(resolver, store.Readings, historyAPI, syncCache, logger),
		Settings: application.NewSettings(resolver, store.Users, store.Connections, store.Overrides, syncCache, logger),
	}, logger)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("starting hubgate",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Backend,
	)

	<-ctx.Done()
	return server.Stop()
}

func createStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (application.Store, func(), error) {
	switch cfg.Driver {
	case "postgrest":
		s := postgrest.NewStore(postgrest.NewClient(postgrest.Config{
			BaseURL: cfg.RestURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger))
		return application.Store{Users: s, Connections: s, Overrides: s, Readings: s}, func() {}, nil
	default:
		var db *sql.DB
		err := infra.StartupBackoff().Do(ctx, logger, "postgres", func(ctx context.Context) error {
			var err error
			db, err = postgres.Open(ctx, postgres.Config{
				DSN:          cfg.DSN,
				MaxOpenConns: cfg.MaxOpenConns,
				MaxIdleConns: cfg.MaxIdleConns,
			})
			return err
		})
		if err != nil {
			return application.Store{}, nil, err
		}
		s := postgres.NewStore(db, logger)
		return application.Store{Users: s, Connections: s, Overrides: s, Readings: s}, closer(db, logger), nil
	}
}

func closer(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", "error", err)
		}
	}
}

func createSnapshotStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (application.SnapshotStore, func(), error) {
	if cfg.Backend != "redis" {
		return cache.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := cache.NewRedisStore(client, cfg.Redis.KeyPrefix)
	if err := infra.StartupBackoff().Do(ctx, logger, "redis", store.Ping); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return store, func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing redis", "error", err)
		}
	}, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
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

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
