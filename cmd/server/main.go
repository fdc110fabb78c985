// Package main is the entry point of the results-engine server: the query
// and aggregation backend of the public student results portal.
//
// Architecture follows Clean Architecture and DDD:
// - Domain: records, stages, shared errors and events
// - Engine: search index, resolver, suggestions, analytics, calculator
// - Infrastructure: PostgreSQL stores, Redis cache, event buses
// - Interface: REST API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/natija-hub/results-engine/config"
	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/engine"
	"github.com/natija-hub/results-engine/internal/infrastructure/messaging"
	"github.com/natija-hub/results-engine/internal/infrastructure/persistence/postgres"
	"github.com/natija-hub/results-engine/internal/infrastructure/persistence/redis"
	httpserver "github.com/natija-hub/results-engine/internal/interface/http"
	"github.com/natija-hub/results-engine/internal/suggest"
	"github.com/natija-hub/results-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting results engine",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.Migrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	recordStore := postgres.NewRecordStore(conn)
	stageStore := postgres.NewStageStore(conn)
	if cfg.Database.Migrate {
		if err := stageStore.Seed(ctx); err != nil {
			return fmt.Errorf("seed stages: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache           *redis.Cache
		suggestionCache suggest.RemoteCache
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			// The engine serves from memory; Redis only adds the shared tiers.
			log.Warn("redis unavailable, continuing without it", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			suggestionCache = redis.NewSuggestionCache(cache, log)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus
	// ─────────────────────────────────────────────────────────────────────────
	eventBus, err := newEventBus(cache, log)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer func() { _ = eventBus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// Engine
	// ─────────────────────────────────────────────────────────────────────────
	eng, err := engine.New(recordStore, stageStore, eventBus, engine.Config{
		ResultCap:       cfg.Engine.ResultCap,
		SuggestionTTL:   cfg.Engine.SuggestionTTL,
		SuggestionCache: suggestionCache,
	}, log)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if err := eng.Refresh(ctx); err != nil {
		// Serve /health and /ready while the store recovers; the first
		// successful refresh flips readiness.
		log.Error("initial snapshot load failed, serving unready", logger.Err(err))
	}

	if cfg.Engine.RefreshInterval > 0 {
		go refreshLoop(ctx, eng, cfg.Engine.RefreshInterval, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.RefreshToken = cfg.HTTP.RefreshToken

	server := httpserver.NewServer(serverCfg, eng, log)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("results engine stopped")
	return nil
}

// connectPostgres builds the connection from DATABASE_URL when set, otherwise
// from the individual DB_* settings.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}
	return postgres.NewConnection(ctx, postgres.Config{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		Database:          cfg.Database.Name,
		User:              cfg.Database.User,
		Password:          cfg.Database.Password,
		SSLMode:           cfg.Database.SSLMode,
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    cfg.Database.ConnectTimeout,
	})
}

// newEventBus returns the Redis-backed bus when a Redis connection exists,
// so refreshes propagate across instances, and the in-memory bus otherwise.
func newEventBus(cache *redis.Cache, log *logger.Logger) (shared.EventBus, error) {
	localCfg := messaging.DefaultInMemoryEventBusConfig()
	localCfg.Logger = log

	if cache == nil {
		return messaging.NewInMemoryEventBus(localCfg), nil
	}
	return messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewBusClient(cache),
		InstanceID:     uuid.NewString(),
		LocalBusConfig: localCfg,
		Logger:         log,
	})
}

// refreshLoop reloads the snapshot on a fixed interval. The bus path is used
// so multi-instance deployments rebuild together.
func refreshLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := eng.TriggerRefresh("scheduler"); err != nil {
				log.Warn("scheduled refresh failed", logger.Err(err))
			}
		}
	}
}
