// Package main - точка входа для HTTP API (read-only) Chrono Performance Hub.
//
// API отдаёт лидерборды производительности и достижения пользователей.
// Вся запись происходит в worker-процессе: API только читает метрики,
// снапшоты и кеш.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chrono-hub/chrono-performance-hub/config"
	"github.com/chrono-hub/chrono-performance-hub/internal/application/query"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/persistence/postgres"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/chrono-hub/chrono-performance-hub/internal/interface/http"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env опционален: в production переменные приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting Chrono Performance Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var lbCache leaderboard.Cache

	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(redisConfigFrom(cfg))
		if err != nil {
			log.Warn("Redis unavailable, leaderboards served without cache", "error", err)
		} else {
			defer redisCache.Close()
			if cfg.Features.IsEnabled(config.FeatureLeaderboardCache, "") {
				lbCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL, log)
			}
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Репозитории и обработчики запросов
	// ─────────────────────────────────────────────────────────────────────────
	metricsReader := postgres.NewMetricsReader(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn, log)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	userRepo := postgres.NewUserRepository(dbConn)

	resolver := period.NewResolver(cfg.App.Location)
	leaderboardHandler := query.NewGetLeaderboardHandler(
		metricsReader, snapshotRepo, lbCache, resolver, log,
	)
	rankHandler := query.NewGetUserRankHandler(leaderboardHandler, log)
	summaryHandler := query.NewGetUserSummaryHandler(
		userRepo, metricsReader, achievementRepo, resolver, log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP сервер
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		GetLeaderboardHandler: leaderboardHandler,
		GetUserRankHandler:    rankHandler,
		GetUserSummaryHandler: summaryHandler,
		Achievements:          achievementRepo,
		Logger:                log,
		HealthChecker:         &healthChecker{db: dbConn, cache: redisCache},
	})

	errCh := server.StartAsync()
	log.Info("HTTP server started", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// healthChecker агрегирует состояние PostgreSQL и Redis для проб.
type healthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *healthChecker) Check(ctx context.Context) httpapi.HealthStatus {
	status := httpapi.HealthStatus{
		Healthy:    true,
		Ready:      true,
		Components: make(map[string]string),
	}

	dbHealth, err := h.db.Health(ctx)
	switch {
	case err != nil:
		status.Healthy = false
		status.Ready = false
		status.Message = err.Error()
		status.Components["postgres"] = "down"
	case !dbHealth.Healthy:
		status.Healthy = false
		status.Ready = false
		status.Message = dbHealth.Error
		status.Components["postgres"] = "down"
	default:
		status.Components["postgres"] = "up"
	}

	// Redis необязателен: его отсутствие деградирует кеш, но не API.
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			status.Components["redis"] = "down"
		} else {
			status.Components["redis"] = "up"
		}
	}

	return status
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// redisConfigFrom переносит настройки приложения в конфиг Redis клиента.
func redisConfigFrom(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}
