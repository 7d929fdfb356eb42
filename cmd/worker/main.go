// Package main - точка входа для фоновых процессов (Worker) Chrono Performance Hub.
//
// Worker отвечает за периодические задачи:
// - Снапшоты лидербордов по всем областям и периодам
// - Ретенция (удаление устаревших снапшотов)
// - Обработка событий активности с платформы (серии, достижения)
// - Рассылка уведомлений об изменении позиций
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
	"github.com/chrono-hub/chrono-performance-hub/internal/application/command"
	"github.com/chrono-hub/chrono-performance-hub/internal/application/eventhandler"
	"github.com/chrono-hub/chrono-performance-hub/internal/application/query"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/leaderboard"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/notification"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/period"
	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/external/webhook"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/messaging"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/persistence/postgres"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/persistence/redis"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/scheduler"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/scheduler/jobs"
	"github.com/chrono-hub/chrono-performance-hub/internal/infrastructure/service"
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
	log.Info("starting Chrono Performance Hub Worker",
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
			log.Warn("Redis unavailable, running without cache and cross-instance events", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			if cfg.Features.IsEnabled(config.FeatureLeaderboardCache, "") {
				lbCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL, log)
			}
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus: при наличии Redis события ходят между инстансами,
	// иначе остаёмся на внутрипроцессной шине.
	// ─────────────────────────────────────────────────────────────────────────
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log

	var eventBus shared.EventBus
	if redisCache != nil {
		eventBus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
	} else {
		eventBus = messaging.NewInMemoryEventBus(localBusConfig)
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// Репозитории
	// ─────────────────────────────────────────────────────────────────────────
	metricsReader := postgres.NewMetricsReader(dbConn)
	snapshotRepo := postgres.NewSnapshotRepository(dbConn, log)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	userRepo := postgres.NewUserRepository(dbConn)

	resolver := period.NewResolver(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// Уведомления и обработка активности
	// ─────────────────────────────────────────────────────────────────────────
	var dispatcher notification.Dispatcher = service.NewLogDispatcher(log)
	if cfg.Notifications.WebhookURL != "" {
		webhookConfig := webhook.DefaultClientConfig(cfg.Notifications.WebhookURL)
		webhookConfig.Secret = cfg.Notifications.WebhookSecret
		webhookConfig.Timeout = cfg.Notifications.WebhookTimeout
		webhookConfig.RetryAttempts = cfg.Notifications.WebhookRetries
		webhookConfig.Logger = log

		webhookClient, err := webhook.NewClient(webhookConfig)
		if err != nil {
			return fmt.Errorf("failed to create webhook client: %w", err)
		}
		dispatcher = service.NewFanoutDispatcher(log, service.NewLogDispatcher(log), webhookClient)
		log.Info("webhook notifications enabled", "url", cfg.Notifications.WebhookURL)
	}

	recordHandler := command.NewRecordActivityHandler(
		userRepo,
		metricsReader,
		achievementRepo,
		dispatcher,
		eventBus,
		cfg.App.Location,
		log,
	)

	activityHandler := eventhandler.NewOnActivityHandler(
		recordHandler, log, eventhandler.DefaultActivityHandlerConfig(),
	)
	if err := activityHandler.Register(eventBus); err != nil {
		return fmt.Errorf("failed to register activity handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Планировщик фоновых задач
	// ─────────────────────────────────────────────────────────────────────────
	leaderboardHandler := query.NewGetLeaderboardHandler(
		metricsReader, snapshotRepo, lbCache, resolver, log,
	)

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		snapshotConfig := jobs.DefaultSnapshotConfig()
		snapshotConfig.ScopeConcurrency = cfg.Scheduler.ScopeConcurrency
		snapshotConfig.Timeout = cfg.Scheduler.JobTimeout
		snapshotConfig.NotifyRankChanges = cfg.Leaderboard.NotifyRankChanges &&
			cfg.Features.IsEnabled(config.FeatureNotifyRankUp, "")
		snapshotConfig.MinRankChangeForNotification = cfg.Leaderboard.MinRankChangeForNotification

		snapshotJob := jobs.NewSnapshotLeaderboardsJob(
			metricsReader,
			leaderboardHandler,
			snapshotRepo,
			lbCache,
			eventBus,
			dispatcher,
			resolver,
			log,
			snapshotConfig,
		)

		snapshotSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.SnapshotCron)
		if err != nil {
			return fmt.Errorf("invalid snapshot cron %q: %w", cfg.Scheduler.SnapshotCron, err)
		}
		if err := sched.Register(snapshotJob, snapshotSchedule); err != nil {
			return fmt.Errorf("failed to register snapshot job: %w", err)
		}

		pruneConfig := jobs.DefaultPruneConfig()
		pruneConfig.KeepPeriods = cfg.Scheduler.KeepPeriods

		pruneJob := jobs.NewPruneSnapshotsJob(metricsReader, snapshotRepo, log, pruneConfig)

		pruneSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.PruneCron)
		if err != nil {
			return fmt.Errorf("invalid prune cron %q: %w", cfg.Scheduler.PruneCron, err)
		}
		if err := sched.Register(pruneJob, pruneSchedule); err != nil {
			return fmt.Errorf("failed to register prune job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
	} else {
		log.Warn("scheduler disabled, snapshots will not be taken")
	}

	log.Info("Chrono Performance Hub Worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("shutdown completed successfully")
	return nil
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
