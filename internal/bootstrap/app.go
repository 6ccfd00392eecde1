package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"localchat/internal/ai"
	"localchat/internal/config"
	"localchat/internal/lock"
	"localchat/internal/metrics"
	"localchat/internal/model"
	mysqlClient "localchat/internal/platform/mysql"
	rabbitmqClient "localchat/internal/platform/rabbitmq"
	redisClient "localchat/internal/platform/redis"
	"localchat/internal/pkg/logger"
	"localchat/internal/ratelimit"
	"localchat/internal/repository"
	"localchat/internal/worker"
)

// App holds the process-wide resources. Redis and MQConn are nil when
// disabled in config.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	UsageWorker *worker.UsagePersistWorker
	Metrics     *metrics.Metrics
	Gate        *ratelimit.Gate
	Locker      lock.SessionLocker
	Generator   ai.Generator

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	app := &App{
		Config:    cfg,
		Logger:    logger.New(nil, cfg.Log.Level).With("app", cfg.App.Name, "env", cfg.App.Env),
		Metrics:   metrics.New(cfg.Metrics.Namespace, cfg.KnownModels()...),
		Gate:      ratelimit.NewGate(cfg.RateLimitInterval()),
		StartedAt: time.Now(),
	}

	app.Generator, err = ai.NewGenerator(ai.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	app.MySQL, err = mysqlClient.New(ctx, cfg.MySQLDSN(), app.Logger)
	if err != nil {
		return nil, err
	}
	if err := app.MySQL.AutoMigrate(model.All()...); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if cfg.Redis.Enabled {
		app.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	switch cfg.Lock.Backend {
	case "redis":
		app.Locker = lock.NewRedis(
			app.Redis,
			time.Duration(cfg.Lock.TTLSeconds)*time.Second,
			time.Duration(cfg.Lock.WaitSeconds)*time.Second,
		)
	default:
		app.Locker = lock.NewLocal()
	}

	if cfg.RabbitMQ.Enabled {
		app.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			_ = app.Close()
			return nil, err
		}

		usageRepo := repository.NewUsageRepository(app.MySQL)
		app.UsageWorker = worker.NewUsagePersistWorker(app.MQConn, usageRepo, cfg.RabbitMQ.UsageQueue, app.Logger)
		if err := app.UsageWorker.Start(ctx); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("start usage worker failed: %w", err)
		}
	}

	app.Logger.Info("bootstrap complete",
		"llm_provider", cfg.LLM.Provider,
		"llm_base_url", cfg.LLM.BaseURL,
		"default_model", cfg.LLM.DefaultModel,
		"lock_backend", cfg.Lock.Backend,
		"redis", cfg.Redis.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
	)
	return app, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.UsageWorker != nil {
		a.UsageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
