// Package bootstrap wires the shared infrastructure and use cases of the
// bot, the worker and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/config"
	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/application/eventhandler"
	"github.com/timeguessr-liga/timeguessr-bot/internal/application/query"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/messaging"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/metrics"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/persistence/postgres"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/persistence/redis"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/http/handlers"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/logger"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/retry"
)

// NewLogger builds the process logger from the log section and installs it
// as the slog default.
func NewLogger(cfg *config.Config, service string) (*slog.Logger, io.Closer) {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Log.Level)
	switch {
	case cfg.Log.Format != "":
		opts.Format = logger.Format(cfg.Log.Format)
	case cfg.IsProduction():
		opts.Format = logger.FormatJSON
	default:
		opts.Format = logger.FormatText
	}
	opts.File.Path = cfg.Log.File
	if cfg.Log.FileMaxSizeMB > 0 {
		opts.File.MaxSizeMB = cfg.Log.FileMaxSizeMB
	}
	if cfg.Log.FileBackups > 0 {
		opts.File.MaxBackups = cfg.Log.FileBackups
	}
	if cfg.Log.FileMaxAge > 0 {
		opts.File.MaxAgeDays = cfg.Log.FileMaxAge
	}
	opts.Attrs = []slog.Attr{
		slog.String("service", service),
		slog.String("version", cfg.App.Version),
		slog.String("env", string(cfg.App.Environment)),
	}

	log, closer := logger.New(opts)
	slog.SetDefault(log)
	return log, closer
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// Infrastructure holds the process-wide connections.
type Infrastructure struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *postgres.Connection
	Metrics *metrics.Manager
	Bus     *messaging.InMemoryEventBus

	// Cache and Reports are nil when Redis is disabled or unreachable.
	Cache   *redis.Cache
	Reports *redis.ReportCache
}

// Open connects to PostgreSQL and, when configured, Redis. A Redis failure
// is logged and the process runs without the report cache.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Infrastructure, error) {
	dbCfg := postgres.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbCfg.StatementTimeout = cfg.Database.QueryTimeout

	if _, err := dbCfg.PoolConfig(); err != nil {
		return nil, err
	}

	log.Info("connecting to database")
	var db *postgres.Connection
	err := retry.StartupRetrier(logRetries(log, "postgres")).Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = postgres.NewConnection(ctx, dbCfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	m := metrics.NewManager()

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Observer = m.ObserveEventHandler

	infra := &Infrastructure{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Metrics: m,
		Bus:     messaging.NewInMemoryEventBus(busCfg),
	}

	if cfg.Redis.Enabled() {
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := redis.NewCache(ctx, redisCfg)
		if err != nil {
			log.Warn("redis unavailable, report cache disabled", "error", err)
		} else {
			infra.Cache = cache
			infra.Reports = redis.NewReportCache(cache, log)
			log.Info("redis connection established")
		}
	}

	if err := eventhandler.Register(infra.Bus, infra.Reports, m, log); err != nil {
		infra.Close()
		return nil, fmt.Errorf("register event handlers: %w", err)
	}

	return infra, nil
}

// logRetries logs each failed attempt to reach a dependency.
func logRetries(log *slog.Logger, dependency string) retry.Option {
	return retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			"dependency", dependency,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	})
}

// Migrate applies pending schema migrations.
func (i *Infrastructure) Migrate(ctx context.Context) error {
	applied, err := postgres.NewMigrator(i.DB).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	i.Logger.Info("database schema is up to date", "applied", applied)
	return nil
}

// HealthChecker checks the database and, when connected, Redis.
func (i *Infrastructure) HealthChecker() *handlers.CompositeHealthChecker {
	checker := handlers.NewCompositeHealthChecker(i.Config.App.Version)
	if i.Config.HTTP.HealthTimeout > 0 {
		checker.SetTimeout(i.Config.HTTP.HealthTimeout)
	}
	checker.AddCheck("postgres", handlers.NewPingCheck(i.DB))
	if i.Cache != nil {
		checker.AddCheck("redis", handlers.NewPingCheck(i.Cache))
	}
	return checker
}

// Close releases every connection.
func (i *Infrastructure) Close() {
	_ = i.Bus.Close()
	if i.Cache != nil {
		_ = i.Cache.Close()
	}
	i.DB.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// Application holds the use cases.
type Application struct {
	Players *postgres.PlayerRepository
	Scores  *postgres.ScoreRepository
	Reports *postgres.ReportRepository

	SubmitScore  *command.SubmitScoreHandler
	Recompute    *command.RecomputeDailyHandler
	CloseWeek    *command.CloseWeekHandler
	Leaderboards *query.LeaderboardService
	PlayerStats  *query.PlayerStatsHandler
}

// Application builds the use cases on top of the infrastructure.
func (i *Infrastructure) Application() *Application {
	loc := i.Config.League.Location
	log := i.Logger

	players := postgres.NewPlayerRepository(i.DB)
	scores := postgres.NewScoreRepository(i.DB)
	rankings := postgres.NewRankingRepository(i.DB, loc)
	reports := postgres.NewReportRepository(i.DB, loc)
	tx := postgres.NewRankingTransactor(i.DB, loc)

	recompute := command.NewRecomputeDailyHandler(tx, i.Bus, i.Metrics, log)
	closeWeek := command.NewCloseWeekHandler(
		command.NewAggregateWeekHandler(tx, loc, i.Metrics, log),
		command.NewFinalizeWeekHandler(tx, loc, i.Metrics, log),
		i.Bus,
		log,
	)
	if i.Cache != nil {
		closeWeek = closeWeek.WithLocker(redis.NewLocker(i.Cache, log))
	}

	return &Application{
		Players:      players,
		Scores:       scores,
		Reports:      reports,
		SubmitScore:  command.NewSubmitScoreHandler(scores, recompute, i.Bus, loc, log),
		Recompute:    recompute,
		CloseWeek:    closeWeek,
		Leaderboards: query.NewLeaderboardService(reports, rankings, scores, players, loc),
		PlayerStats:  query.NewPlayerStatsHandler(players),
	}
}
