// Command worker runs the league's scheduled jobs: the weekly close every
// Sunday at 23:59 league time and a periodic recompute of the current game.
// Health and metrics are served over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timeguessr-liga/timeguessr-bot/config"
	"github.com/timeguessr-liga/timeguessr-bot/internal/bootstrap"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/scheduler"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/timeguessr-liga/timeguessr-bot/internal/interface/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("failed to load config: DATABASE_URL is required")
	}

	log, logCloser := bootstrap.NewLogger(cfg, "worker")
	defer logCloser.Close()

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	infra, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	if err := infra.Migrate(ctx); err != nil {
		return err
	}

	app := infra.Application()

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.League.Location
	schedCfg.TickInterval = cfg.Scheduler.TickInterval
	schedCfg.Observer = infra.Metrics
	sched := scheduler.NewScheduler(schedCfg)

	closeCfg := jobs.DefaultWeeklyCloseConfig(cfg.League.Location)
	closeCfg.Timeout = cfg.Scheduler.JobTimeout
	if err := sched.RegisterCron(jobs.NewWeeklyCloseJob(app.CloseWeek, closeCfg, log), cfg.Scheduler.WeeklyCloseCron); err != nil {
		return fmt.Errorf("failed to register weekly close: %w", err)
	}

	if cfg.Scheduler.RecomputeInterval > 0 {
		every, err := scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeInterval)
		if err != nil {
			return fmt.Errorf("recompute interval: %w", err)
		}
		job := jobs.NewRecomputeDailyJob(app.Scores, app.Recompute, cfg.League.Location, log)
		if err := sched.Register(job, every); err != nil {
			return fmt.Errorf("failed to register daily recompute: %w", err)
		}
	}

	for _, j := range sched.ListJobs() {
		log.Info("job registered", "job", j.Name, "next_run", j.NextRun)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP (health and metrics)
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpCfg.RateLimitBurst = cfg.HTTP.RateBurst
	httpCfg.TrustProxyHeaders = cfg.HTTP.TrustProxyHeaders

	server, err := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Logger:  log,
		Health:  infra.HealthChecker(),
		Metrics: infra.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	httpErr := server.StartAsync()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-httpErr:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}

	if runErr != nil {
		return runErr
	}
	log.Info("worker stopped")
	return nil
}
