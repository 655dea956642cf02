// Command bot runs the TimeGuessr league Telegram bot: it long-polls the Bot
// API for score messages and commands, and serves the weekly close trigger,
// health checks and metrics over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timeguessr-liga/timeguessr-bot/config"
	"github.com/timeguessr-liga/timeguessr-bot/internal/bootstrap"
	tgclient "github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/external/telegram"
	httpserver "github.com/timeguessr-liga/timeguessr-bot/internal/interface/http"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/http/handlers"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/handler"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/circuitbreaker"
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
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, logCloser := bootstrap.NewLogger(cfg, "bot")
	defer logCloser.Close()

	log.Info("starting TimeGuessr league bot",
		"timezone", cfg.League.Location.String(),
		"league_chat_id", cfg.Telegram.LeagueChatID,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Infrastructure
	// ─────────────────────────────────────────────────────────────────────────
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
	// 3. Telegram
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	clientCfg.PollTimeout = cfg.Telegram.PollingTimeout
	if clientCfg.Timeout <= clientCfg.PollTimeout {
		clientCfg.Timeout = clientCfg.PollTimeout * 2
	}
	clientCfg.Observer = infra.Metrics.RecordTelegramCall
	clientCfg.OnCircuitChange = func(name string, _, to circuitbreaker.State) {
		infra.Metrics.SetCircuitState(name, int(to))
	}
	clientCfg.Logger = log
	clientCfg.Debug = cfg.Telegram.Debug
	client := tgclient.NewClient(clientCfg)

	var cache handler.TextCache
	if infra.Reports != nil {
		cache = infra.Reports
	}

	router := telegram.NewRouter(telegram.RouterConfig{Logger: log, Debug: cfg.Telegram.Debug})
	if err := router.RegisterLeagueCommands(telegram.LeagueHandlers{
		Reports: handler.NewReportHandler(app.Leaderboards, cache, cfg.League.Location, log),
		Me:      handler.NewMeHandler(app.PlayerStats, log),
		Pet:     handler.NewPetHandler(infra.Metrics),
	}); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	botCfg := telegram.DefaultBotConfig()
	botCfg.BotUsername = cfg.Telegram.BotUsername
	botCfg.LeagueChatID = cfg.Telegram.LeagueChatID
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botCfg.RateLimit.RequestsPerMinute = cfg.Telegram.UserRateLimit
	botCfg.RateLimit.BurstSize = cfg.Telegram.UserRateBurst
	botCfg.RateLimit.BanDuration = cfg.Telegram.UserRateLimitBan
	botCfg.Recovery.Logger = log
	botCfg.Logger = log
	botCfg.Debug = cfg.Telegram.Debug

	bot, err := telegram.NewBot(botCfg, telegram.BotDependencies{
		API:     client,
		Router:  router,
		Scores:  handler.NewScoreHandler(app.SubmitScore, infra.Metrics, log),
		Metrics: infra.Metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		Logger:  log,
		Health:  infra.HealthChecker(),
		Metrics: infra.Metrics,
	}
	if cfg.Cron.Configured() {
		auth, err := handlers.NewBearerAuth(cfg.Cron.APIKey, cfg.Cron.APIKeyHash)
		if err != nil {
			return fmt.Errorf("cron auth: %w", err)
		}
		deps.Auth = auth
		deps.WeeklyPoints = handlers.NewWeeklyPointsHandler(app.CloseWeek, cfg.League.Location, log)
	} else {
		log.Warn("CRON_API_KEY not set, weekly close endpoint disabled")
	}

	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpCfg.RateLimitBurst = cfg.HTTP.RateBurst
	httpCfg.TrustProxyHeaders = cfg.HTTP.TrustProxyHeaders

	server, err := httpserver.NewServer(httpCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Run until a signal or a fatal error
	// ─────────────────────────────────────────────────────────────────────────
	botCtx, cancelBot := context.WithCancel(ctx)
	defer cancelBot()

	botErr := make(chan error, 1)
	go func() {
		botErr <- bot.Start(botCtx)
	}()
	httpErr := server.StartAsync()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-botErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("telegram bot: %w", err)
		}
	case err, ok := <-httpErr:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	cancelBot()
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}

	if runErr != nil {
		log.Error("stopped with error", "error", runErr)
		return runErr
	}
	log.Info("shutdown completed")
	return nil
}
