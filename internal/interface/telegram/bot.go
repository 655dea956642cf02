// Package telegram is the league bot's chat interface. It turns Telegram
// updates into chat commands and score submissions and sends the replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/external/telegram"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/handler"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/middleware"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// BotUsername is used to recognise "/cmd@name". Filled from getMe when empty.
	BotUsername string

	// LeagueChatID restricts score submissions to one group. Zero accepts
	// every group; private chats are always accepted.
	LeagueChatID int64

	// GracefulShutdownTimeout bounds how long Stop waits for handlers.
	GracefulShutdownTimeout time.Duration

	RateLimit middleware.RateLimitConfig
	Recovery  middleware.RecoveryConfig

	Logger *slog.Logger
	Debug  bool
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		GracefulShutdownTimeout: 30 * time.Second,
		RateLimit:               middleware.DefaultRateLimitConfig(),
		Recovery:                middleware.DefaultRecoveryConfig(),
		Logger:                  slog.Default(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// API is the part of the Bot API client the bot uses.
type API interface {
	ReplyHTML(ctx context.Context, msg *telegram.Message, html string) (*telegram.Message, error)
	GetMe(ctx context.Context) (*telegram.User, error)
	DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error
	StartPolling(ctx context.Context, handler telegram.UpdateHandler) error
}

// CommandRecorder counts commands in metrics.
type CommandRecorder interface {
	RecordCommand(command string, duration time.Duration, err error)
}

// BotDependencies contains the bot's collaborators.
type BotDependencies struct {
	API    API
	Router *Router
	Scores handler.CommandHandler

	// Metrics may be nil.
	Metrics CommandRecorder
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram bot controller.
type Bot struct {
	config  BotConfig
	api     API
	router  *Router
	scores  handler.CommandHandler
	metrics CommandRecorder
	logger  *slog.Logger

	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware

	username atomic.Value // string

	running   bool
	runningMu sync.Mutex
	wg        sync.WaitGroup

	stats BotStats
}

// BotStats holds runtime counters.
type BotStats struct {
	UpdatesReceived atomic.Int64
	Commands        atomic.Int64
	Messages        atomic.Int64
	Errors          atomic.Int64
}

// NewBot creates a new Telegram bot.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.API == nil {
		return nil, errors.New("telegram API client is required")
	}
	if deps.Router == nil {
		return nil, errors.New("router is required")
	}
	if deps.Scores == nil {
		return nil, errors.New("score handler is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = DefaultBotConfig().GracefulShutdownTimeout
	}
	if config.Recovery.Logger == nil {
		config.Recovery.Logger = config.Logger
	}

	b := &Bot{
		config:      config,
		api:         deps.API,
		router:      deps.Router,
		scores:      deps.Scores,
		metrics:     deps.Metrics,
		logger:      config.Logger.With("component", "bot"),
		rateLimiter: middleware.NewRateLimiter(config.RateLimit),
		recovery:    middleware.NewRecoveryMiddleware(config.Recovery),
	}
	b.username.Store(strings.TrimPrefix(config.BotUsername, "@"))
	return b, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token, drops any webhook and long-polls until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	defer func() {
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()
	}()

	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	if b.botUsername() == "" {
		b.username.Store(me.Username)
	}
	b.logger.Info("bot verified", "id", me.ID, "username", me.Username)

	// getUpdates is refused while a webhook is set.
	if err := b.api.DeleteWebhook(ctx, false); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	return b.api.StartPolling(ctx, b.HandleUpdate)
}

// Stop waits for in-flight updates to finish.
func (b *Bot) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the bot is polling.
func (b *Bot) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

// Stats returns the runtime counters.
func (b *Bot) Stats() map[string]int64 {
	return map[string]int64{
		"updates_received": b.stats.UpdatesReceived.Load(),
		"commands":         b.stats.Commands.Load(),
		"messages":         b.stats.Messages.Load(),
		"errors":           b.stats.Errors.Load(),
	}
}

func (b *Bot) botUsername() string {
	name, _ := b.username.Load().(string)
	return name
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update. Only new text messages
// are handled; edits are ignored so a score cannot be changed after posting.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	b.wg.Add(1)
	defer b.wg.Done()

	b.stats.UpdatesReceived.Add(1)

	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if msg.From != nil && msg.From.IsBot && msg.SenderChat == nil {
		return nil
	}

	req := b.buildRequest(msg)
	req.CorrelationID = "tg-" + strconv.FormatInt(update.UpdateID, 10)
	ctx = middleware.ContextWithCorrelationID(ctx, req.CorrelationID)

	if name, args, ok := ParseCommand(msg.Text, b.botUsername()); ok {
		req.Command, req.Args = name, args
		if handled, err := b.handleCommand(ctx, msg, req); handled {
			return err
		}
	}

	return b.handleText(ctx, msg, req)
}

// buildRequest resolves the sender. Messages posted on behalf of a chat, or
// without a sender, keep TelegramID 0.
func (b *Bot) buildRequest(msg *telegram.Message) handler.Request {
	req := handler.Request{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		IsGroup:   telegram.IsGroupChat(msg),
		Text:      msg.Text,
		At:        msg.SentAt(),
	}

	switch {
	case msg.SenderChat != nil:
		req.Name = msg.SenderChat.Title
	case msg.From != nil:
		req.TelegramID = msg.From.ID
		req.Name = msg.From.DisplayName()
	}
	return req
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, req handler.Request) (bool, error) {
	if _, known := b.router.Lookup(req.Command); !known {
		return false, nil
	}
	b.stats.Commands.Add(1)

	limitKey := req.TelegramID
	if limitKey == 0 {
		limitKey = req.ChatID
	}
	if limit := b.rateLimiter.Check(limitKey); !limit.Allowed {
		b.logger.Debug("command rate limited",
			"command", req.Command,
			"telegram_id", req.TelegramID,
			"retry_after", limit.RetryAfter,
		)
		if limit.ResponseMessage != "" {
			return true, b.reply(ctx, msg, limit.ResponseMessage)
		}
		return true, nil
	}

	start := time.Now()
	var resp *handler.Response
	result, err := b.recovery.RecoverWithHandler(ctx, req.TelegramID, req.Command, func() error {
		var handlerErr error
		resp, _, handlerErr = b.router.HandleCommand(ctx, req)
		return handlerErr
	})
	if result.Recovered {
		resp = handler.Reply(result.UserMessage)
		err = fmt.Errorf("command %s panicked", req.Command)
	}

	if b.metrics != nil {
		b.metrics.RecordCommand(req.Command, time.Since(start), err)
	}

	if err != nil {
		b.stats.Errors.Add(1)
		b.logger.Error("command failed",
			"command", req.Command,
			"telegram_id", req.TelegramID,
			"correlation_id", req.CorrelationID,
			"error", err,
		)
	}

	if resp != nil && resp.Text != "" {
		if sendErr := b.reply(ctx, msg, resp.Text); sendErr != nil {
			return true, sendErr
		}
	}
	return true, nil
}

func (b *Bot) handleText(ctx context.Context, msg *telegram.Message, req handler.Request) error {
	if b.config.LeagueChatID != 0 && req.IsGroup && req.ChatID != b.config.LeagueChatID {
		if b.config.Debug {
			b.logger.Debug("ignoring message from foreign group", "chat_id", req.ChatID)
		}
		return nil
	}
	b.stats.Messages.Add(1)

	var resp *handler.Response
	result, err := b.recovery.RecoverWithHandler(ctx, req.TelegramID, "score", func() error {
		var handlerErr error
		resp, handlerErr = b.scores.Handle(ctx, req)
		return handlerErr
	})
	if result.Recovered {
		resp = handler.Reply(result.UserMessage)
	}
	if err != nil {
		b.stats.Errors.Add(1)
		b.logger.Error("message handling failed",
			"telegram_id", req.TelegramID,
			"correlation_id", req.CorrelationID,
			"error", err,
		)
	}

	if resp == nil || resp.Text == "" {
		return nil
	}
	return b.reply(ctx, msg, resp.Text)
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) error {
	if _, err := b.api.ReplyHTML(ctx, msg, text); err != nil {
		b.stats.Errors.Add(1)
		return fmt.Errorf("reply to chat %d: %w", msg.Chat.ID, err)
	}
	return nil
}
