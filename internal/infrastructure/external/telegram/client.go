// Package telegram implements the subset of the Telegram Bot API the league
// bot needs: long polling for updates and sending HTML replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/pkg/circuitbreaker"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Telegram client.
type ClientConfig struct {
	// Token is the Telegram Bot API token
	Token string

	// BaseURL is the Telegram Bot API base URL (default: https://api.telegram.org)
	BaseURL string

	// Timeout is the HTTP request timeout. It must exceed PollTimeout.
	Timeout time.Duration

	// PollTimeout is the long polling timeout sent to getUpdates.
	PollTimeout time.Duration

	// Retrier drives retries of outbound calls (default: retry.TelegramRetrier).
	Retrier *retry.Retrier

	// Breaker guards sendMessage (default: NewSendBreaker).
	Breaker *circuitbreaker.Breaker

	// OnCircuitChange is told when the default send breaker changes state.
	OnCircuitChange func(name string, from, to circuitbreaker.State)

	// Limiter paces sendMessage (default: NewSendLimiter with Bot API limits).
	Limiter *SendLimiter

	// Observer is told about every API call, for metrics.
	Observer func(method string, err error)

	Logger *slog.Logger
	Debug  bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:       token,
		BaseURL:     "https://api.telegram.org",
		Timeout:     60 * time.Second,
		PollTimeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM API TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// Update represents a Telegram update.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message represents a Telegram message.
type Message struct {
	MessageID int64           `json:"message_id"`
	From      *User           `json:"from,omitempty"`
	Chat      *Chat           `json:"chat"`
	Date      int64           `json:"date"`
	Text      string          `json:"text,omitempty"`
	Entities  []MessageEntity `json:"entities,omitempty"`

	// SenderChat is set when the message was sent on behalf of a chat:
	// anonymous group admins and linked channels.
	SenderChat *Chat `json:"sender_chat,omitempty"`

	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
}

// SentAt returns the message timestamp.
func (m *Message) SentAt() time.Time {
	return time.Unix(m.Date, 0)
}

// User represents a Telegram user.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// FullName returns the user's full name.
func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName()); name != "" {
		return name
	}
	return u.Username
}

// Chat represents a Telegram chat.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// MessageEntity represents a message entity (command, mention, etc.).
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// APIResponse represents a Telegram API response.
type APIResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Description string              `json:"description,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// ResponseParameters contains additional error parameters.
type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Telegram Bot API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.Breaker
	limiter    *SendLimiter
	logger     *slog.Logger

	updateOffset int64
	updateMu     sync.Mutex
}

// NewClient creates a new Telegram client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.telegram.org"
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 30 * time.Second
	}
	if config.Timeout <= config.PollTimeout {
		config.Timeout = config.PollTimeout + 30*time.Second
	}

	logger := config.Logger.With("component", "telegram_client")

	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.TelegramRetrier(
			retry.WithRetryIf(IsRetryable),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("retrying telegram call", "attempt", attempt, "delay", delay, "error", err)
			}),
		)
	}

	breaker := config.Breaker
	if breaker == nil {
		onChange := config.OnCircuitChange
		breaker = NewSendBreaker(circuitbreaker.WithOnTransition(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if onChange != nil {
				onChange(name, from, to)
			}
		}))
	}

	limiter := config.Limiter
	if limiter == nil {
		limiter = NewSendLimiter(DefaultSendLimiterConfig())
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		retrier:    retrier,
		breaker:    breaker,
		limiter:    limiter,
		logger:     logger,
	}
}

// NewSendBreaker returns the breaker guarding sendMessage. Only failures
// IsRetryable accepts trip it: 429s, 5xx and network errors. Other 4xx
// answers mean the API is up. A 429 that opens the circuit keeps it open
// for its retry_after. opts override the defaults.
func NewSendBreaker(opts ...circuitbreaker.Option) *circuitbreaker.Breaker {
	base := []circuitbreaker.Option{
		circuitbreaker.WithThreshold(5),
		circuitbreaker.WithRecoveries(1),
		circuitbreaker.WithCooldown(30 * time.Second),
		circuitbreaker.WithTrials(2),
		circuitbreaker.WithCounts(IsRetryable),
	}
	return circuitbreaker.New("telegram-send", append(base, opts...)...)
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// ParseModeHTML selects Telegram's HTML formatting.
const ParseModeHTML = "HTML"

// SendMessageParams contains parameters for sending a message.
type SendMessageParams struct {
	ChatID            int64
	Text              string
	ParseMode         string
	DisableWebPreview bool
	ReplyToMessageID  int64
}

// SendMessage sends a text message. Sends are guarded by the circuit
// breaker so an outage fails fast instead of piling up retries.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	body := map[string]any{
		"chat_id": params.ChatID,
		"text":    params.Text,
	}

	if params.ParseMode != "" {
		body["parse_mode"] = params.ParseMode
	}
	if params.DisableWebPreview {
		body["link_preview_options"] = map[string]any{"is_disabled": true}
	}
	if params.ReplyToMessageID > 0 {
		body["reply_parameters"] = map[string]any{
			"message_id":                  params.ReplyToMessageID,
			"allow_sending_without_reply": true,
		}
	}

	if err := c.limiter.Wait(ctx, params.ChatID); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	var message Message
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.callAPI(ctx, "sendMessage", body, &message)
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	return &message, nil
}

// ReplyHTML answers msg in its chat with HTML text.
func (c *Client) ReplyHTML(ctx context.Context, msg *Message, html string) (*Message, error) {
	return c.SendMessage(ctx, SendMessageParams{
		ChatID:            msg.Chat.ID,
		Text:              html,
		ParseMode:         ParseModeHTML,
		DisableWebPreview: true,
		ReplyToMessageID:  msg.MessageID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GETTING UPDATES
// ══════════════════════════════════════════════════════════════════════════════

// GetUpdates fetches updates using long polling. It is not retried here;
// the polling loop retries on its own schedule.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit int) ([]Update, error) {
	body := map[string]any{
		"timeout":         int(c.config.PollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	if offset > 0 {
		body["offset"] = offset
	}
	if limit > 0 {
		body["limit"] = limit
	}

	var updates []Update
	err := c.doAPICall(ctx, "getUpdates", body, &updates)
	c.observe("getUpdates", err)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	return updates, nil
}

// DeleteWebhook removes the webhook so long polling can receive updates.
func (c *Client) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	body := map[string]any{
		"drop_pending_updates": dropPendingUpdates,
	}

	var result bool
	if err := c.callAPI(ctx, "deleteWebhook", body, &result); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	return nil
}

// GetMe returns information about the bot.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.callAPI(ctx, "getMe", nil, &user); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}

	return &user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// callAPI makes a call to the Telegram Bot API with retries.
func (c *Client) callAPI(ctx context.Context, method string, body map[string]any, result any) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.doAPICall(ctx, method, body, result)
		c.observe(method, err)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			c.limiter.Pause(apiErr.RetryAfter())
		}
		return err
	})
}

func (c *Client) observe(method string, err error) {
	if c.config.Observer != nil {
		c.config.Observer(method, err)
	}
}

// doAPICall performs a single API call.
func (c *Client) doAPICall(ctx context.Context, method string, body map[string]any, result any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.config.BaseURL, c.config.Token, method)

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if c.config.Debug {
		c.logger.Debug("telegram api call", "method", method)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return &APIError{Code: resp.StatusCode, Description: "malformed response: " + err.Error()}
	}

	if !apiResp.OK {
		apiErr := &APIError{
			Code:        apiResp.ErrorCode,
			Description: apiResp.Description,
		}
		if apiResp.Parameters != nil {
			apiErr.RetryAfterSeconds = apiResp.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal result: %w", err))
		}
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError represents a Telegram API error.
type APIError struct {
	Code              int
	Description       string
	RetryAfterSeconds int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// RetryAfter implements retry.DelayHinter.
func (e *APIError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// IsRetryable reports whether a failed call may succeed when repeated:
// rate limits, server errors and network failures.
func IsRetryable(err error) bool {
	if err == nil || retry.IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "EOF"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// LONG POLLING RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateHandler is a function that handles a Telegram update.
type UpdateHandler func(ctx context.Context, update *Update) error

// pollBackoff is the pause after a failed getUpdates.
const pollBackoff = 5 * time.Second

// StartPolling long-polls until ctx is done. Updates are handled in order;
// a handler error is logged and the offset still advances.
func (c *Client) StartPolling(ctx context.Context, handler UpdateHandler) error {
	c.logger.Info("starting telegram long polling")

	for {
		if ctx.Err() != nil {
			c.logger.Info("stopping telegram long polling")
			return nil
		}

		c.updateMu.Lock()
		offset := c.updateOffset
		c.updateMu.Unlock()

		updates, err := c.GetUpdates(ctx, offset, 100)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to get updates", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollBackoff):
			}
			continue
		}

		for i := range updates {
			update := &updates[i]

			c.updateMu.Lock()
			if update.UpdateID >= c.updateOffset {
				c.updateOffset = update.UpdateID + 1
			}
			c.updateMu.Unlock()

			if err := handler(ctx, update); err != nil {
				c.logger.Error("failed to handle update",
					"update_id", update.UpdateID,
					"error", err,
				)
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UTILITY METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsGroupChat checks if the message is from a group chat.
func IsGroupChat(msg *Message) bool {
	if msg == nil || msg.Chat == nil {
		return false
	}
	return msg.Chat.Type == ChatGroup || msg.Chat.Type == ChatSupergroup
}
