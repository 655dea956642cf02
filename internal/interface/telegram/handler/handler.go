// Package handler contains the bot's chat command handlers and the score
// submission handler. Handlers return reply text; the bot sends it.
package handler

import (
	"context"
	"time"
)

// Request is one chat command or message, reduced to what handlers need.
type Request struct {
	// TelegramID is the sender's user id; 0 when the message was sent as a chat.
	TelegramID int64

	// Name is the sender's display name.
	Name string

	ChatID    int64
	MessageID int64
	IsGroup   bool

	// Command is the normalized command name without prefix or @bot suffix.
	Command string

	// Args is the text after the command.
	Args string

	// Text is the full message text.
	Text string

	// At is when the message was sent.
	At time.Time

	// CorrelationID ties log lines and events of one update together.
	CorrelationID string
}

// Response is the reply to send. An empty Text sends nothing.
type Response struct {
	Text string
}

// Reply wraps text in a Response.
func Reply(text string) *Response {
	return &Response{Text: text}
}

// CommandHandler handles one chat command.
type CommandHandler interface {
	Handle(ctx context.Context, req Request) (*Response, error)
}

// HandlerFunc adapts a function to CommandHandler.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Static always replies with text.
func Static(text string) CommandHandler {
	return HandlerFunc(func(context.Context, Request) (*Response, error) {
		return Reply(text), nil
	})
}
