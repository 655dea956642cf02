package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/handler"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND PARSING
// ══════════════════════════════════════════════════════════════════════════════

// ParseCommand extracts the command name and arguments from text.
// Both "!d" and "/d" are accepted, as is "/d@LeagueBot". A command addressed
// to another bot is not a command for us. name is lowercased.
func ParseCommand(text, botUsername string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '!' && text[0] != '/') {
		return "", "", false
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	head, mention, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(mention, strings.TrimPrefix(botUsername, "@")) {
		return "", "", false
	}
	if head == "" || !isCommandName(head) {
		return "", "", false
	}

	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func isCommandName(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// Router maps command names and aliases to handlers.
type Router struct {
	config RouterConfig
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]handler.CommandHandler
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Router{
		config:   config,
		logger:   config.Logger.With("component", "router"),
		handlers: make(map[string]handler.CommandHandler),
	}
}

// RegisterCommand registers h under every name. Names are given without the
// prefix; registering a name twice is a programming error.
func (r *Router) RegisterCommand(h handler.CommandHandler, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		name = strings.ToLower(name)
		if _, exists := r.handlers[name]; exists {
			return fmt.Errorf("command %q already registered", name)
		}
		r.handlers[name] = h

		if r.config.Debug {
			r.logger.Debug("registered command handler", "command", name)
		}
	}
	return nil
}

// Lookup returns the handler for name.
func (r *Router) Lookup(name string) (handler.CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// HandleCommand routes req to its handler. ok is false when the command is
// unknown; the caller then treats the text as an ordinary message.
func (r *Router) HandleCommand(ctx context.Context, req handler.Request) (resp *handler.Response, ok bool, err error) {
	h, found := r.Lookup(req.Command)
	if !found {
		if r.config.Debug {
			r.logger.Debug("unknown command", "command", req.Command)
		}
		return nil, false, nil
	}

	resp, err = h.Handle(ctx, req)
	return resp, true, err
}

// Commands returns the registered names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// LEAGUE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// LeagueHandlers are the handlers behind the league's chat commands.
type LeagueHandlers struct {
	Reports *handler.ReportHandler
	Me      *handler.MeHandler
	Pet     *handler.PetHandler
}

// RegisterLeagueCommands registers every chat command with its aliases.
func (r *Router) RegisterLeagueCommands(h LeagueHandlers) error {
	routes := []struct {
		handler handler.CommandHandler
		names   []string
	}{
		{handler.Static(presenter.Pong), []string{"ping"}},
		{h.Reports.Daily(), []string{"d"}},
		{h.Reports.WeeklyLive(), []string{"w"}},
		{h.Reports.Snapshot(), []string{"leaderboard", "lw"}},
		{h.Reports.AllTime(), []string{"alltime", "goat"}},
		{h.Me, []string{"me"}},
		{h.Pet, []string{"pet"}},
		{handler.Static(presenter.Points()), []string{"bodovi", "points"}},
		{handler.Static(presenter.Help), []string{"help", "start"}},
	}

	for _, route := range routes {
		if err := r.RegisterCommand(route.handler, route.names...); err != nil {
			return err
		}
	}
	return nil
}
