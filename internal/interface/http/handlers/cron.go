package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY POINTS ENDPOINT
// POST /api/cron/weekly-points closes a league week. week_start (YYYY-MM-DD)
// may come from the query string or a JSON body and defaults to the current
// week. Any day of the week is accepted and normalized to its Monday.
// ══════════════════════════════════════════════════════════════════════════════

// WeekCloser is the close-week use case.
type WeekCloser interface {
	Handle(ctx context.Context, cmd command.CloseWeekCommand) (*command.CloseWeekResult, error)
}

// WeeklyPointsResponse is the 200 body.
type WeeklyPointsResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	WeekStart string `json:"weekStart"`
	Players   int    `json:"players"`
	RunID     string `json:"runId,omitempty"`
}

type weeklyPointsRequest struct {
	WeekStart      string `json:"week_start"`
	WeekStartCamel string `json:"weekStart"`
}

// WeeklyPointsHandler serves the weekly close trigger.
type WeeklyPointsHandler struct {
	closer   WeekCloser
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewWeeklyPointsHandler creates a new WeeklyPointsHandler.
func NewWeeklyPointsHandler(closer WeekCloser, location *time.Location, logger *slog.Logger) *WeeklyPointsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeeklyPointsHandler{
		closer:   closer,
		location: location,
		logger:   logger.With("handler", "weekly_points"),
		now:      time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *WeeklyPointsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.weekStartParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	weekStart := timeutil.StartOfWeek(h.now(), h.location)
	if raw != "" {
		weekStart, err = timeutil.ParseWeekStart(raw, h.location)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.closer.Handle(r.Context(), command.CloseWeekCommand{
		WeekStart: weekStart,
		Trigger:   command.TriggerHTTP,
	})
	switch {
	case errors.Is(err, shared.ErrCloseInProgress):
		WriteError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("weekly close failed",
			"week_start", weekStart.Format(timeutil.DateLayout),
			"error", err,
		)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, WeeklyPointsResponse{
		Success:   true,
		Message:   "Weekly points calculation completed",
		WeekStart: result.WeekStart.Format(timeutil.DateLayout),
		Players:   result.Players,
		RunID:     result.RunID,
	})
}

// weekStartParam reads week_start from the query, then from a JSON body.
func (h *WeeklyPointsHandler) weekStartParam(r *http.Request) (string, error) {
	if v := strings.TrimSpace(r.URL.Query().Get("week_start")); v != "" {
		return v, nil
	}
	if r.Body == nil {
		return "", nil
	}

	var body weeklyPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", errors.New("invalid JSON body")
	}
	if body.WeekStart != "" {
		return strings.TrimSpace(body.WeekStart), nil
	}
	return strings.TrimSpace(body.WeekStartCamel), nil
}
