package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/ranking"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/score"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT SCORE COMMAND
// Turns a chat message into a stored score. Checks run in a fixed order:
// parse, identity, opening hour, game number, duplicate, persist.
// ══════════════════════════════════════════════════════════════════════════════

// Outcome is the result category of a submission.
type Outcome string

const (
	OutcomeAccepted             Outcome = "accepted"
	OutcomeNotAScore            Outcome = "not_a_score"
	OutcomeUnresolvableIdentity Outcome = "unresolvable_identity"
	OutcomeTooEarly             Outcome = "too_early"
	OutcomeWrongGameNumber      Outcome = "wrong_game_number"
	OutcomeDuplicate            Outcome = "duplicate"
	OutcomePersistenceError     Outcome = "persistence_error"
)

// Sender identifies who posted the message. Resolved is false when the
// transport could not attribute the message to a user account.
type Sender struct {
	TelegramID int64
	Name       string
	Resolved   bool
}

// SubmitScoreCommand is one inbound chat message.
type SubmitScoreCommand struct {
	Sender  Sender
	Text    string
	IsGroup bool

	// At is when the message was received (defaults to now if zero).
	At time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// SubmitScoreResult describes what happened to the message.
type SubmitScoreResult struct {
	Outcome Outcome
	Parsed  score.Parsed

	// Accepted only.
	Player *player.Player
	Score  *score.Score
	Rank   int
	Points int

	// ExpectedGame is the current game number for wrong_game_number.
	ExpectedGame int

	// OpensAt is today's opening time for too_early.
	OpensAt time.Time
}

// IsAccepted reports whether the score was stored.
func (r *SubmitScoreResult) IsAccepted() bool {
	return r.Outcome == OutcomeAccepted
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitScoreHandler handles the SubmitScoreCommand.
type SubmitScoreHandler struct {
	scoreRepo score.Repository
	recompute *RecomputeDailyHandler
	publisher shared.EventPublisher
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubmitScoreHandler creates a new SubmitScoreHandler.
func NewSubmitScoreHandler(
	scoreRepo score.Repository,
	recompute *RecomputeDailyHandler,
	publisher shared.EventPublisher,
	location *time.Location,
	logger *slog.Logger,
) *SubmitScoreHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SubmitScoreHandler{
		scoreRepo: scoreRepo,
		recompute: recompute,
		publisher: publisher,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle runs the submission checks and stores the score.
// The error is non-nil only for OutcomePersistenceError; the result is never nil.
func (h *SubmitScoreHandler) Handle(ctx context.Context, cmd SubmitScoreCommand) (*SubmitScoreResult, error) {
	at := cmd.At
	if at.IsZero() {
		at = h.now()
	}

	parsed, err := score.Parse(cmd.Text)
	if err != nil {
		return &SubmitScoreResult{Outcome: OutcomeNotAScore}, nil
	}

	result := &SubmitScoreResult{Parsed: parsed}

	if !cmd.Sender.Resolved || !shared.TelegramID(cmd.Sender.TelegramID).IsValid() {
		result.Outcome = OutcomeUnresolvableIdentity
		return result, nil
	}

	if timeutil.IsBeforeOpening(at, h.location) {
		result.Outcome = OutcomeTooEarly
		result.OpensAt = timeutil.OpeningTime(at, h.location)
		return result, nil
	}

	current, known, err := h.currentGameNumber(ctx, at)
	if err != nil {
		return h.persistenceError(result, "resolve current game", err)
	}
	if known && parsed.GameNumber != current {
		result.Outcome = OutcomeWrongGameNumber
		result.ExpectedGame = current
		return result, nil
	}

	exists, err := h.scoreRepo.Exists(ctx, cmd.Sender.TelegramID, parsed.GameNumber)
	if err != nil {
		return h.persistenceError(result, "check duplicate", err)
	}
	if exists {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	p, err := player.New(cmd.Sender.TelegramID, cmd.Sender.Name)
	if err != nil {
		result.Outcome = OutcomeUnresolvableIdentity
		return result, nil
	}
	s := score.NewScore(parsed, cmd.Text, at)

	if err := h.scoreRepo.SaveSubmission(ctx, p, s); err != nil {
		if errors.Is(err, shared.ErrScoreAlreadySubmitted) {
			result.Outcome = OutcomeDuplicate
			return result, nil
		}
		return h.persistenceError(result, "save submission", err)
	}

	result.Outcome = OutcomeAccepted
	result.Player = p
	result.Score = s

	// The score stands even if the re-rank fails; the next submission retries it.
	recomputed, err := h.recompute.Handle(ctx, RecomputeDailyCommand{GameNumber: parsed.GameNumber})
	if err != nil {
		h.logger.Error("daily recompute after submission failed",
			"game_number", parsed.GameNumber,
			"player_id", p.ID,
			"error", err,
		)
	} else if dr, ok := ranking.FindPlayer(recomputed.Rankings, p.ID); ok {
		result.Rank = dr.Rank
		result.Points = dr.PointsAwarded
	}

	event := shared.NewScoreAcceptedEvent(p.ID, p.TelegramID, s.GameNumber, s.Value, result.Rank)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.publisher.Publish(event)

	h.logger.Info("score accepted",
		"player_id", p.ID,
		"game_number", s.GameNumber,
		"score", s.Value,
		"rank", result.Rank,
	)

	return result, nil
}

// currentGameNumber resolves the game being played at t. known is false
// only when no score was ever stored.
func (h *SubmitScoreHandler) currentGameNumber(ctx context.Context, t time.Time) (int, bool, error) {
	from := timeutil.GameDayStart(t, h.location)
	to := timeutil.GameDayEnd(t, h.location)

	game, ok, err := h.scoreRepo.MaxGameNumberBetween(ctx, from, to)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return game, true, nil
	}

	latest, err := h.scoreRepo.Latest(ctx)
	if errors.Is(err, shared.ErrScoreNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return timeutil.ExpectedGameNumber(latest.GameNumber, latest.CreatedAt, t, h.location), true, nil
}

func (h *SubmitScoreHandler) persistenceError(result *SubmitScoreResult, step string, err error) (*SubmitScoreResult, error) {
	result.Outcome = OutcomePersistenceError
	return result, shared.WrapError("score", "Submit", shared.ErrInternal, step, err)
}
