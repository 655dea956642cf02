package handler

import (
	"context"
	"log/slog"

	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HANDLER
// Every non-command text goes through ingestion. Texts that are not scores
// are dropped silently.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreSubmitter is the ingestion use case.
type ScoreSubmitter interface {
	Handle(ctx context.Context, cmd command.SubmitScoreCommand) (*command.SubmitScoreResult, error)
}

// SubmissionRecorder counts outcomes in metrics.
type SubmissionRecorder interface {
	RecordSubmission(outcome string)
}

// ScoreHandler turns chat messages into submissions.
type ScoreHandler struct {
	submitter ScoreSubmitter
	recorder  SubmissionRecorder
	logger    *slog.Logger
}

// NewScoreHandler creates a new ScoreHandler. recorder may be nil.
func NewScoreHandler(submitter ScoreSubmitter, recorder SubmissionRecorder, logger *slog.Logger) *ScoreHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ScoreHandler{
		submitter: submitter,
		recorder:  recorder,
		logger:    logger.With("handler", "score"),
	}
}

// Handle submits req.Text. A zero TelegramID marks a sender that could not
// be resolved to a user account.
func (h *ScoreHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	result, err := h.submitter.Handle(ctx, command.SubmitScoreCommand{
		Sender: command.Sender{
			TelegramID: req.TelegramID,
			Name:       req.Name,
			Resolved:   req.TelegramID > 0,
		},
		Text:          req.Text,
		IsGroup:       req.IsGroup,
		At:            req.At,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		h.logger.Error("score submission failed",
			"telegram_id", req.TelegramID,
			"chat_id", req.ChatID,
			"error", err,
		)
	}
	if result == nil {
		return nil, err
	}

	if h.recorder != nil {
		h.recorder.RecordSubmission(string(result.Outcome))
	}

	if !result.IsAccepted() && result.Outcome != command.OutcomeNotAScore {
		h.logger.Info("score rejected",
			"outcome", result.Outcome,
			"telegram_id", req.TelegramID,
			"game_number", result.Parsed.GameNumber,
		)
	}

	text, ok := presenter.Submission(result)
	if !ok {
		return nil, nil
	}
	return Reply(text), nil
}
