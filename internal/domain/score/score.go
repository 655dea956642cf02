// Package score holds the submitted game result: the text parser that turns a
// shared TimeGuessr result into a structured score, and the score entity.
package score

import (
	"context"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/player"
)

// MaxRounds is the number of rounds in a daily game.
const MaxRounds = 5

// Tier is a categorical accuracy marker for one axis of a round.
type Tier int

const (
	TierMiss Tier = iota
	TierNear
	TierHit
)

// String returns the marker for the tier.
func (t Tier) String() string {
	switch t {
	case TierHit:
		return "🟩"
	case TierNear:
		return "🟨"
	default:
		return "⬛"
	}
}

// Round carries the two accuracy axes of a single round.
type Round struct {
	Place []Tier `json:"place"`
	Time  []Tier `json:"time"`
}

// Parsed is the structured result extracted from a share text.
type Parsed struct {
	GameNumber int
	Score      int
	MaxScore   int
	Percentage float64
	Rounds     []Round
}

// Score is a stored submission. At most one exists per (player, game number);
// it is immutable once written.
type Score struct {
	ID         int64
	PlayerID   int64
	GameNumber int
	Value      int
	MaxScore   int
	Percentage float64
	Rounds     []Round
	RawText    string
	CreatedAt  time.Time
}

// NewScore builds a score from a parsed result.
func NewScore(p Parsed, rawText string, at time.Time) *Score {
	return &Score{
		GameNumber: p.GameNumber,
		Value:      p.Score,
		MaxScore:   p.MaxScore,
		Percentage: p.Percentage,
		Rounds:     p.Rounds,
		RawText:    rawText,
		CreatedAt:  at,
	}
}

// Repository persists scores.
type Repository interface {
	// SaveSubmission upserts the player and inserts the score as one atomic
	// unit. A second score for the same (player, game number) yields
	// shared.ErrScoreAlreadySubmitted.
	SaveSubmission(ctx context.Context, p *player.Player, s *Score) error

	// Exists reports whether the Telegram account already has a score for the game.
	Exists(ctx context.Context, telegramID int64, gameNumber int) (bool, error)

	// MaxGameNumberBetween returns the highest game number among scores
	// created in [from, to). ok is false when there are none.
	MaxGameNumberBetween(ctx context.Context, from, to time.Time) (game int, ok bool, err error)

	// Latest returns the most recently created score, or
	// shared.ErrScoreNotFound when the store is empty.
	Latest(ctx context.Context) (*Score, error)
}
