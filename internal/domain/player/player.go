// Package player contains the league participant identity.
// A player is keyed by the stable numeric Telegram account id; the display
// name is refreshed on every sighting (last seen wins).
package player

import (
	"context"
	"strings"
	"time"

	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
)

// UnknownName is used when the chat transport gives no usable display name.
const UnknownName = "Unknown player"

// Player is a league participant. Players are never deleted.
type Player struct {
	ID         int64
	TelegramID int64
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New validates identity and builds a player ready for upsert.
func New(telegramID int64, name string) (*Player, error) {
	if telegramID <= 0 {
		return nil, shared.ErrInvalidTelegramID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = UnknownName
	}
	return &Player{TelegramID: telegramID, Name: name}, nil
}

// Stats is the personal summary shown by the !me command.
type Stats struct {
	GamesPlayed   int
	BestScore     int
	AverageScore  float64
	DailyWins     int
	WeeklyWins    int
	AllTimePoints int
}

// Repository persists players.
type Repository interface {
	// Upsert inserts the player or refreshes the name of an existing one.
	// ID and timestamps are filled in on return.
	Upsert(ctx context.Context, p *Player) error

	// GetByTelegramID returns shared.ErrPlayerNotFound when unknown.
	GetByTelegramID(ctx context.Context, telegramID int64) (*Player, error)

	// Count returns the number of known players.
	Count(ctx context.Context) (int, error)

	// Stats aggregates the personal summary for a player.
	Stats(ctx context.Context, playerID int64) (*Stats, error)
}
