// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strconv"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TelegramID represents a unique Telegram user identifier.
type TelegramID int64

// IsValid checks if the Telegram ID is valid (positive number).
func (t TelegramID) IsValid() bool {
	return t > 0
}

// Int64 returns the underlying int64 value.
func (t TelegramID) Int64() int64 {
	return int64(t)
}

// String returns the string representation.
func (t TelegramID) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position on a board.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

var keycapDigits = [...]string{"4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// Medal returns a medal for the podium and a keycap for places 4 to 10.
// Other ranks render as "#N".
func (r Rank) Medal() string {
	switch {
	case r == 1:
		return "🥇"
	case r == 2:
		return "🥈"
	case r == 3:
		return "🥉"
	case r >= 4 && r <= 10:
		return keycapDigits[r-4]
	case r.IsValid():
		return "#" + strconv.Itoa(int(r))
	default:
		return ""
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange is a half-open period [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && t.From.Before(t.To)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}
