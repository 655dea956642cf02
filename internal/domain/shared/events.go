package shared

import (
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// League event types.
const (
	EventScoreAccepted          EventType = "score.accepted"
	EventDailyRankingRecomputed EventType = "ranking.daily_recomputed"
	EventWeekClosed             EventType = "ranking.week_closed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for logging.
	Payload() map[string]any
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Events
// ═══════════════════════════════════════════════════════════════════════════

// ScoreAcceptedEvent is emitted after a score is stored and the game re-ranked.
// Rank is 0 when the recompute failed.
type ScoreAcceptedEvent struct {
	BaseEvent
	PlayerID   int64 `json:"player_id"`
	TelegramID int64 `json:"telegram_id"`
	GameNumber int   `json:"game_number"`
	Score      int   `json:"score"`
	Rank       int   `json:"rank"`
}

// Payload implements Event interface.
func (e ScoreAcceptedEvent) Payload() map[string]any {
	return map[string]any{
		"player_id":   e.PlayerID,
		"telegram_id": e.TelegramID,
		"game_number": e.GameNumber,
		"score":       e.Score,
		"rank":        e.Rank,
	}
}

// NewScoreAcceptedEvent creates a new ScoreAcceptedEvent.
func NewScoreAcceptedEvent(playerID, telegramID int64, gameNumber, score, rank int) ScoreAcceptedEvent {
	return ScoreAcceptedEvent{
		BaseEvent:  NewBaseEvent(EventScoreAccepted, strconv.FormatInt(playerID, 10)),
		PlayerID:   playerID,
		TelegramID: telegramID,
		GameNumber: gameNumber,
		Score:      score,
		Rank:       rank,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Events
// ═══════════════════════════════════════════════════════════════════════════

// DailyRankingRecomputedEvent is emitted after a game's ranks were rewritten.
type DailyRankingRecomputedEvent struct {
	BaseEvent
	GameNumber int `json:"game_number"`
	Players    int `json:"players"`
}

// Payload implements Event interface.
func (e DailyRankingRecomputedEvent) Payload() map[string]any {
	return map[string]any{
		"game_number": e.GameNumber,
		"players":     e.Players,
	}
}

// NewDailyRankingRecomputedEvent creates a new DailyRankingRecomputedEvent.
func NewDailyRankingRecomputedEvent(gameNumber, players int) DailyRankingRecomputedEvent {
	return DailyRankingRecomputedEvent{
		BaseEvent:  NewBaseEvent(EventDailyRankingRecomputed, strconv.Itoa(gameNumber)),
		GameNumber: gameNumber,
		Players:    players,
	}
}

// WeekClosedEvent is emitted after a week was aggregated and finalized.
type WeekClosedEvent struct {
	BaseEvent
	WeekStart time.Time `json:"week_start"`
	Players   int       `json:"players"`
	Awarded   int       `json:"awarded"`
	Trigger   string    `json:"trigger"`
}

// Payload implements Event interface.
func (e WeekClosedEvent) Payload() map[string]any {
	return map[string]any{
		"week_start": e.WeekStart.Format("2006-01-02"),
		"players":    e.Players,
		"awarded":    e.Awarded,
		"trigger":    e.Trigger,
	}
}

// NewWeekClosedEvent creates a new WeekClosedEvent.
func NewWeekClosedEvent(weekStart time.Time, players, awarded int, trigger string) WeekClosedEvent {
	return WeekClosedEvent{
		BaseEvent: NewBaseEvent(EventWeekClosed, weekStart.Format("2006-01-02")),
		WeekStart: weekStart,
		Players:   players,
		Awarded:   awarded,
		Trigger:   trigger,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Publishing
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
