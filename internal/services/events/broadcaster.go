package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventType identifies a session event on the wire.
type EventType string

const (
	EventTypeSessionStarted         EventType = "session.started"
	EventTypePlayerJoined           EventType = "player.joined"
	EventTypePlayerLeft             EventType = "player.left"
	EventTypeTurnResolved           EventType = "turn.resolved"
	EventTypePlayerDied             EventType = "player.died"
	EventTypeRulesMutated           EventType = "rules.mutated"
	EventTypeCollaborationTriggered EventType = "collaboration.triggered"
	EventTypeSessionCleared         EventType = "session.cleared"
	EventTypeSessionEnded           EventType = "session.ended"
)

// Event is one published session event.
type Event struct {
	Type       EventType      `json:"type"`
	SessionKey string         `json:"session_key"`
	PlayerID   string         `json:"player_id,omitempty"`
	At         time.Time      `json:"at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers session events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Channel returns the pub/sub channel for a session key.
func Channel(sessionKey string) string {
	return "session-events:" + sessionKey
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends the event to its session channel.
func (b *Broadcaster) Publish(ctx context.Context, event Event) error {
	if event.SessionKey == "" {
		return fmt.Errorf("event %s has no session key", event.Type)
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := Channel(event.SessionKey)
	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"player_id", event.PlayerID,
	)
	return nil
}

// Subscribe opens a subscription to one session's events.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionKey string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(sessionKey))
}

// Recorder keeps published events in memory. Tests use it to observe
// what the engine and controller emit.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
