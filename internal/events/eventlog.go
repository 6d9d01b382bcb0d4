// Package events provides the append-only journal of everything that
// happens in a simulation run. Observers, the run store and replays read it.
package events

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/platform/logger"
)

// EventType defines the category of a world event.
type EventType string

const (
	EventTypeTick            EventType = "TICK"
	EventTypeAgentPlaced     EventType = "AGENT_PLACED"
	EventTypeMove            EventType = "MOVE"
	EventTypeTalk            EventType = "TALK"
	EventTypeInteract        EventType = "INTERACT"
	EventTypeWait            EventType = "WAIT"
	EventTypeActionFailed    EventType = "ACTION_FAILED"
	EventTypeLockSet         EventType = "LOCK_SET"
	EventTypeLockExpired     EventType = "LOCK_EXPIRED"
	EventTypeLockOverwritten EventType = "LOCK_OVERWRITTEN"
	EventTypeEffectApplied   EventType = "EFFECT_APPLIED"
	EventTypeEffectFailed    EventType = "EFFECT_FAILED"
	EventTypeDecisionFailed  EventType = "DECISION_FAILED"
)

// SystemActor is the actor id for events the world itself emits.
const SystemActor = "WORLD"

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"` // wall clock
	SimTime   time.Time `json:"sim_time"`  // simulation clock
	Tick      int64     `json:"tick"`
	Type      EventType `json:"type"`
	ActorID   string    `json:"actor_id"`            // who performed the action
	TargetID  string    `json:"target_id,omitempty"` // object, location or agent affected
	Summary   string    `json:"summary"`
	Payload   any       `json:"payload,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of world events.
//
// When a persister is configured, events are written through by a single
// background writer in append order. Close drains it.
type EventLog struct {
	mu     sync.RWMutex
	events []GameEvent

	persister EventPersister
	queue     chan GameEvent
	done      chan struct{}
	closeOnce sync.Once
	logger    *logger.Logger
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister, buffer int, log *logger.Logger) *EventLog {
	if log == nil {
		log = logger.NewNop()
	}
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
		logger:    log,
	}
	if persister != nil {
		if buffer <= 0 {
			buffer = 256
		}
		el.queue = make(chan GameEvent, buffer)
		el.done = make(chan struct{})
		go el.writer()
	}
	return el
}

func (el *EventLog) writer() {
	defer close(el.done)
	for e := range el.queue {
		if err := el.persister.Append(e); err != nil {
			el.logger.Error("persist event failed",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.Error(err))
		}
	}
}

// Append adds a new event to the log, filling ID and Timestamp when empty.
// Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.queue != nil {
		el.queue <- event
	}
	return event
}

// Close stops the persistence writer after flushing queued events.
func (el *EventLog) Close() {
	if el.queue == nil {
		return
	}
	el.closeOnce.Do(func() {
		close(el.queue)
		<-el.done
	})
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Since returns the events at positions [offset, Len()).
func (el *EventLog) Since(offset int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if offset >= len(el.events) {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	out := make([]GameEvent, len(el.events)-offset)
	copy(out, el.events[offset:])
	return out
}

// GetByActor returns all events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	return el.Filter(func(e GameEvent) bool { return e.ActorID == actorID })
}

// GetByTick returns all events recorded during a tick.
func (el *EventLog) GetByTick(tick int64) []GameEvent {
	return el.Filter(func(e GameEvent) bool { return e.Tick == tick })
}

// Filter returns the events matching keep, in append order.
func (el *EventLog) Filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	return el.Since(0)
}

var entropy = ulid.Monotonic(rand.Reader, 0)
var entropyMu sync.Mutex

// GenerateEventID creates a unique, time-sortable event identifier.
func GenerateEventID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
