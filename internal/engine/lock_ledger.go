package engine

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// DefaultLockReason labels a lock whose task had no description.
const DefaultLockReason = "busy"

// AgentLock keeps an agent busy until UntilTime, then replays Effects.
type AgentLock struct {
	Agent             string          `json:"agent"`
	UntilTime         time.Time       `json:"until_time"`
	Reason            string          `json:"reason"`
	CompletionMessage string          `json:"completion_message"`
	Effects           []effect.Effect `json:"-"`
}

// LockKind is the outcome of a lock check.
type LockKind int

const (
	LockNone LockKind = iota
	LockActive
	LockExpired
)

func (k LockKind) String() string {
	switch k {
	case LockActive:
		return "active"
	case LockExpired:
		return "expired"
	default:
		return "none"
	}
}

// LockStatus is what CheckLock observed.
type LockStatus struct {
	Kind LockKind
	// Reason is set for Active.
	Reason string
	// Message is the completion message, set for Expired.
	Message string
	// Until is the expiry time, set for Active and Expired.
	Until time.Time
	// Applied counts effects that replayed successfully, set for Expired.
	Applied int
}

// LockLedger tracks at most one lock per agent.
type LockLedger struct {
	mu       sync.Mutex
	locks    map[string]*AgentLock
	clock    *Clock
	executor *EffectExecutor
	stats    *metrics.Collector
	logger   *logger.Logger
}

// NewLockLedger creates an empty ledger reading time from clock.
func NewLockLedger(clock *Clock, executor *EffectExecutor, stats *metrics.Collector, log *logger.Logger) *LockLedger {
	if clock == nil || executor == nil {
		panic("engine: NewLockLedger requires a clock and an executor")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LockLedger{
		locks:    make(map[string]*AgentLock),
		clock:    clock,
		executor: executor,
		stats:    stats,
		logger:   log,
	}
}

// SetLock locks agent for durationMinutes from now.
//
// An existing lock is overwritten (last write wins) and returned so the
// caller can see what was displaced. Its effects will never run; the
// overwrite is logged as a warning and counted.
func (l *LockLedger) SetLock(agent string, durationMinutes int, reason, completionMessage string, effects []effect.Effect) (displaced *AgentLock) {
	if reason == "" {
		reason = DefaultLockReason
	}
	if completionMessage == "" {
		completionMessage = fmt.Sprintf("Finished %s.", reason)
	}
	lock := &AgentLock{
		Agent:             agent,
		UntilTime:         l.clock.Now().Add(time.Duration(durationMinutes) * time.Minute),
		Reason:            reason,
		CompletionMessage: completionMessage,
		Effects:           slices.Clone(effects),
	}

	l.mu.Lock()
	prev := l.locks[agent]
	l.locks[agent] = lock
	l.mu.Unlock()

	if prev != nil {
		l.executor.emit(events.GameEvent{
			Type:     events.EventTypeLockOverwritten,
			ActorID:  agent,
			TargetID: agent,
			Summary:  fmt.Sprintf("%q replaced %q, %d pending effects dropped", reason, prev.Reason, len(prev.Effects)),
			Payload:  prev,
		})
		l.logger.Warn("agent re-locked while a lock was active; pending effects dropped",
			zap.String("agent", agent),
			zap.String("previous_reason", prev.Reason),
			zap.Int("dropped_effects", len(prev.Effects)),
			zap.String("reason", reason))
		if l.stats != nil {
			l.stats.RecordEvent("lock_overwritten",
				fmt.Sprintf("%s: %q replaced %q (%d effects dropped)", agent, reason, prev.Reason, len(prev.Effects)))
		}
	}
	if l.stats != nil {
		l.stats.RecordLockSet(prev != nil)
	}
	l.executor.emit(events.GameEvent{
		Type:     events.EventTypeLockSet,
		ActorID:  agent,
		TargetID: agent,
		Summary:  fmt.Sprintf("busy with %s until %s", reason, lock.UntilTime.Format(TimeLabelLayout)),
		Payload:  lock,
	})
	l.logger.Info("agent locked",
		zap.String("agent", agent),
		zap.String("reason", reason),
		zap.Time("until", lock.UntilTime),
		zap.Int("effects", len(effects)))
	return prev
}

// CheckLock observes an agent's lock and consumes it if expired.
//
// For an expired lock the effects are replayed in order, then the lock is
// deleted, then Expired is returned. An active lock is left untouched.
func (l *LockLedger) CheckLock(agent string) LockStatus {
	l.mu.Lock()
	lock, ok := l.locks[agent]
	if !ok {
		l.mu.Unlock()
		return LockStatus{Kind: LockNone}
	}
	if l.clock.Now().Before(lock.UntilTime) {
		l.mu.Unlock()
		return LockStatus{Kind: LockActive, Reason: lock.Reason, Until: lock.UntilTime}
	}
	l.mu.Unlock()

	applied := l.executor.ApplyAll(agent, lock.Effects)

	l.mu.Lock()
	if l.locks[agent] == lock {
		delete(l.locks, agent)
	}
	l.mu.Unlock()

	if l.stats != nil {
		l.stats.RecordLockExpired()
	}
	l.executor.emit(events.GameEvent{
		Type:     events.EventTypeLockExpired,
		ActorID:  agent,
		TargetID: agent,
		Summary:  lock.CompletionMessage,
		Payload:  map[string]any{"reason": lock.Reason, "applied": applied, "effects": len(lock.Effects)},
	})
	l.logger.Info("agent lock expired",
		zap.String("agent", agent),
		zap.String("reason", lock.Reason),
		zap.Int("applied", applied),
		zap.Int("effects", len(lock.Effects)))

	return LockStatus{
		Kind:    LockExpired,
		Message: lock.CompletionMessage,
		Until:   lock.UntilTime,
		Applied: applied,
	}
}

// Peek returns a copy of an agent's lock without observing expiry.
func (l *LockLedger) Peek(agent string) (AgentLock, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[agent]
	if !ok {
		return AgentLock{}, false
	}
	c := *lock
	c.Effects = slices.Clone(lock.Effects)
	return c, true
}

// Len returns the number of held locks.
func (l *LockLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
