// Package storage persists simulation runs.
// This package implements the repository pattern to keep the engine pure:
// the world never reads from here, it only writes a record of what happened.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run is one invocation of the simulation.
type Run struct {
	ID         string     `json:"id" db:"id"`
	Scenario   string     `json:"scenario" db:"scenario"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Ticks      int64      `json:"ticks" db:"ticks"`
	Summary    string     `json:"summary,omitempty" db:"summary"`
}

// RunRepository tracks runs.
type RunRepository interface {
	// Create registers a new run.
	Create(ctx context.Context, run Run) error

	// Finish records the end of a run with its stats summary.
	Finish(ctx context.Context, runID string, ticks int64, summary string) error

	// Get returns one run, or nil if unknown.
	Get(ctx context.Context, runID string) (*Run, error)

	// List returns runs, newest first.
	List(ctx context.Context, limit int) ([]Run, error)
}

// EventRepository stores world events per run.
type EventRepository interface {
	// Append adds an event to the run's immutable ledger.
	Append(ctx context.Context, runID string, event events.GameEvent) error

	// GetByRun retrieves all events of a run in append order (for replay).
	GetByRun(ctx context.Context, runID string) ([]events.GameEvent, error)

	// GetByActor retrieves all events performed by an actor.
	GetByActor(ctx context.Context, runID, actorID string) ([]events.GameEvent, error)

	// GetByTick retrieves all events recorded during a tick.
	GetByTick(ctx context.Context, runID string, tick int64) ([]events.GameEvent, error)

	// GetByType retrieves all events of a specific type.
	GetByType(ctx context.Context, runID string, eventType events.EventType) ([]events.GameEvent, error)
}

// SnapshotRepository stores per-tick records: actions, positions and object states.
type SnapshotRepository interface {
	// SaveTick writes one finished tick.
	SaveTick(ctx context.Context, rec events.TickRecord) error

	// LatestObjects returns the object snapshot of the run's last saved tick.
	LatestObjects(ctx context.Context, runID string) ([]world.Object, int64, error)

	// Actions returns an agent's recorded actions in tick order.
	Actions(ctx context.Context, runID, agent string) ([]StoredAction, error)

	// LatestPositions returns agent positions at the run's last saved tick.
	LatestPositions(ctx context.Context, runID string) (map[string]string, error)
}

// StoredAction is one row of the actions table.
type StoredAction struct {
	Tick int64 `json:"tick" db:"tick"`
	events.ActionRecord
}
