package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/MRamiBalles/agentia/internal/events"
)

// DefaultWriteTimeout bounds a single write from the simulation loop.
const DefaultWriteTimeout = 5 * time.Second

// RunStore binds the SQLite repositories to one run so the simulation can
// write through it without knowing about runs or contexts. It implements
// events.EventPersister and events.TickRecorder.
type RunStore struct {
	Runs      *SQLiteRunRepository
	Events    *SQLiteEventRepository
	Snapshots *SQLiteSnapshotRepository

	runID   string
	timeout time.Duration
}

// NewRunStore registers a new run and returns a store bound to it.
func NewRunStore(ctx context.Context, db *sql.DB, runID, scenario string) (*RunStore, error) {
	s := &RunStore{
		Runs:      NewSQLiteRunRepository(db),
		Events:    NewSQLiteEventRepository(db),
		Snapshots: NewSQLiteSnapshotRepository(db),
		runID:     runID,
		timeout:   DefaultWriteTimeout,
	}
	if err := s.Runs.Create(ctx, Run{ID: runID, Scenario: scenario}); err != nil {
		return nil, err
	}
	return s, nil
}

// RunID returns the bound run.
func (s *RunStore) RunID() string { return s.runID }

// Append persists one world event.
func (s *RunStore) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.Events.Append(ctx, s.runID, event)
}

// RecordTick persists one finished tick.
func (s *RunStore) RecordTick(rec events.TickRecord) error {
	if rec.RunID == "" {
		rec.RunID = s.runID
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.Snapshots.SaveTick(ctx, rec)
}

// Finish closes the run with its final tick count and stats summary.
func (s *RunStore) Finish(ctx context.Context, ticks int64, summary string) error {
	return s.Runs.Finish(ctx, s.runID, ticks, summary)
}
