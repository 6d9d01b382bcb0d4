// Package storage - reconstructor.go
// Rebuilds what an observer needs to know about a finished (or running) run
// from the stored event log. State = f(events).
package storage

import (
	"context"
	"sort"

	"github.com/samber/oops"

	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
)

// Impact classifies a recap line.
type Impact string

const (
	ImpactPositive Impact = "POSITIVE"
	ImpactNegative Impact = "NEGATIVE"
	ImpactNeutral  Impact = "NEUTRAL"
)

// RecapEvent is a simplified event for an agent's recap.
type RecapEvent struct {
	Tick    int64            `json:"tick"`
	Time    string           `json:"time"`
	Type    events.EventType `json:"type"`
	Summary string           `json:"summary"`
	Impact  Impact           `json:"impact"`
}

// RunReplay is everything the replay endpoint serves for one run.
type RunReplay struct {
	Run       *Run                    `json:"run"`
	Positions map[string]string       `json:"positions"`
	Objects   []world.Object          `json:"objects"`
	LastTick  int64                   `json:"last_tick"`
	Recaps    map[string][]RecapEvent `json:"recaps"`
}

// Reconstructor rebuilds run state from the event log.
type Reconstructor struct {
	runs      RunRepository
	eventRepo EventRepository
	snapshots SnapshotRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(runs RunRepository, eventRepo EventRepository, snapshots SnapshotRepository) *Reconstructor {
	return &Reconstructor{runs: runs, eventRepo: eventRepo, snapshots: snapshots}
}

// RebuildPositions replays placement and movement events into agent positions.
// Effects never move agents, so these two event types are sufficient.
func (r *Reconstructor) RebuildPositions(ctx context.Context, runID string) (map[string]string, error) {
	all, err := r.eventRepo.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	positions := make(map[string]string)
	for _, e := range all {
		switch e.Type {
		case events.EventTypeAgentPlaced, events.EventTypeMove:
			positions[e.ActorID] = e.TargetID
		}
	}
	return positions, nil
}

// GenerateRecap lists the events an agent took part in from sinceTick onwards.
func (r *Reconstructor) GenerateRecap(ctx context.Context, runID, agentName string, sinceTick int64) ([]RecapEvent, error) {
	all, err := r.eventRepo.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	var recap []RecapEvent
	for _, e := range all {
		if e.Tick < sinceTick || e.Type == events.EventTypeTick {
			continue
		}
		if e.ActorID != agentName && e.TargetID != agentName {
			continue
		}
		recap = append(recap, RecapEvent{
			Tick:    e.Tick,
			Time:    e.SimTime.Format("Monday, 03:04 PM"),
			Type:    e.Type,
			Summary: e.Summary,
			Impact:  determineImpact(e),
		})
	}
	return recap, nil
}

// Replay assembles the full picture of a run. It returns nil when the run is unknown.
func (r *Reconstructor) Replay(ctx context.Context, runID string) (*RunReplay, error) {
	run, err := r.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	positions, err := r.RebuildPositions(ctx, runID)
	if err != nil {
		return nil, oops.With("run_id", runID).Wrapf(err, "rebuild positions")
	}
	objects, lastTick, err := r.snapshots.LatestObjects(ctx, runID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(positions))
	for name := range positions {
		names = append(names, name)
	}
	sort.Strings(names)

	recaps := make(map[string][]RecapEvent, len(names))
	for _, name := range names {
		recap, err := r.GenerateRecap(ctx, runID, name, 0)
		if err != nil {
			return nil, oops.With("run_id", runID, "agent", name).Wrapf(err, "recap")
		}
		recaps[name] = recap
	}

	return &RunReplay{
		Run:       run,
		Positions: positions,
		Objects:   objects,
		LastTick:  lastTick,
		Recaps:    recaps,
	}, nil
}

func determineImpact(e events.GameEvent) Impact {
	switch e.Type {
	case events.EventTypeActionFailed, events.EventTypeEffectFailed,
		events.EventTypeLockOverwritten, events.EventTypeDecisionFailed:
		return ImpactNegative
	case events.EventTypeInteract, events.EventTypeEffectApplied, events.EventTypeLockExpired:
		return ImpactPositive
	default:
		return ImpactNeutral
	}
}
