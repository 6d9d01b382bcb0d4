package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
)

var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "runs.db"), DBOptions{MaxOpen: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewRunStore(context.Background(), db, NewRunID(), "study")
	require.NoError(t, err)
	return s
}

func writeEvents(t *testing.T, s *RunStore) {
	t.Helper()
	log := events.NewEventLog(s, 4, nil)
	log.Append(events.GameEvent{Tick: 0, SimTime: monday, Type: events.EventTypeAgentPlaced, ActorID: "Ann", TargetID: "room_a", Summary: "Ann starts at room_a"})
	log.Append(events.GameEvent{Tick: 0, SimTime: monday, Type: events.EventTypeAgentPlaced, ActorID: "Bob", TargetID: "room_a", Summary: "Bob starts at room_a"})
	log.Append(events.GameEvent{Tick: 0, SimTime: monday, Type: events.EventTypeMove, ActorID: "Ann", TargetID: "room_b",
		Summary: "Ann moved from room_a to room_b", Payload: map[string]string{"from": "room_a", "to": "room_b"}})
	log.Append(events.GameEvent{Tick: 1, SimTime: monday.Add(10 * time.Minute), Type: events.EventTypeTick, ActorID: events.SystemActor, Summary: "Monday, 08:10 AM"})
	log.Append(events.GameEvent{Tick: 1, SimTime: monday.Add(10 * time.Minute), Type: events.EventTypeActionFailed, ActorID: "Bob", Summary: "Failed to move to attic."})
	log.Close()
}

func TestEventsRoundTrip(t *testing.T) {
	s := openStore(t)
	writeEvents(t, s)
	ctx := context.Background()

	all, err := s.Events.GetByRun(ctx, s.RunID())
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, events.EventTypeAgentPlaced, all[0].Type)
	assert.Equal(t, monday, all[0].SimTime)
	assert.NotEmpty(t, all[0].ID)
	assert.Nil(t, all[0].Payload)
	assert.Equal(t, map[string]any{"from": "room_a", "to": "room_b"}, all[2].Payload)

	byActor, err := s.Events.GetByActor(ctx, s.RunID(), "Bob")
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byTick, err := s.Events.GetByTick(ctx, s.RunID(), 1)
	require.NoError(t, err)
	assert.Len(t, byTick, 2)

	byType, err := s.Events.GetByType(ctx, s.RunID(), events.EventTypeMove)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "room_b", byType[0].TargetID)

	other, err := s.Events.GetByRun(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecordTickAndSnapshots(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	move := agent.Decision{Reasoning: "explore", Action: agent.Move{LocationID: "room_b"}}
	for tick := range int64(2) {
		state := "off"
		if tick == 1 {
			state = "on"
		}
		require.NoError(t, s.RecordTick(events.TickRecord{
			Tick:    tick,
			SimTime: monday.Add(time.Duration(tick) * 10 * time.Minute),
			Label:   "Monday",
			Actions: []events.ActionRecord{
				{Agent: "Ann", Decision: &move, Success: true, Message: "Successfully moved to room_b."},
				{Agent: "Bob", Busy: true, Message: "busy"},
			},
			Objects: []world.Object{{ID: "lamp", Name: "Desk Lamp", LocationID: "room_a", State: state,
				Mechanics: "Needs a working bulb.", InternalState: map[string]any{"bulb": "ok"}}},
			Positions: map[string]string{"Ann": "room_b", "Bob": "room_a"},
			Duration:  time.Millisecond,
		}))
	}

	objs, last, err := s.Snapshots.LatestObjects(ctx, s.RunID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
	require.Len(t, objs, 1)
	assert.Equal(t, "on", objs[0].State)
	assert.Equal(t, "Needs a working bulb.", objs[0].Mechanics)
	assert.Equal(t, "ok", objs[0].InternalState["bulb"])

	positions, err := s.Snapshots.LatestPositions(ctx, s.RunID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Ann": "room_b", "Bob": "room_a"}, positions)

	acts, err := s.Snapshots.Actions(ctx, s.RunID(), "Ann")
	require.NoError(t, err)
	require.Len(t, acts, 2)
	require.NotNil(t, acts[0].Decision)
	assert.Equal(t, agent.Move{LocationID: "room_b"}, acts[0].Decision.Action)
	assert.True(t, acts[1].Success)

	busy, err := s.Snapshots.Actions(ctx, s.RunID(), "Bob")
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.True(t, busy[0].Busy)
	assert.Nil(t, busy[0].Decision)
}

func TestLatestObjectsWithoutTicks(t *testing.T) {
	s := openStore(t)
	objs, last, err := s.Snapshots.LatestObjects(context.Background(), s.RunID())
	require.NoError(t, err)
	assert.Nil(t, objs)
	assert.Equal(t, int64(-1), last)
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run, err := s.Runs.Get(ctx, s.RunID())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "study", run.Scenario)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.Finish(ctx, 3, "ticks=3"))
	run, err = s.Runs.Get(ctx, s.RunID())
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, int64(3), run.Ticks)
	assert.Equal(t, "ticks=3", run.Summary)

	runs, err := s.Runs.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	missing, err := s.Runs.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Error(t, s.Runs.Finish(ctx, "nope", 1, ""))
}

func TestReconstructorReplay(t *testing.T) {
	s := openStore(t)
	writeEvents(t, s)
	ctx := context.Background()
	rec := NewReconstructor(s.Runs, s.Events, s.Snapshots)

	positions, err := rec.RebuildPositions(ctx, s.RunID())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Ann": "room_b", "Bob": "room_a"}, positions)

	recap, err := rec.GenerateRecap(ctx, s.RunID(), "Bob", 1)
	require.NoError(t, err)
	require.Len(t, recap, 1)
	assert.Equal(t, ImpactNegative, recap[0].Impact)
	assert.Equal(t, "Monday, 08:10 AM", recap[0].Time)

	replay, err := rec.Replay(ctx, s.RunID())
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, s.RunID(), replay.Run.ID)
	assert.Equal(t, int64(-1), replay.LastTick)
	assert.Len(t, replay.Recaps["Ann"], 2)
	assert.Equal(t, ImpactNeutral, replay.Recaps["Ann"][1].Impact)

	none, err := rec.Replay(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)
}
