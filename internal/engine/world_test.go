package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/effect"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

type fixture struct {
	world    *World
	journal  *events.EventLog
	stats    *metrics.Collector
	provider *ai.ScriptedProvider
}

func lampScenario() *Scenario {
	return &Scenario{
		Locations: []world.Location{
			{ID: "room_a", Name: "Room A", Description: "A small study.", ConnectedTo: []string{"room_b"}},
			{ID: "room_b", Name: "Room B", Description: "A bare hallway."},
		},
		Objects: []world.Object{
			{ID: "lamp", Name: "Desk Lamp", LocationID: "room_a", State: "off", Description: "A brass desk lamp.",
				Mechanics: "Needs a working bulb.", InternalState: map[string]any{"bulb": "ok"}},
		},
	}
}

func newFixture(t *testing.T, replies ...ai.ScriptedReply) *fixture {
	t.Helper()
	f := &fixture{
		journal:  events.NewEventLog(nil, 0, nil),
		stats:    metrics.NewCollector(),
		provider: ai.NewScriptedProvider(replies...),
	}
	w, err := NewWorld(Options{Provider: f.provider, Journal: f.journal, Stats: f.stats})
	require.NoError(t, err)
	require.NoError(t, w.Populate(lampScenario()))
	require.True(t, w.PlaceAgent("Ann", "room_a"))
	f.world = w
	return f
}

func call(id, name, args string) ai.ToolCall {
	return ai.ToolCall{ID: id, Name: name, Arguments: args}
}

func interact(object, action string) agent.Decision {
	return agent.Decision{Reasoning: "test", Action: agent.Interact{ObjectID: object, Action: action}}
}

func TestInteractAppliesImmediately(t *testing.T) {
	f := newFixture(t,
		ai.Calls(call("c1", ToolQueryEntity, `{"entity_id":"lamp"}`)),
		ai.Calls(call("c2", ToolUpdateObject, `{"object_id":"lamp","state":"on"}`)),
		ai.Calls(call("c3", ToolInteractionResult, `{"message":"You switch on the lamp. Warm light fills the study."}`)),
	)

	res := f.world.ProcessAction(context.Background(), "Ann", interact("lamp", "turn on lamp"))

	assert.True(t, res.Success)
	assert.False(t, res.Locked)
	assert.Equal(t, "You switch on the lamp. Warm light fills the study.", res.Message)

	lamp, ok := f.world.Store().Object("lamp")
	require.True(t, ok)
	assert.Equal(t, "on", lamp.State)
	assert.Equal(t, int64(1), f.stats.WorldEngineCalls)
	assert.Equal(t, int64(1), f.stats.EffectsApplied)

	// The query reply carried the hidden fields back to the reasoning service.
	reqs := f.provider.Requests()
	require.Len(t, reqs, 3)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Contains(t, last.Content, `"type":"object"`)
	assert.Contains(t, last.Content, "Needs a working bulb.")

	staged := reqs[2].Messages[len(reqs[2].Messages)-1]
	assert.JSONEq(t, `{"status":"effect_staged","message":"update_object staged."}`, staged.Content)
}

func TestInteractDeferredUntilLockExpires(t *testing.T) {
	f := newFixture(t,
		ai.Calls(
			call("c1", ToolUpdateObject, `{"object_id":"lamp","state":"fixed"}`),
			call("c2", ToolInteractionResult, `{"message":"You repaired the lamp.","duration":10,"task_description":"repairing the lamp"}`),
		),
	)

	res := f.world.ProcessAction(context.Background(), "Ann", interact("lamp", "repair lamp"))
	assert.True(t, res.Success)
	assert.True(t, res.Locked)
	assert.Equal(t, "Started: repairing the lamp (10 min)...", res.Message)

	lamp, _ := f.world.Store().Object("lamp")
	assert.Equal(t, "off", lamp.State, "effects must wait for the lock")

	st := f.world.CheckAgentLock("Ann")
	assert.Equal(t, LockActive, st.Kind)
	assert.Equal(t, "repairing the lamp", st.Reason)

	f.world.AdvanceTime()

	st = f.world.CheckAgentLock("Ann")
	assert.Equal(t, LockExpired, st.Kind)
	assert.Equal(t, "You repaired the lamp.", st.Message)
	assert.Equal(t, 1, st.Applied)

	lamp, _ = f.world.Store().Object("lamp")
	assert.Equal(t, "fixed", lamp.State)
	assert.Equal(t, LockNone, f.world.CheckAgentLock("Ann").Kind)
}

func TestLockExpiresExactlyOnce(t *testing.T) {
	f := newFixture(t,
		ai.Calls(
			call("c1", ToolCreateObject, `{"object_id":"tea","name":"Cup of Tea","location_id":"Ann"}`),
			call("c2", ToolInteractionResult, `{"message":"The tea is ready.","duration":20,"task_description":"brewing tea"}`),
		),
	)

	res := f.world.ProcessAction(context.Background(), "Ann", interact("lamp", "brew tea by the lamp"))
	require.True(t, res.Locked)

	f.world.AdvanceTime()
	assert.Equal(t, LockActive, f.world.CheckAgentLock("Ann").Kind)
	assert.False(t, f.world.Store().HasObject("tea"))

	f.world.AdvanceTime()
	assert.Equal(t, LockExpired, f.world.CheckAgentLock("Ann").Kind)
	assert.Equal(t, LockNone, f.world.CheckAgentLock("Ann").Kind)
	f.world.AdvanceTime()
	assert.Equal(t, LockNone, f.world.CheckAgentLock("Ann").Kind)

	assert.Equal(t, int64(1), f.stats.EffectsApplied)
	assert.Equal(t, int64(1), f.stats.LocksExpired)
	inv := f.world.Store().AgentInventory("Ann")
	require.Len(t, inv, 1)
	assert.Equal(t, "tea", inv[0].ID)
}

func TestLockSkippedTicksStillReplay(t *testing.T) {
	f := newFixture(t)
	f.world.Locks().SetLock("Ann", 10, "napping", "", nil)

	for range 5 {
		f.world.AdvanceTime()
	}
	st := f.world.CheckAgentLock("Ann")
	assert.Equal(t, LockExpired, st.Kind)
	assert.Equal(t, "Finished napping.", st.Message)
}

func TestDoubleLockIsFlagged(t *testing.T) {
	f := newFixture(t)

	first := f.world.SetAgentLock("Ann", 30, "reading", "Done reading.")
	assert.Nil(t, first)

	displaced := f.world.SetAgentLock("Ann", 10, "", "")
	require.NotNil(t, displaced, "re-locking must surface the displaced lock")
	assert.Equal(t, "reading", displaced.Reason)

	lock, ok := f.world.Locks().Peek("Ann")
	require.True(t, ok)
	assert.Equal(t, DefaultLockReason, lock.Reason)
	assert.Equal(t, "Finished busy.", lock.CompletionMessage)

	assert.Equal(t, int64(2), f.stats.LocksSet)
	assert.Equal(t, int64(1), f.stats.LocksOverwritten)
	var flagged bool
	for _, n := range f.stats.Notable() {
		if n.Type == "lock_overwritten" {
			flagged = true
		}
	}
	assert.True(t, flagged)
	assert.Len(t, f.journal.Filter(func(e events.GameEvent) bool { return e.Type == events.EventTypeLockOverwritten }), 1)
}

func TestLockedAgentCannotAct(t *testing.T) {
	f := newFixture(t)
	f.world.SetAgentLock("Ann", 30, "reading", "")

	res := f.world.ProcessAction(context.Background(), "Ann", agent.Decision{Action: agent.Move{LocationID: "room_b"}})
	assert.False(t, res.Success)
	assert.True(t, res.Locked)
	assert.Equal(t, "You are busy: reading.", res.Message)

	loc, _ := f.world.Store().AgentLocation("Ann")
	assert.Equal(t, "room_a", loc)
}

func TestProcessActionConsumesExpiredLockWithoutRunner(t *testing.T) {
	f := newFixture(t)
	f.world.SetAgentLock("Ann", 10, "reading", "You finish the chapter.")
	f.world.AdvanceTime()

	res := f.world.ProcessAction(context.Background(), "Ann", agent.Decision{Action: agent.Move{LocationID: "room_b"}})
	assert.True(t, res.Success)
	assert.False(t, res.Locked)
	assert.Equal(t, []string{"You finish the chapter."}, f.world.Queue().Drain("Ann"))
	assert.Equal(t, LockNone, f.world.CheckAgentLock("Ann").Kind)
}

func TestMoveValidity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		target  string
		success bool
		message string
		at      string
	}{
		{"connected", "room_b", true, "Successfully moved to room_b.", "room_b"},
		{"same location", "room_b", false, "Failed to move to room_b. It might not be connected or valid.", "room_b"},
		{"unknown", "attic", false, "Failed to move to attic. It might not be connected or valid.", "room_b"},
		{"edge is symmetric", "room_a", true, "Successfully moved to room_a.", "room_a"},
		{"missing target", "", false, "Move action requires a target.", "room_a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Move{LocationID: tt.target}})
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.message, res.Message)
			loc, _ := f.world.Store().AgentLocation("Ann")
			assert.Equal(t, tt.at, loc)

			a, _ := f.world.Store().Location("room_a")
			b, _ := f.world.Store().Location("room_b")
			assert.Equal(t, tt.at == "room_a", a.HasAgent("Ann"))
			assert.Equal(t, tt.at == "room_b", b.HasAgent("Ann"))
		})
	}
}

func TestTalkBroadcastsToOthersOnly(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.world.PlaceAgent("Bob", "room_a"))
	require.True(t, f.world.PlaceAgent("Cy", "room_b"))

	res := f.world.ProcessAction(context.Background(), "Ann", agent.Decision{Action: agent.Talk{Message: "hello"}})
	assert.True(t, res.Success)
	assert.Equal(t, "You said: 'hello'", res.Message)

	bob := f.world.AgentContext("Bob")
	assert.Equal(t, []string{"You heard Ann say: 'hello'"}, bob.Events)
	assert.Empty(t, f.world.AgentContext("Ann").Events)
	assert.Empty(t, f.world.AgentContext("Cy").Events)

	// Delivered once, then cleared.
	assert.Empty(t, f.world.AgentContext("Bob").Events)
}

func TestWaitAndMissingParameters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Wait{Reason: "observing"}})
	assert.True(t, res.Success)
	assert.Equal(t, "Waited for one tick.", res.Message)

	res = f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Talk{}})
	assert.Equal(t, "Talk action requires content.", res.Message)

	res = f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Interact{}})
	assert.Equal(t, "Interact action requires a target object.", res.Message)

	res = f.world.ProcessAction(ctx, "Ann", interact("ghost", "poke"))
	assert.False(t, res.Success)
	assert.Equal(t, "Object 'ghost' not found.", res.Message)
	assert.Equal(t, 0, len(f.provider.Requests()))
}

func TestAgentContextHidesMechanics(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.world.PlaceAgent("Bob", "room_a"))

	c := f.world.AgentContext("Ann")
	assert.Equal(t, "Room A", c.LocationName)
	assert.Equal(t, "Monday, 08:00 AM", c.Time)
	assert.Equal(t, []string{"Bob"}, c.People)
	assert.Equal(t, []string{"room_b"}, c.Connections)
	require.Len(t, c.Objects, 1)
	assert.Equal(t, world.VisibleObject{ID: "lamp", Name: "Desk Lamp", State: "off", Description: "A brass desk lamp."}, c.Objects[0])

	unknown := f.world.AgentContext("Nobody")
	assert.Equal(t, UnknownLocationName, unknown.LocationName)
	assert.Equal(t, UnknownLocationDescription, unknown.LocationDescription)
}

func TestObjectConservation(t *testing.T) {
	f := newFixture(t,
		ai.Calls(
			call("c1", ToolCreateObject, `{"object_id":"mug","name":"Mug","location_id":"room_a"}`),
			call("c2", ToolInteractionResult, `{"message":"A mug appears."}`),
		),
		ai.Calls(
			call("c3", ToolTransferObject, `{"object_id":"mug","from_id":"room_a","to_id":"Ann"}`),
			call("c4", ToolInteractionResult, `{"message":"You pick up the mug."}`),
		),
		ai.Calls(
			call("c5", ToolTransferObject, `{"object_id":"mug","from_id":"Ann","to_id":"room_b"}`),
			call("c6", ToolInteractionResult, `{"message":"You toss the mug into the hallway."}`),
		),
	)
	ctx := context.Background()

	holders := func() []string {
		var at []string
		for _, l := range f.world.Store().Locations() {
			for _, id := range l.Objects {
				if id == "mug" {
					at = append(at, l.ID)
				}
			}
		}
		for _, o := range f.world.Store().AgentInventory("Ann") {
			if o.ID == "mug" {
				at = append(at, "Ann")
			}
		}
		return at
	}

	require.True(t, f.world.ProcessAction(ctx, "Ann", interact("lamp", "make a mug")).Success)
	assert.Equal(t, []string{"room_a"}, holders())

	require.True(t, f.world.ProcessAction(ctx, "Ann", interact("lamp", "take the mug")).Success)
	assert.Equal(t, []string{"Ann"}, holders())

	require.True(t, f.world.ProcessAction(ctx, "Ann", interact("lamp", "throw the mug")).Success)
	assert.Equal(t, []string{"room_b"}, holders())

	mug, ok := f.world.Store().Object("mug")
	require.True(t, ok)
	assert.Equal(t, "room_b", mug.LocationID)
	assert.Equal(t, world.DefaultState, mug.State)
}

func TestJournalRecordsActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Move{LocationID: "room_b"}})
	f.world.ProcessAction(ctx, "Ann", agent.Decision{Action: agent.Move{LocationID: "attic"}})
	f.world.AdvanceTime()

	var types []string
	for _, e := range f.journal.Replay() {
		types = append(types, string(e.Type))
	}
	assert.Equal(t, "AGENT_PLACED,MOVE,ACTION_FAILED,TICK", strings.Join(types, ","))

	ticks := f.journal.GetByTick(1)
	require.Len(t, ticks, 1)
	assert.Equal(t, "Monday, 08:10 AM", ticks[0].Summary)
}

func TestUpdateObjectMergesInternalState(t *testing.T) {
	f := newFixture(t)
	on := "on"
	require.True(t, f.world.executor.Apply("Ann", effect.UpdateObject{
		ObjectID:      "lamp",
		State:         &on,
		InternalState: map[string]any{"on": true},
	}))

	lamp, _ := f.world.Store().Object("lamp")
	assert.Equal(t, "on", lamp.State)
	assert.Equal(t, "A brass desk lamp.", lamp.Description, "fields not in the patch are kept")
	assert.Equal(t, map[string]any{"bulb": "ok", "on": true}, lamp.InternalState)
}

func TestApplyAllContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	lit := "lit"
	applied := f.world.executor.ApplyAll("Ann", []effect.Effect{
		effect.UpdateObject{ObjectID: "lamp", State: &lit},
		effect.DestroyObject{ObjectID: "ghost"},
		effect.CreateObject{ObjectID: "bulb", Name: "Spare Bulb", LocationID: "room_a"},
		effect.TransferObject{ObjectID: "bulb", ToID: "Ann"},
		effect.UpdateObject{ObjectID: "bulb", InternalState: map[string]any{"watts": 40}},
	})

	assert.Equal(t, 4, applied)
	assert.Equal(t, int64(4), f.stats.EffectsApplied)
	assert.Equal(t, int64(1), f.stats.EffectsFailed)

	lamp, _ := f.world.Store().Object("lamp")
	assert.Equal(t, "lit", lamp.State)
	bulb, ok := f.world.Store().Object("bulb")
	require.True(t, ok, "effects after a failure still apply")
	assert.Equal(t, "Ann", bulb.LocationID)
}

func TestPopulateRejectsBadScenario(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(sc *Scenario)
		wantErr string
	}{
		{"duplicate location", func(sc *Scenario) {
			sc.Locations = append(sc.Locations, world.Location{ID: "room_a", Name: "Again"})
		}, `populate: location "room_a" already exists`},
		{"unknown connection", func(sc *Scenario) {
			sc.Locations[1].ConnectedTo = []string{"attic"}
		}, `populate: connect "room_b" <-> "attic": unknown location`},
		{"duplicate object", func(sc *Scenario) {
			sc.Objects = append(sc.Objects, sc.Objects[0])
		}, `populate: object "lamp" could not be created`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWorld(Options{Provider: ai.NewScriptedProvider()})
			require.NoError(t, err)
			sc := lampScenario()
			tt.mutate(sc)
			err = w.Populate(sc)
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
			_, ok := oops.AsOops(err)
			assert.True(t, ok)
		})
	}
}
