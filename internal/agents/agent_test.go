package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

var ann = agent.Persona{
	Name:            "Ann",
	Age:             34,
	Occupation:      "baker",
	Personality:     "curious",
	Background:      "Grew up above the bakery.",
	InitialLocation: "room_a",
}

func view() engine.AgentContext {
	return engine.AgentContext{
		Agent:               "Ann",
		Time:                "Monday, 08:00 AM",
		LocationID:          "room_a",
		LocationName:        "Room A",
		LocationDescription: "A small study.",
		Connections:         []string{"room_b"},
	}
}

func newAgent(t *testing.T, opts Options, replies ...ai.ScriptedReply) (*SimAgent, *ai.ScriptedProvider) {
	t.Helper()
	p := ai.NewScriptedProvider(replies...)
	opts.Provider = p
	return NewSimAgent(ann, opts), p
}

func TestDecideParsesFencedJSON(t *testing.T) {
	a, p := newAgent(t, Options{},
		ai.Text("```json\n{\"reasoning\":\"explore\",\"action_type\":\"move\",\"action\":{\"location_id\":\"room_b\"}}\n```"))

	d := a.Decide(context.Background(), view())
	assert.Equal(t, agent.Move{LocationID: "room_b"}, d.Action)
	assert.Equal(t, "explore", d.Reasoning)

	req := p.Requests()[0]
	assert.Equal(t, "json", req.ResponseFormat)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, ToolUpdatePlan, req.Tools[0].Name)
	assert.Contains(t, req.Messages[0].Content, "You are Ann, a 34-year-old baker.")
	assert.Contains(t, req.Messages[0].Content, "Goal: "+agent.DefaultGoal)

	hist := a.Memory().History()
	require.Len(t, hist, 2)
	assert.Equal(t, ai.RoleAssistant, hist[1].Role)
	assert.NotContains(t, hist[1].Content, "```")
}

func TestDecideFallsBackToWait(t *testing.T) {
	tests := []struct {
		name   string
		reply  ai.ScriptedReply
		reason string
	}{
		{"provider error", ai.Fail(errors.New("boom")), ReasonProviderError},
		{"empty content", ai.Text(""), ReasonEmptyResponse},
		{"not json", ai.Text("I think I will go for a walk."), "Parse Error"},
		{"missing parameter", ai.Text(`{"reasoning":"x","action_type":"move","action":{}}`), "Parse Error"},
		{"unknown action", ai.Text(`{"reasoning":"x","action_type":"fly","action":{}}`), "Parse Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := metrics.NewCollector()
			a, _ := newAgent(t, Options{Stats: stats}, tt.reply)
			d := a.Decide(context.Background(), view())
			assert.Equal(t, agent.ActionWait, d.Kind())
			assert.Contains(t, d.Reasoning, tt.reason)
			assert.Equal(t, int64(1), stats.Errors)
			assert.Empty(t, a.Memory().History())
		})
	}
}

func TestDecideUpdatesPlanThenReasks(t *testing.T) {
	a, p := newAgent(t, Options{},
		ai.Calls(ai.ToolCall{ID: "p1", Name: ToolUpdatePlan,
			Arguments: `{"tasks":[{"id":"1","description":"Bake bread"},{"id":"2","description":"Open shop","status":"in_progress"}]}`}),
		ai.Text(`{"reasoning":"bake","action_type":"interact","action":{"object_id":"oven","action":"light the oven"}}`),
	)

	d := a.Decide(context.Background(), view())
	assert.Equal(t, agent.Interact{ObjectID: "oven", Action: "light the oven"}, d.Action)

	plan := a.Plan()
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, agent.TaskPending, plan.Tasks[0].Status)
	assert.Equal(t, agent.TaskInProgress, plan.Tasks[1].Status)

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Messages[1].Content, "No plan yet.")
	assert.Contains(t, reqs[1].Messages[1].Content, "- [pending] 1: Bake bread")

	assert.NotContains(t, reqs[0].Messages[1].Content, "[Planning]")
	assert.Contains(t, reqs[1].Messages[1].Content, "- [Memory] [Planning] Updated daily plan: 2 tasks.")
	assert.Empty(t, a.Memory().ShortTerm(), "the planning note is used within the same decision")
}

func TestDecidePlanRoundsAreBounded(t *testing.T) {
	planCall := ai.Calls(ai.ToolCall{ID: "p", Name: ToolUpdatePlan, Arguments: `{"tasks":[]}`})
	a, p := newAgent(t, Options{MaxPlanRounds: 2},
		planCall, planCall,
		ai.Text(`{"reasoning":"fine","action_type":"wait","action":{"reason":"done planning"}}`),
	)

	d := a.Decide(context.Background(), view())
	assert.Equal(t, agent.Wait{Reason: "done planning"}, d.Action)

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	assert.NotEmpty(t, reqs[1].Tools)
	assert.Empty(t, reqs[2].Tools, "the plan tool is withdrawn after the last round")
}

func TestDecideRejectsInvalidPlan(t *testing.T) {
	a, _ := newAgent(t, Options{},
		ai.Calls(ai.ToolCall{ID: "p", Name: ToolUpdatePlan, Arguments: `{"tasks":[{"description":"no id"}]}`}),
		ai.Text(`{"reasoning":"x","action_type":"wait","action":{}}`),
	)
	d := a.Decide(context.Background(), view())
	assert.Equal(t, agent.Wait{Reason: "observing"}, d.Action)
	assert.Empty(t, a.Plan().Tasks)
	assert.Empty(t, a.Memory().ShortTerm())
}

func TestMemoryIsConsumedIntoNextPrompt(t *testing.T) {
	wait := ai.Text(`{"reasoning":"x","action_type":"wait","action":{}}`)
	a, p := newAgent(t, Options{}, wait, wait)

	a.Observe(engine.ActionResult{Success: true, Message: "Successfully moved to room_a."})
	v := view()
	v.Events = []string{"You heard Bob say: 'hello'"}
	a.Decide(context.Background(), v)

	first := p.Requests()[0].Messages[1].Content
	assert.Contains(t, first, "- [Event] You heard Bob say: 'hello'\n- [Memory] System: Successfully moved to room_a.")
	assert.Empty(t, a.Memory().ShortTerm())

	a.Decide(context.Background(), view())
	second := p.Requests()[1]
	assert.Contains(t, second.Messages[len(second.Messages)-1].Content, "Events:\nNothing notable")
	// system + two remembered messages + the new user prompt
	assert.Len(t, second.Messages, 4)
}

func TestHistoryIsBounded(t *testing.T) {
	wait := ai.Text(`{"reasoning":"x","action_type":"wait","action":{}}`)
	a, _ := newAgent(t, Options{HistoryLength: 4}, wait, wait, wait)
	for range 3 {
		a.Decide(context.Background(), view())
	}
	assert.Len(t, a.Memory().History(), 4)
}
