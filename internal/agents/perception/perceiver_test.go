package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/engine"
)

func TestNotesOrder(t *testing.T) {
	got := Notes([]string{"You heard Bob say: 'hi'"}, []string{"System: Waited for one tick.", ""})
	assert.Equal(t, []string{
		"[Event] You heard Bob say: 'hi'",
		"[Memory] System: Waited for one tick.",
	}, got)
}

func TestRender(t *testing.T) {
	v := View{
		Context: engine.AgentContext{
			Agent:               "Ann",
			Tick:                3,
			Time:                "Monday, 08:30 AM",
			LocationName:        "Room A",
			LocationDescription: "A small study.",
			People:              []string{"Bob"},
			Objects:             []world.VisibleObject{{ID: "lamp", Name: "Desk Lamp", State: "off", Description: "A brass desk lamp."}},
			Connections:         []string{"room_b"},
			Inventory:           []world.VisibleObject{{ID: "key", Name: "Key", State: "normal"}},
		},
		Notes:  []string{"[Event] The lamp flickers."},
		Status: agent.DefaultStatus(),
		Plan:   agent.Plan{Tasks: []agent.Task{{ID: "1", Description: "Read", Status: agent.TaskPending}}},
	}

	want := "Tick: 3\n" +
		"Time: Monday, 08:30 AM\n\n" +
		"Location: Room A\n" +
		"Description: A small study.\n\n" +
		"People: Bob\n" +
		"Objects:\n" +
		"- Desk Lamp (id: lamp) [off]: A brass desk lamp.\n" +
		"Connected Locations: room_b\n\n" +
		"Events:\n" +
		"- [Event] The lamp flickers.\n\n" +
		"Inventory: Key (id: key) [normal]\n" +
		"Status: fatigue: low, stress: low\n\n" +
		"Current Plan:\n" +
		"- [pending] 1: Read\n\n" +
		"Provide your decision in JSON format."
	assert.Equal(t, want, NewPerceiver(0).Render(v))
}

func TestRenderEmpty(t *testing.T) {
	out := (&Perceiver{}).Render(View{Context: engine.AgentContext{LocationName: engine.UnknownLocationName}})
	assert.Contains(t, out, "People: None")
	assert.Contains(t, out, "- None")
	assert.Contains(t, out, "Events:\n"+NothingNotable)
	assert.Contains(t, out, "Inventory: Empty")
	assert.Contains(t, out, "No plan yet.")
}

func TestRenderKeepsRecentNotes(t *testing.T) {
	out := NewPerceiver(2).Render(View{Notes: []string{"one", "two", "three"}})
	assert.NotContains(t, out, "- one")
	assert.Contains(t, out, "- two\n- three")
}
