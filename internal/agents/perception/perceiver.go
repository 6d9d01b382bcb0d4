// Package perception turns a world snapshot into the text an agent reads each tick.
//
// It is the "eyes" of an agent: everything the reasoning service learns
// about the world on an agent's behalf goes through Render, so hidden object
// fields can never leak into an agent prompt.
package perception

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/engine"
)

// NothingNotable is shown when an agent has no events or memories.
const NothingNotable = "Nothing notable"

// View is everything rendered into one agent prompt.
type View struct {
	Context engine.AgentContext
	// Notes are the merged events and memories, see Notes.
	Notes  []string
	Status agent.Status
	Plan   agent.Plan
}

// Perceiver renders views. The zero value shows every note.
type Perceiver struct {
	// MaxNotes keeps only the most recent notes when positive.
	MaxNotes int
}

// NewPerceiver returns a perceiver that shows at most maxNotes notes.
func NewPerceiver(maxNotes int) *Perceiver {
	return &Perceiver{MaxNotes: maxNotes}
}

// Notes merges world events and the agent's own memories, events first.
// Empty memories are skipped.
func Notes(events, memories []string) []string {
	notes := make([]string, 0, len(events)+len(memories))
	for _, e := range events {
		notes = append(notes, "[Event] "+e)
	}
	for _, m := range memories {
		if m != "" {
			notes = append(notes, "[Memory] "+m)
		}
	}
	return notes
}

// Render builds the user prompt for one decision.
func (p *Perceiver) Render(v View) string {
	c := v.Context
	var sb strings.Builder

	fmt.Fprintf(&sb, "Tick: %d\n", c.Tick)
	fmt.Fprintf(&sb, "Time: %s\n\n", c.Time)

	fmt.Fprintf(&sb, "Location: %s\n", c.LocationName)
	fmt.Fprintf(&sb, "Description: %s\n\n", c.LocationDescription)

	fmt.Fprintf(&sb, "People: %s\n", joinOr(c.People, "None"))
	sb.WriteString("Objects:\n")
	sb.WriteString(objectLines(c.Objects))
	fmt.Fprintf(&sb, "\nConnected Locations: %s\n\n", joinOr(c.Connections, "None"))

	sb.WriteString("Events:\n")
	sb.WriteString(p.noteLines(v.Notes))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Inventory: %s\n", inventory(c.Inventory))
	fmt.Fprintf(&sb, "Status: %s\n\n", status(v.Status))

	sb.WriteString("Current Plan:\n")
	sb.WriteString(v.Plan.String())
	sb.WriteString("\n\nProvide your decision in JSON format.")
	return sb.String()
}

func (p *Perceiver) noteLines(notes []string) string {
	if len(notes) == 0 {
		return NothingNotable
	}
	if p.MaxNotes > 0 && len(notes) > p.MaxNotes {
		notes = notes[len(notes)-p.MaxNotes:]
	}
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = "- " + n
	}
	return strings.Join(lines, "\n")
}

func objectLines(objs []world.VisibleObject) string {
	if len(objs) == 0 {
		return "- None"
	}
	lines := make([]string, len(objs))
	for i, o := range objs {
		line := fmt.Sprintf("- %s (id: %s) [%s]", o.Name, o.ID, o.State)
		if o.Description != "" {
			line += ": " + o.Description
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func inventory(objs []world.VisibleObject) string {
	if len(objs) == 0 {
		return "Empty"
	}
	items := make([]string, len(objs))
	for i, o := range objs {
		items[i] = fmt.Sprintf("%s (id: %s) [%s]", o.Name, o.ID, o.State)
	}
	return strings.Join(items, ", ")
}

// status renders keys in sorted order so prompts are stable.
func status(s agent.Status) string {
	if len(s) == 0 {
		return "normal"
	}
	keys := slices.Sorted(maps.Keys(s))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + s[k]
	}
	return strings.Join(parts, ", ")
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}
