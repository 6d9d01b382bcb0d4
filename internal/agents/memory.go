package agents

import (
	"slices"

	"github.com/MRamiBalles/agentia/internal/infra/ai"
)

// Memory is what an agent remembers between ticks.
//
// Short-term entries are consumed by the next decision. History is the
// chat transcript replayed to the reasoning service, bounded by maxHistory
// messages (oldest dropped first).
type Memory struct {
	shortTerm  []string
	history    []ai.Message
	maxHistory int
}

func newMemory(maxHistory int) *Memory {
	return &Memory{maxHistory: maxHistory}
}

// Remember appends a short-term entry.
func (m *Memory) Remember(s string) {
	m.shortTerm = append(m.shortTerm, s)
}

// Consume returns the short-term entries and clears them.
func (m *Memory) Consume() []string {
	out := m.shortTerm
	m.shortTerm = nil
	return out
}

// ShortTerm returns a copy of the unconsumed entries.
func (m *Memory) ShortTerm() []string {
	return slices.Clone(m.shortTerm)
}

// History returns a copy of the chat transcript.
func (m *Memory) History() []ai.Message {
	return slices.Clone(m.history)
}

func (m *Memory) record(msgs ...ai.Message) {
	m.history = append(m.history, msgs...)
	if m.maxHistory > 0 && len(m.history) > m.maxHistory {
		m.history = slices.Clone(m.history[len(m.history)-m.maxHistory:])
	}
}
