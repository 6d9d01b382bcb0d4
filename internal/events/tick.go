package events

import (
	"time"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
)

// ActionRecord is what one agent did during a tick.
type ActionRecord struct {
	Agent string `json:"agent"`
	// Busy is set when the agent was locked and did not decide.
	Busy     bool            `json:"busy,omitempty"`
	Decision *agent.Decision `json:"decision,omitempty"`
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Locked   bool            `json:"locked,omitempty"`
}

// TickRecord summarizes one finished tick for the journal and the run store.
// Objects is a full snapshot, hidden fields included; it is never shown to agents.
type TickRecord struct {
	RunID   string         `json:"run_id"`
	Tick    int64          `json:"tick"`
	SimTime time.Time      `json:"sim_time"`
	Label   string         `json:"label"`
	Actions []ActionRecord `json:"actions"`
	Objects []world.Object `json:"objects"`
	// Positions maps agent name to location id.
	Positions map[string]string `json:"positions"`
	Duration  time.Duration     `json:"duration_ns"`
}

// TickRecorder receives every finished tick.
type TickRecorder interface {
	RecordTick(rec TickRecord) error
}
