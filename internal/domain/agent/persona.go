// Package agent defines the domain entities for simulated agents:
// who they are, what they decide, and what they plan.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package agent

import "maps"

// DefaultGoal is used when a persona does not state one.
const DefaultGoal = "Explore the surroundings."

// Persona is the static description of an agent, as loaded from the agents file.
type Persona struct {
	Name            string `json:"name" yaml:"name"`
	Age             int    `json:"age" yaml:"age"`
	Occupation      string `json:"occupation" yaml:"occupation"`
	Personality     string `json:"personality" yaml:"personality"`
	Background      string `json:"background" yaml:"background"`
	InitialGoal     string `json:"initial_goal" yaml:"initial_goal"`
	InitialLocation string `json:"initial_location" yaml:"initial_location"`
}

// Goal returns the initial goal or the default.
func (p Persona) Goal() string {
	if p.InitialGoal == "" {
		return DefaultGoal
	}
	return p.InitialGoal
}

// Status is the soft condition of an agent, shown to it every turn.
type Status map[string]string

// DefaultStatus returns a fresh copy of the starting status.
func DefaultStatus() Status {
	return maps.Clone(Status{"fatigue": "low", "stress": "low"})
}
