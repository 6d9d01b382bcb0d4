// Package agents implements the simulated people who live in the world.
//
// Each SimAgent runs a Perception-Cognition-Action cycle once per tick:
// the world snapshot is rendered by perception, the reasoning service picks
// one action (optionally revising the agent's plan first), and the outcome
// is fed back through Observe.
package agents

import (
	"sync"

	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/agents/perception"
	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxPlanRounds = 3
	DefaultHistoryLength = 20
	DefaultTickMinutes   = 10
)

// Options configures how an agent talks to the reasoning service.
type Options struct {
	Provider    ai.LLMProvider
	TickMinutes int
	// MaxPlanRounds bounds update_plan re-asks per decision. Negative disables planning.
	MaxPlanRounds int
	// HistoryLength bounds the replayed transcript, in messages.
	HistoryLength int
	// MaxNotes bounds the events and memories shown per prompt. Zero shows all.
	MaxNotes    int
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Stats       *metrics.Collector
	Logger      *logger.Logger
}

// SimAgent is one autonomous agent.
type SimAgent struct {
	persona agent.Persona
	goal    string

	mu     sync.Mutex
	status agent.Status
	plan   agent.Plan
	memory *Memory

	provider  ai.LLMProvider
	perceiver *perception.Perceiver
	opts      Options
	stats     *metrics.Collector
	logger    *logger.Logger
}

// NewSimAgent creates an agent from its persona.
func NewSimAgent(p agent.Persona, opts Options) *SimAgent {
	if opts.Provider == nil {
		panic("agents: NewSimAgent requires a provider")
	}
	if opts.TickMinutes <= 0 {
		opts.TickMinutes = DefaultTickMinutes
	}
	if opts.MaxPlanRounds < 0 {
		opts.MaxPlanRounds = 0
	} else if opts.MaxPlanRounds == 0 {
		opts.MaxPlanRounds = DefaultMaxPlanRounds
	}
	if opts.HistoryLength <= 0 {
		opts.HistoryLength = DefaultHistoryLength
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &SimAgent{
		persona:   p,
		goal:      p.Goal(),
		status:    agent.DefaultStatus(),
		memory:    newMemory(opts.HistoryLength),
		provider:  opts.Provider,
		perceiver: perception.NewPerceiver(opts.MaxNotes),
		opts:      opts,
		stats:     opts.Stats,
		logger:    log.With(zap.String("component", "agent"), zap.String("agent", p.Name)),
	}
}

// Name returns the agent's unique name.
func (a *SimAgent) Name() string { return a.persona.Name }

// Persona returns the static description the agent was built from.
func (a *SimAgent) Persona() agent.Persona { return a.persona }

// InitialLocation is where the agent starts.
func (a *SimAgent) InitialLocation() string { return a.persona.InitialLocation }

// Plan returns a copy of the current plan.
func (a *SimAgent) Plan() agent.Plan {
	a.mu.Lock()
	defer a.mu.Unlock()
	return agent.Plan{Tasks: append([]agent.Task(nil), a.plan.Tasks...)}
}

// Status returns a copy of the agent's status.
func (a *SimAgent) Status() agent.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(agent.Status, len(a.status))
	for k, v := range a.status {
		out[k] = v
	}
	return out
}

// Memory exposes the agent's memory. Callers must not use it while Decide runs.
func (a *SimAgent) Memory() *Memory { return a.memory }

// Observe records the outcome of the agent's own action.
func (a *SimAgent) Observe(res engine.ActionResult) {
	if res.Message == "" {
		return
	}
	a.Remember("System: " + res.Message)
}

// Remember adds an entry to short-term memory, e.g. a finished task.
func (a *SimAgent) Remember(s string) {
	a.mu.Lock()
	a.memory.Remember(s)
	a.mu.Unlock()
	a.logger.Debug("memory updated", zap.String("entry", s))
}

func (a *SimAgent) systemPrompt() string {
	return ai.BuildAgentSystemPrompt(ai.AgentPersona{
		Name:        a.persona.Name,
		Age:         a.persona.Age,
		Occupation:  a.persona.Occupation,
		Personality: a.persona.Personality,
		Background:  a.persona.Background,
		Goal:        a.goal,
	}, a.opts.TickMinutes)
}
