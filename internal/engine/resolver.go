package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// DefaultMaxTurns bounds the resolver's conversation with the reasoning service.
const DefaultMaxTurns = 15

// EventResolverTimeout is the notable-event type recorded when the turn bound is hit.
const EventResolverTimeout = "resolver_timeout"

// Fixed resolver failure messages.
const (
	MsgSilent  = "The Game Master is silent (LLM Error)."
	MsgTimeout = "The interaction took too long to resolve."
)

// LoopState is the resolver state machine.
type LoopState int

const (
	StateAwaitingCollaboratorTurn LoopState = iota
	StateDispatchingTools
	StateFinalized
	StateTimedOut
	StateFailed
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingCollaboratorTurn:
		return "awaiting_collaborator_turn"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateFinalized:
		return "finalized"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// Terminal reports whether no further turns follow.
func (s LoopState) Terminal() bool {
	return s == StateFinalized || s == StateTimedOut || s == StateFailed
}

// InteractionRequest is one free-form interaction to resolve.
type InteractionRequest struct {
	Agent     string
	Object    *world.Object
	Action    string
	Location  *world.Location
	Witnesses []string
	Inventory []world.VisibleObject
}

// Resolution is what the resolver produced.
type Resolution struct {
	State   LoopState
	Message string
	Turns   int
	// Staged lists the effects accepted during reasoning, in order.
	Staged []effect.Effect
	// Outcome is set when State is StateFinalized.
	Outcome *InteractionOutcome
	// Locked is set when the outcome registered a lock instead of applying.
	Locked bool
	// Applied counts effects applied immediately.
	Applied int
}

// Success reports a finalized resolution.
func (r Resolution) Success() bool { return r.State == StateFinalized }

// ResolverOptions tunes the provider requests.
type ResolverOptions struct {
	MaxTurns    int
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Resolver runs the investigate-then-mutate tool loop for interact actions.
type Resolver struct {
	provider ai.LLMProvider
	tools    *Toolbox
	executor *EffectExecutor
	locks    *LockLedger
	stats    *metrics.Collector
	logger   *logger.Logger
	opts     ResolverOptions
}

// NewResolver wires a resolver. stats may be nil.
func NewResolver(provider ai.LLMProvider, tools *Toolbox, executor *EffectExecutor, locks *LockLedger,
	stats *metrics.Collector, log *logger.Logger, opts ResolverOptions) *Resolver {
	if provider == nil || tools == nil || executor == nil || locks == nil {
		panic("engine: NewResolver requires a provider, tools, an executor and a lock ledger")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Resolver{
		provider: provider,
		tools:    tools,
		executor: executor,
		locks:    locks,
		stats:    stats,
		logger:   log.With(zap.String("component", "world_engine")),
		opts:     opts,
	}
}

// Resolve drives the loop until the reasoning service finalizes, fails, or runs out of turns.
func (r *Resolver) Resolve(ctx context.Context, req InteractionRequest) Resolution {
	if r.stats != nil {
		r.stats.RecordWorldEngineCall()
	}
	log := r.logger.With(zap.String("agent", req.Agent))
	log.Info("resolving interaction", zap.String("action", req.Action))

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: ai.WorldEngineSystemPrompt},
		{Role: ai.RoleUser, Content: ai.BuildInteractionPrompt(interactionPrompt(req))},
	}

	var staged []effect.Effect
	state := StateAwaitingCollaboratorTurn
	turn := 0

	for !state.Terminal() {
		if turn >= r.opts.MaxTurns {
			state = StateTimedOut
			break
		}
		turn++
		if r.stats != nil {
			r.stats.RecordResolverTurn()
		}

		resp, err := r.provider.Complete(ctx, ai.CompletionRequest{
			Messages:    messages,
			Tools:       r.tools.Definitions(),
			Model:       r.opts.Model,
			Temperature: r.opts.Temperature,
			TopP:        r.opts.TopP,
			MaxTokens:   r.opts.MaxTokens,
		})
		if err != nil || resp.Empty() {
			if err != nil {
				log.Error("reasoning service call failed", zap.Int("turn", turn), zap.Error(err))
			} else {
				log.Error("reasoning service returned an empty response", zap.Int("turn", turn))
			}
			if r.stats != nil {
				r.stats.RecordError()
			}
			return Resolution{State: StateFailed, Message: MsgSilent, Turns: turn, Staged: staged}
		}
		if r.stats != nil {
			r.stats.RecordAPICall(resp.TotalTokens, resp.Latency)
		}
		messages = append(messages, resp.AssistantMessage())

		if len(resp.ToolCalls) == 0 {
			log.Warn("reasoning service answered without a tool call", zap.Int("turn", turn))
			messages = append(messages, ai.Message{Role: ai.RoleUser, Content: ai.ReminderPrompt})
			continue
		}

		state = StateDispatchingTools
		if resp.Content != "" {
			log.Debug("game master thought", zap.Int("turn", turn), zap.String("content", resp.Content))
		}
		for i, call := range resp.ToolCalls {
			result, outcome := r.tools.Dispatch(call, &staged)
			log.Info("tool call",
				zap.Int("turn", turn),
				zap.Int("index", i+1),
				zap.String("tool", call.Name),
				zap.String("args", call.Arguments),
				zap.Bool("error", result.Failed()))
			messages = append(messages, ai.ToolMessage(call, result.JSON()))
			if outcome != nil {
				res := r.finalize(req.Agent, *outcome, staged)
				res.Turns = turn
				log.Info("interaction finalized",
					zap.Int("turns", turn),
					zap.Int("staged", len(staged)),
					zap.Bool("locked", res.Locked))
				return res
			}
		}
		state = StateAwaitingCollaboratorTurn
	}

	log.Warn("interaction timed out", zap.Int("turns", turn), zap.Int("staged", len(staged)))
	if r.stats != nil {
		r.stats.RecordEvent(EventResolverTimeout, fmt.Sprintf("%s: %s", req.Agent, req.Action))
	}
	return Resolution{State: StateTimedOut, Message: MsgTimeout, Turns: turn, Staged: staged}
}

// finalize applies staged effects now, or defers them behind a lock.
func (r *Resolver) finalize(agent string, out InteractionOutcome, staged []effect.Effect) Resolution {
	res := Resolution{
		State:   StateFinalized,
		Message: out.Message,
		Staged:  staged,
		Outcome: &out,
	}
	if out.Duration <= 0 {
		res.Applied = r.executor.ApplyAll(agent, staged)
		return res
	}

	task := out.TaskDescription
	if task == "" {
		task = DefaultLockReason
	}
	r.locks.SetLock(agent, out.Duration, task, out.Message, staged)
	res.Locked = true
	res.Message = fmt.Sprintf("Started: %s (%d min)...", task, out.Duration)
	return res
}

func interactionPrompt(req InteractionRequest) ai.InteractionPrompt {
	p := ai.InteractionPrompt{
		AgentName:         req.Agent,
		Witnesses:         req.Witnesses,
		ActionDescription: req.Action,
	}
	for _, o := range req.Inventory {
		p.Inventory = append(p.Inventory, fmt.Sprintf("%s (id: %s)", o.Name, o.ID))
	}
	if o := req.Object; o != nil {
		p.ObjectID = o.ID
		p.ObjectName = o.Name
		p.ObjectState = o.State
		p.ObjectDescription = o.Description
		p.ObjectMechanics = o.Mechanics
		p.ObjectInternalState = o.InternalState
	}
	if l := req.Location; l != nil {
		p.LocationID = l.ID
		p.LocationName = l.Name
		p.LocationDescription = l.Description
	}
	return p
}
