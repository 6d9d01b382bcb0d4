package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// Context defaults shown when an agent stands nowhere known.
const (
	UnknownLocationName        = "Unknown"
	UnknownLocationDescription = "You are in an unknown void."
)

// ActionResult is the outcome of one agent action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Locked is set when the action left the agent busy.
	Locked bool `json:"locked,omitempty"`
}

// AgentContext is the snapshot an agent decides from. Hidden object fields never appear here.
type AgentContext struct {
	Agent               string                `json:"agent"`
	Tick                int64                 `json:"tick"`
	Time                string                `json:"time"`
	LocationID          string                `json:"location_id"`
	LocationName        string                `json:"location_name"`
	LocationDescription string                `json:"location_description"`
	People              []string              `json:"people"`
	Objects             []world.VisibleObject `json:"objects"`
	Connections         []string              `json:"connections"`
	Events              []string              `json:"events"`
	Inventory           []world.VisibleObject `json:"inventory"`
}

// Options configures a World.
type Options struct {
	Start        time.Time
	TickDuration time.Duration
	// Provider resolves interact actions. Without one, interactions have no effect.
	Provider ai.LLMProvider
	Resolver ResolverOptions
	Journal  *events.EventLog
	Stats    *metrics.Collector
	Logger   *logger.Logger
}

// World wires the store, clock, queues, locks and resolver together and
// exposes the per-tick operations the simulation loop calls.
type World struct {
	store    *Store
	clock    *Clock
	queue    *EventQueue
	executor *EffectExecutor
	locks    *LockLedger
	tools    *Toolbox
	resolver *Resolver

	journal *events.EventLog
	stats   *metrics.Collector
	logger  *logger.Logger
}

// NewWorld builds an empty world.
func NewWorld(opts Options) (*World, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	start := opts.Start
	if start.IsZero() {
		start = DefaultStart
	}

	clock := NewClock(start, opts.TickDuration)
	store := NewStore(log.With(zap.String("component", "store")))
	executor := NewEffectExecutor(store, clock, opts.Journal, opts.Stats, log.With(zap.String("component", "effects")))
	locks := NewLockLedger(clock, executor, opts.Stats, log.With(zap.String("component", "locks")))
	tools, err := NewToolbox(store)
	if err != nil {
		return nil, err
	}

	w := &World{
		store:    store,
		clock:    clock,
		queue:    NewEventQueue(),
		executor: executor,
		locks:    locks,
		tools:    tools,
		journal:  opts.Journal,
		stats:    opts.Stats,
		logger:   log.With(zap.String("component", "world")),
	}
	if opts.Provider != nil {
		w.resolver = NewResolver(opts.Provider, tools, executor, locks, opts.Stats, log, opts.Resolver)
	}
	return w, nil
}

// Store exposes the entity store for read access.
func (w *World) Store() *Store { return w.store }

// Clock exposes the simulation clock.
func (w *World) Clock() *Clock { return w.clock }

// Locks exposes the lock ledger.
func (w *World) Locks() *LockLedger { return w.locks }

// Queue exposes the pending-event queues.
func (w *World) Queue() *EventQueue { return w.queue }

// Tools exposes the resolver's tool vocabulary.
func (w *World) Tools() *Toolbox { return w.tools }

// Populate loads a scenario into an empty world.
func (w *World) Populate(sc *Scenario) error {
	for _, l := range sc.Locations {
		if err := w.store.AddLocation(l); err != nil {
			return oops.Wrapf(err, "populate")
		}
	}
	for _, l := range sc.Locations {
		for _, to := range l.ConnectedTo {
			if err := w.store.Connect(l.ID, to); err != nil {
				return oops.Wrapf(err, "populate")
			}
		}
	}
	for _, o := range sc.Objects {
		if !w.store.CreateObject(o) {
			return oops.Errorf("populate: object %q could not be created", o.ID)
		}
	}
	w.logger.Info("scenario loaded",
		zap.Int("locations", len(sc.Locations)),
		zap.Int("objects", len(sc.Objects)))
	return nil
}

// PlaceAgent puts an agent at its starting location.
func (w *World) PlaceAgent(name, locationID string) bool {
	if !w.store.PlaceAgent(name, locationID) {
		w.logger.Warn("agent placement failed", zap.String("agent", name), zap.String("location", locationID))
		return false
	}
	w.emit(events.EventTypeAgentPlaced, name, locationID, fmt.Sprintf("%s starts at %s", name, locationID), nil)
	return true
}

// ProcessAction applies one decision for one agent.
//
// An agent whose lock is still active is refused. An expired lock is
// consumed first and its completion message queued for the agent.
func (w *World) ProcessAction(ctx context.Context, name string, d agent.Decision) ActionResult {
	// The runner has already checked this tick, so this normally reports
	// LockNone. It guards callers that drive the world without a runner.
	switch st := w.CheckAgentLock(name); st.Kind {
	case LockActive:
		return ActionResult{Message: fmt.Sprintf("You are busy: %s.", st.Reason), Locked: true}
	case LockExpired:
		w.queue.Push(name, st.Message)
	}

	if w.stats != nil {
		w.stats.RecordAction(name, string(d.Kind()))
	}

	var res ActionResult
	switch a := d.Action.(type) {
	case agent.Move:
		res = w.move(name, a)
	case agent.Talk:
		res = w.talk(name, a)
	case agent.Interact:
		res = w.interact(ctx, name, a)
	case agent.Wait, nil:
		res = ActionResult{Success: true, Message: "Waited for one tick."}
		w.emit(events.EventTypeWait, name, "", res.Message, d.Action)
	default:
		res = ActionResult{Message: fmt.Sprintf("Unknown action type: %s", d.Kind())}
	}

	if !res.Success {
		w.emit(events.EventTypeActionFailed, name, "", res.Message, map[string]any{
			"action_type": d.Kind(),
			"action":      d.Action,
		})
	}
	w.logger.Info("action processed",
		zap.String("agent", name),
		zap.String("decision", d.String()),
		zap.Bool("success", res.Success),
		zap.Bool("locked", res.Locked),
		zap.String("message", res.Message))
	return res
}

func (w *World) move(name string, a agent.Move) ActionResult {
	if a.LocationID == "" {
		return ActionResult{Message: "Move action requires a target."}
	}
	from, _ := w.store.AgentLocation(name)
	if !w.store.MoveAgent(name, a.LocationID) {
		return ActionResult{Message: fmt.Sprintf("Failed to move to %s. It might not be connected or valid.", a.LocationID)}
	}
	w.emit(events.EventTypeMove, name, a.LocationID, fmt.Sprintf("%s moved from %s to %s", name, from, a.LocationID),
		map[string]string{"from": from, "to": a.LocationID})
	return ActionResult{Success: true, Message: fmt.Sprintf("Successfully moved to %s.", a.LocationID)}
}

func (w *World) talk(name string, a agent.Talk) ActionResult {
	if a.Message == "" {
		return ActionResult{Message: "Talk action requires content."}
	}
	loc, _ := w.store.AgentLocation(name)
	heard := w.Broadcast(loc, fmt.Sprintf("You heard %s say: '%s'", name, a.Message), name)
	w.emit(events.EventTypeTalk, name, a.TargetAgent, fmt.Sprintf("%s says: '%s'", name, a.Message),
		map[string]any{"message": a.Message, "target_agent": a.TargetAgent, "heard_by": heard})
	return ActionResult{Success: true, Message: fmt.Sprintf("You said: '%s'", a.Message)}
}

func (w *World) interact(ctx context.Context, name string, a agent.Interact) ActionResult {
	if a.ObjectID == "" {
		return ActionResult{Message: "Interact action requires a target object."}
	}
	obj, ok := w.store.Object(a.ObjectID)
	if !ok {
		return ActionResult{Message: fmt.Sprintf("Object '%s' not found.", a.ObjectID)}
	}
	if w.resolver == nil {
		return ActionResult{Message: "The action had no effect."}
	}

	req := InteractionRequest{
		Agent:     name,
		Object:    obj,
		Action:    a.Action,
		Inventory: w.store.AgentInventory(name),
	}
	if locID, ok := w.store.AgentLocation(name); ok {
		if loc, ok := w.store.Location(locID); ok {
			req.Location = loc
			req.Witnesses = w.store.Witnesses(locID)
		}
	}

	res := w.resolver.Resolve(ctx, req)
	if res.Success() {
		w.emit(events.EventTypeInteract, name, a.ObjectID, res.Message, map[string]any{
			"action":  a.Action,
			"turns":   res.Turns,
			"staged":  len(res.Staged),
			"applied": res.Applied,
			"locked":  res.Locked,
		})
	}
	return ActionResult{Success: res.Success(), Message: res.Message, Locked: res.Locked}
}

// Broadcast queues msg for every agent at a location except exclude.
// Returns who received it.
func (w *World) Broadcast(locationID, msg, exclude string) []string {
	return w.queue.Broadcast(w.store.Witnesses(locationID), msg, exclude)
}

// AdvanceTime moves the clock forward one tick.
func (w *World) AdvanceTime() time.Time {
	now := w.clock.Advance()
	w.emit(events.EventTypeTick, events.SystemActor, "", now.Format(TimeLabelLayout), nil)
	return now
}

// TimeLabel returns the current time formatted for agents.
func (w *World) TimeLabel() string {
	return w.clock.Label()
}

// CheckAgentLock observes an agent's lock, replaying its effects if it expired.
func (w *World) CheckAgentLock(name string) LockStatus {
	return w.locks.CheckLock(name)
}

// SetAgentLock locks an agent directly. Returns the lock it displaced, if any.
func (w *World) SetAgentLock(name string, durationMinutes int, reason, completionMessage string) *AgentLock {
	return w.locks.SetLock(name, durationMinutes, reason, completionMessage, nil)
}

// AgentContext builds the snapshot for an agent and drains its pending events.
func (w *World) AgentContext(name string) AgentContext {
	ctx := AgentContext{
		Agent:               name,
		Tick:                w.clock.Tick(),
		Time:                w.clock.Label(),
		LocationName:        UnknownLocationName,
		LocationDescription: UnknownLocationDescription,
	}
	locID, ok := w.store.AgentLocation(name)
	if !ok {
		return ctx
	}
	loc, ok := w.store.Location(locID)
	if !ok {
		return ctx
	}

	ctx.LocationID = loc.ID
	ctx.LocationName = loc.Name
	ctx.LocationDescription = loc.Description
	for _, p := range loc.AgentsPresent {
		if p != name {
			ctx.People = append(ctx.People, p)
		}
	}
	for _, id := range loc.Objects {
		if o, ok := w.store.Object(id); ok {
			ctx.Objects = append(ctx.Objects, o.Visible())
		}
	}
	ctx.Connections = loc.ConnectedTo
	ctx.Events = w.queue.Drain(name)
	ctx.Inventory = w.store.AgentInventory(name)
	return ctx
}

func (w *World) emit(t events.EventType, actor, target, summary string, payload any) {
	if w.journal == nil {
		return
	}
	w.journal.Append(events.GameEvent{
		SimTime:  w.clock.Now(),
		Tick:     w.clock.Tick(),
		Type:     t,
		ActorID:  actor,
		TargetID: target,
		Summary:  summary,
		Payload:  payload,
	})
}
