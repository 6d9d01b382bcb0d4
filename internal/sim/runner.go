// Package sim drives the simulation loop.
// Each tick runs the Perception-Cognition-Action cycle for every agent:
// lock check, concurrent decisions, sequential application, observation,
// recording and finally the clock advance.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// Agent is what the runner needs from a simulated agent.
type Agent interface {
	Name() string
	InitialLocation() string
	Decide(ctx context.Context, view engine.AgentContext) agent.Decision
	Observe(res engine.ActionResult)
}

// Options configures a Runner.
type Options struct {
	// Concurrency bounds parallel decisions. Zero or less means one per agent.
	Concurrency int
	// Recorders receive every finished tick (journal, run store).
	Recorders []events.TickRecorder
	// Journal receives runner-level events such as failed decisions.
	Journal *events.EventLog
	Stats   *metrics.Collector
	Logger  *logger.Logger
	RunID   string
	// Pace waits between ticks, for watching a run live. Zero runs flat out.
	Pace time.Duration
}

// Runner owns the per-tick loop over one world and its agents.
type Runner struct {
	world  *engine.World
	agents []Agent
	opts   Options
	stats  *metrics.Collector
	logger *logger.Logger
}

// NewRunner places every agent at its initial location, in order.
func NewRunner(w *engine.World, agents []Agent, opts Options) (*Runner, error) {
	if w == nil {
		panic("sim: NewRunner requires a world")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	stats := opts.Stats
	if stats == nil {
		stats = metrics.NewCollector()
	}

	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.Name()] {
			return nil, oops.Errorf("duplicate agent %q", a.Name())
		}
		seen[a.Name()] = true
		if !w.PlaceAgent(a.Name(), a.InitialLocation()) {
			return nil, oops.Errorf("agent %q: unknown initial location %q", a.Name(), a.InitialLocation())
		}
	}

	return &Runner{
		world:  w,
		agents: agents,
		opts:   opts,
		stats:  stats,
		logger: log.With(zap.String("component", "runner")),
	}, nil
}

// Stats returns the collector the runner records into.
func (r *Runner) Stats() *metrics.Collector { return r.stats }

// Run executes up to ticks ticks and returns the stats summary.
// Cancellation is honored between ticks and aborts pending decisions.
func (r *Runner) Run(ctx context.Context, ticks int) (string, error) {
	r.logger.Info("simulation starting",
		zap.String("run_id", r.opts.RunID),
		zap.Int("ticks", ticks),
		zap.Int("agents", len(r.agents)))

	var pace <-chan time.Time
	if r.opts.Pace > 0 {
		t := time.NewTicker(r.opts.Pace)
		defer t.Stop()
		pace = t.C
	}

	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("simulation interrupted", zap.Int("completed", i))
			return r.stats.Summary(), err
		}
		if _, err := r.Step(ctx); err != nil {
			return r.stats.Summary(), err
		}
		if pace != nil && i < ticks-1 {
			select {
			case <-ctx.Done():
				return r.stats.Summary(), ctx.Err()
			case <-pace:
			}
		}
	}

	r.logger.Info("simulation finished", zap.Int("ticks", ticks))
	return r.stats.Summary(), nil
}

type pending struct {
	agent    Agent
	view     engine.AgentContext
	decision agent.Decision
}

// Step runs exactly one tick and returns its record.
func (r *Runner) Step(ctx context.Context) (events.TickRecord, error) {
	started := time.Now()
	clock := r.world.Clock()
	rec := events.TickRecord{
		RunID:   r.opts.RunID,
		Tick:    clock.Tick(),
		SimTime: clock.Now(),
		Label:   clock.Label(),
	}
	r.logger.Info("tick", zap.Int64("tick", rec.Tick), zap.String("time", rec.Label))

	// 1. PERCEIVE: lock check, then a context snapshot for every free agent.
	var ready []*pending
	busy := make(map[string]events.ActionRecord)
	for _, a := range r.agents {
		switch st := r.world.CheckAgentLock(a.Name()); st.Kind {
		case engine.LockActive:
			busy[a.Name()] = events.ActionRecord{
				Agent:   a.Name(),
				Busy:    true,
				Message: fmt.Sprintf("Busy: %s (until %s).", st.Reason, st.Until.Format(engine.TimeLabelLayout)),
				Locked:  true,
			}
			continue
		case engine.LockExpired:
			a.Observe(engine.ActionResult{Success: true, Message: st.Message})
			r.stats.RecordEvent("lock_expired", fmt.Sprintf("%s: %s", a.Name(), st.Message))
		}
		ready = append(ready, &pending{agent: a, view: r.world.AgentContext(a.Name())})
	}

	// 2. DECIDE: concurrently, each agent writes only its own slot.
	g, gctx := errgroup.WithContext(ctx)
	limit := r.opts.Concurrency
	if limit <= 0 {
		limit = len(ready) + 1
	}
	g.SetLimit(limit)
	for _, p := range ready {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.decision = p.agent.Decide(gctx, p.view)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rec, err
	}
	if err := ctx.Err(); err != nil {
		return rec, err
	}

	// 3. ACT: apply in registration order, then let the agent observe.
	done := make(map[string]events.ActionRecord, len(ready))
	for _, p := range ready {
		name := p.agent.Name()
		if p.decision.IsFallback() {
			r.recordFailedDecision(name, p.decision)
		}
		res := r.world.ProcessAction(ctx, name, p.decision)
		p.agent.Observe(res)

		d := p.decision
		done[name] = events.ActionRecord{
			Agent:    name,
			Decision: &d,
			Success:  res.Success,
			Message:  res.Message,
			Locked:   res.Locked,
		}
	}
	for _, a := range r.agents {
		if ar, ok := done[a.Name()]; ok {
			rec.Actions = append(rec.Actions, ar)
		} else {
			rec.Actions = append(rec.Actions, busy[a.Name()])
		}
	}

	// 4. RECORD: snapshot what the world looks like after this tick's actions.
	rec.Objects = snapshotObjects(r.world.Store())
	rec.Positions = make(map[string]string, len(r.agents))
	for _, a := range r.agents {
		if loc, ok := r.world.Store().AgentLocation(a.Name()); ok {
			rec.Positions[a.Name()] = loc
		}
	}

	r.world.AdvanceTime()
	rec.Duration = time.Since(started)
	r.stats.RecordTick(rec.Duration)

	for _, recorder := range r.opts.Recorders {
		if err := recorder.RecordTick(rec); err != nil {
			r.stats.RecordError()
			r.logger.Error("record tick failed", zap.Int64("tick", rec.Tick), zap.Error(err))
		}
	}
	return rec, nil
}

func (r *Runner) recordFailedDecision(name string, d agent.Decision) {
	r.logger.Warn("decision fell back to wait", zap.String("agent", name), zap.String("reason", d.Reasoning))
	if r.opts.Journal == nil {
		return
	}
	clock := r.world.Clock()
	r.opts.Journal.Append(events.GameEvent{
		SimTime: clock.Now(),
		Tick:    clock.Tick(),
		Type:    events.EventTypeDecisionFailed,
		ActorID: name,
		Summary: d.Reasoning,
	})
}

func snapshotObjects(s *engine.Store) []world.Object {
	objs := s.Objects()
	out := make([]world.Object, 0, len(objs))
	for _, o := range objs {
		out = append(out, *o.Clone())
	}
	return out
}
