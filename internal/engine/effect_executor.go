package engine

import (
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/effect"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// EffectExecutor applies staged effects to the Store.
//
// Application is best effort: a failed effect is logged, counted and
// skipped, and never stops the rest of a batch.
type EffectExecutor struct {
	store   *Store
	clock   *Clock
	journal *events.EventLog
	stats   *metrics.Collector
	logger  *logger.Logger
}

// NewEffectExecutor wires an executor. journal and stats may be nil.
func NewEffectExecutor(store *Store, clock *Clock, journal *events.EventLog, stats *metrics.Collector, log *logger.Logger) *EffectExecutor {
	if store == nil {
		panic("engine: NewEffectExecutor requires a store")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &EffectExecutor{
		store:   store,
		clock:   clock,
		journal: journal,
		stats:   stats,
		logger:  log,
	}
}

// Apply executes one effect on behalf of actor. Returns whether the store accepted it.
func (x *EffectExecutor) Apply(actor string, e effect.Effect) bool {
	var ok bool
	switch v := e.(type) {
	case effect.CreateObject:
		ok = x.store.CreateObject(world.Object{
			ID:            v.ObjectID,
			Name:          v.Name,
			LocationID:    v.LocationID,
			State:         v.State,
			Description:   v.Description,
			Mechanics:     v.Mechanics,
			InternalState: v.InternalState,
		})
	case effect.DestroyObject:
		ok = x.store.DestroyObject(v.ObjectID)
	case effect.TransferObject:
		ok = x.store.TransferObject(v.ObjectID, v.FromID, v.ToID)
	case effect.UpdateObject:
		ok = x.store.UpdateObject(v.ObjectID, ObjectPatch{
			State:         v.State,
			Description:   v.Description,
			InternalState: v.InternalState,
		})
	default:
		x.logger.Error("unknown effect type", zap.String("type", string(e.Kind())))
	}

	desc := effect.Describe(e)
	if x.stats != nil {
		x.stats.RecordEffect(ok)
	}
	eventType := events.EventTypeEffectApplied
	if ok {
		x.logger.Info("effect applied", zap.String("actor", actor), zap.String("effect", desc))
	} else {
		eventType = events.EventTypeEffectFailed
		x.logger.Warn("effect failed", zap.String("actor", actor), zap.String("effect", desc))
	}
	x.record(eventType, actor, e, desc)
	return ok
}

// ApplyAll executes effects in order and returns how many applied.
func (x *EffectExecutor) ApplyAll(actor string, effects []effect.Effect) int {
	applied := 0
	for _, e := range effects {
		if x.Apply(actor, e) {
			applied++
		}
	}
	return applied
}

func (x *EffectExecutor) record(t events.EventType, actor string, e effect.Effect, desc string) {
	ev := events.GameEvent{
		Type:     t,
		ActorID:  actor,
		TargetID: e.Target(),
		Summary:  desc,
	}
	if env, err := effect.Encode(e); err == nil {
		ev.Payload = env
	}
	x.emit(ev)
}

// emit stamps ev with simulation time and appends it to the journal, if any.
func (x *EffectExecutor) emit(ev events.GameEvent) {
	if x.journal == nil {
		return
	}
	if x.clock != nil {
		ev.SimTime = x.clock.Now()
		ev.Tick = x.clock.Tick()
	}
	x.journal.Append(ev)
}
