// Package engine is the World Engine: the single source of truth for world
// state and the machinery that resolves agent actions against it.
//
// The pieces, leaves first:
//
//   - Graph: undirected location adjacency.
//   - Store: locations, objects and agent positions.
//   - EventQueue: per-agent narrative events awaiting delivery.
//   - LockLedger: time locks carrying deferred effects.
//   - EffectExecutor: applies one effect.Effect to the Store.
//   - Resolver: the bounded tool loop for "interact" actions.
//   - World: the composition root the simulation loop talks to.
//
// ARCHITECTURAL RULE: only World.ProcessAction and World.CheckAgentLock
// mutate state during a run, and the simulation loop calls them from a
// single goroutine. Concurrent readers (context builds, observers) go
// through the Store's read lock.
package engine
