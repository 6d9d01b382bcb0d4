package engine

import (
	"sync"
)

// EventQueue holds narrative events waiting for each agent's next context build.
type EventQueue struct {
	mu      sync.Mutex
	pending map[string][]string
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{pending: make(map[string][]string)}
}

// Push queues one event for an agent.
func (q *EventQueue) Push(agent, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[agent] = append(q.pending[agent], msg)
}

// Broadcast queues msg for every recipient except exclude.
// Returns the agents that received it.
func (q *EventQueue) Broadcast(recipients []string, msg, exclude string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var delivered []string
	for _, name := range recipients {
		if name == exclude {
			continue
		}
		q.pending[name] = append(q.pending[name], msg)
		delivered = append(delivered, name)
	}
	return delivered
}

// Drain returns every queued event for an agent in arrival order and clears them.
func (q *EventQueue) Drain(agent string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.pending[agent]
	delete(q.pending, agent)
	return events
}

// Pending reports how many events are queued for an agent.
func (q *EventQueue) Pending(agent string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[agent])
}
