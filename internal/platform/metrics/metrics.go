// Package metrics provides run statistics for the simulation.
//
// A Collector is created by whoever owns the run (usually sim.Runner) and
// handed to the components that report into it. There is no package-level
// instance: two runs in one process keep separate numbers.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// maxNotable bounds the notable-event list kept in memory.
const maxNotable = 500

// NotableEvent is a run-level occurrence worth surfacing in the summary.
type NotableEvent struct {
	Tick    int64  `json:"tick"`
	Type    string `json:"type"`
	Details string `json:"details"`
}

// Collector gathers run statistics. Safe for concurrent use.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64

	// World engine
	WorldEngineCalls int64
	ResolverTurns    int64
	LocksSet         int64
	LocksExpired     int64
	LocksOverwritten int64
	EffectsApplied   int64
	EffectsFailed    int64

	// Reasoning service
	APICalls      int64
	LLMTokensUsed int64
	LLMLatencySum int64

	// Observers
	WSConnectionsActive int64
	WSMessagesOut       int64

	Errors int64

	StartTime time.Time

	mu                sync.RWMutex
	actionCounts      map[string]int64
	agentActionCounts map[string]map[string]int64
	notable           []NotableEvent
}

// NewCollector returns an empty collector whose clock starts now.
func NewCollector() *Collector {
	return &Collector{
		StartTime:         time.Now(),
		actionCounts:      make(map[string]int64),
		agentActionCounts: make(map[string]map[string]int64),
	}
}

// Reset zeroes every counter and restarts the clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range []*int64{
		&c.TickCount, &c.TickLatencySum, &c.TickLatencyMax,
		&c.WorldEngineCalls, &c.ResolverTurns,
		&c.LocksSet, &c.LocksExpired, &c.LocksOverwritten,
		&c.EffectsApplied, &c.EffectsFailed,
		&c.APICalls, &c.LLMTokensUsed, &c.LLMLatencySum,
		&c.WSConnectionsActive, &c.WSMessagesOut, &c.Errors,
	} {
		atomic.StoreInt64(p, 0)
	}
	c.StartTime = time.Now()
	c.actionCounts = make(map[string]int64)
	c.agentActionCounts = make(map[string]map[string]int64)
	c.notable = nil
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	for {
		cur := atomic.LoadInt64(&c.TickLatencyMax)
		if int64(latency) <= cur || atomic.CompareAndSwapInt64(&c.TickLatencyMax, cur, int64(latency)) {
			break
		}
	}
}

// RecordAction counts one applied action for an agent.
func (c *Collector) RecordAction(agent, actionType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actionCounts[actionType]++
	per, ok := c.agentActionCounts[agent]
	if !ok {
		per = make(map[string]int64)
		c.agentActionCounts[agent] = per
	}
	per[actionType]++
}

// RecordWorldEngineCall counts one interaction resolution.
func (c *Collector) RecordWorldEngineCall() {
	atomic.AddInt64(&c.WorldEngineCalls, 1)
}

// RecordResolverTurn counts one collaborator turn inside a resolution.
func (c *Collector) RecordResolverTurn() {
	atomic.AddInt64(&c.ResolverTurns, 1)
}

// RecordLockSet counts a lock registration. overwrote marks a double lock.
func (c *Collector) RecordLockSet(overwrote bool) {
	atomic.AddInt64(&c.LocksSet, 1)
	if overwrote {
		atomic.AddInt64(&c.LocksOverwritten, 1)
	}
}

// RecordLockExpired counts a consumed lock.
func (c *Collector) RecordLockExpired() {
	atomic.AddInt64(&c.LocksExpired, 1)
}

// RecordEffect counts an effect application attempt.
func (c *Collector) RecordEffect(applied bool) {
	if applied {
		atomic.AddInt64(&c.EffectsApplied, 1)
		return
	}
	atomic.AddInt64(&c.EffectsFailed, 1)
}

// RecordAPICall records one reasoning-service request.
func (c *Collector) RecordAPICall(tokens int, latency time.Duration) {
	atomic.AddInt64(&c.APICalls, 1)
	atomic.AddInt64(&c.LLMTokensUsed, int64(tokens))
	atomic.AddInt64(&c.LLMLatencySum, int64(latency))
}

// RecordError counts a recovered failure.
func (c *Collector) RecordError() {
	atomic.AddInt64(&c.Errors, 1)
}

// RecordWSConnection records observer connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records one message pushed to observers.
func (c *Collector) RecordWSMessage() {
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordEvent keeps a notable event, tagged with the current tick count.
func (c *Collector) RecordEvent(eventType, details string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notable = append(c.notable, NotableEvent{
		Tick:    atomic.LoadInt64(&c.TickCount),
		Type:    eventType,
		Details: details,
	})
	if len(c.notable) > maxNotable {
		c.notable = c.notable[len(c.notable)-maxNotable:]
	}
}

// ActionCount returns how many times an agent took an action type.
func (c *Collector) ActionCount(agent, actionType string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agentActionCounts[agent][actionType]
}

// Notable returns a copy of the notable events.
func (c *Collector) Notable() []NotableEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NotableEvent, len(c.notable))
	copy(out, c.notable)
	return out
}

// Report is the serializable form of a collector.
type Report struct {
	StartTime         time.Time                   `json:"start_time"`
	DurationSeconds   float64                     `json:"duration_seconds"`
	TickCount         int64                       `json:"tick_count"`
	AvgTickLatencyMS  float64                     `json:"avg_tick_latency_ms"`
	MaxTickLatencyMS  float64                     `json:"max_tick_latency_ms"`
	APICalls          int64                       `json:"api_calls"`
	TokensUsed        int64                       `json:"tokens_used"`
	WorldEngineCalls  int64                       `json:"world_engine_calls"`
	ResolverTurns     int64                       `json:"resolver_turns"`
	LocksSet          int64                       `json:"locks_set"`
	LocksExpired      int64                       `json:"locks_expired"`
	LocksOverwritten  int64                       `json:"locks_overwritten"`
	EffectsApplied    int64                       `json:"effects_applied"`
	EffectsFailed     int64                       `json:"effects_failed"`
	Errors            int64                       `json:"errors"`
	ActionCounts      map[string]int64            `json:"action_counts"`
	AgentActionCounts map[string]map[string]int64 `json:"agent_action_counts"`
	Events            []NotableEvent              `json:"events"`
}

// Snapshot returns the current numbers.
func (c *Collector) Snapshot() Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6
	}

	actions := make(map[string]int64, len(c.actionCounts))
	for k, v := range c.actionCounts {
		actions[k] = v
	}
	perAgent := make(map[string]map[string]int64, len(c.agentActionCounts))
	for agent, counts := range c.agentActionCounts {
		m := make(map[string]int64, len(counts))
		for k, v := range counts {
			m[k] = v
		}
		perAgent[agent] = m
	}
	events := make([]NotableEvent, len(c.notable))
	copy(events, c.notable)

	return Report{
		StartTime:         c.StartTime,
		DurationSeconds:   time.Since(c.StartTime).Seconds(),
		TickCount:         tickCount,
		AvgTickLatencyMS:  tickAvg,
		MaxTickLatencyMS:  float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
		APICalls:          atomic.LoadInt64(&c.APICalls),
		TokensUsed:        atomic.LoadInt64(&c.LLMTokensUsed),
		WorldEngineCalls:  atomic.LoadInt64(&c.WorldEngineCalls),
		ResolverTurns:     atomic.LoadInt64(&c.ResolverTurns),
		LocksSet:          atomic.LoadInt64(&c.LocksSet),
		LocksExpired:      atomic.LoadInt64(&c.LocksExpired),
		LocksOverwritten:  atomic.LoadInt64(&c.LocksOverwritten),
		EffectsApplied:    atomic.LoadInt64(&c.EffectsApplied),
		EffectsFailed:     atomic.LoadInt64(&c.EffectsFailed),
		Errors:            atomic.LoadInt64(&c.Errors),
		ActionCounts:      actions,
		AgentActionCounts: perAgent,
		Events:            events,
	}
}

// Summary renders the end-of-run report.
func (c *Collector) Summary() string {
	r := c.Snapshot()
	rule := strings.Repeat("=", 60)

	var sb strings.Builder
	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("                  SIMULATION SUMMARY\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "  Duration:           %.1f seconds\n", r.DurationSeconds)
	fmt.Fprintf(&sb, "  Total Ticks:        %d\n", r.TickCount)
	fmt.Fprintf(&sb, "  API Calls:          %d\n", r.APICalls)
	fmt.Fprintf(&sb, "  WorldEngine Calls:  %d\n", r.WorldEngineCalls)
	fmt.Fprintf(&sb, "  Locks (set/expired/overwritten): %d/%d/%d\n", r.LocksSet, r.LocksExpired, r.LocksOverwritten)
	fmt.Fprintf(&sb, "  Errors:             %d\n", r.Errors)

	sb.WriteString("\n  --- Action Distribution ---\n")
	for _, action := range sortedKeys(r.ActionCounts) {
		fmt.Fprintf(&sb, "    %-12s: %d\n", action, r.ActionCounts[action])
	}

	if len(r.AgentActionCounts) > 0 {
		sb.WriteString("\n  --- Per-Agent Actions ---\n")
		agents := make([]string, 0, len(r.AgentActionCounts))
		for a := range r.AgentActionCounts {
			agents = append(agents, a)
		}
		sort.Strings(agents)
		for _, agent := range agents {
			counts := r.AgentActionCounts[agent]
			parts := make([]string, 0, len(counts))
			for _, action := range sortedKeys(counts) {
				parts = append(parts, fmt.Sprintf("%s(%d)", action, counts[action]))
			}
			fmt.Fprintf(&sb, "    %-12s: %s\n", agent, strings.Join(parts, ", "))
		}
	}

	if len(r.Events) > 0 {
		sb.WriteString("\n  --- Notable Events ---\n")
		events := r.Events
		if len(events) > 10 {
			events = events[len(events)-10:]
		}
		for _, e := range events {
			details := e.Details
			if len(details) > 50 {
				details = details[:50]
			}
			fmt.Fprintf(&sb, "    [Tick %d] %s: %s\n", e.Tick, e.Type, details)
		}
	}

	sb.WriteString(rule + "\n")
	return sb.String()
}

// ExportJSON writes the report to a file.
func (c *Collector) ExportJSON(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return oops.Wrapf(err, "marshal stats")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return oops.Wrapf(err, "write stats %s", path)
	}
	return nil
}

// Handler returns an HTTP handler serving the JSON report.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("agentia_tick_count", "Total tick cycles", atomic.LoadInt64(&c.TickCount))
		fmt.Fprintf(w, "# HELP agentia_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE agentia_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "agentia_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter("agentia_world_engine_calls", "Interaction resolutions", atomic.LoadInt64(&c.WorldEngineCalls))
		counter("agentia_resolver_turns", "Collaborator turns across resolutions", atomic.LoadInt64(&c.ResolverTurns))
		counter("agentia_locks_set", "Agent locks registered", atomic.LoadInt64(&c.LocksSet))
		counter("agentia_locks_overwritten", "Locks replaced while still active", atomic.LoadInt64(&c.LocksOverwritten))

		fmt.Fprintf(w, "# HELP agentia_effects_total Effect applications\n")
		fmt.Fprintf(w, "# TYPE agentia_effects_total counter\n")
		fmt.Fprintf(w, "agentia_effects_total{result=\"applied\"} %d\n", atomic.LoadInt64(&c.EffectsApplied))
		fmt.Fprintf(w, "agentia_effects_total{result=\"failed\"} %d\n\n", atomic.LoadInt64(&c.EffectsFailed))

		counter("agentia_api_calls", "Reasoning service requests", atomic.LoadInt64(&c.APICalls))
		counter("agentia_tokens_used", "Total tokens consumed", atomic.LoadInt64(&c.LLMTokensUsed))
		counter("agentia_errors", "Recovered failures", atomic.LoadInt64(&c.Errors))

		fmt.Fprintf(w, "# HELP agentia_ws_connections Active observer connections\n")
		fmt.Fprintf(w, "# TYPE agentia_ws_connections gauge\n")
		fmt.Fprintf(w, "agentia_ws_connections %d\n", atomic.LoadInt64(&c.WSConnectionsActive))
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
