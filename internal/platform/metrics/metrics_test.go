package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsConcurrently(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordAction(fmt.Sprintf("agent%d", i%2), "move")
				c.RecordAPICall(10, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	r := c.Snapshot()
	assert.Equal(t, int64(800), r.ActionCounts["move"])
	assert.Equal(t, int64(400), c.ActionCount("agent0", "move"))
	assert.Equal(t, int64(800), r.APICalls)
	assert.Equal(t, int64(8000), r.TokensUsed)
}

func TestTickLatencyAndLocks(t *testing.T) {
	c := NewCollector()
	c.RecordTick(2 * time.Millisecond)
	c.RecordTick(6 * time.Millisecond)
	c.RecordLockSet(false)
	c.RecordLockSet(true)
	c.RecordLockExpired()
	c.RecordEffect(true)
	c.RecordEffect(false)

	r := c.Snapshot()
	assert.Equal(t, int64(2), r.TickCount)
	assert.InDelta(t, 4.0, r.AvgTickLatencyMS, 0.001)
	assert.InDelta(t, 6.0, r.MaxTickLatencyMS, 0.001)
	assert.Equal(t, int64(2), r.LocksSet)
	assert.Equal(t, int64(1), r.LocksOverwritten)
	assert.Equal(t, int64(1), r.LocksExpired)
	assert.Equal(t, int64(1), r.EffectsApplied)
	assert.Equal(t, int64(1), r.EffectsFailed)
}

func TestNotableEventsAreBounded(t *testing.T) {
	c := NewCollector()
	c.RecordTick(time.Millisecond)
	for i := 0; i < maxNotable+10; i++ {
		c.RecordEvent("resolver_timeout", fmt.Sprintf("n%d", i))
	}
	notable := c.Notable()
	require.Len(t, notable, maxNotable)
	assert.Equal(t, "n10", notable[0].Details)
	assert.Equal(t, int64(1), notable[0].Tick)

	summary := c.Summary()
	assert.Contains(t, summary, "SIMULATION SUMMARY")
	assert.Contains(t, summary, "resolver_timeout")

	c.Reset()
	assert.Empty(t, c.Notable())
	assert.Equal(t, int64(0), c.Snapshot().TickCount)
}

func TestExportAndHandlers(t *testing.T) {
	c := NewCollector()
	c.RecordAction("Ann", "talk")
	c.RecordWSConnection(1)

	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, c.ExportJSON(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, int64(1), report.AgentActionCounts["Ann"]["talk"])

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"action_counts":{"talk":1}`)

	rec = httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "agentia_ws_connections 1")
	assert.Contains(t, rec.Body.String(), `agentia_effects_total{result="applied"} 0`)

	assert.Error(t, c.ExportJSON(filepath.Join(t.TempDir(), "missing", "stats.json")))
}
