package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
)

func record(tick int64) events.TickRecord {
	d := agent.Decision{Reasoning: "go", Action: agent.Move{LocationID: "room_b"}}
	return events.TickRecord{
		RunID:   "run1",
		Tick:    tick,
		SimTime: time.Date(2024, 1, 1, 8, int(tick)*10, 0, 0, time.UTC),
		Label:   "Monday",
		Actions: []events.ActionRecord{{Agent: "Ann", Decision: &d, Success: true, Message: "Successfully moved to room_b."}},
		Objects: []world.Object{{ID: "lamp", Name: "Lamp", LocationID: "room_a", State: "off",
			InternalState: map[string]any{"bulb": "ok"}}},
		Positions: map[string]string{"Ann": "room_b"},
	}
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewTickJournal(dir, "run1", 2)
	for i := range int64(5) {
		require.NoError(t, j.RecordTick(record(i)))
	}
	require.NoError(t, j.Close())

	paths, err := Segments(dir, "run1")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, "ticks-run1-0001.jsonl.zst", filepath.Base(paths[0]))

	var got []events.TickRecord
	require.NoError(t, ReadDir(dir, "", func(r events.TickRecord) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, int64(i), r.Tick)
	}
	require.NotNil(t, got[0].Actions[0].Decision)
	assert.Equal(t, agent.Move{LocationID: "room_b"}, got[0].Actions[0].Decision.Action)
	assert.Equal(t, "ok", got[0].Objects[0].InternalState["bulb"])
	assert.Equal(t, "room_b", got[4].Positions["Ann"])
}

func TestReadDirStopsEarly(t *testing.T) {
	dir := t.TempDir()
	j := NewTickJournal(dir, "run1", 1)
	for i := range int64(3) {
		require.NoError(t, j.RecordTick(record(i)))
	}
	require.NoError(t, j.Close())

	n := 0
	require.NoError(t, ReadDir(dir, "run1", func(events.TickRecord) error {
		n++
		if n == 2 {
			return ErrStop
		}
		return nil
	}))
	assert.Equal(t, 2, n)
}

func TestSegmentsFiltersRun(t *testing.T) {
	dir := t.TempDir()
	for _, run := range []string{"a", "b"} {
		j := NewTickJournal(dir, run, 0)
		require.NoError(t, j.RecordTick(record(0)))
		require.NoError(t, j.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	all, err := Segments(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := Segments(dir, "b")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "ticks-b-0001.jsonl.zst", filepath.Base(only[0]))
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks-x-0001.jsonl.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o644))
	assert.Error(t, ReadFile(path, func(events.TickRecord) error { return nil }))
}
