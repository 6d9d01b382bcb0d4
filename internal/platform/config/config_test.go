package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Minute, cfg.TickDuration())

	start, err := cfg.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), start)

	require.NoError(t, LowResourceConfig().Validate())
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simulation:
  tick_minutes: 30
  ticks: 12
llm:
  provider: scripted
persistence:
  sqlite_path: runs.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Simulation.TickMinutes)
	assert.Equal(t, 12, cfg.Simulation.Ticks)
	assert.Equal(t, 15, cfg.Simulation.MaxResolverTurns, "unset keys keep defaults")
	assert.Equal(t, "runs.db", cfg.Persistence.SQLitePath)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: carrier-pigeon\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MODEL_NAME":               "local-model",
		"OPENAI_BASE_URL":          "http://localhost:11434/v1",
		"AGENTIA_LLM_PROVIDER":     "anthropic",
		"AGENTIA_SQLITE_PATH":      "/tmp/agentia.db",
		"AGENTIA_DAILY_BUDGET_USD": "1.5",
		"AGENTIA_LOG_LEVEL":        "debug",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "/tmp/agentia.db", cfg.Persistence.SQLitePath)
	assert.Equal(t, 1.5, cfg.LLM.DailyBudgetUSD)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tick minutes", func(c *Config) { c.Simulation.TickMinutes = 0 }},
		{"resolver turns", func(c *Config) { c.Simulation.MaxResolverTurns = -1 }},
		{"concurrency", func(c *Config) { c.Simulation.DecisionConcurrency = 0 }},
		{"start time", func(c *Config) { c.Simulation.StartTime = "yesterday" }},
		{"provider", func(c *Config) { c.LLM.Provider = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAnalyze(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulation.DecisionConcurrency = 8
	cfg.Simulation.MaxResolverTurns = 10

	rec := Analyze(cfg, Observed{
		APICalls:         10,
		Errors:           5,
		WorldEngineCalls: 4,
		TimedOut:         2,
		Agents:           100,
	})
	assert.True(t, rec.ReduceConcurrency)
	assert.True(t, rec.RaiseResolverTurns)
	assert.True(t, rec.IncreaseBroadcastBuffer)
	assert.Len(t, rec.Notes, 3)

	ApplyRecommendations(cfg, rec)
	assert.Equal(t, 4, cfg.Simulation.DecisionConcurrency)
	assert.Equal(t, 15, cfg.Simulation.MaxResolverTurns)
	assert.Equal(t, 512, cfg.Network.BroadcastBuffer)

	quiet := Analyze(DefaultConfig(), Observed{Agents: 1})
	assert.False(t, quiet.ReduceConcurrency)
	assert.False(t, quiet.RaiseResolverTurns)
}
