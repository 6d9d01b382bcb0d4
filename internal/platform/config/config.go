// Package config holds tunable parameters for a simulation run.
// Values come from defaults, then an optional YAML file, then the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// StartLayout is the format of Simulation.StartTime.
const StartLayout = "2006-01-02 15:04"

// Config is the root of the run configuration.
type Config struct {
	Simulation  SimulationConfig  `yaml:"simulation"`
	LLM         LLMConfig         `yaml:"llm"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Network     NetworkConfig     `yaml:"network"`
	Log         LogConfig         `yaml:"log"`
}

// SimulationConfig controls the clock and the per-tick scheduler.
type SimulationConfig struct {
	TickMinutes         int    `yaml:"tick_minutes"`
	StartTime           string `yaml:"start_time"`
	Ticks               int    `yaml:"ticks"`
	MaxResolverTurns    int    `yaml:"max_resolver_turns"`
	DecisionConcurrency int    `yaml:"decision_concurrency"`
	MaxPlanRounds       int    `yaml:"max_plan_rounds"`
	HistoryLength       int    `yaml:"history_length"`
}

// LLMConfig selects and tunes the reasoning provider.
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // openai, anthropic, scripted
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	MaxTokens      int     `yaml:"max_tokens"`
	DailyBudgetUSD float64 `yaml:"daily_budget_usd"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// PersistenceConfig points at optional on-disk outputs. Empty disables.
type PersistenceConfig struct {
	SQLitePath   string `yaml:"sqlite_path"`
	JournalDir   string `yaml:"journal_dir"`
	EventBuffer  int    `yaml:"event_buffer"`
	DBMaxOpen    int    `yaml:"db_max_open"`
	DBMaxIdle    int    `yaml:"db_max_idle"`
	StatsOutPath string `yaml:"stats_out"`
}

// NetworkConfig controls the observer endpoint.
type NetworkConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	BroadcastBuffer  int    `yaml:"broadcast_buffer"`
	ClientSendBuffer int    `yaml:"client_send_buffer"`
	MaxObservers     int    `yaml:"max_observers"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	File  bool   `yaml:"file"`
}

// DefaultConfig returns the settings a run uses when nothing is configured.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		Simulation: SimulationConfig{
			TickMinutes:         10,
			StartTime:           "2024-01-01 08:00",
			Ticks:               5,
			MaxResolverTurns:    15,
			DecisionConcurrency: numCPU * 2,
			MaxPlanRounds:       3,
			HistoryLength:       20,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "mimo-v2-flash",
			Temperature:    0.3,
			TopP:           0.95,
			MaxTokens:      1024,
			DailyBudgetUSD: 5.0,
			TimeoutSeconds: 60,
		},
		Persistence: PersistenceConfig{
			EventBuffer: 1024,
			DBMaxOpen:   1,
			DBMaxIdle:   1,
		},
		Network: NetworkConfig{
			BroadcastBuffer:  256,
			ClientSendBuffer: 64,
			MaxObservers:     200,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  true,
		},
	}
}

// LowResourceConfig returns minimal settings for local development.
func LowResourceConfig() *Config {
	cfg := DefaultConfig()
	cfg.Simulation.DecisionConcurrency = 2
	cfg.Persistence.EventBuffer = 64
	cfg.Network.BroadcastBuffer = 16
	cfg.Network.ClientSendBuffer = 8
	cfg.Network.MaxObservers = 20
	return cfg
}

// Load reads defaults, then path (when non-empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, oops.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("MODEL_NAME"); ok && v != "" {
		c.LLM.Model = v
	}
	if v, ok := lookup("OPENAI_BASE_URL"); ok && v != "" {
		c.LLM.BaseURL = v
	}
	if v, ok := lookup("AGENTIA_LLM_PROVIDER"); ok && v != "" {
		c.LLM.Provider = v
	}
	if v, ok := lookup("AGENTIA_SQLITE_PATH"); ok {
		c.Persistence.SQLitePath = v
	}
	if v, ok := lookup("AGENTIA_LISTEN_ADDR"); ok {
		c.Network.ListenAddr = v
	}
	if v, ok := lookup("AGENTIA_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("AGENTIA_DAILY_BUDGET_USD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LLM.DailyBudgetUSD = f
		}
	}
}

// Validate rejects settings the runner cannot work with.
func (c *Config) Validate() error {
	if c.Simulation.TickMinutes <= 0 {
		return oops.Errorf("simulation.tick_minutes must be positive, got %d", c.Simulation.TickMinutes)
	}
	if c.Simulation.MaxResolverTurns <= 0 {
		return oops.Errorf("simulation.max_resolver_turns must be positive, got %d", c.Simulation.MaxResolverTurns)
	}
	if c.Simulation.DecisionConcurrency <= 0 {
		return oops.Errorf("simulation.decision_concurrency must be positive, got %d", c.Simulation.DecisionConcurrency)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "scripted":
	default:
		return oops.Errorf("llm.provider %q is not one of openai, anthropic, scripted", c.LLM.Provider)
	}
	return nil
}

// Start parses Simulation.StartTime.
func (c *Config) Start() (time.Time, error) {
	t, err := time.Parse(StartLayout, c.Simulation.StartTime)
	if err != nil {
		return time.Time{}, oops.Wrapf(err, "simulation.start_time %q", c.Simulation.StartTime)
	}
	return t, nil
}

// TickDuration is the simulated time one tick represents.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.Simulation.TickMinutes) * time.Minute
}

// Recommendations provides suggestions based on observed run metrics.
type Recommendations struct {
	IncreaseBroadcastBuffer bool
	ReduceConcurrency       bool
	RaiseResolverTurns      bool
	Notes                   []string
}

// Observed is the subset of run metrics Analyze looks at.
type Observed struct {
	MaxTickLatencyMS float64
	APICalls         int64
	Errors           int64
	WorldEngineCalls int64
	TimedOut         int64
	Agents           int
}

// Analyze examines run metrics and returns tuning recommendations.
func Analyze(c *Config, obs Observed) *Recommendations {
	rec := &Recommendations{Notes: make([]string, 0)}

	if obs.APICalls > 0 && float64(obs.Errors)/float64(obs.APICalls) > 0.2 {
		rec.ReduceConcurrency = true
		rec.Notes = append(rec.Notes, "More than 20% of reasoning calls failed - lower decision concurrency")
	}
	if obs.WorldEngineCalls > 0 && obs.TimedOut*4 > obs.WorldEngineCalls {
		rec.RaiseResolverTurns = true
		rec.Notes = append(rec.Notes, "Over a quarter of interactions timed out - raise max resolver turns")
	}
	if obs.Agents > c.Network.BroadcastBuffer/4 {
		rec.IncreaseBroadcastBuffer = true
		rec.Notes = append(rec.Notes, "Agent count is high relative to the broadcast buffer")
	}
	if obs.Agents > 0 && c.Simulation.DecisionConcurrency > obs.Agents {
		rec.Notes = append(rec.Notes, "Decision concurrency exceeds agent count - extra slots are idle")
	}
	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(c *Config, rec *Recommendations) *Config {
	if rec.IncreaseBroadcastBuffer {
		c.Network.BroadcastBuffer *= 2
		c.Network.ClientSendBuffer *= 2
	}
	if rec.ReduceConcurrency && c.Simulation.DecisionConcurrency > 1 {
		c.Simulation.DecisionConcurrency /= 2
	}
	if rec.RaiseResolverTurns {
		c.Simulation.MaxResolverTurns = int(float64(c.Simulation.MaxResolverTurns) * 1.5)
	}
	return c
}
