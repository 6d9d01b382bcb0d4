// Package main is the entry point for a simulation run.
// It only handles flag parsing, dependency injection and shutdown.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/agents"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/infra/journal"
	"github.com/MRamiBalles/agentia/internal/infra/storage"
	"github.com/MRamiBalles/agentia/internal/network"
	"github.com/MRamiBalles/agentia/internal/platform/config"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
	"github.com/MRamiBalles/agentia/internal/sim"
)

type flags struct {
	world     string
	agents    string
	ticks     int
	config    string
	db        string
	journal   string
	listen    string
	statsOut  string
	noLogFile bool
	pace      time.Duration
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.world, "world", "data/world.json", "Scenario file (JSON or YAML)")
	flag.StringVar(&f.world, "w", "data/world.json", "Scenario file (shorthand)")
	flag.StringVar(&f.agents, "agents", "data/agents.json", "Agents file (JSON or YAML)")
	flag.StringVar(&f.agents, "a", "data/agents.json", "Agents file (shorthand)")
	flag.IntVar(&f.ticks, "ticks", 0, "Ticks to run (0 uses the config value)")
	flag.IntVar(&f.ticks, "t", 0, "Ticks to run (shorthand)")
	flag.StringVar(&f.config, "config", "", "YAML config file")
	flag.StringVar(&f.db, "db", "", "SQLite run store path (overrides config)")
	flag.StringVar(&f.journal, "journal", "", "Tick journal directory (overrides config)")
	flag.StringVar(&f.listen, "listen", "", "Observer listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&f.statsOut, "stats-out", "", "Write the stats report as JSON to this path")
	flag.BoolVar(&f.noLogFile, "no-log-file", false, "Log to the console only")
	flag.DurationVar(&f.pace, "pace", 0, "Wall-clock pause between ticks")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "agentia-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	applyFlags(cfg, f)

	appLogger, err := newLogger(cfg, f.noLogFile)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := storage.NewRunID()
	stats := metrics.NewCollector()
	appLogger = appLogger.With(zap.String("run_id", runID))

	start, err := cfg.Start()
	if err != nil {
		return err
	}
	scenario, err := engine.LoadScenario(f.world)
	if err != nil {
		return err
	}
	personas, err := engine.LoadPersonas(f.agents)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg, appLogger)
	if err != nil {
		return err
	}

	var (
		recorders []events.TickRecorder
		persister events.EventPersister
		store     *storage.RunStore
		replayer  network.RunReplayer
	)
	if path := cfg.Persistence.SQLitePath; path != "" {
		appLogger.Info("opening run store", zap.String("path", path))
		db, err := storage.InitSQLite(path, storage.DBOptions{
			MaxOpen: cfg.Persistence.DBMaxOpen,
			MaxIdle: cfg.Persistence.DBMaxIdle,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		store, err = storage.NewRunStore(ctx, db, runID, filepath.Base(f.world))
		if err != nil {
			return err
		}
		persister = store
		recorders = append(recorders, store)
		replayer = storage.NewReconstructor(store.Runs, store.Events, store.Snapshots)
	}

	var tickJournal *journal.TickJournal
	if dir := cfg.Persistence.JournalDir; dir != "" {
		appLogger.Info("writing tick journal", zap.String("dir", dir))
		tickJournal = journal.NewTickJournal(dir, runID, journal.DefaultSegmentTicks)
		recorders = append(recorders, tickJournal)
	}

	eventLog := events.NewEventLog(persister, cfg.Persistence.EventBuffer, appLogger.With(zap.String("component", "events")))

	w, err := engine.NewWorld(engine.Options{
		Start:        start,
		TickDuration: cfg.TickDuration(),
		Provider:     provider,
		Resolver: engine.ResolverOptions{
			MaxTurns:    cfg.Simulation.MaxResolverTurns,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		Journal: eventLog,
		Stats:   stats,
		Logger:  appLogger,
	})
	if err != nil {
		return err
	}
	if err := w.Populate(scenario); err != nil {
		return err
	}

	simAgents := make([]sim.Agent, 0, len(personas))
	for _, p := range personas {
		simAgents = append(simAgents, agents.NewSimAgent(p, agents.Options{
			Provider:      provider,
			TickMinutes:   cfg.Simulation.TickMinutes,
			MaxPlanRounds: cfg.Simulation.MaxPlanRounds,
			HistoryLength: cfg.Simulation.HistoryLength,
			Model:         cfg.LLM.Model,
			Temperature:   cfg.LLM.Temperature,
			TopP:          cfg.LLM.TopP,
			MaxTokens:     cfg.LLM.MaxTokens,
			Stats:         stats,
			Logger:        appLogger,
		}))
	}

	runner, err := sim.NewRunner(w, simAgents, sim.Options{
		Concurrency: cfg.Simulation.DecisionConcurrency,
		Recorders:   recorders,
		Journal:     eventLog,
		Stats:       stats,
		Logger:      appLogger,
		RunID:       runID,
		Pace:        f.pace,
	})
	if err != nil {
		return err
	}

	var srv *http.Server
	if addr := cfg.Network.ListenAddr; addr != "" {
		srv = startObserver(ctx, cfg, addr, eventLog, w, stats, replayer, runID, appLogger)
	}

	summary, runErr := runner.Run(ctx, cfg.Simulation.Ticks)
	if errors.Is(runErr, context.Canceled) {
		appLogger.Warn("run interrupted by signal")
		runErr = nil
	}
	fmt.Println(summary)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("observer shutdown failed", zap.Error(err))
		}
		cancel()
	}

	eventLog.Close()
	if tickJournal != nil {
		if err := tickJournal.Close(); err != nil {
			appLogger.Error("closing tick journal failed", zap.Error(err))
		}
	}
	if store != nil {
		finishCtx, cancel := context.WithTimeout(context.Background(), storage.DefaultWriteTimeout)
		if err := store.Finish(finishCtx, w.Clock().Tick(), summary); err != nil {
			appLogger.Error("finishing run failed", zap.Error(err))
		}
		cancel()
	}
	if cfg.Persistence.StatsOutPath != "" {
		if err := stats.ExportJSON(cfg.Persistence.StatsOutPath); err != nil {
			appLogger.Error("stats export failed", zap.Error(err))
		} else {
			appLogger.Info("stats exported", zap.String("path", cfg.Persistence.StatsOutPath))
		}
	}

	logRecommendations(cfg, stats, len(simAgents), appLogger)
	return runErr
}

func applyFlags(cfg *config.Config, f flags) {
	if f.ticks > 0 {
		cfg.Simulation.Ticks = f.ticks
	}
	if f.db != "" {
		cfg.Persistence.SQLitePath = f.db
	}
	if f.journal != "" {
		cfg.Persistence.JournalDir = f.journal
	}
	if f.listen != "" {
		cfg.Network.ListenAddr = f.listen
	}
	if f.statsOut != "" {
		cfg.Persistence.StatsOutPath = f.statsOut
	}
}

func newLogger(cfg *config.Config, noLogFile bool) (*logger.Logger, error) {
	opts := logger.Options{Level: cfg.Log.Level, Console: true}
	if cfg.Log.File && !noLogFile {
		name := fmt.Sprintf("agentia-%s.log", time.Now().Format("20060102-150405"))
		opts.FilePath = filepath.Join(cfg.Log.Dir, name)
	}
	return logger.New(opts)
}

func startObserver(ctx context.Context, cfg *config.Config, addr string, eventLog *events.EventLog, w *engine.World,
	stats *metrics.Collector, replayer network.RunReplayer, runID string, appLogger *logger.Logger) *http.Server {
	netLogger := appLogger.With(zap.String("component", "observer"))

	hub := network.NewHub(network.HubOptions{
		BroadcastBuffer: cfg.Network.BroadcastBuffer,
		ClientBuffer:    cfg.Network.ClientSendBuffer,
		MaxObservers:    cfg.Network.MaxObservers,
		Stats:           stats,
		Logger:          netLogger,
	})
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, 0)

	handler := network.NewReplayHandler(eventLog, network.ReplayOptions{
		RunID:  runID,
		Runs:   replayer,
		Stats:  stats,
		Clock:  w.Clock(),
		Hub:    hub,
		Logger: netLogger,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		netLogger.Info("observer listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			netLogger.Error("observer server failed", zap.Error(err))
		}
	}()
	return srv
}

func logRecommendations(cfg *config.Config, stats *metrics.Collector, agentCount int, appLogger *logger.Logger) {
	report := stats.Snapshot()
	var timedOut int64
	for _, e := range report.Events {
		if e.Type == engine.EventResolverTimeout {
			timedOut++
		}
	}
	rec := config.Analyze(cfg, config.Observed{
		MaxTickLatencyMS: report.MaxTickLatencyMS,
		APICalls:         report.APICalls,
		Errors:           report.Errors,
		WorldEngineCalls: report.WorldEngineCalls,
		TimedOut:         timedOut,
		Agents:           agentCount,
	})
	for _, note := range rec.Notes {
		appLogger.Info("tuning recommendation", zap.String("note", note))
	}
}
