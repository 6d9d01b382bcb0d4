// Package network - replay.go
// Replay endpoint: JSON export of the run's event history.
//
// The live log answers filtered queries; with a run store configured,
// ?run=<id> serves a reconstructed recap of any stored run instead.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/agentia/internal/events"
	"github.com/MRamiBalles/agentia/internal/infra/storage"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
	"github.com/MRamiBalles/agentia/internal/platform/metrics"
)

// RunReplayer rebuilds a stored run. storage.Reconstructor implements it.
type RunReplayer interface {
	Replay(ctx context.Context, runID string) (*storage.RunReplay, error)
}

// TickSource reports the current simulation tick. engine.Clock implements it.
type TickSource interface {
	Tick() int64
}

// ReplayOptions wires the optional collaborators of a ReplayHandler.
type ReplayOptions struct {
	RunID  string
	Runs   RunReplayer
	Stats  *metrics.Collector
	Clock  TickSource
	Hub    *Hub
	Logger *logger.Logger
}

// ReplayHandler provides the replay, stats and health API.
type ReplayHandler struct {
	eventLog *events.EventLog
	opts     ReplayOptions
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(el *events.EventLog, opts ReplayOptions) *ReplayHandler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &ReplayHandler{
		eventLog: el,
		opts:     opts,
		logger:   log,
	}
}

// ReplayResponse is the API response for a live replay.
type ReplayResponse struct {
	RunID       string             `json:"run_id,omitempty"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.GameEvent `json:"events"`
}

// HandleReplay returns the event history, filtered.
// GET /api/replay?agent=Ann&type=MOVE&tick=3&since=120
// GET /api/replay?run=<uuid>
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if runID := q.Get("run"); runID != "" {
		rh.handleStoredRun(w, r, runID)
		return
	}

	filter := ParseFilter(q)
	if s := q.Get("tick"); s != "" && filter.Tick == nil {
		rh.jsonError(w, "Invalid tick", http.StatusBadRequest)
		return
	}
	since := 0
	if s := q.Get("since"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			rh.jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	replayEvents := []events.GameEvent{}
	for _, e := range rh.eventLog.Since(since) {
		if filter.Match(e) {
			replayEvents = append(replayEvents, e)
		}
	}

	response := ReplayResponse{
		RunID:       rh.opts.RunID,
		TotalEvents: len(replayEvents),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replayEvents,
	}
	if desc := filter.String(); desc != "all" {
		response.FilteredBy = desc
	}

	rh.logger.Event("REPLAY", "OBSERVER", fmt.Sprintf("filter=%s events=%d", filter, len(replayEvents)))
	rh.writeJSON(w, response)
}

func (rh *ReplayHandler) handleStoredRun(w http.ResponseWriter, r *http.Request, runID string) {
	if rh.opts.Runs == nil {
		rh.jsonError(w, "Run store not configured", http.StatusNotImplemented)
		return
	}
	replay, err := rh.opts.Runs.Replay(r.Context(), runID)
	if err != nil {
		rh.logger.Error(fmt.Sprintf("failed to replay run %s: %v", runID, err))
		rh.jsonError(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	if replay == nil {
		rh.jsonError(w, "Run not found", http.StatusNotFound)
		return
	}
	rh.writeJSON(w, replay)
}

// HandleEventDetail returns one event by id.
// GET /api/event?event_id=XXX
func (rh *ReplayHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		rh.jsonError(w, "Missing event_id", http.StatusBadRequest)
		return
	}

	found := rh.eventLog.Filter(func(e events.GameEvent) bool { return e.ID == eventID })
	if len(found) == 0 {
		rh.jsonError(w, "Event not found", http.StatusNotFound)
		return
	}
	rh.writeJSON(w, found[0])
}

// HandleHealth reports liveness with the current tick and event count.
// GET /health
func (rh *ReplayHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"events": rh.eventLog.Len(),
	}
	if rh.opts.RunID != "" {
		body["run_id"] = rh.opts.RunID
	}
	if rh.opts.Clock != nil {
		body["tick"] = rh.opts.Clock.Tick()
	}
	if rh.opts.Hub != nil {
		body["observers"] = rh.opts.Hub.ClientCount()
	}
	rh.writeJSON(w, body)
}

// RegisterRoutes sets up the observer API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/replay", rh.HandleReplay)
	mux.HandleFunc("/api/event", rh.HandleEventDetail)
	mux.HandleFunc("/health", rh.HandleHealth)
	if rh.opts.Stats != nil {
		mux.HandleFunc("/api/stats", rh.opts.Stats.Handler())
		mux.HandleFunc("/metrics", rh.opts.Stats.PrometheusHandler())
	}
	if rh.opts.Hub != nil {
		mux.HandleFunc("/ws", rh.opts.Hub.ServeWS)
	}
}

func (rh *ReplayHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rh.logger.Warn(fmt.Sprintf("failed to write response: %v", err))
	}
}

// jsonError sends an error response.
func (rh *ReplayHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
