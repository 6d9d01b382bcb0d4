package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/domain/world"
	"github.com/MRamiBalles/agentia/internal/events"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// ---------------------------------------------------------
// SQLiteRunRepository
// ---------------------------------------------------------

// SQLiteRunRepository implements RunRepository for SQLite.
type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(db *sql.DB) *SQLiteRunRepository {
	return &SQLiteRunRepository{db: db}
}

func (r *SQLiteRunRepository) Create(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, started_at, ticks, summary) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, formatTime(run.StartedAt), run.Ticks, run.Summary,
	)
	if err != nil {
		return oops.With("run_id", run.ID).Wrapf(err, "create run")
	}
	return nil
}

func (r *SQLiteRunRepository) Finish(ctx context.Context, runID string, ticks int64, summary string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ticks = ?, summary = ? WHERE id = ?`,
		formatTime(time.Now()), ticks, summary, runID,
	)
	if err != nil {
		return oops.With("run_id", runID).Wrapf(err, "finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return oops.With("run_id", runID).Errorf("finish run: unknown run")
	}
	return nil
}

const runColumns = `id, scenario, started_at, finished_at, ticks, summary`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Scenario, &started, &finished, &run.Ticks, &run.Summary); err != nil {
		return run, err
	}
	t, err := parseTime(started)
	if err != nil {
		return run, err
	}
	run.StartedAt = t
	if finished.Valid {
		f, err := parseTime(finished.String)
		if err != nil {
			return run, err
		}
		run.FinishedAt = &f
	}
	return run, nil
}

func (r *SQLiteRunRepository) Get(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.With("run_id", runID).Wrapf(err, "get run")
	}
	return &run, nil
}

func (r *SQLiteRunRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, oops.Wrapf(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, oops.Wrapf(err, "scan run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------
// SQLiteEventRepository
// ---------------------------------------------------------

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, runID string, event events.GameEvent) error {
	payload := []byte("null")
	if event.Payload != nil {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return oops.With("event_id", event.ID).Wrapf(err, "marshal payload")
		}
		payload = b
	}

	query := `
		INSERT INTO events (id, run_id, tick, sim_time, timestamp, event_type, actor_id, target_id, summary, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, runID, event.Tick, formatTime(event.SimTime), formatTime(event.Timestamp),
		string(event.Type), event.ActorID, event.TargetID, event.Summary, string(payload),
	)
	if err != nil {
		return oops.With("event_id", event.ID, "run_id", runID).Wrapf(err, "append event")
	}
	return nil
}

const eventColumns = `id, tick, sim_time, timestamp, event_type, actor_id, target_id, summary, payload`

func (r *SQLiteEventRepository) getMany(ctx context.Context, where string, args ...any) ([]events.GameEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, oops.Wrapf(err, "query events")
	}
	defer rows.Close()

	var out []events.GameEvent
	for rows.Next() {
		var (
			e                             events.GameEvent
			simTime, stamp, kind, payload string
		)
		if err := rows.Scan(&e.ID, &e.Tick, &simTime, &stamp, &kind, &e.ActorID, &e.TargetID, &e.Summary, &payload); err != nil {
			return nil, oops.Wrapf(err, "scan event")
		}
		e.Type = events.EventType(kind)
		if e.SimTime, err = parseTime(simTime); err != nil {
			return nil, oops.With("event_id", e.ID).Wrapf(err, "parse sim_time")
		}
		if e.Timestamp, err = parseTime(stamp); err != nil {
			return nil, oops.With("event_id", e.ID).Wrapf(err, "parse timestamp")
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, oops.With("event_id", e.ID).Wrapf(err, "decode payload")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetByRun(ctx context.Context, runID string) ([]events.GameEvent, error) {
	return r.getMany(ctx, `run_id = ?`, runID)
}

func (r *SQLiteEventRepository) GetByActor(ctx context.Context, runID, actorID string) ([]events.GameEvent, error) {
	return r.getMany(ctx, `run_id = ? AND actor_id = ?`, runID, actorID)
}

func (r *SQLiteEventRepository) GetByTick(ctx context.Context, runID string, tick int64) ([]events.GameEvent, error) {
	return r.getMany(ctx, `run_id = ? AND tick = ?`, runID, tick)
}

func (r *SQLiteEventRepository) GetByType(ctx context.Context, runID string, eventType events.EventType) ([]events.GameEvent, error) {
	return r.getMany(ctx, `run_id = ? AND event_type = ?`, runID, string(eventType))
}

// ---------------------------------------------------------
// SQLiteSnapshotRepository
// ---------------------------------------------------------

// SQLiteSnapshotRepository implements SnapshotRepository for SQLite.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// SaveTick writes the tick row, its actions and its object snapshot in one transaction.
func (r *SQLiteSnapshotRepository) SaveTick(ctx context.Context, rec events.TickRecord) (err error) {
	errb := oops.With("run_id", rec.RunID, "tick", rec.Tick)

	positions, err := json.Marshal(rec.Positions)
	if err != nil {
		return errb.Wrapf(err, "marshal positions")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errb.Wrapf(err, "begin tick transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ticks (run_id, tick, sim_time, label, duration_ns, positions) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Tick, formatTime(rec.SimTime), rec.Label, int64(rec.Duration), string(positions),
	); err != nil {
		return errb.Wrapf(err, "insert tick")
	}

	for _, a := range rec.Actions {
		var decision sql.NullString
		if a.Decision != nil {
			b, mErr := json.Marshal(a.Decision)
			if mErr != nil {
				err = mErr
				return errb.With("agent", a.Agent).Wrapf(err, "marshal decision")
			}
			decision = sql.NullString{String: string(b), Valid: true}
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO actions (run_id, tick, agent, busy, decision, success, message, locked) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Tick, a.Agent, a.Busy, decision, a.Success, a.Message, a.Locked,
		); err != nil {
			return errb.With("agent", a.Agent).Wrapf(err, "insert action")
		}
	}

	for _, o := range rec.Objects {
		internal, mErr := json.Marshal(o.InternalState)
		if mErr != nil {
			err = mErr
			return errb.With("object_id", o.ID).Wrapf(err, "marshal internal state")
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO object_snapshots (run_id, tick, object_id, name, location_id, state, description, mechanics, internal_state)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Tick, o.ID, o.Name, o.LocationID, o.State, o.Description, o.Mechanics, string(internal),
		); err != nil {
			return errb.With("object_id", o.ID).Wrapf(err, "insert object snapshot")
		}
	}

	if err = tx.Commit(); err != nil {
		return errb.Wrapf(err, "commit tick")
	}
	return nil
}

func (r *SQLiteSnapshotRepository) lastTick(ctx context.Context, runID string) (int64, bool, error) {
	var tick sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(tick) FROM ticks WHERE run_id = ?`, runID).Scan(&tick); err != nil {
		return 0, false, oops.With("run_id", runID).Wrapf(err, "last tick")
	}
	return tick.Int64, tick.Valid, nil
}

// LatestObjects returns nil and -1 when the run has no saved tick.
func (r *SQLiteSnapshotRepository) LatestObjects(ctx context.Context, runID string) ([]world.Object, int64, error) {
	tick, ok, err := r.lastTick(ctx, runID)
	if err != nil || !ok {
		return nil, -1, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT object_id, name, location_id, state, description, mechanics, internal_state
		FROM object_snapshots WHERE run_id = ? AND tick = ? ORDER BY object_id`, runID, tick)
	if err != nil {
		return nil, tick, oops.With("run_id", runID).Wrapf(err, "query object snapshot")
	}
	defer rows.Close()

	var objs []world.Object
	for rows.Next() {
		var (
			o        world.Object
			internal string
		)
		if err := rows.Scan(&o.ID, &o.Name, &o.LocationID, &o.State, &o.Description, &o.Mechanics, &internal); err != nil {
			return nil, tick, oops.Wrapf(err, "scan object snapshot")
		}
		if err := json.Unmarshal([]byte(internal), &o.InternalState); err != nil {
			return nil, tick, oops.With("object_id", o.ID).Wrapf(err, "decode internal state")
		}
		objs = append(objs, o)
	}
	return objs, tick, rows.Err()
}

func (r *SQLiteSnapshotRepository) LatestPositions(ctx context.Context, runID string) (map[string]string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT positions FROM ticks WHERE run_id = ? ORDER BY tick DESC LIMIT 1`, runID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.With("run_id", runID).Wrapf(err, "latest positions")
	}
	positions := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		return nil, oops.With("run_id", runID).Wrapf(err, "decode positions")
	}
	return positions, nil
}

func (r *SQLiteSnapshotRepository) Actions(ctx context.Context, runID, agentName string) ([]StoredAction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tick, agent, busy, decision, success, message, locked
		FROM actions WHERE run_id = ? AND agent = ? ORDER BY tick`, runID, agentName)
	if err != nil {
		return nil, oops.With("run_id", runID, "agent", agentName).Wrapf(err, "query actions")
	}
	defer rows.Close()

	var out []StoredAction
	for rows.Next() {
		var (
			a        StoredAction
			decision sql.NullString
		)
		if err := rows.Scan(&a.Tick, &a.Agent, &a.Busy, &decision, &a.Success, &a.Message, &a.Locked); err != nil {
			return nil, oops.Wrapf(err, "scan action")
		}
		if decision.Valid {
			var d agent.Decision
			if err := json.Unmarshal([]byte(decision.String), &d); err != nil {
				return nil, oops.With("agent", agentName, "tick", a.Tick).Wrapf(err, "decode decision")
			}
			a.Decision = &d
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
