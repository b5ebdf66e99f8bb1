package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/ranking"
	"github.com/okian/toolrank/pkg/metrics"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore persists periods, score states and the event log.
// All methods are safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ PeriodStore = (*SQLiteStore)(nil)
	_ StateStore  = (*SQLiteStore)(nil)
	_ EventLog    = (*SQLiteStore)(nil)
)

// OpenSQLite opens (and migrates) the database at path. File databases use
// WAL; ":memory:" gets its own named shared-cache database on one connection.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path == MemoryPath {
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != MemoryPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		as_of INTEGER NOT NULL,
		dropped TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		period_id TEXT NOT NULL REFERENCES periods(id) ON DELETE CASCADE,
		tool_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (period_id, tool_id),
		UNIQUE (period_id, position)
	);

	CREATE TABLE IF NOT EXISTS audits (
		period_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (period_id, seq)
	);

	CREATE TABLE IF NOT EXISTS score_states (
		tool_id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		tool_id TEXT NOT NULL,
		type TEXT NOT NULL,
		raw_importance REAL NOT NULL,
		ts INTEGER NOT NULL,
		title TEXT
	);

	CREATE TABLE IF NOT EXISTS current_period (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		period_id TEXT NOT NULL REFERENCES periods(id)
	);

	CREATE INDEX IF NOT EXISTS idx_periods_as_of ON periods(as_of);
	CREATE INDEX IF NOT EXISTS idx_entries_tool ON entries(tool_id);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func observe(op string, start time.Time, err error) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordRepositoryError(op)
	}
}

// SavePeriod writes the period, its entries, audit records and score states
// and swaps the current pointer, all in one transaction. An existing period
// id is rejected unless WithReplace is given.
func (s *SQLiteStore) SavePeriod(ctx context.Context, f Finalized, opts ...SaveOption) (err error) {
	start := time.Now()
	defer func() { observe("save_period", start, err) }()

	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	p := f.Period
	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM periods WHERE id = ?`, p.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check period: %w", err)
	}
	if exists > 0 {
		if !o.replace {
			return fmt.Errorf("%w: %s", ErrPeriodExists, p.ID)
		}
		for _, q := range []string{
			`DELETE FROM entries WHERE period_id = ?`,
			`DELETE FROM audits WHERE period_id = ?`,
		} {
			if _, err = tx.ExecContext(ctx, q, p.ID); err != nil {
				return fmt.Errorf("clear period: %w", err)
			}
		}
	}

	dropped, err := json.Marshal(p.Dropped)
	if err != nil {
		return fmt.Errorf("encode dropped: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO periods (id, version, as_of, dropped) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, as_of = excluded.as_of, dropped = excluded.dropped
	`, p.ID, p.Version, p.AsOf.UnixNano(), string(dropped)); err != nil {
		return fmt.Errorf("insert period: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (period_id, tool_id, position, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entries: %w", err)
	}
	defer entryStmt.Close()
	for _, e := range p.Entries {
		payload, mErr := json.Marshal(e)
		if mErr != nil {
			err = fmt.Errorf("encode entry %s: %w", e.ToolID, mErr)
			return err
		}
		if _, err = entryStmt.ExecContext(ctx, p.ID, e.ToolID, e.Position, string(payload)); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ToolID, err)
		}
	}

	for i, a := range f.Audit {
		payload, mErr := json.Marshal(a.Encodable())
		if mErr != nil {
			err = fmt.Errorf("encode audit: %w", mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO audits (period_id, seq, payload) VALUES (?, ?, ?)`, p.ID, i, string(payload)); err != nil {
			return fmt.Errorf("insert audit: %w", err)
		}
	}

	for _, st := range f.States {
		if err = upsertState(ctx, tx, st); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO current_period (slot, period_id) VALUES (1, ?)
		ON CONFLICT(slot) DO UPDATE SET period_id = excluded.period_id
	`, p.ID); err != nil {
		return fmt.Errorf("swap current: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertState(ctx context.Context, x execer, st delta.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", st.ToolID, err)
	}
	if _, err := x.ExecContext(ctx, `
		INSERT INTO score_states (tool_id, version, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(tool_id) DO UPDATE SET version = excluded.version, payload = excluded.payload, updated_at = excluded.updated_at
	`, st.ToolID, st.Baseline.Version, string(payload), st.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("upsert state %s: %w", st.ToolID, err)
	}
	return nil
}

// CurrentPeriod returns the period the current pointer refers to.
func (s *SQLiteStore) CurrentPeriod(ctx context.Context) (p *ranking.Period, err error) {
	start := time.Now()
	defer func() { observe("current_period", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err = s.db.QueryRowContext(ctx, `SELECT period_id FROM current_period WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read current pointer: %w", err)
	}
	return s.loadPeriod(ctx, id)
}

// Period loads one finalized period.
func (s *SQLiteStore) Period(ctx context.Context, id string) (p *ranking.Period, err error) {
	start := time.Now()
	defer func() { observe("period", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadPeriod(ctx, id)
}

func (s *SQLiteStore) loadPeriod(ctx context.Context, id string) (*ranking.Period, error) {
	var (
		p       ranking.Period
		asOf    int64
		dropped string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, version, as_of, dropped FROM periods WHERE id = ?`, id).
		Scan(&p.ID, &p.Version, &asOf, &dropped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: period %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read period: %w", err)
	}
	p.AsOf = time.Unix(0, asOf).UTC()
	var drops []movement.Info
	if err := json.Unmarshal([]byte(dropped), &drops); err != nil {
		return nil, fmt.Errorf("decode dropped: %w", err)
	}
	p.Dropped = drops

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM entries WHERE period_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var e ranking.Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		p.Entries = append(p.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return &p, nil
}

// PeriodIDs lists finalized periods oldest first.
func (s *SQLiteStore) PeriodIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM periods ORDER BY as_of, id`)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan period id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LastKnownPositions returns each tool's position in the most recent period
// before the given as-of that ranked it.
func (s *SQLiteStore) LastKnownPositions(ctx context.Context, before time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := before.UnixNano()
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.tool_id, e.position
		FROM entries e JOIN periods p ON p.id = e.period_id
		WHERE p.as_of < ? AND p.as_of = (
			SELECT MAX(p2.as_of) FROM entries e2 JOIN periods p2 ON p2.id = e2.period_id
			WHERE e2.tool_id = e.tool_id AND p2.as_of < ?
		)
	`, cutoff, cutoff)
	if err != nil {
		return nil, fmt.Errorf("last known positions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			id  string
			pos int
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out[id] = pos
	}
	return out, rows.Err()
}

// Audit returns a period's audit records in stored order.
func (s *SQLiteStore) Audit(ctx context.Context, periodID string) ([]ranking.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM audits WHERE period_id = ? ORDER BY seq`, periodID)
	if err != nil {
		return nil, fmt.Errorf("read audits: %w", err)
	}
	defer rows.Close()
	var out []ranking.Audit
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		var a ranking.Audit
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("decode audit: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ScoreStates loads every tool's baseline and delta.
func (s *SQLiteStore) ScoreStates(ctx context.Context) (map[string]delta.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM score_states`)
	if err != nil {
		return nil, fmt.Errorf("read states: %w", err)
	}
	defer rows.Close()
	out := make(map[string]delta.State)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		var st delta.State
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		out[st.ToolID] = st
	}
	return out, rows.Err()
}

// SaveScoreState upserts one tool's state.
func (s *SQLiteStore) SaveScoreState(ctx context.Context, st delta.State) (err error) {
	start := time.Now()
	defer func() { observe("save_state", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertState(ctx, s.db, st)
}

// AppendEvent stores e, reporting false when its id is already present.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e model.Event) (inserted bool, err error) {
	start := time.Now()
	defer func() { observe("append_event", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (id, tool_id, type, raw_importance, ts, title)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.ToolID, string(e.Type), e.RawImportance, e.Timestamp.UnixNano(), e.Title)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return n > 0, nil
}

// EventsSince returns events at or after since, oldest first.
func (s *SQLiteStore) EventsSince(ctx context.Context, since time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_id, type, raw_importance, ts, COALESCE(title, '')
		FROM events WHERE ts >= ? ORDER BY ts, id
	`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var (
			e  model.Event
			t  string
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.ToolID, &t, &e.RawImportance, &ts, &e.Title); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = model.EventType(t)
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
