package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

var errNotOpened = errors.New("database not opened")

const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{now: func() time.Time { return time.Now().UTC() }}
}

// NewWithDB wraps an existing connection. The caller is responsible for the
// schema.
func NewWithDB(db *sql.DB) *SQLiteStore {
	s := NewSQLiteStore()
	s.db = db
	return s
}

// Open opens the database at path, creating its directory when needed.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// OpenAndMigrate opens path and brings the schema up to date.
func OpenAndMigrate(ctx context.Context, path string) (*SQLiteStore, error) {
	s := NewSQLiteStore()
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Session snapshot ---

// SaveSnapshot replaces the persisted session. The selected file is not
// persisted and the pending flag is always stored as idle.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if s.db == nil {
		return errNotOpened
	}

	var datasetID sql.NullInt64
	var datasetJSON sql.NullString
	if d := snap.State.Dataset; d != nil {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode dataset: %w", err)
		}
		datasetID = sql.NullInt64{Int64: d.ID, Valid: true}
		datasetJSON = sql.NullString{String: string(data), Valid: true}
	}

	var level, kind, op, text string
	if n := snap.State.Notice; n != nil {
		level, kind, op, text = string(n.Level), string(n.Kind), n.Op, n.Text
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session (id, authenticated, username, notice_level, notice_kind, notice_op, notice_text, dataset_id, dataset_json, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   authenticated = excluded.authenticated,
		   username = excluded.username,
		   notice_level = excluded.notice_level,
		   notice_kind = excluded.notice_kind,
		   notice_op = excluded.notice_op,
		   notice_text = excluded.notice_text,
		   dataset_id = excluded.dataset_id,
		   dataset_json = excluded.dataset_json,
		   saved_at = excluded.saved_at`,
		snap.State.Authenticated, snap.Username, level, kind, op, text, datasetID, datasetJSON, savedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	for i, h := range snap.State.History {
		uploadedAt := ""
		if !h.UploadedAt.IsZero() {
			uploadedAt = h.UploadedAt.Format(timeLayout)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (position, dataset_id, filename, uploaded_at, total_count, avg_flowrate, avg_pressure, avg_temperature)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, h.ID, h.Filename, uploadedAt, h.TotalCount, h.AvgFlowrate, h.AvgPressure, h.AvgTemperature,
		)
		if err != nil {
			return fmt.Errorf("failed to save history entry %d: %w", h.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted session, or nil when none was saved.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var (
		authenticated         bool
		username              string
		level, kind, op, text string
		datasetJSON           sql.NullString
		savedAt               string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT authenticated, username, notice_level, notice_kind, notice_op, notice_text, dataset_json, saved_at
		 FROM session WHERE id = 1`,
	).Scan(&authenticated, &username, &level, &kind, &op, &text, &datasetJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	st := session.NewState()
	st.Authenticated = authenticated
	if text != "" {
		st.Notice = &session.Notice{
			Level: session.NoticeLevel(level),
			Kind:  core.ErrorKind(kind),
			Op:    op,
			Text:  text,
		}
	}
	if datasetJSON.Valid {
		var d core.DatasetDetail
		if err := json.Unmarshal([]byte(datasetJSON.String), &d); err != nil {
			return nil, fmt.Errorf("failed to decode dataset: %w", err)
		}
		st.Dataset = &d
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}
	st.History = history

	snap := &Snapshot{Username: username, State: st}
	if t, err := time.Parse(timeLayout, savedAt); err == nil {
		snap.SavedAt = t
	}
	return snap, nil
}

func (s *SQLiteStore) loadHistory(ctx context.Context) ([]core.DatasetSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dataset_id, filename, uploaded_at, total_count, avg_flowrate, avg_pressure, avg_temperature
		 FROM history ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	history := []core.DatasetSummary{}
	for rows.Next() {
		var h core.DatasetSummary
		var uploadedAt string
		if err := rows.Scan(&h.ID, &h.Filename, &uploadedAt, &h.TotalCount, &h.AvgFlowrate, &h.AvgPressure, &h.AvgTemperature); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if uploadedAt != "" {
			ts, err := core.ParseTimestamp(uploadedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse history timestamp: %w", err)
			}
			h.UploadedAt = ts
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return history, nil
}

// --- Activity log ---

// RecordActivity appends a to the log. A missing id or timestamp is filled in.
func (s *SQLiteStore) RecordActivity(ctx context.Context, a Activity) (Activity, error) {
	if s.db == nil {
		return a, errNotOpened
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	a.At = a.At.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (id, operation, outcome, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Op, a.Outcome, a.Kind, a.Message, a.At.Format(timeLayout),
	)
	if err != nil {
		return a, fmt.Errorf("failed to record activity: %w", err)
	}
	return a, nil
}

// ListActivity returns up to limit entries, newest first. A limit of zero or
// less returns everything.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]Activity, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, outcome, kind, message, created_at
		 FROM activity ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Activity
	for rows.Next() {
		var a Activity
		var at string
		if err := rows.Scan(&a.ID, &a.Op, &a.Outcome, &a.Kind, &a.Message, &at); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if a.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse activity time: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	return out, nil
}

// PruneActivity keeps the newest keep entries and returns how many were
// deleted.
func (s *SQLiteStore) PruneActivity(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	if keep < 0 {
		keep = 0
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activity WHERE rowid NOT IN (
		   SELECT rowid FROM activity ORDER BY created_at DESC, rowid DESC LIMIT ?
		 )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	return res.RowsAffected()
}

// ActivityFromEvent converts an orchestrator event into a log entry.
func ActivityFromEvent(ev session.Event) Activity {
	a := Activity{Op: ev.Op, Outcome: OutcomeOK, Message: ev.Message, At: ev.At}
	if ev.Err != nil {
		a.Outcome = OutcomeError
		a.Kind = string(core.KindOf(ev.Err))
	}
	return a
}
