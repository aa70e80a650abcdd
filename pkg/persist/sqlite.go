package persist

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps records in a local SQLite database. Session flushes
// replace the previous row for the same session; standalone inserts
// always append.
type SQLiteStore struct {
	db *sql.DB
}

// StoredRecord is a row of the tracking_records table.
type StoredRecord struct {
	ID int64 `json:"id"`
	Record
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a stats query. Empty fields match everything.
type Filter struct {
	SubjectID string
	ContentID string
}

// Stats aggregates stored records.
type Stats struct {
	TotalSessions      int            `json:"total_sessions"`
	TotalFocusedTime   float64        `json:"total_focused_time"`
	TotalUnfocusedTime float64        `json:"total_unfocused_time"`
	TotalTime          float64        `json:"total_time"`
	FocusRate          float64        `json:"focus_rate"`
	Sessions           []StoredRecord `json:"sessions"`
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent flushes.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tracking_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT UNIQUE,
  user_id TEXT NOT NULL,
  module_id TEXT NOT NULL,
  section_id TEXT,
  focused_time REAL NOT NULL,
  unfocused_time REAL NOT NULL,
  total_time REAL NOT NULL,
  focus_percentage REAL NOT NULL,
  focus_sessions INTEGER NOT NULL,
  unfocus_sessions INTEGER NOT NULL,
  session_type TEXT NOT NULL,
  final INTEGER NOT NULL DEFAULT 0,
  timestamp TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracking_records_subject ON tracking_records (user_id, module_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create tracking_records table: %w", err)
	}
	return nil
}

// Name implements Sink.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save implements Sink. Records carrying a session id are upserted.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if rec.SessionID == "" {
		_, err := s.Insert(ctx, rec)
		return err
	}
	const stmt = `
INSERT INTO tracking_records (session_id, user_id, module_id, section_id, focused_time, unfocused_time, total_time, focus_percentage, focus_sessions, unfocus_sessions, session_type, final, timestamp, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  focused_time=excluded.focused_time,
  unfocused_time=excluded.unfocused_time,
  total_time=excluded.total_time,
  focus_percentage=excluded.focus_percentage,
  focus_sessions=excluded.focus_sessions,
  unfocus_sessions=excluded.unfocus_sessions,
  final=excluded.final,
  timestamp=excluded.timestamp;
`
	_, err := s.db.ExecContext(ctx, stmt, s.args(rec, time.Now())...)
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: fmt.Errorf("upsert record: %w", err)}
	}
	return nil
}

// Insert appends rec as a new row and returns its id.
func (s *SQLiteStore) Insert(ctx context.Context, rec Record) (int64, error) {
	const stmt = `
INSERT INTO tracking_records (session_id, user_id, module_id, section_id, focused_time, unfocused_time, total_time, focus_percentage, focus_sessions, unfocus_sessions, session_type, final, timestamp, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, stmt, s.args(rec, time.Now())...)
	if err != nil {
		return 0, &SinkError{Sink: s.Name(), Err: fmt.Errorf("insert record: %w", err)}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) args(rec Record, created time.Time) []any {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = created
	}
	return []any{
		nullable(rec.SessionID),
		rec.SubjectID,
		rec.ContentID,
		nullable(rec.SubContentID),
		rec.FocusedSeconds,
		rec.UnfocusedSeconds,
		rec.TotalSeconds,
		rec.FocusPercentage,
		rec.FocusSessions,
		rec.UnfocusSessions,
		rec.SessionKind,
		rec.Final,
		ts.UTC().Format(timeLayout),
		created.UTC().Format(timeLayout),
	}
}

// Stats aggregates the records matching f, newest first.
func (s *SQLiteStore) Stats(ctx context.Context, f Filter) (Stats, error) {
	query := `
SELECT id, session_id, user_id, module_id, section_id, focused_time, unfocused_time, total_time, focus_percentage, focus_sessions, unfocus_sessions, session_type, final, timestamp, created_at
FROM tracking_records WHERE 1=1`
	var (
		where  []string
		params []any
	)
	if f.SubjectID != "" {
		where = append(where, "user_id = ?")
		params = append(params, f.SubjectID)
	}
	if f.ContentID != "" {
		where = append(where, "module_id = ?")
		params = append(params, f.ContentID)
	}
	if len(where) > 0 {
		query += " AND " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return Stats{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	stats := Stats{Sessions: []StoredRecord{}}
	for rows.Next() {
		var (
			r                  StoredRecord
			sessionID, section sql.NullString
			final              bool
			timestamp, created string
		)
		if err := rows.Scan(
			&r.ID, &sessionID, &r.SubjectID, &r.ContentID, &section,
			&r.FocusedSeconds, &r.UnfocusedSeconds, &r.TotalSeconds, &r.FocusPercentage,
			&r.FocusSessions, &r.UnfocusSessions, &r.SessionKind, &final, &timestamp, &created,
		); err != nil {
			return Stats{}, fmt.Errorf("scan record: %w", err)
		}
		r.SessionID = sessionID.String
		r.SubContentID = section.String
		r.Final = final
		r.Timestamp, _ = time.Parse(timeLayout, timestamp)
		r.CreatedAt, _ = time.Parse(timeLayout, created)

		stats.TotalSessions++
		stats.TotalFocusedTime += r.FocusedSeconds
		stats.TotalUnfocusedTime += r.UnfocusedSeconds
		stats.TotalTime += r.TotalSeconds
		stats.Sessions = append(stats.Sessions, r)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate records: %w", err)
	}

	if stats.TotalTime > 0 {
		stats.FocusRate = math.Round(stats.TotalFocusedTime/stats.TotalTime*10000) / 100
	}
	return stats, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
