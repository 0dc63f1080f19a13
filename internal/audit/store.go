package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Recorder receives finished entries.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// Store persists audit entries to sqlite.
type Store struct {
	db   *sql.DB
	path string
}

var _ Recorder = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("audit: empty database path")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		dsn = path + "?_journal=WAL&_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_started ON tool_calls(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_request ON tool_calls(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves one entry.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, request_id, tool, status, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.RequestID, e.Tool, string(e.Status), e.ErrorMessage, e.StartedAt.UTC(), e.DurationMs)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// QueryFilter narrows Recent.
type QueryFilter struct {
	Tool      string
	Status    Status
	RequestID string
	Limit     int
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var conditions []string
	var args []any

	if filter.Tool != "" {
		conditions = append(conditions, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, filter.RequestID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, request_id, tool, status, error_message, started_at, duration_ms FROM tool_calls`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Tool, &status, &errMsg, &e.StartedAt, &e.DurationMs); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ToolStats aggregates the calls of one tool.
type ToolStats struct {
	Tool          string
	Total         int
	Errors        int
	AvgDurationMs float64
}

// Stats summarizes the whole trail.
type Stats struct {
	Total         int
	Success       int
	Errors        int
	AvgDurationMs float64
	MaxDurationMs int64
	ByTool        []ToolStats
}

// Stats aggregates every recorded call, busiest tools first.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(MAX(duration_ms), 0)
		FROM tool_calls
	`, string(StatusSuccess)).Scan(&st.Total, &st.Success, &st.AvgDurationMs, &st.MaxDurationMs)
	if err != nil {
		return nil, fmt.Errorf("query audit stats: %w", err)
	}
	st.Errors = st.Total - st.Success

	rows, err := s.db.QueryContext(ctx, `
		SELECT tool, COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM tool_calls
		GROUP BY tool
		ORDER BY COUNT(*) DESC, tool
	`, string(StatusError))
	if err != nil {
		return nil, fmt.Errorf("query tool stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts ToolStats
		if err := rows.Scan(&ts.Tool, &ts.Total, &ts.Errors, &ts.AvgDurationMs); err != nil {
			return nil, err
		}
		st.ByTool = append(st.ByTool, ts)
	}
	return st, rows.Err()
}
