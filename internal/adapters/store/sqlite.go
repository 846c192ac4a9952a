// Package store persists tasks and chat messages in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

//go:embed migrations/002_parent_index.sql
var migrationV2 string

// SQLiteStore implements core.TaskStore and core.ChatStore.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB // write connection
	readDB *sql.DB
	mu     sync.RWMutex

	maxRetries    int
	baseRetryWait time.Duration
}

var (
	_ core.TaskStore = (*SQLiteStore)(nil)
	_ core.ChatStore = (*SQLiteStore)(nil)
)

// Option configures the store.
type Option func(*SQLiteStore)

// WithMaxRetries sets how often a busy write is retried.
func WithMaxRetries(n int) Option {
	return func(s *SQLiteStore) { s.maxRetries = n }
}

// WithBaseRetryWait sets the first backoff of a busy write.
func WithBaseRetryWait(d time.Duration) Option {
	return func(s *SQLiteStore) { s.baseRetryWait = d }
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath:        dbPath,
		maxRetries:    5,
		baseRetryWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.dbPath }

// Close closes both connections.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.readDB.Close(), s.db.Close())
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	for i, migration := range []string{migrationV1, migrationV2} {
		version := i + 1
		if version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration v%d: %w", version, err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}
	return nil
}

// splitStatements splits a script on semicolons and drops comment lines.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}

// retryWrite runs fn, backing off while SQLite reports the database busy.
func (s *SQLiteStore) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.baseRetryWait * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, s.maxRetries, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

const taskColumns = `id, user_id, date, title, description, estimated_minutes, deadline, priority,
	quadrant, completed, parent_id, tags, structured_context, created_at, updated_at`

// CreateTask implements core.TaskStore.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *core.Task) error {
	args, err := taskArgs(task)
	if err != nil {
		return err
	}
	return s.retryWrite(ctx, "CreateTask", func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.ErrValidation("DUPLICATE_TASK", "task "+task.ID+" already exists")
		}
		return err
	})
}

// UpdateTask implements core.TaskStore.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *core.Task) error {
	args, err := taskArgs(task)
	if err != nil {
		return err
	}
	return s.retryWrite(ctx, "UpdateTask", func() error {
		res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
			user_id = ?, date = ?, title = ?, description = ?, estimated_minutes = ?, deadline = ?,
			priority = ?, quadrant = ?, completed = ?, parent_id = ?, tags = ?, structured_context = ?,
			created_at = ?, updated_at = ?
			WHERE id = ?`, append(args[1:], task.ID)...)
		if err != nil {
			return err
		}
		return requireRow(res, "task", task.ID)
	})
}

// DeleteTask implements core.TaskStore.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	return s.retryWrite(ctx, "DeleteTask", func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireRow(res, "task", id)
	})
}

// GetTask implements core.TaskStore.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.readDB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	return task, nil
}

// ListTasks implements core.TaskStore. Tasks come back in creation order.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID string, date time.Time) ([]*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readDB.QueryContext(ctx, "SELECT "+taskColumns+` FROM tasks
		WHERE user_id = ? AND date = ? ORDER BY created_at, id`, userID, core.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// AppendMessage implements core.ChatStore.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID string, date time.Time, msg core.ChatMessage) error {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("encoding message content: %w", err)
	}
	return s.retryWrite(ctx, "AppendMessage", func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO chat_messages (id, user_id, date, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ID, userID, core.DateKey(date), string(msg.Role), string(content), formatTime(msg.CreatedAt))
		return err
	})
}

// ListMessages implements core.ChatStore.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string, date time.Time) ([]core.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.readDB.QueryContext(ctx, `SELECT id, role, content, created_at FROM chat_messages
		WHERE user_id = ? AND date = ? ORDER BY seq`, userID, core.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.ChatMessage
	for rows.Next() {
		var msg core.ChatMessage
		var role, content, createdAt string
		if err := rows.Scan(&msg.ID, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = core.Role(role)
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", msg.ID, err)
		}
		msg.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ClearMessages implements core.ChatStore.
func (s *SQLiteStore) ClearMessages(ctx context.Context, userID string, date time.Time) error {
	return s.retryWrite(ctx, "ClearMessages", func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE user_id = ? AND date = ?",
			userID, core.DateKey(date))
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*core.Task, error) {
	var t core.Task
	var deadline, structured sql.NullString
	var priority, quadrant, tags, createdAt, updatedAt string
	var completed int

	if err := row.Scan(&t.ID, &t.UserID, &t.Date, &t.Title, &t.Description, &t.EstimatedMinutes,
		&deadline, &priority, &quadrant, &completed, &t.ParentID, &tags, &structured,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Priority = core.Priority(priority)
	t.Quadrant = core.Quadrant(quadrant)
	t.Completed = completed != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	if deadline.Valid && deadline.String != "" {
		d := parseTime(deadline.String)
		t.Deadline = &d
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if structured.Valid && structured.String != "" {
		t.StructuredContext = &core.StructuredContext{}
		if err := json.Unmarshal([]byte(structured.String), t.StructuredContext); err != nil {
			return nil, fmt.Errorf("decoding structured context: %w", err)
		}
	}
	return &t, nil
}

func taskArgs(t *core.Task) ([]any, error) {
	if t.ID == "" || t.UserID == "" {
		return nil, core.ErrValidation(core.CodeInvalidInput, "task id and user id are required")
	}
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	var deadline, structured sql.NullString
	if t.Deadline != nil {
		deadline = sql.NullString{String: formatTime(*t.Deadline), Valid: true}
	}
	if t.StructuredContext != nil {
		raw, err := json.Marshal(t.StructuredContext)
		if err != nil {
			return nil, fmt.Errorf("encoding structured context: %w", err)
		}
		structured = sql.NullString{String: string(raw), Valid: true}
	}
	completed := 0
	if t.Completed {
		completed = 1
	}
	return []any{
		t.ID, t.UserID, t.Date, t.Title, t.Description, t.EstimatedMinutes, deadline,
		string(t.Priority), string(t.Quadrant), completed, t.ParentID, string(tagsJSON), structured,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	}, nil
}

func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound(resource, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
