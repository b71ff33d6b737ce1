// Package history provides a SQLite-backed conversation history store keyed
// by thread ID. History is append-only: completed turns are persisted and
// replayed into the LLM context window on subsequent queries, so a thread
// survives process restarts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleHuman is a message sent by the customer.
	RoleHuman Role = "human"
	// RoleAI is a message produced by the LLM agent, including tool-call
	// requests.
	RoleAI Role = "ai"
	// RoleTool is a tool execution result addressed back to the model.
	RoleTool Role = "tool"
)

// ToolCall records a single tool invocation requested by an AI message.
type ToolCall struct {
	// ID is the provider-assigned call identifier, echoed back in the
	// matching tool message.
	ID string `json:"id"`
	// Name is the tool name (e.g. "item_lookup").
	Name string `json:"name"`
	// Arguments is the raw JSON argument string as emitted by the model.
	Arguments string `json:"arguments"`
}

// Message is a single turn in a conversation thread.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message. Empty for pure tool-call turns.
	Content string
	// ToolCalls lists the tool invocations requested by an AI message.
	ToolCalls []ToolCall
	// ToolCallID links a tool message back to the AI tool call it answers.
	ToolCallID string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// Store persists and retrieves conversation history keyed by thread ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns all messages for the thread, ordered oldest-first so they
	// can be prepended to the LLM message slice directly. An unknown thread
	// yields an empty slice, not an error.
	Load(ctx context.Context, threadID string) ([]Message, error)
	// Append persists the given messages for the thread in a single
	// transaction, preserving their order.
	Append(ctx context.Context, threadID string, msgs ...Message) error
	// Ping verifies the store's backing database is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the conversation history
// database. It resolves to ~/.stocktalk/history.db, creating the directory
// if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".stocktalk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    thread        TEXT    NOT NULL,
    role          TEXT    NOT NULL CHECK(role IN ('human','ai','tool')),
    content       TEXT    NOT NULL,
    tool_calls    TEXT    NOT NULL DEFAULT '',  -- JSON array, empty when none
    tool_call_id  TEXT    NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_messages_thread_created
    ON messages (thread, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Load returns all messages for the thread, ordered oldest-first.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) ([]Message, error) {
	const q = `
SELECT role, content, tool_calls, tool_call_id, created_at
FROM   messages
WHERE  thread = ?
ORDER  BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, threadID)
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var role, toolCalls string
		var ts int64
		if err := rows.Scan(&role, &m.Content, &toolCalls, &m.ToolCallID, &ts); err != nil {
			return nil, fmt.Errorf("history: load scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("history: load tool calls: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: load rows: %w", err)
	}
	return msgs, nil
}

// Append persists the given messages for the thread in a single transaction.
// Either all messages land or none do, so a crashed turn never leaves a
// half-written exchange in the thread.
func (s *SQLiteStore) Append(ctx context.Context, threadID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: append begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const q = `INSERT INTO messages (thread, role, content, tool_calls, tool_call_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().Unix()
	for _, m := range msgs {
		toolCalls := ""
		if len(m.ToolCalls) > 0 {
			b, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("history: append tool calls: %w", err)
			}
			toolCalls = string(b)
		}
		ts := now
		if !m.CreatedAt.IsZero() {
			ts = m.CreatedAt.Unix()
		}
		if _, err := tx.ExecContext(ctx, q, threadID, string(m.Role), m.Content, toolCalls, m.ToolCallID, ts); err != nil {
			return fmt.Errorf("history: append: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: append commit: %w", err)
	}
	return nil
}

// Threads returns the distinct thread IDs present in the store, most
// recently active first.
func (s *SQLiteStore) Threads(ctx context.Context) ([]string, error) {
	const q = `
SELECT thread
FROM   messages
GROUP  BY thread
ORDER  BY MAX(created_at) DESC, MAX(id) DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("history: threads: %w", err)
	}
	defer rows.Close()

	var threads []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("history: threads scan: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: threads rows: %w", err)
	}
	return threads, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
