package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// lexicalFields are the item columns scanned by Lexical, OR-combined.
// Categories are stored as a JSON array string, so a substring match against
// the column text covers category labels too.
var lexicalFields = []string{"name", "description", "categories", "summary"}

// Store is a SQLite-backed item inventory. It is safe for concurrent use.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the inventory database.
// It resolves to ~/.stocktalk/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".stocktalk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS items (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    brand        TEXT NOT NULL DEFAULT '',
    categories   TEXT NOT NULL DEFAULT '[]',  -- JSON array of labels
    price        REAL NOT NULL DEFAULT 0,
    sale_price   REAL NOT NULL DEFAULT 0,
    notes        TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_items_name ON items (name);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a batch of items in a single transaction.
func (s *Store) Upsert(ctx context.Context, items []Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin upsert: %w", err)
	}

	const q = `
INSERT OR REPLACE INTO items (id, name, description, brand, categories, price, sale_price, notes, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("catalog: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		cats, err := json.Marshal(it.Categories)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("catalog: marshal categories for %s: %w", it.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, it.ID, it.Name, it.Description, it.Brand,
			string(cats), it.Price, it.SalePrice, it.Notes, it.Summary); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("catalog: upsert %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit upsert: %w", err)
	}
	return nil
}

// Count returns the number of items in the inventory.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return n, nil
}

// Lexical performs a case-insensitive substring search for query across the
// name, description, categories, and summary columns, OR-combined, returning
// at most k items. Used as the fallback when semantic search yields nothing.
func (s *Store) Lexical(ctx context.Context, query string, k int) ([]Item, error) {
	if k <= 0 {
		return nil, fmt.Errorf("catalog: lexical: k must be >= 1, got %d", k)
	}

	conds := make([]string, len(lexicalFields))
	args := make([]any, 0, len(lexicalFields)+1)
	pattern := "%" + escapeLike(query) + "%"
	for i, f := range lexicalFields {
		// SQLite LIKE is case-insensitive for ASCII by default.
		conds[i] = f + ` LIKE ? ESCAPE '\'`
		args = append(args, pattern)
	}
	args = append(args, k)

	q := `SELECT id, name, description, brand, categories, price, sale_price, notes, summary
FROM items WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY name LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: lexical query: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetByIDs returns the items matching the given IDs, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT id, name, description, brand, categories, price, sale_price, notes, summary
FROM items WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: get by ids: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// Ping verifies the database connection is alive. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// scanItems reads the standard item column set from rows.
func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var it Item
		var cats string
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Brand, &cats,
			&it.Price, &it.SalePrice, &it.Notes, &it.Summary); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &it.Categories); err != nil {
			return nil, fmt.Errorf("catalog: decode categories for %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}
	return items, nil
}

// escapeLike escapes the LIKE wildcard characters in a user query so they
// match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
