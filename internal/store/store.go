package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Link is a stored (name, url) pair
type Link struct {
	ID   int64
	Name string
	URL  string
}

// Complete reports whether both name and url are present. Rows are only
// written for complete links; the table itself does not enforce it.
func (l Link) Complete() bool {
	return l.Name != "" && l.URL != ""
}

// Store owns the links database
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path. The schema is not
// applied; call Init for that.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Init executes the schema script. It is safe to run more than once.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Reset drops the links table and recreates it from the schema.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS links`); err != nil {
		return fmt.Errorf("failed to drop links table: %w", err)
	}
	return s.Init(ctx)
}

// Session acquires a dedicated connection for the lifetime of one request.
// The caller must Close it.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Session is a request-scoped handle on the store
type Session struct {
	conn *sql.Conn
}

// Close returns the connection to the pool
func (s *Session) Close() error {
	return s.conn.Close()
}

// List returns every link, most recently added first
func (s *Session) List(ctx context.Context) ([]Link, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, name, url FROM links ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.Name, &l.URL); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return links, nil
}

// Add inserts a link and returns its id
func (s *Session) Add(ctx context.Context, name, url string) (int64, error) {
	result, err := s.conn.ExecContext(ctx, `INSERT INTO links (name, url) VALUES (?, ?)`, name, url)
	if err != nil {
		return 0, fmt.Errorf("failed to insert link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// Delete removes the link with the given id. A missing id is not an error;
// the returned count tells the caller whether anything was removed.
func (s *Session) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete link %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return n, nil
}
