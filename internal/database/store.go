// Package database provides read-only access to the SQLite database files a
// question can target. Databases are addressed by id; <id>.sqlite must exist
// under the configured directory.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the database file for an id does not exist.
var ErrNotFound = errors.New("database not found")

// Store opens and caches connections to SQLite databases by id.
type Store struct {
	dir          string
	queryTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewStore creates a store over dir. queryTimeout bounds each statement.
func NewStore(dir string, queryTimeout time.Duration) *Store {
	return &Store{
		dir:          dir,
		queryTimeout: queryTimeout,
		conns:        make(map[string]*sql.DB),
	}
}

// Path returns the file path for a database id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".sqlite")
}

// open returns a cached connection for id, opening it read-only on first use.
func (s *Store) open(id string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.conns[id]; ok {
		return db, nil
	}

	path := s.Path(id)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", id, err)
	}
	s.conns[id] = db
	return db, nil
}

// Execute runs query against the database identified by id and returns the
// result set. The statement is bounded by the store's query timeout.
func (s *Store) Execute(ctx context.Context, id, query string) (*ResultSet, error) {
	db, err := s.open(id)
	if err != nil {
		return nil, err
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	return queryResultSet(ctx, db, query)
}

// Close closes all cached connections.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, db := range s.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database %s: %w", id, err)
		}
		delete(s.conns, id)
	}
	return firstErr
}

// ResultSet holds the rows a query returned, all values rendered as text.
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// queryResultSet executes query on db and scans every row into strings.
func queryResultSet(ctx context.Context, db *sql.DB, query string) (*ResultSet, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = renderValue(*(v.(*any)))
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return rs, nil
}

// renderValue formats a scanned SQLite value as text.
func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
