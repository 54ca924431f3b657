package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fyrsmithlabs/birdsql/internal/conversation"
)

// Describe introspects the database identified by id and returns its schema:
// every user table with its columns and declared types. Internal sqlite_*
// tables are excluded.
func (s *Store) Describe(ctx context.Context, id string) (conversation.Schema, error) {
	db, err := s.open(id)
	if err != nil {
		return nil, err
	}

	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table listing failed: %w", err)
	}

	schema := make(conversation.Schema, len(tables))
	for _, table := range tables {
		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, err
		}
		schema[table] = cols
	}
	return schema, nil
}

// tableColumns reads column metadata for one table via PRAGMA table_info.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]conversation.Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []conversation.Column
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, conversation.Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("column listing for %s failed: %w", table, err)
	}
	return cols, nil
}
