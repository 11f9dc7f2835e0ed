package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore appends events to a table in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	table  string
	insert *sql.Stmt
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// event table exists.
func OpenSQLite(ctx context.Context, path, table string) (*SQLiteStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := validTable(table); err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("eventstore: failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("eventstore: failed to open SQLite database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to set journal mode: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			name TEXT,
			timestamp TEXT NOT NULL,
			variant TEXT,
			page TEXT,
			metadata TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
		)
	`, table)
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to create %s table: %w", table, err)
	}

	indexSQL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_event_name ON %s(event, name)", table, table)
	if _, err := db.ExecContext(ctx, indexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to create index: %w", err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s (event, name, timestamp, variant, page, metadata) VALUES (?, ?, ?, ?, ?, ?)`, table)
	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("eventstore: failed to prepare insert statement: %w", err)
	}

	return &SQLiteStore{db: db, table: table, insert: stmt}, nil
}

// Insert appends row.
func (s *SQLiteStore) Insert(ctx context.Context, row Row) (Row, error) {
	metadata, err := metadataColumn(row.Metadata)
	if err != nil {
		return Row{}, err
	}

	res, err := s.insert.ExecContext(ctx, row.Event, row.Name, row.Timestamp, row.Variant, row.Page, metadata)
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: insert failed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: insert failed: %w", err)
	}
	row.ID = formatInt(id)
	return row, nil
}

// Recent returns up to limit rows, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Row, error) {
	query := fmt.Sprintf(`SELECT id, event, name, timestamp, variant, page, metadata FROM %s ORDER BY id DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query failed: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			id       int64
			row      Row
			metadata *string
		)
		if err := rows.Scan(&id, &row.Event, &row.Name, &row.Timestamp, &row.Variant, &row.Page, &metadata); err != nil {
			return nil, fmt.Errorf("eventstore: scan failed: %w", err)
		}
		row.ID = formatInt(id)
		if row.Metadata, err = parseMetadataColumn(metadata); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.insert.Close()
	return s.db.Close()
}
