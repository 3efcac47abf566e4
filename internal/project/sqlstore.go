package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/codepad/internal/errors"
	_ "modernc.org/sqlite"
)

// SQLStore keeps records in a SQLite table, one row per save.
type SQLStore struct {
	db   *sql.DB
	path string
}

// OpenSQLStore creates or opens a SQLite database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageError("creating database directory", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storageError("opening database", err)
	}
	return newSQLStore(db, path)
}

// OpenMemorySQLStore creates an in-memory store, for tests.
func OpenMemorySQLStore() (*SQLStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, storageError("opening in-memory database", err)
	}
	// Every pooled connection would get its own empty in-memory database.
	db.SetMaxOpenConns(1)
	return newSQLStore(db, ":memory:")
}

func newSQLStore(db *sql.DB, path string) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageError("pinging database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageError("running migrations", err)
	}
	return &SQLStore{db: db, path: path}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    saved_at INTEGER NOT NULL,
    record TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_saved_at ON projects(saved_at);
`

func (s *SQLStore) Append(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return storageError("encoding project", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("beginning transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (name, saved_at, record) VALUES (?, ?, ?)`,
		r.Name, r.Timestamp, string(data),
	); err != nil {
		return storageError("inserting project", err)
	}
	if err := tx.Commit(); err != nil {
		return storageError("committing project", err)
	}
	return nil
}

func (s *SQLStore) Last(ctx context.Context) (Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM projects ORDER BY id DESC LIMIT 1`,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return Record{}, errors.ErrNoProjects
	}
	if err != nil {
		return Record{}, storageError("querying last project", err)
	}
	return decodeRecord(data)
}

func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, storageError("querying projects", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storageError("scanning project", err)
		}
		r, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterating projects", err)
	}
	return records, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func decodeRecord(data string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return Record{}, storageError(fmt.Sprintf("decoding project (%d bytes)", len(data)), err)
	}
	return r, nil
}
