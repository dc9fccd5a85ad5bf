// Package docstore is a small JSON document store over sqlite. Documents are
// addressed by (collection, id); each write touches one row, so sqlite's
// per-statement atomicity gives the same per-document guarantees the managed
// document service offered.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bowlsbackend/internal/logger"
)

// ErrNotFound is returned when the addressed document does not exist.
var ErrNotFound = errors.New("document not found")

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
	connMaxIdleTime = 15 * time.Minute
	queryTimeout    = 30 * time.Second
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		value      TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, doc_id)
	);`

// Store is the document store handle. Construct it with Open and pass it to
// the components that need it.
type Store struct {
	db *sql.DB
}

// Open connects to the sqlite file at path, creating it and the documents
// table as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// _txlock=immediate makes transactions take the write lock up front, so
	// concurrent read-modify-writes queue on busy_timeout instead of failing
	// on lock upgrade.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open("sqlite", dsn+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.LogWarn("Failed to execute %s: %v", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads the document into v. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, collection, id string, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}
	return nil
}

// Exists reports whether the document is present.
func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Set writes the whole document, replacing any existing value.
func (s *Store) Set(ctx context.Context, collection, id string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, doc_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, doc_id) DO UPDATE SET
			value = excluded.value, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update shallow-merges fields into the stored document. Returns ErrNotFound
// when the document does not exist.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.withDocument(ctx, collection, id, func(doc map[string]interface{}) error {
		for k, v := range fields {
			doc[k] = v
		}
		return nil
	})
}

// ArrayAppend atomically appends elem to the named array field. The append
// runs inside one transaction, so concurrent appenders on the same document
// never lose each other's entries. Elements are never deduplicated: appending
// the same value twice stores it twice.
func (s *Store) ArrayAppend(ctx context.Context, collection, id, field string, elem interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	encoded, err := json.Marshal(elem)
	if err != nil {
		return fmt.Errorf("encoding array element: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(encoded, &value); err != nil {
		return fmt.Errorf("decoding array element: %w", err)
	}

	return s.withDocument(ctx, collection, id, func(doc map[string]interface{}) error {
		existing, _ := doc[field].([]interface{})
		doc[field] = append(existing, value)
		return nil
	})
}

// Delete removes the document. Deleting an absent document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

// withDocument runs a read-modify-write of one document inside a transaction.
func (s *Store) withDocument(ctx context.Context, collection, id string, mutate func(doc map[string]interface{}) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}

	doc := make(map[string]interface{})
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}

	if err := mutate(doc); err != nil {
		return err
	}

	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET value = ?, updated_at = ? WHERE collection = ? AND doc_id = ?`,
		string(updated), time.Now().UTC().Format(time.RFC3339), collection, id,
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}

	return tx.Commit()
}
