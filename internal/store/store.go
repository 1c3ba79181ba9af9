// Package store persists document metadata in SQLite. A document row is
// written only after its fragments are indexed and is the record the API
// consults for ownership, listing and blob lookup.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

var (
	// ErrMetadataUnavailable wraps any failure of the metadata database.
	ErrMetadataUnavailable = errors.New("metadata unavailable")

	// ErrNotFound is returned when no document matches (owner, id).
	ErrNotFound = errors.New("store: document not found")
)

// Document is the metadata record of one uploaded document.
type Document struct {
	ID          string
	OwnerID     string
	Filename    string
	StoragePath string
	CreatedAt   time.Time
}

// DocumentStore persists document metadata. Every read and delete is scoped
// to an owner. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// Create inserts a new document record.
	Create(ctx context.Context, doc Document) error
	// Get returns the owner's document, or ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (Document, error)
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID string) ([]Document, error)
	// Delete removes the owner's document. Deleting a missing row succeeds.
	Delete(ctx context.Context, ownerID, id string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a DocumentStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.docqa/docqa.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "docqa.db"), nil
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: avoids SQLITE_BUSY and keeps :memory: a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id            TEXT    NOT NULL PRIMARY KEY,
    owner_id      TEXT    NOT NULL,
    filename      TEXT    NOT NULL,
    storage_path  TEXT    NOT NULL,
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_documents_owner_created
    ON documents (owner_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Create inserts doc. A zero CreatedAt is set to now.
func (s *SQLiteStore) Create(ctx context.Context, doc Document) error {
	if doc.ID == "" || doc.OwnerID == "" {
		return fmt.Errorf("store: create: document id and owner are required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	const q = `INSERT INTO documents (id, owner_id, filename, storage_path, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.OwnerID, doc.Filename, doc.StoragePath, doc.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("store: create: %w: %w", ErrMetadataUnavailable, err)
	}
	return nil
}

// Get returns the owner's document.
func (s *SQLiteStore) Get(ctx context.Context, ownerID, id string) (Document, error) {
	const q = `SELECT id, owner_id, filename, storage_path, created_at FROM documents WHERE owner_id = ? AND id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get: %w: %w", ErrMetadataUnavailable, err)
	}
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]Document, error) {
	const q = `
SELECT id, owner_id, filename, storage_path, created_at
FROM   documents
WHERE  owner_id = ?
ORDER  BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w: %w", ErrMetadataUnavailable, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list scan: %w: %w", ErrMetadataUnavailable, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w: %w", ErrMetadataUnavailable, err)
	}
	return docs, nil
}

// Delete removes the owner's document row.
func (s *SQLiteStore) Delete(ctx context.Context, ownerID, id string) error {
	const q = `DELETE FROM documents WHERE owner_id = ? AND id = ?`
	if _, err := s.db.ExecContext(ctx, q, ownerID, id); err != nil {
		return fmt.Errorf("store: delete: %w: %w", ErrMetadataUnavailable, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w: %w", ErrMetadataUnavailable, err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (Document, error) {
	var doc Document
	var ts int64
	if err := r.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.StoragePath, &ts); err != nil {
		return Document{}, err
	}
	doc.CreatedAt = time.Unix(ts, 0)
	return doc, nil
}
