package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/histsync/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on records(tag, seq) for AllTagged
const currentSchemaVersion = 1

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned by Push when the record does not extend the
// current head of its stream.
var ErrConflict = errors.New("record does not extend stream head")

// Store is the record log consumed by the typed stores and the syncer.
type Store interface {
	// Push appends one record. Pushing a record whose id is already stored
	// is a no-op. Returns ErrConflict if idx/parent do not follow the head.
	Push(ctx context.Context, r record.Record[record.EncryptedData]) error

	// Last returns the head of (host, tag), or nil if the stream is empty.
	Last(ctx context.Context, host record.HostID, tag string) (*record.Meta, error)

	// AllTagged returns every record with tag, across hosts, in log order.
	AllTagged(ctx context.Context, tag string) ([]record.Record[record.EncryptedData], error)

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id record.RecordID) (record.Record[record.EncryptedData], error)

	// Range returns up to limit records of (host, tag) with idx >= start, in
	// idx order.
	Range(ctx context.Context, host record.HostID, tag string, start uint64, limit int) ([]record.Record[record.EncryptedData], error)

	// Status returns the head idx of every stream.
	Status(ctx context.Context) (*record.Status, error)

	// HostID returns this store's host id, creating it on first use.
	HostID(ctx context.Context) (record.HostID, error)

	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is the durable Store.
// Uses SQLite with WAL mode for concurrent read access.
type SQLiteStore struct {
	db *sql.DB

	hostMu sync.Mutex
	host   *record.HostID
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// dsn adds the driver options to path. Write transactions begin IMMEDIATE so
// that a second process blocks on the write lock (up to busy_timeout) instead
// of reading a head it cannot commit against.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes records by tag in log order.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_tag_seq
		ON records(tag, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
