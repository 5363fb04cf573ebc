package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genstore/internal/store"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the store.Store interface using SQLite. Unified
// entries are stored as one JSON document per row with the indexed fields
// (image_id, account_id, created_at, updated_at) extracted into columns.
type SQLiteStore struct {
	db             *sql.DB
	path           string
	legacyBlobPath string
	clock          store.Clock
}

// NewSQLiteStore opens the store at path. path can be a file path or
// ":memory:". legacyBlobPath points at the flat legacy settings dump, if
// one exists. The schema is not touched here; the factory runs upgrades
// before handing the store out.
func NewSQLiteStore(path, legacyBlobPath string, clock store.Clock) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteStoreFromDB(db, legacyBlobPath, clock)
	s.path = path
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the schema being current (tests apply Schema directly).
func NewSQLiteStoreFromDB(db *sql.DB, legacyBlobPath string, clock store.Clock) *SQLiteStore {
	if clock == nil {
		clock = store.RealClock{}
	}
	return &SQLiteStore{
		db:             db,
		legacyBlobPath: legacyBlobPath,
		clock:          clock,
	}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Wait for locks instead of failing immediately; the legacy
	// conversion interleaves reads and writes on separate connections.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Unified entry operations

const putEntrySQL = `
INSERT INTO unified_entries (image_id, account_id, created_at, updated_at, doc)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(image_id) DO UPDATE SET
    account_id = excluded.account_id,
    updated_at = excluded.updated_at,
    doc = excluded.doc`

// PutEntry upserts one entry by ImageID, last write wins. UpdatedAt is
// stamped if absent; the created_at column is written once at first insert
// and kept on replacement.
func (s *SQLiteStore) PutEntry(e *store.Entry) error {
	return s.putEntry(s.db, e)
}

// PutEntries writes all entries inside a single transaction, so a failure
// on any member (including a missing ImageID) commits nothing.
func (s *SQLiteStore) PutEntries(entries []*store.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if err := s.putEntry(tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) putEntry(q dbtx, e *store.Entry) error {
	if e == nil || e.ImageID == "" {
		return store.ErrMissingImageID
	}
	now := store.Timestamp(s.clock.Now())
	if e.AccountID == "" {
		e.AccountID = store.AccountUnknown
	}
	if e.UpdatedAt == "" {
		e.UpdatedAt = now
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", e.ImageID, err)
	}

	_, err = q.Exec(putEntrySQL, e.ImageID, e.AccountID, e.CreatedAt, e.UpdatedAt, doc)
	if err != nil {
		return fmt.Errorf("writing entry %s: %w", e.ImageID, err)
	}
	return nil
}

const entryColumns = "image_id, account_id, created_at, updated_at, doc"

// GetEntry returns the entry or nil if absent.
func (s *SQLiteStore) GetEntry(imageID string) (*store.Entry, error) {
	row := s.db.QueryRow(
		"SELECT "+entryColumns+" FROM unified_entries WHERE image_id = ?", imageID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("loading entry %s: %w", imageID, err)
	}
	return e, nil
}

// GetEntriesByAccount returns all entries in an account partition via the
// account index, in index order. Callers order the result themselves.
func (s *SQLiteStore) GetEntriesByAccount(accountID string) ([]*store.Entry, error) {
	rows, err := s.db.Query(
		"SELECT "+entryColumns+" FROM unified_entries WHERE account_id = ?", accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*store.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("loading account %s: %w", accountID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return entries, nil
}

// GetEntriesBatch resolves point lookups for de-duplicated keys in one
// read transaction. Keys without a match are omitted from the result.
func (s *SQLiteStore) GetEntriesBatch(imageIDs []string) (map[string]*store.Entry, error) {
	result := make(map[string]*store.Entry)
	if len(imageIDs) == 0 {
		return result, nil
	}

	seen := make(map[string]bool, len(imageIDs))

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range imageIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		row := tx.QueryRow(
			"SELECT "+entryColumns+" FROM unified_entries WHERE image_id = ?", id)
		e, err := scanEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading entry %s: %w", id, err)
		}
		result[id] = e
	}

	return result, nil
}

// DeleteEntry removes a single entry. Absent keys are a no-op.
func (s *SQLiteStore) DeleteEntry(imageID string) error {
	return colEntries.del(s.db, imageID)
}

// ClearAccount deletes every entry in an account partition. The account
// index is non-unique, so this is two-phase: query the matching keys, then
// delete each by primary key in one transaction.
func (s *SQLiteStore) ClearAccount(accountID string) (int, error) {
	keys, err := colEntries.keysWhere(s.db, "account_id = ?", accountID)
	if err != nil {
		return 0, fmt.Errorf("finding account entries: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if err := colEntries.del(tx, k); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing deletes: %w", err)
	}
	return len(keys), nil
}

// Counts returns record counts for every collection.
func (s *SQLiteStore) Counts() (map[string]int64, error) {
	counts := make(map[string]int64, len(allCollections))
	for _, c := range allCollections {
		n, err := c.count(s.db)
		if err != nil {
			return nil, err
		}
		counts[c.table] = n
	}
	return counts, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry hydrates an entry from its JSON document and overlays the
// indexed columns, which are authoritative: created_at in particular may
// differ from the document when an upsert replaced an existing row.
func scanEntry(sc scanner) (*store.Entry, error) {
	var (
		imageID, accountID, createdAt, updatedAt string
		doc                                      []byte
	)
	if err := sc.Scan(&imageID, &accountID, &createdAt, &updatedAt, &doc); err != nil {
		return nil, err
	}

	var e store.Entry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("decoding entry %s: %w", imageID, err)
	}
	e.ImageID = imageID
	e.AccountID = accountID
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	return &e, nil
}

// Migration flags

// Flag reports whether a migration flag is set. Flags live in the meta
// collection, which schema upgrades never drop.
func (s *SQLiteStore) Flag(name string) (bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading flag %s: %w", name, err)
	}
	return value == "true", nil
}

// SetFlag marks a migration flag complete.
func (s *SQLiteStore) SetFlag(name string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, 'true') ON CONFLICT(key) DO UPDATE SET value = 'true'",
		name)
	if err != nil {
		return fmt.Errorf("setting flag %s: %w", name, err)
	}
	return nil
}

// metaPut stores an arbitrary value in the always-on key space.
func (s *SQLiteStore) metaPut(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

// Operation history

// CreateOperation records the start of a store-mutating run.
func (s *SQLiteStore) CreateOperation(operation, parameters string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'success')",
		operation, parameters, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	return id, nil
}

// FinishOperation stamps an operation finished with the given status.
func (s *SQLiteStore) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE operations SET finished_at = ?, status = ? WHERE id = ?",
		s.clock.Now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteStore) ListOperations(limit int) ([]*store.Operation, error) {
	rows, err := s.db.Query(
		"SELECT id, operation, parameters, started_at, finished_at, status FROM operations ORDER BY id DESC LIMIT ?",
		int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*store.Operation
	for rows.Next() {
		var (
			op         store.Operation
			startedAt  time.Time
			finishedAt sql.NullTime
		)
		err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &startedAt, &finishedAt, &op.Status)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		op.StartedAt = startedAt
		op.FinishedAt = finishedAt
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// BackupTo creates a complete copy of the store at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements the store.Store interface
var _ store.Store = (*SQLiteStore)(nil)
