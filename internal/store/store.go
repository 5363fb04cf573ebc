package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrMissingImageID is returned when a write carries an entry without its
// primary key. It is the only input-shape validation the store performs,
// and it happens before any engine call.
var ErrMissingImageID = errors.New("entry has no imageId")

// Operation is one recorded store-mutating run (CLI command or embedded
// caller), kept for the history view.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error"
}

// RetentionRule bounds one record kind. Zero-valued limits are inactive;
// Unlimited disables the kind entirely and skips scanning.
type RetentionRule struct {
	Unlimited       bool
	MaxCount        int           // keep at most the N most recent records
	MaxAge          time.Duration // drop records older than now-MaxAge
	MaxPayloadBytes int64         // drop records whose payload exceeds this size
	BatchSize       int           // records deleted per engine call
}

// Active reports whether the rule has any enforceable limit.
func (r RetentionRule) Active() bool {
	return !r.Unlimited && (r.MaxCount > 0 || r.MaxAge > 0 || r.MaxPayloadBytes > 0)
}

// Store is the persistence interface for unified entries, migration flags,
// legacy conversion, retention and operation history. The sqlite-backed
// implementation lives in internal/database.
type Store interface {
	// Unified entry operations.

	// PutEntry upserts a single entry by ImageID (last write wins).
	// UpdatedAt is stamped if absent; CreatedAt is set at first insert
	// and preserved on replacement.
	PutEntry(e *Entry) error

	// PutEntries writes all entries in one transaction. A malformed
	// member rejects the whole batch; nothing is committed.
	PutEntries(entries []*Entry) error

	// GetEntry returns the entry or nil if absent.
	GetEntry(imageID string) (*Entry, error)

	// GetEntriesByAccount returns all entries in an account partition,
	// in index order (unsorted).
	GetEntriesByAccount(accountID string) ([]*Entry, error)

	// GetEntriesBatch resolves de-duplicated keys in one read
	// transaction. Missing keys are omitted from the result.
	GetEntriesBatch(imageIDs []string) (map[string]*Entry, error)

	// DeleteEntry removes a single entry. Deleting an absent key is not
	// an error.
	DeleteEntry(imageID string) error

	// ClearAccount deletes every entry in an account partition and
	// returns how many were removed.
	ClearAccount(accountID string) (int, error)

	// Counts returns record counts per collection.
	Counts() (map[string]int64, error)

	// Migration flags. Flags live in a key space that schema upgrades
	// never drop, so completion survives collection wipes.

	Flag(name string) (bool, error)
	SetFlag(name string) error

	// MigrateLegacy folds every unmigrated legacy source into unified
	// entries, source by source: convert all records, then set the
	// source's flag, then clear the source. Already-flagged sources are
	// skipped. Safe to re-run after a partial failure.
	MigrateLegacy(logger Logger) error

	// PruneKind enforces a retention rule on one record kind and
	// returns the number of records deleted.
	PruneKind(kind string, rule RetentionRule) (int, error)

	// Operation history.

	CreateOperation(operation, parameters string) (int64, error)
	FinishOperation(id int64, status string) error
	ListOperations(limit int) ([]*Operation, error)

	// BackupTo writes a consistent copy of the whole store to destPath.
	BackupTo(destPath string) error

	Close() error
}
