package database

import (
	"database/sql"
	"fmt"
)

// dbtx is the subset of *sql.DB and *sql.Tx the collection primitives use,
// so the same helper runs inside or outside a transaction.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// collection is a handle over one table's primitive operations: delete by
// key, get-all, clear and count. Typed reads and writes stay with the
// store methods; the collection only knows its table and primary key.
type collection struct {
	table string
	key   string
}

// Collections, one per record kind. meta is the always-on key space for
// migration flags; it is created by the first schema step and never
// dropped.
var (
	colMeta        = collection{"meta", "key"}
	colGenerations = collection{"generations", "generation_id"}
	colProgress    = collection{"progress_samples", "id"}
	colGallery     = collection{"gallery_cache", "post_id"}
	colProjects    = collection{"project_settings", "slot_id"}
	colTemplates   = collection{"templates", "name"}
	colEntries     = collection{"unified_entries", "image_id"}
	colOperations  = collection{"operations", "id"}
)

var allCollections = []collection{
	colMeta,
	colGenerations,
	colProgress,
	colGallery,
	colProjects,
	colTemplates,
	colEntries,
	colOperations,
}

func (c collection) count(q dbtx) (int64, error) {
	var n int64
	err := q.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.table, err)
	}
	return n, nil
}

func (c collection) clear(q dbtx) error {
	if _, err := q.Exec("DELETE FROM " + c.table); err != nil {
		return fmt.Errorf("clearing %s: %w", c.table, err)
	}
	return nil
}

func (c collection) del(q dbtx, key any) error {
	_, err := q.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.table, c.key), key)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", c.table, err)
	}
	return nil
}

// delMany deletes keys in batches of batchSize per statement, bounding the
// cost of any single engine call. Returns the number of rows removed.
func (c collection) delMany(q dbtx, keys []any, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	deleted := 0
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
			c.table, c.key, placeholders(len(batch)))
		res, err := q.Exec(query, batch...)
		if err != nil {
			return deleted, fmt.Errorf("deleting batch from %s: %w", c.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted += int(n)
		}
	}
	return deleted, nil
}

// selectAll returns a rows cursor over the given columns of every record.
// The caller owns the cursor and must close it.
func (c collection) selectAll(q dbtx, columns string) (*sql.Rows, error) {
	rows, err := q.Query(fmt.Sprintf("SELECT %s FROM %s", columns, c.table))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.table, err)
	}
	return rows, nil
}

// keysWhere collects primary keys matching a condition.
func (c collection) keysWhere(q dbtx, cond string, args ...any) ([]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", c.key, c.table, cond)
	return scanKeys(q, query, args...)
}

// keysBeyond collects the primary keys of every record past the n most
// recent by the given column.
func (c collection) keysBeyond(q dbtx, recencyColumn string, n int) ([]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT -1 OFFSET %d",
		c.key, c.table, recencyColumn, n)
	return scanKeys(q, query)
}

func scanKeys(q dbtx, query string, args ...any) ([]any, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting keys: %w", err)
	}
	defer rows.Close()

	var keys []any
	for rows.Next() {
		var k any
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keys: %w", err)
	}
	return keys, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ", ?"
	}
	return s
}
