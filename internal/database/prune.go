package database

import (
	"fmt"

	"genstore/internal/store"
)

// pruneSpec maps a prunable record kind to its collection, recency column
// and (optionally) the payload column size limits apply to.
type pruneSpec struct {
	col     collection
	recency string
	payload string
}

var pruneSpecs = map[string]pruneSpec{
	"generations":      {col: colGenerations, recency: "timestamp"},
	"progress_samples": {col: colProgress, recency: "timestamp"},
	"gallery_cache":    {col: colGallery, recency: "timestamp", payload: "payload"},
	"templates":        {col: colTemplates, recency: "created_at"},
	"unified_entries":  {col: colEntries, recency: "updated_at"},
}

// PruneKind enforces one retention rule: records older than the age
// window, beyond the count cap (by recency) or over the payload size cap
// are deleted in fixed-size batches. Selection runs first, deletion
// second, each in its own statement, so a pass never holds one long
// transaction open against writers.
func (s *SQLiteStore) PruneKind(kind string, rule store.RetentionRule) (int, error) {
	spec, ok := pruneSpecs[kind]
	if !ok {
		return 0, fmt.Errorf("unknown prunable kind: %s", kind)
	}
	if !rule.Active() {
		return 0, nil
	}

	victims := make(map[any]bool)

	if rule.MaxAge > 0 {
		cutoff := store.Timestamp(s.clock.Now().Add(-rule.MaxAge))
		keys, err := spec.col.keysWhere(s.db, spec.recency+" < ?", cutoff)
		if err != nil {
			return 0, fmt.Errorf("selecting expired %s: %w", kind, err)
		}
		for _, k := range keys {
			victims[k] = true
		}
	}

	if rule.MaxCount > 0 {
		keys, err := spec.col.keysBeyond(s.db, spec.recency, rule.MaxCount)
		if err != nil {
			return 0, fmt.Errorf("selecting surplus %s: %w", kind, err)
		}
		for _, k := range keys {
			victims[k] = true
		}
	}

	if rule.MaxPayloadBytes > 0 && spec.payload != "" {
		keys, err := spec.col.keysWhere(s.db,
			fmt.Sprintf("length(%s) > ?", spec.payload), rule.MaxPayloadBytes)
		if err != nil {
			return 0, fmt.Errorf("selecting oversized %s: %w", kind, err)
		}
		for _, k := range keys {
			victims[k] = true
		}
	}

	if len(victims) == 0 {
		return 0, nil
	}
	keys := make([]any, 0, len(victims))
	for k := range victims {
		keys = append(keys, k)
	}
	return spec.col.delMany(s.db, keys, rule.BatchSize)
}
