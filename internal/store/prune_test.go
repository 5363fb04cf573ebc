package store

import (
	"errors"
	"testing"
	"time"
)

// pruneStore records PruneKind calls on top of the fake store.
type pruneStore struct {
	fakeStore
	pruned   map[string]RetentionRule
	failKind string
	deleted  map[string]int
}

func newPruneStore() *pruneStore {
	return &pruneStore{
		pruned:  make(map[string]RetentionRule),
		deleted: make(map[string]int),
	}
}

func (p *pruneStore) PruneKind(kind string, rule RetentionRule) (int, error) {
	p.pruned[kind] = rule
	if kind == p.failKind {
		return 0, errors.New("engine failure")
	}
	return p.deleted[kind], nil
}

func TestRetentionRule_Active(t *testing.T) {
	cases := []struct {
		name string
		rule RetentionRule
		want bool
	}{
		{"zero rule", RetentionRule{}, false},
		{"unlimited", RetentionRule{Unlimited: true, MaxCount: 10}, false},
		{"count limit", RetentionRule{MaxCount: 10}, true},
		{"age limit", RetentionRule{MaxAge: time.Hour}, true},
		{"payload limit", RetentionRule{MaxPayloadBytes: 1024}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rule.Active(); got != tc.want {
				t.Errorf("Active() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPruningPolicy_Apply(t *testing.T) {
	t.Run("runs only active rules", func(t *testing.T) {
		st := newPruneStore()
		policy := &PruningPolicy{Rules: map[string]RetentionRule{
			"generations":     {MaxCount: 10},
			"unified_entries": {Unlimited: true},
			"templates":       {},
		}}

		policy.Apply(st, NewNopLogger())

		if _, ok := st.pruned["generations"]; !ok {
			t.Error("active rule was not applied")
		}
		if _, ok := st.pruned["unified_entries"]; ok {
			t.Error("unlimited rule was applied")
		}
		if _, ok := st.pruned["templates"]; ok {
			t.Error("empty rule was applied")
		}
	})

	t.Run("a failing kind does not stop the others", func(t *testing.T) {
		st := newPruneStore()
		st.failKind = "generations"
		st.deleted["gallery_cache"] = 3

		policy := &PruningPolicy{Rules: map[string]RetentionRule{
			"generations":   {MaxCount: 10},
			"gallery_cache": {MaxAge: time.Hour},
		}}

		deleted := policy.Apply(st, NewNopLogger())

		if _, ok := deleted["generations"]; ok {
			t.Error("failed kind reported a deletion count")
		}
		if deleted["gallery_cache"] != 3 {
			t.Errorf("gallery_cache deletions = %d, want 3", deleted["gallery_cache"])
		}
	})
}
