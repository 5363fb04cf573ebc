package app

import (
	"testing"
	"time"

	"genstore/internal/config"
	"genstore/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.NewConfig("test-profile", t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}

	a, err := NewApp(cfg, "TestOperation")
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestNewApp(t *testing.T) {
	a := newTestApp(t)

	if a.Service() == nil {
		t.Fatal("Service() = nil")
	}
	if !a.Service().SaveUnifiedEntry(&store.Entry{ImageID: "img-1"}) {
		t.Error("SaveUnifiedEntry() = false on a fresh app")
	}
}

func TestApp_RecordMutation(t *testing.T) {
	a := newTestApp(t)

	if err := a.RecordMutation("img-1"); err != nil {
		t.Fatalf("RecordMutation() error = %v", err)
	}
	// A second call must not create a second history row.
	if err := a.RecordMutation("img-1"); err != nil {
		t.Fatalf("second RecordMutation() error = %v", err)
	}

	ops, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("len(ops) = %d, want 1", len(ops))
	}
	if ops[0].Operation != "TestOperation" {
		t.Errorf("Operation = %q", ops[0].Operation)
	}
	if ops[0].Parameters != "img-1" {
		t.Errorf("Parameters = %q", ops[0].Parameters)
	}
}

func TestApp_Prune(t *testing.T) {
	a := newTestApp(t)

	// Nothing stored; every active rule runs and deletes nothing.
	deleted := a.Prune()
	for kind, n := range deleted {
		if n != 0 {
			t.Errorf("pruned %d %s records from an empty store", n, kind)
		}
	}
}

func TestApp_RetentionRules(t *testing.T) {
	a := newTestApp(t)

	rules := a.retentionRules()

	gen, ok := rules["generations"]
	if !ok {
		t.Fatal("rules missing generations")
	}
	if gen.MaxAge != 90*24*time.Hour {
		t.Errorf("MaxAge = %v, want 90 days", gen.MaxAge)
	}
	if gen.MaxCount != 500 {
		t.Errorf("MaxCount = %d, want 500", gen.MaxCount)
	}
	if !rules["unified_entries"].Unlimited {
		t.Error("unified_entries rule not unlimited")
	}
}
