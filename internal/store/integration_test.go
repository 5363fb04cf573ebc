package store_test

import (
	"testing"
	"time"

	"genstore/internal/store"
	"genstore/internal/testutil"
)

// newServiceOverSQLite wires the service to a real in-memory store, the
// same composition the application layer builds from config.
func newServiceOverSQLite(t *testing.T) (*store.Service, *testutil.StubClock) {
	t.Helper()

	clock := testutil.FixedClock()
	st := testutil.NewTestStore(t, clock)

	svc := store.NewService(func() (store.Store, error) {
		return st, nil
	}, store.NewNopLogger(), clock, testutil.NewStubIDGenerator())
	if !svc.Initialize() {
		t.Fatal("Initialize() = false")
	}
	return svc, clock
}

func TestService_SQLite_RoundTrip(t *testing.T) {
	svc, _ := newServiceOverSQLite(t)

	in := &store.Entry{
		ImageID:   "img-1",
		AccountID: "acct-1",
		Prompt:    "a red fox",
		Attempts:  []store.Attempt{{ID: "a1", Status: store.StatusPending}},
	}
	if !svc.SaveUnifiedEntry(in) {
		t.Fatal("SaveUnifiedEntry() = false")
	}

	got := svc.GetUnifiedEntry("img-1")
	if got == nil {
		t.Fatal("GetUnifiedEntry() = nil")
	}
	if got.Prompt != "a red fox" || len(got.Attempts) != 1 {
		t.Errorf("entry = %+v", got)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("timestamps not stamped")
	}
}

func TestService_SQLite_StampsAnonymousAttempts(t *testing.T) {
	svc, _ := newServiceOverSQLite(t)

	svc.SaveUnifiedEntry(&store.Entry{
		ImageID: "img-1",
		Attempts: []store.Attempt{
			{Status: store.StatusPending},
			{ID: "keep-me", Status: store.StatusSuccess},
		},
	})

	got := svc.GetUnifiedEntry("img-1")
	if got == nil {
		t.Fatal("GetUnifiedEntry() = nil")
	}
	if got.Attempts[0].ID != "id-1" {
		t.Errorf("Attempts[0].ID = %q, want id-1", got.Attempts[0].ID)
	}
	if got.Attempts[1].ID != "keep-me" {
		t.Errorf("Attempts[1].ID = %q, want keep-me", got.Attempts[1].ID)
	}
}

func TestService_SQLite_ReplacementKeepsCreatedAt(t *testing.T) {
	svc, clock := newServiceOverSQLite(t)

	svc.SaveUnifiedEntry(&store.Entry{ImageID: "img-1", Prompt: "first"})
	first := svc.GetUnifiedEntry("img-1")

	clock.Advance(time.Hour)
	svc.SaveUnifiedEntry(&store.Entry{ImageID: "img-1", Prompt: "second"})
	second := svc.GetUnifiedEntry("img-1")

	if second.Prompt != "second" {
		t.Errorf("Prompt = %q, want second", second.Prompt)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("CreatedAt changed on replacement: %q -> %q", first.CreatedAt, second.CreatedAt)
	}
	if second.UpdatedAt == first.UpdatedAt {
		t.Error("UpdatedAt not refreshed on replacement")
	}
}

func TestService_SQLite_NewestFirstWithLimit(t *testing.T) {
	svc, _ := newServiceOverSQLite(t)

	ok := svc.SaveUnifiedEntries([]*store.Entry{
		{ImageID: "old", AccountID: "acct-1", CreateTime: "2024-01-01T00:00:00Z"},
		{ImageID: "new", AccountID: "acct-1", CreateTime: "2024-03-01T00:00:00Z"},
		{ImageID: "mid", AccountID: "acct-1", CreateTime: "2024-02-01T00:00:00Z"},
	})
	if !ok {
		t.Fatal("SaveUnifiedEntries() = false")
	}

	entries := svc.GetAllUnifiedEntries("acct-1", 2)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ImageID != "new" || entries[1].ImageID != "mid" {
		t.Errorf("order = %s, %s; want new, mid", entries[0].ImageID, entries[1].ImageID)
	}
}

func TestService_SQLite_StatsAndClear(t *testing.T) {
	svc, _ := newServiceOverSQLite(t)

	svc.SaveUnifiedEntries([]*store.Entry{
		{ImageID: "img-1", AccountID: "acct-1"},
		{ImageID: "img-2", AccountID: "acct-1"},
	})

	stats := svc.GetStorageStats()
	if stats["unified_entries"] != 2 {
		t.Errorf("unified_entries = %d, want 2", stats["unified_entries"])
	}

	if !svc.ClearUnifiedHistory("acct-1") {
		t.Fatal("ClearUnifiedHistory() = false")
	}
	stats = svc.GetStorageStats()
	if stats["unified_entries"] != 0 {
		t.Errorf("unified_entries after clear = %d, want 0", stats["unified_entries"])
	}
}
