package store

// OpenFunc opens the backing store. The service owns the returned Store
// and closes it on Close.
type OpenFunc func() (Store, error)

// Service is the boundary the extension-side collaborators (UI, network
// interception, automation managers) call. Every method recovers errors
// locally and converts them to safe defaults: false, nil or empty. Nothing
// crosses the boundary as an error, and a failed Initialize leaves the
// service in a permanent no-op state where every call returns its default.
type Service struct {
	open   OpenFunc
	st     Store
	logger Logger
	clock  Clock
	ids    IDGenerator
}

// NewService creates a Service. Initialize must be called before use.
func NewService(open OpenFunc, logger Logger, clock Clock, ids IDGenerator) *Service {
	return &Service{open: open, logger: logger, clock: clock, ids: ids}
}

// Initialize opens the store, running any pending schema upgrades.
// Returns false on failure; the service then no-ops forever.
func (s *Service) Initialize() bool {
	if s.st != nil {
		return true
	}
	st, err := s.open()
	if err != nil {
		s.logger.Error("store initialization failed", "error", err)
		return false
	}
	s.st = st
	s.logger.Debug("store initialized")
	return true
}

// ready reports whether Initialize succeeded. Callers must treat the
// default return values of an unready service as the failure signal.
func (s *Service) ready() bool { return s.st != nil }

// Store exposes the underlying Store for maintenance surfaces (pruning,
// backup, operation history). Nil until Initialize succeeds.
func (s *Service) Store() Store { return s.st }

// MigrateFromLegacyStorage converts any remaining legacy sources into
// unified entries. Returns true once every source is either already
// complete or newly migrated.
func (s *Service) MigrateFromLegacyStorage() bool {
	if !s.ready() {
		return false
	}
	if err := s.st.MigrateLegacy(s.logger); err != nil {
		s.logger.Error("legacy migration failed", "error", err)
		return false
	}
	return true
}

// SaveUnifiedEntry upserts one entry. An entry without an ImageID is
// rejected before any engine call. Attempts carry their own identity;
// one arriving without an ID gets a fresh one stamped here, since the
// merge policy cannot key an anonymous attempt.
func (s *Service) SaveUnifiedEntry(e *Entry) bool {
	if !s.ready() || e == nil {
		return false
	}
	s.stampAttemptIDs(e)
	if err := s.st.PutEntry(e); err != nil {
		s.logger.Error("saving entry failed", "imageId", e.ImageID, "error", err)
		return false
	}
	return true
}

// SaveUnifiedEntries writes all entries in a single transaction.
// One malformed member rejects the whole batch.
func (s *Service) SaveUnifiedEntries(entries []*Entry) bool {
	if !s.ready() {
		return false
	}
	for _, e := range entries {
		if e != nil {
			s.stampAttemptIDs(e)
		}
	}
	if err := s.st.PutEntries(entries); err != nil {
		s.logger.Error("saving entry batch failed", "count", len(entries), "error", err)
		return false
	}
	return true
}

func (s *Service) stampAttemptIDs(e *Entry) {
	for i := range e.Attempts {
		if e.Attempts[i].ID == "" {
			e.Attempts[i].ID = s.ids.New()
		}
	}
}

// GetUnifiedEntry returns the entry or nil. Absence is not an error.
func (s *Service) GetUnifiedEntry(imageID string) *Entry {
	if !s.ready() {
		return nil
	}
	e, err := s.st.GetEntry(imageID)
	if err != nil {
		s.logger.Error("loading entry failed", "imageId", imageID, "error", err)
		return nil
	}
	return e
}

// GetUnifiedEntriesBatch resolves many entries at once. Missing IDs are
// omitted from the returned map.
func (s *Service) GetUnifiedEntriesBatch(imageIDs []string) map[string]*Entry {
	if !s.ready() {
		return map[string]*Entry{}
	}
	m, err := s.st.GetEntriesBatch(imageIDs)
	if err != nil {
		s.logger.Error("loading entry batch failed", "count", len(imageIDs), "error", err)
		return map[string]*Entry{}
	}
	return m
}

// GetAllUnifiedEntries returns an account's entries newest-first,
// truncated to limit. A limit of zero or less means unlimited.
// The account index is on the partition key alone, so ordering happens
// here in memory after the index fetch.
func (s *Service) GetAllUnifiedEntries(accountID string, limit int) []*Entry {
	if !s.ready() {
		return []*Entry{}
	}
	entries, err := s.st.GetEntriesByAccount(accountID)
	if err != nil {
		s.logger.Error("loading account entries failed", "accountId", accountID, "error", err)
		return []*Entry{}
	}
	SortNewestFirst(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// DeleteUnifiedEntry removes one entry. Deleting an absent key still
// reports success; only an engine failure returns false.
func (s *Service) DeleteUnifiedEntry(imageID string) bool {
	if !s.ready() {
		return false
	}
	if err := s.st.DeleteEntry(imageID); err != nil {
		s.logger.Error("deleting entry failed", "imageId", imageID, "error", err)
		return false
	}
	return true
}

// ClearUnifiedHistory deletes every entry in an account partition.
func (s *Service) ClearUnifiedHistory(accountID string) bool {
	if !s.ready() {
		return false
	}
	n, err := s.st.ClearAccount(accountID)
	if err != nil {
		s.logger.Error("clearing account failed", "accountId", accountID, "error", err)
		return false
	}
	s.logger.Info("account history cleared", "accountId", accountID, "deleted", n)
	return true
}

// GetStorageStats returns record counts per collection, or an empty map
// on failure.
func (s *Service) GetStorageStats() map[string]int64 {
	if !s.ready() {
		return map[string]int64{}
	}
	counts, err := s.st.Counts()
	if err != nil {
		s.logger.Error("counting collections failed", "error", err)
		return map[string]int64{}
	}
	return counts
}

// Close releases the backing store. Safe to call on an uninitialized
// service.
func (s *Service) Close() error {
	if s.st == nil {
		return nil
	}
	err := s.st.Close()
	s.st = nil
	return err
}
