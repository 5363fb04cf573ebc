package app

import (
	"fmt"
	"os"
	"time"

	"genstore/internal/config"
	"genstore/internal/database"
	"genstore/internal/store"
)

// App is the application layer between the CLI and the store service.
// It constructs all dependencies from config, exposes the maintenance
// operations the CLI needs, and manages the store lifecycle on Close.
type App struct {
	cfg     *config.Config
	svc     *store.Service
	logger  store.Logger
	op      *StoreOperation
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "MigrateLegacy", "Prune").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	open := func() (store.Store, error) {
		return database.NewStoreFromConfig(cfg.Database, cfg.ProfileID)
	}
	svc := store.NewService(open, logger, store.RealClock{}, store.UUIDGenerator{})
	if !svc.Initialize() {
		logFile.Close()
		return nil, fmt.Errorf("opening store failed (see %s/genstore.log)", cfg.LogDir)
	}

	return &App{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		op:      NewStoreOperation(operation, ""),
		logFile: logFile,
	}, nil
}

// Service returns the store boundary the extension-facing operations run
// through.
func (a *App) Service() *store.Service { return a.svc }

// persistOperation saves the operation to the store, giving it an
// auto-increment ID. This should only be called for mutating commands.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	id, err := a.svc.Store().CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// RecordMutation marks this run as store-mutating so it appears in the
// operation history.
func (a *App) RecordMutation(parameters string) error {
	a.op.Parameters = parameters
	return a.persistOperation()
}

// Fail marks the operation as failed; the status is persisted on Close.
func (a *App) Fail() {
	a.op.Status = "error"
}

// Prune applies the configured retention rules and returns deletions per
// kind.
func (a *App) Prune() map[string]int {
	policy := store.PruningPolicy{Rules: a.retentionRules()}
	return policy.Apply(a.svc.Store(), a.logger)
}

func (a *App) retentionRules() map[string]store.RetentionRule {
	rules := a.cfg.Retention
	if rules == nil {
		rules = config.DefaultRetention()
	}
	out := make(map[string]store.RetentionRule, len(rules))
	for kind, r := range rules {
		out[kind] = store.RetentionRule{
			Unlimited:       r.Unlimited,
			MaxCount:        r.MaxCount,
			MaxAge:          time.Duration(r.MaxAgeDays) * 24 * time.Hour,
			MaxPayloadBytes: r.MaxPayloadBytes,
			BatchSize:       r.BatchSize,
		}
	}
	return out
}

// Backup writes a consistent copy of the store to destPath.
func (a *App) Backup(destPath string) error {
	return a.svc.Store().BackupTo(destPath)
}

// History returns the most recent recorded operations, newest first.
func (a *App) History(limit int) ([]*store.Operation, error) {
	return a.svc.Store().ListOperations(limit)
}

// Close finishes the persisted operation (if any) and releases the store
// and log file.
func (a *App) Close() error {
	if a.op.Persisted() {
		if err := a.svc.Store().FinishOperation(a.op.ID, a.op.Status); err != nil {
			a.logger.Warn("finishing operation failed", "error", err)
		}
	}
	err := a.svc.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}
