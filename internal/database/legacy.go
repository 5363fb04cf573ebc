package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"genstore/internal/store"
)

// Migration completion flags, one per legacy source. Stored in the meta
// key space so completion survives schema version bumps and collection
// wipes.
const (
	flagGenerations     = "migrated-generations"
	flagProgressSamples = "migrated-progress-samples"
	flagGalleryCache    = "migrated-gallery-cache"
	flagProjectSettings = "migrated-project-settings"
	flagSettingsBlob    = "migrated-settings-blob"
)

// MigrateLegacy folds each unmigrated legacy source into unified entries.
// Per source: read every record, merge-upsert it, and only then set the
// source's flag and clear the source. A failing source leaves its flag
// unset and is retried in full on the next run; the merge policy keys on
// entry and attempt identity, so a repeat cannot duplicate attempts or
// regress timestamps. A failure in one source does not stop the others.
func (s *SQLiteStore) MigrateLegacy(logger store.Logger) error {
	sources := []struct {
		name string
		flag string
		run  func(store.Logger) (int, error)
	}{
		{"generations", flagGenerations, s.migrateGenerations},
		{"progress_samples", flagProgressSamples, s.migrateProgressSamples},
		{"gallery_cache", flagGalleryCache, s.migrateGalleryCache},
		{"project_settings", flagProjectSettings, s.migrateProjectSettings},
		{"settings_blob", flagSettingsBlob, s.migrateSettingsBlob},
	}

	var errs []error
	for _, src := range sources {
		done, err := s.Flag(src.flag)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			continue
		}

		n, err := src.run(logger)
		if err != nil {
			logger.Error("legacy source migration failed", "source", src.name, "error", err)
			errs = append(errs, fmt.Errorf("migrating %s: %w", src.name, err))
			continue
		}
		logger.Info("legacy source migrated", "source", src.name, "records", n)
	}
	return errors.Join(errs...)
}

// mergeUpsert folds a converted fragment into the existing entry for its
// image, creating one if absent. This is the merge-aware write path legacy
// conversion uses instead of the last-write-wins PutEntry.
func (s *SQLiteStore) mergeUpsert(fragment *store.Entry) error {
	if fragment.ImageID == "" {
		return store.ErrMissingImageID
	}
	existing, err := s.GetEntry(fragment.ImageID)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = &store.Entry{ImageID: fragment.ImageID}
	}
	existing.Merge(fragment)
	return s.PutEntry(existing)
}

// finishSource sets the completion flag and clears the source collection.
// Order matters: the source is only deleted once the flag write succeeded,
// so a crash in between re-runs the (idempotent) conversion rather than
// losing data.
func (s *SQLiteStore) finishSource(flag string, c collection) error {
	if err := s.SetFlag(flag); err != nil {
		return err
	}
	return c.clear(s.db)
}

type legacyGeneration struct {
	GenerationID string
	ImageID      string
	AccountID    string
	Status       string
	Prompt       string
	VideoURL     string
	Timestamp    string
}

func (s *SQLiteStore) migrateGenerations(store.Logger) (int, error) {
	rows, err := colGenerations.selectAll(s.db,
		"generation_id, image_id, account_id, status, prompt, video_url, timestamp")
	if err != nil {
		return 0, err
	}
	var records []legacyGeneration
	for rows.Next() {
		var g legacyGeneration
		if err := rows.Scan(&g.GenerationID, &g.ImageID, &g.AccountID,
			&g.Status, &g.Prompt, &g.VideoURL, &g.Timestamp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning generation: %w", err)
		}
		records = append(records, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, g := range records {
		imageID := g.ImageID
		if imageID == "" {
			// Old rows before image ids were recorded keyed everything
			// by the generation id.
			imageID = g.GenerationID
		}
		fragment := &store.Entry{
			ImageID:   imageID,
			AccountID: g.AccountID,
			Prompt:    g.Prompt,
			CreatedAt: g.Timestamp,
			UpdatedAt: g.Timestamp,
			Attempts: []store.Attempt{{
				ID:        g.GenerationID,
				Status:    g.Status,
				Timestamp: g.Timestamp,
				VideoURL:  g.VideoURL,
			}},
		}
		if err := s.mergeUpsert(fragment); err != nil {
			return 0, err
		}
	}

	return len(records), s.finishSource(flagGenerations, colGenerations)
}

type legacyProgressSample struct {
	GenerationID string
	ImageID      string
	Progress     int
	Moderated    bool
	Timestamp    string
}

func (s *SQLiteStore) migrateProgressSamples(logger store.Logger) (int, error) {
	rows, err := colProgress.selectAll(s.db,
		"generation_id, image_id, progress, moderated, timestamp")
	if err != nil {
		return 0, err
	}
	var records []legacyProgressSample
	for rows.Next() {
		var p legacyProgressSample
		if err := rows.Scan(&p.GenerationID, &p.ImageID, &p.Progress,
			&p.Moderated, &p.Timestamp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning progress sample: %w", err)
		}
		records = append(records, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	converted := 0
	for _, p := range records {
		imageID := p.ImageID
		if imageID == "" {
			imageID = p.GenerationID
		}
		if imageID == "" {
			logger.Warn("dropping progress sample without identity")
			continue
		}
		attemptID := p.GenerationID
		if attemptID == "" {
			attemptID = imageID
		}
		fragment := &store.Entry{
			ImageID:   imageID,
			UpdatedAt: p.Timestamp,
			Attempts: []store.Attempt{{
				ID: attemptID,
				ProgressEvents: []store.ProgressEvent{{
					Progress:  p.Progress,
					Moderated: p.Moderated,
					Timestamp: p.Timestamp,
				}},
			}},
		}
		if err := s.mergeUpsert(fragment); err != nil {
			return 0, err
		}
		converted++
	}

	return converted, s.finishSource(flagProgressSamples, colProgress)
}

type legacyGalleryRecord struct {
	PostID    string
	AccountID string
	SourceTag string
	Payload   string
	Timestamp string
}

func (s *SQLiteStore) migrateGalleryCache(store.Logger) (int, error) {
	rows, err := colGallery.selectAll(s.db,
		"post_id, account_id, source_tag, payload, timestamp")
	if err != nil {
		return 0, err
	}
	var records []legacyGalleryRecord
	for rows.Next() {
		var g legacyGalleryRecord
		if err := rows.Scan(&g.PostID, &g.AccountID, &g.SourceTag,
			&g.Payload, &g.Timestamp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning gallery record: %w", err)
		}
		records = append(records, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, g := range records {
		// Gallery records only know their post id; when no entry matches
		// it, the post id becomes the image id.
		fragment := &store.Entry{
			ImageID:   g.PostID,
			AccountID: g.AccountID,
			UpdatedAt: g.Timestamp,
			GalleryMeta: map[string]any{
				"postId":    g.PostID,
				"sourceTag": g.SourceTag,
				"cachedAt":  g.Timestamp,
			},
		}

		// Keep the raw payload snapshot; decoded when it is JSON so the
		// fields stay queryable in the document.
		var payload map[string]any
		if err := json.Unmarshal([]byte(g.Payload), &payload); err == nil {
			fragment.GalleryMeta["payload"] = payload
			if v, ok := payload["createTime"].(string); ok {
				fragment.CreateTime = v
			}
			if v, ok := payload["thumbnailUrl"].(string); ok {
				fragment.ThumbnailURL = v
			}
		} else if g.Payload != "" {
			fragment.GalleryMeta["payload"] = g.Payload
		}

		if err := s.mergeUpsert(fragment); err != nil {
			return 0, err
		}
	}

	return len(records), s.finishSource(flagGalleryCache, colGallery)
}

type legacyProjectSettings struct {
	SlotID    string
	AccountID string
	ImageID   string
	Settings  string
	UpdatedAt string
}

func (s *SQLiteStore) migrateProjectSettings(logger store.Logger) (int, error) {
	rows, err := colProjects.selectAll(s.db,
		"slot_id, account_id, image_id, settings, updated_at")
	if err != nil {
		return 0, err
	}
	var records []legacyProjectSettings
	for rows.Next() {
		var p legacyProjectSettings
		if err := rows.Scan(&p.SlotID, &p.AccountID, &p.ImageID,
			&p.Settings, &p.UpdatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning project settings: %w", err)
		}
		records = append(records, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range records {
		imageID := p.ImageID
		if imageID == "" {
			imageID = p.SlotID
		}
		settings := map[string]any{}
		if err := json.Unmarshal([]byte(p.Settings), &settings); err != nil {
			logger.Warn("unreadable project settings kept verbatim", "slotId", p.SlotID)
			settings = map[string]any{"raw": p.Settings}
		}
		fragment := &store.Entry{
			ImageID:         imageID,
			AccountID:       p.AccountID,
			UpdatedAt:       p.UpdatedAt,
			ProjectSettings: settings,
		}
		if err := s.mergeUpsert(fragment); err != nil {
			return 0, err
		}
	}

	return len(records), s.finishSource(flagProjectSettings, colProjects)
}

// settingsBlob is the flat JSON dump the extension kept before the store
// had per-kind collections.
type settingsBlob struct {
	Settings      map[string]any            `json:"settings"`
	ImageSettings map[string]map[string]any `json:"imageSettings"`
	Templates     []struct {
		Name     string          `json:"name"`
		Category string          `json:"category"`
		Payload  json.RawMessage `json:"payload"`
	} `json:"templates"`
}

func (s *SQLiteStore) migrateSettingsBlob(logger store.Logger) (int, error) {
	if s.legacyBlobPath == "" {
		return 0, s.SetFlag(flagSettingsBlob)
	}

	raw, err := os.ReadFile(s.legacyBlobPath)
	if errors.Is(err, os.ErrNotExist) {
		// Nothing to migrate; mark done so future opens skip the stat.
		return 0, s.SetFlag(flagSettingsBlob)
	}
	if err != nil {
		return 0, fmt.Errorf("reading settings blob: %w", err)
	}

	var blob settingsBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return 0, fmt.Errorf("decoding settings blob: %w", err)
	}

	converted := 0

	// Global settings are kept verbatim in the meta key space; they are
	// not per-image and must not be silently lost.
	if len(blob.Settings) > 0 {
		global, err := json.Marshal(blob.Settings)
		if err != nil {
			return 0, fmt.Errorf("re-encoding global settings: %w", err)
		}
		if err := s.metaPut("legacy-settings", string(global)); err != nil {
			return 0, err
		}
		converted++
	}

	now := store.Timestamp(s.clock.Now())
	for imageID, settings := range blob.ImageSettings {
		fragment := &store.Entry{
			ImageID:         imageID,
			UpdatedAt:       now,
			ProjectSettings: settings,
		}
		if err := s.mergeUpsert(fragment); err != nil {
			return 0, err
		}
		converted++
	}

	for _, t := range blob.Templates {
		if t.Name == "" {
			logger.Warn("dropping unnamed template from settings blob")
			continue
		}
		_, err := s.db.Exec(
			`INSERT INTO templates (name, category, payload, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET category = excluded.category, payload = excluded.payload`,
			t.Name, t.Category, string(t.Payload), now)
		if err != nil {
			return 0, fmt.Errorf("writing template %s: %w", t.Name, err)
		}
		converted++
	}

	if err := s.SetFlag(flagSettingsBlob); err != nil {
		return 0, err
	}
	// The file is the source; removing it is the equivalent of clearing
	// a migrated collection, and happens only after the flag is set.
	if err := os.Remove(s.legacyBlobPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("removing settings blob: %w", err)
	}
	return converted, nil
}
