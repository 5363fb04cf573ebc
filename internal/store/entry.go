package store

import (
	"sort"
	"time"
)

// Attempt statuses.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusModerated = "moderated"
	StatusFailed    = "failed"
)

// AccountUnknown is the sentinel account partition for entries whose owner
// could not be resolved at write time.
const AccountUnknown = "unknown"

// ProgressEvent is one progress sample recorded during a generation attempt.
type ProgressEvent struct {
	Progress  int    `json:"progress"` // 0-100
	Moderated bool   `json:"moderated"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// Attempt is a single generation try nested inside an Entry. Attempts are
// append-only; an attempt is identified by its own ID, never by position.
type Attempt struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Timestamp      string          `json:"timestamp,omitempty"` // RFC 3339, when the attempt started
	VideoURL       string          `json:"videoUrl,omitempty"`
	ProgressEvents []ProgressEvent `json:"progressEvents,omitempty"`
}

// Entry is the unified per-image record: generation history, per-image
// project settings and cached gallery metadata folded into one document,
// keyed by ImageID.
type Entry struct {
	ImageID      string `json:"imageId"`
	AccountID    string `json:"accountId,omitempty"`
	CreateTime   string `json:"createTime,omitempty"` // source-reported creation time, if known
	CreatedAt    string `json:"createdAt,omitempty"`  // first insert, never overwritten
	UpdatedAt    string `json:"updatedAt,omitempty"`  // refreshed on every write
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Prompt       string `json:"prompt,omitempty"`

	Attempts        []Attempt      `json:"attempts,omitempty"`
	ProjectSettings map[string]any `json:"projectSettings,omitempty"`
	GalleryMeta     map[string]any `json:"galleryMeta,omitempty"`
}

// FindAttempt returns the attempt with the given ID, or nil.
func (e *Entry) FindAttempt(id string) *Attempt {
	for i := range e.Attempts {
		if e.Attempts[i].ID == id {
			return &e.Attempts[i]
		}
	}
	return nil
}

// RemoveAttempt deletes the attempt with the given ID, keeping the order
// of the rest. Attempts are always addressed by ID, never by position.
// Reports whether an attempt was removed.
func (e *Entry) RemoveAttempt(id string) bool {
	for i := range e.Attempts {
		if e.Attempts[i].ID == id {
			e.Attempts = append(e.Attempts[:i], e.Attempts[i+1:]...)
			return true
		}
	}
	return false
}

// Merge folds src into e field by field. It is the conversion policy for
// legacy records and must be safe to apply repeatedly: attempts are keyed
// by their ID (a re-run updates in place instead of appending a duplicate),
// settings and gallery maps merge key-wise with src winning, CreatedAt
// keeps the earliest value and UpdatedAt the latest.
func (e *Entry) Merge(src *Entry) {
	if src.AccountID != "" && src.AccountID != AccountUnknown {
		e.AccountID = src.AccountID
	}
	if src.CreateTime != "" {
		e.CreateTime = src.CreateTime
	}
	if src.Prompt != "" {
		e.Prompt = src.Prompt
	}
	if src.ThumbnailURL != "" {
		e.ThumbnailURL = src.ThumbnailURL
	}
	e.CreatedAt = earliest(e.CreatedAt, src.CreatedAt)
	e.UpdatedAt = latest(e.UpdatedAt, src.UpdatedAt)

	for i := range src.Attempts {
		e.mergeAttempt(&src.Attempts[i])
	}

	if len(src.ProjectSettings) > 0 {
		if e.ProjectSettings == nil {
			e.ProjectSettings = make(map[string]any, len(src.ProjectSettings))
		}
		for k, v := range src.ProjectSettings {
			e.ProjectSettings[k] = v
		}
	}
	if len(src.GalleryMeta) > 0 {
		if e.GalleryMeta == nil {
			e.GalleryMeta = make(map[string]any, len(src.GalleryMeta))
		}
		for k, v := range src.GalleryMeta {
			e.GalleryMeta[k] = v
		}
	}
}

func (e *Entry) mergeAttempt(src *Attempt) {
	dst := e.FindAttempt(src.ID)
	if dst == nil {
		e.Attempts = append(e.Attempts, *src)
		return
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	if src.VideoURL != "" {
		dst.VideoURL = src.VideoURL
	}
	dst.Timestamp = earliest(dst.Timestamp, src.Timestamp)
	for _, ev := range src.ProgressEvents {
		if !hasProgressEvent(dst.ProgressEvents, ev) {
			dst.ProgressEvents = append(dst.ProgressEvents, ev)
		}
	}
}

func hasProgressEvent(events []ProgressEvent, ev ProgressEvent) bool {
	for _, have := range events {
		if have.Timestamp == ev.Timestamp && have.Progress == ev.Progress {
			return true
		}
	}
	return false
}

// SortKey returns the timestamp entries are ordered by: the first parseable
// of CreateTime, UpdatedAt, CreatedAt. Missing or malformed timestamps sort
// as the epoch.
func (e *Entry) SortKey() time.Time {
	for _, s := range []string{e.CreateTime, e.UpdatedAt, e.CreatedAt} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// SortNewestFirst orders entries newest-first by SortKey, in place.
// The store indexes entries by account only, so ordering happens in memory
// after the index fetch.
func SortNewestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortKey().After(entries[j].SortKey())
	})
}

// earliest returns the smaller of two RFC 3339 timestamps, preferring any
// non-empty value over an empty one.
func earliest(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b < a {
		return b
	}
	return a
}

// latest is the counterpart of earliest.
func latest(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b > a {
		return b
	}
	return a
}
