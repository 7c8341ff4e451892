package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"streamvault/models"
)

// Store is the content-store surface the reconciler writes through.
type Store interface {
	GetByExtID(ctx context.Context, extID string) (*models.Content, error)
	Insert(ctx context.Context, c *models.Content) error
	UpdateFields(ctx context.Context, extID string, fields map[string]any) error
	ReplaceEpisodes(ctx context.Context, extID string, eps []models.Episode) error
}

// Reconciler keeps the seed JSON file and the content store eventually
// consistent: seed to store on boot and forced reloads, store to seed after
// every admin write. It owns the in-memory read cache of the file, which is
// invalidated by its own writes, never by time.
type Reconciler struct {
	mu     sync.Mutex
	path   string
	store  Store
	logger *slog.Logger
	cache  *File
}

// NewReconciler creates a reconciler for the seed file at path.
func NewReconciler(path string, store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{path: path, store: store, logger: logger}
}

// Invalidate drops the cached file so the next read hits disk.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
}

// load returns the cached file, reading from disk on a cache miss. A missing
// file is an empty catalog, not an error. Caller must hold r.mu.
func (r *Reconciler) load() (*File, error) {
	if r.cache != nil {
		return r.cache, nil
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.cache = &File{}
		return r.cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	f, err := parseFile(data)
	if err != nil {
		return nil, err
	}
	r.cache = f
	return f, nil
}

// writeLocked serializes the file to a temp sibling and renames it over the
// target, so concurrent readers never observe a partial write. Caller must
// hold r.mu.
func (r *Reconciler) writeLocked(f *File) error {
	data, err := f.encode()
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write seed temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace seed file: %w", err)
	}

	r.cache = f
	return nil
}

// SyncContentWithDoc projects the current content document into the seed
// file, replacing or inserting its entry. Unknown legacy fields on an
// existing entry survive via shallow merge; the entry's prior likes value is
// preserved because the seed file is never the source of truth for
// engagement counters.
func (r *Reconciler) SyncContentWithDoc(ctx context.Context, doc *models.Content, overrideEpisodes []models.Episode) error {
	if doc == nil || doc.ExtID == "" {
		return errors.New("sync requires a document with an ext id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return err
	}

	projection := projectDoc(doc, overrideEpisodes)

	if at := f.findEntry(doc.ExtID); at >= 0 {
		existing := f.Entries[at]
		if likes, ok := existing.intField("likes"); ok {
			projection["likes"] = likes
		}
		for k, v := range projection {
			existing[k] = v
		}
	} else {
		f.Entries = append(f.Entries, projection)
	}

	if err := r.writeLocked(f); err != nil {
		return err
	}
	r.logger.Debug("seed entry synced", "extId", doc.ExtID)
	return nil
}

// RemoveEntry deletes a content entry from the seed file after an admin
// delete. Removing an absent entry is a no-op.
func (r *Reconciler) RemoveEntry(ctx context.Context, extID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return err
	}

	at := f.findEntry(extID)
	if at < 0 {
		return nil
	}
	f.Entries = append(f.Entries[:at], f.Entries[at+1:]...)

	if err := r.writeLocked(f); err != nil {
		return err
	}
	r.logger.Debug("seed entry removed", "extId", extID)
	return nil
}

// CoverFallback returns the seed entry's cover-ish field for a content id,
// or "" when the entry or field is absent. Implements the media checker's
// seed lookup.
func (r *Reconciler) CoverFallback(extID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		r.logger.Warn("cover fallback unavailable", "extId", extID, "error", err)
		return ""
	}
	if at := f.findEntry(extID); at >= 0 {
		return f.Entries[at].stringField("cover", "poster", "image", "img")
	}
	return ""
}

// projectDoc flattens a content document into the seed entry shape.
func projectDoc(doc *models.Content, overrideEpisodes []models.Episode) Entry {
	e := Entry{
		"id":     doc.ExtID,
		"title":  doc.Title,
		"year":   doc.Year,
		"genres": doc.Genres,
		"cover":  doc.Cover,
		"type":   doc.Type,
		"likes":  doc.Likes,
	}
	if doc.Plot != "" {
		e["plot"] = doc.Plot
	}
	if doc.Director != "" {
		e["director"] = doc.Director
	}
	if len(doc.Actors) > 0 {
		e["actors"] = doc.Actors
	}
	if doc.Rating != "" {
		e["rating"] = doc.Rating
	}

	episodes := doc.Episodes
	if overrideEpisodes != nil {
		episodes = overrideEpisodes
	}
	if doc.IsSeries() {
		eps := make([]Entry, 0, len(episodes))
		for _, ep := range episodes {
			eps = append(eps, Entry{
				"season":      ep.Season,
				"episode":     ep.Episode,
				"title":       ep.Title,
				"videoPath":   ep.VideoPath,
				"durationSec": ep.DurationSec,
			})
		}
		e["episodes"] = eps
	} else if doc.VideoPath != "" {
		e["videoPath"] = doc.VideoPath
	}
	return e
}
