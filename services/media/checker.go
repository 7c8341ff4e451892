package media

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"streamvault/models"
)

const (
	existenceWorkers = 8
	repairTimeout    = 5 * time.Second
)

// SeedLookup supplies the seed-file cover fallback for a content entry.
type SeedLookup interface {
	CoverFallback(extID string) string
}

// RepairStore receives the best-effort self-healing writes that drop stale
// media references from the store.
type RepairStore interface {
	ClearVideoPath(ctx context.Context, extID string) error
	DeleteEpisode(ctx context.Context, extID string, season, episode int) error
}

// Checker verifies that referenced media files exist on disk and lazily
// repairs documents that point at files which no longer do.
type Checker struct {
	fs     afero.Fs
	root   string
	seed   SeedLookup
	store  RepairStore
	logger *slog.Logger
}

// NewChecker builds a checker over the given filesystem rooted at root.
// seed and store may be nil; the corresponding fallback/repair steps are
// then skipped.
func NewChecker(fs afero.Fs, root string, seed SeedLookup, store RepairStore, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{fs: fs, root: root, seed: seed, store: store, logger: logger}
}

// Exists reports whether a stored media path resolves to a file under the
// media root. Absolute URLs are never checked against disk.
func (c *Checker) Exists(path string) bool {
	if path == "" {
		return false
	}
	if isRemote(path) {
		return true
	}
	ok, err := afero.Exists(c.fs, c.localPath(path))
	return err == nil && ok
}

// ResolveCover picks the best available cover string for a document:
// remote URLs and legacy /IMG/ paths as-is, then the stored path when the
// file exists, then the seed-file fallback, then the stored value unchanged.
// It never fails; the caller always gets some string back.
func (c *Checker) ResolveCover(extID, stored string) string {
	if isRemote(stored) {
		return stored
	}
	if strings.HasPrefix(stored, "/IMG/") {
		return stored
	}
	if stored != "" && c.Exists(stored) {
		return stored
	}
	if c.seed != nil {
		if fallback := c.seed.CoverFallback(extID); fallback != "" {
			return fallback
		}
	}
	return stored
}

// FilterEpisodes drops episodes whose backing files are missing, checking
// them in parallel, and dispatches a fire-and-forget store repair for each
// dropped one. The returned slice keeps the original order.
func (c *Checker) FilterEpisodes(ctx context.Context, extID string, eps []models.Episode) []models.Episode {
	if len(eps) == 0 {
		return eps
	}

	missing := make([]bool, len(eps))
	p := pool.New().WithMaxGoroutines(existenceWorkers)
	for i := range eps {
		p.Go(func() {
			missing[i] = !c.Exists(eps[i].VideoPath)
		})
	}
	p.Wait()

	kept := make([]models.Episode, 0, len(eps))
	for i, ep := range eps {
		if missing[i] {
			c.repairEpisode(extID, ep.Season, ep.Episode)
			continue
		}
		kept = append(kept, ep)
	}
	return kept
}

// ResolveVideo returns the movie video path when its file exists, otherwise
// an empty string, dispatching a repair that unsets the stale reference.
func (c *Checker) ResolveVideo(ctx context.Context, extID, path string) string {
	if path == "" {
		return ""
	}
	if c.Exists(path) {
		return path
	}
	c.repairVideo(extID)
	return ""
}

// ValidateKind sniffs a local media file and checks its detected MIME type
// against the wanted prefix ("video/", "image/"). Missing files pass: the
// check is best-effort validation of uploads, not an existence gate.
func (c *Checker) ValidateKind(path, wantPrefix string) error {
	if path == "" || isRemote(path) {
		return nil
	}
	f, err := c.fs.Open(c.localPath(path))
	if err != nil {
		return nil
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil
	}
	if !strings.HasPrefix(mime.String(), wantPrefix) {
		return fmt.Errorf("%s: detected %s, want %s*", path, mime.String(), wantPrefix)
	}
	return nil
}

// repairEpisode removes a stale episode row in the background. The read that
// discovered it has already filtered its response; failure here is logged
// and never surfaced.
func (c *Checker) repairEpisode(extID string, season, episode int) {
	if c.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), repairTimeout)
		defer cancel()
		if err := c.store.DeleteEpisode(ctx, extID, season, episode); err != nil {
			c.logger.Warn("episode repair failed",
				"extId", extID, "season", season, "episode", episode, "error", err)
			return
		}
		c.logger.Info("dropped stale episode", "extId", extID, "season", season, "episode", episode)
	}()
}

func (c *Checker) repairVideo(extID string) {
	if c.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), repairTimeout)
		defer cancel()
		if err := c.store.ClearVideoPath(ctx, extID); err != nil {
			c.logger.Warn("video repair failed", "extId", extID, "error", err)
			return
		}
		c.logger.Info("cleared stale video path", "extId", extID)
	}()
}

func (c *Checker) localPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.root, strings.TrimPrefix(path, "/"))
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
