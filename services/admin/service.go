package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/avast/retry-go/v4"

	"streamvault/internal/database"
	"streamvault/models"
)

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidType      = errors.New("type must be Movie or Series")
	ErrInvalidEpisode   = errors.New("season and episode must be positive")
	ErrDuplicateEpisode = errors.New("episode already exists")
	ErrInvalidMedia     = errors.New("media file has wrong type")
)

const insertAttempts = 5

// Store is the content-store surface the admin manager writes through.
type Store interface {
	List(ctx context.Context) ([]models.Content, error)
	GetByExtID(ctx context.Context, extID string) (*models.Content, error)
	Insert(ctx context.Context, c *models.Content) error
	UpdateFields(ctx context.Context, extID string, fields map[string]any) error
	Delete(ctx context.Context, extID string) error
	ReplaceEpisodes(ctx context.Context, extID string, eps []models.Episode) error
	ListExtIDs(ctx context.Context, contentType string) ([]string, error)
}

// Reconciler mirrors admin writes into the seed file.
type Reconciler interface {
	SyncContentWithDoc(ctx context.Context, doc *models.Content, overrideEpisodes []models.Episode) error
	RemoveEntry(ctx context.Context, extID string) error
}

// MetadataSource enriches new content from a third-party catalog.
type MetadataSource interface {
	Lookup(ctx context.Context, title string, year int) (*models.MetadataInfo, error)
}

// MediaValidator sniffs uploaded media files. May be nil.
type MediaValidator interface {
	ValidateKind(path, wantPrefix string) error
}

// Service is the admin content manager.
type Service struct {
	store      Store
	reconciler Reconciler
	meta       MetadataSource
	media      MediaValidator
	logger     *slog.Logger
}

// NewService wires the admin manager. meta and media may be nil to disable
// enrichment and upload sniffing.
func NewService(store Store, reconciler Reconciler, meta MetadataSource, media MediaValidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, reconciler: reconciler, meta: meta, media: media, logger: logger}
}

// ListContent returns the whole catalog alphabetically for the admin console.
func (s *Service) ListContent(ctx context.Context) ([]models.Content, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
	})
	return items, nil
}

// ComputeNextExtID derives the next free external id for a content type:
// prefix m (Movie) or s (Series) plus one past the highest numeric suffix in
// use.
func (s *Service) ComputeNextExtID(ctx context.Context, contentType string) (string, error) {
	prefix, err := extIDPrefix(contentType)
	if err != nil {
		return "", err
	}
	canonical := models.ContentTypeMovie
	if prefix == "s" {
		canonical = models.ContentTypeSeries
	}

	ids, err := s.store.ListExtIDs(ctx, canonical)
	if err != nil {
		return "", fmt.Errorf("list ext ids: %w", err)
	}

	pattern := regexp.MustCompile(`(?i)^` + prefix + `(\d+)$`)
	max := 0
	for _, id := range ids {
		m := pattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1), nil
}

// CreateContent validates and stores a new document under a freshly computed
// ext id, then mirrors it into the seed file. Id collisions with concurrent
// creates are retried optimistically, recomputing the id each attempt.
func (s *Service) CreateContent(ctx context.Context, in models.ContentUpsert) (*models.Content, error) {
	doc, err := s.buildDoc(in)
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, doc)

	err = retry.Do(
		func() error {
			id, err := s.ComputeNextExtID(ctx, doc.Type)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			doc.ExtID = id
			return s.store.Insert(ctx, doc)
		},
		retry.Attempts(insertAttempts),
		retry.RetryIf(func(err error) bool { return errors.Is(err, database.ErrDuplicateExtID) }),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateExtID) {
			// Exhausted id allocation is an internal failure, not a client
			// conflict. The %v strips the duplicate identity.
			return nil, fmt.Errorf("insert content: ext id allocation exhausted after %d attempts: %v", insertAttempts, err)
		}
		return nil, fmt.Errorf("insert content: %w", err)
	}

	s.syncSeed(ctx, doc, nil)
	s.logger.Info("content created", "extId", doc.ExtID, "type", doc.Type, "title", doc.Title)
	return doc, nil
}

// UpdateContent applies a field-level partial update. The ext id and type
// are immutable; a type in the input is ignored.
func (s *Service) UpdateContent(ctx context.Context, extID string, in models.ContentUpsert) (*models.Content, error) {
	fields := map[string]any{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Year != nil {
		fields["year"] = *in.Year
	}
	if in.Genres != nil {
		fields["genres"] = in.Genres
	}
	if in.Cover != nil {
		if err := s.validateMedia(*in.Cover, "image/"); err != nil {
			return nil, err
		}
		fields["cover"] = *in.Cover
	}
	if in.Plot != nil {
		fields["plot"] = *in.Plot
	}
	if in.Director != nil {
		fields["director"] = *in.Director
	}
	if in.Actors != nil {
		fields["actors"] = in.Actors
	}
	if in.Rating != nil {
		fields["rating"] = *in.Rating
	}
	if in.RatingValue != nil {
		fields["rating_value"] = *in.RatingValue
	}
	if in.VideoPath != nil {
		if err := s.validateMedia(*in.VideoPath, "video/"); err != nil {
			return nil, err
		}
		fields["video_path"] = *in.VideoPath
	}

	if len(fields) > 0 {
		if err := s.store.UpdateFields(ctx, extID, fields); err != nil {
			return nil, err
		}
	}
	if in.Episodes != nil {
		eps, err := normalizeEpisodes(in.Episodes)
		if err != nil {
			return nil, err
		}
		if err := s.store.ReplaceEpisodes(ctx, extID, eps); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.GetByExtID(ctx, extID)
	if err != nil {
		return nil, err
	}
	s.syncSeed(ctx, doc, nil)
	s.logger.Info("content updated", "extId", extID)
	return doc, nil
}

// DeleteContent removes a document and its seed entry.
func (s *Service) DeleteContent(ctx context.Context, extID string) error {
	if err := s.store.Delete(ctx, extID); err != nil {
		return err
	}
	if err := s.reconciler.RemoveEntry(ctx, extID); err != nil {
		s.logger.Warn("seed entry removal failed", "extId", extID, "error", err)
	}
	s.logger.Info("content deleted", "extId", extID)
	return nil
}

// AddEpisode appends an episode to a series, keeping the list sorted and the
// (season, episode) pair unique.
func (s *Service) AddEpisode(ctx context.Context, extID string, ep models.Episode) (*models.Content, error) {
	if ep.Season < 1 || ep.Episode < 1 {
		return nil, ErrInvalidEpisode
	}
	if err := s.validateMedia(ep.VideoPath, "video/"); err != nil {
		return nil, err
	}

	doc, err := s.store.GetByExtID(ctx, extID)
	if err != nil {
		return nil, err
	}
	if !doc.IsSeries() {
		return nil, ErrInvalidType
	}
	for _, existing := range doc.Episodes {
		if existing.Season == ep.Season && existing.Episode == ep.Episode {
			return nil, ErrDuplicateEpisode
		}
	}

	doc.Episodes = append(doc.Episodes, ep)
	doc.SortEpisodes()
	if err := s.store.ReplaceEpisodes(ctx, extID, doc.Episodes); err != nil {
		return nil, err
	}

	s.syncSeed(ctx, doc, doc.Episodes)
	s.logger.Info("episode added", "extId", extID, "season", ep.Season, "episode", ep.Episode)
	return doc, nil
}

// RemoveEpisode drops one episode from a series.
func (s *Service) RemoveEpisode(ctx context.Context, extID string, season, episode int) (*models.Content, error) {
	doc, err := s.store.GetByExtID(ctx, extID)
	if err != nil {
		return nil, err
	}

	kept := doc.Episodes[:0]
	for _, ep := range doc.Episodes {
		if ep.Season == season && ep.Episode == episode {
			continue
		}
		kept = append(kept, ep)
	}
	doc.Episodes = kept
	if err := s.store.ReplaceEpisodes(ctx, extID, doc.Episodes); err != nil {
		return nil, err
	}

	s.syncSeed(ctx, doc, doc.Episodes)
	s.logger.Info("episode removed", "extId", extID, "season", season, "episode", episode)
	return doc, nil
}

func (s *Service) buildDoc(in models.ContentUpsert) (*models.Content, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, ErrTitleRequired
	}
	contentType := models.ContentTypeMovie
	if in.Type != nil {
		switch strings.ToLower(strings.TrimSpace(*in.Type)) {
		case "movie":
			contentType = models.ContentTypeMovie
		case "series":
			contentType = models.ContentTypeSeries
		default:
			return nil, ErrInvalidType
		}
	}

	doc := &models.Content{
		Title:  strings.TrimSpace(*in.Title),
		Type:   contentType,
		Genres: in.Genres,
		Actors: in.Actors,
	}
	if in.Year != nil {
		doc.Year = *in.Year
	}
	if in.Cover != nil {
		if err := s.validateMedia(*in.Cover, "image/"); err != nil {
			return nil, err
		}
		doc.Cover = *in.Cover
	}
	if in.Plot != nil {
		doc.Plot = *in.Plot
	}
	if in.Director != nil {
		doc.Director = *in.Director
	}
	if in.Rating != nil {
		doc.Rating = *in.Rating
	}
	if in.RatingValue != nil {
		doc.RatingValue = in.RatingValue
	}

	if doc.IsSeries() {
		eps, err := normalizeEpisodes(in.Episodes)
		if err != nil {
			return nil, err
		}
		doc.Episodes = eps
	} else if in.VideoPath != nil {
		if err := s.validateMedia(*in.VideoPath, "video/"); err != nil {
			return nil, err
		}
		doc.VideoPath = *in.VideoPath
	}
	return doc, nil
}

// enrich fills empty descriptive fields from the metadata source. Lookup
// failures only disable enrichment, never the write.
func (s *Service) enrich(ctx context.Context, doc *models.Content) {
	if s.meta == nil {
		return
	}
	if doc.Plot != "" && doc.Director != "" && len(doc.Actors) > 0 && doc.Rating != "" {
		return
	}

	info, err := s.meta.Lookup(ctx, doc.Title, doc.Year)
	if err != nil {
		s.logger.Debug("metadata enrichment skipped", "title", doc.Title, "error", err)
		return
	}

	if doc.Plot == "" {
		doc.Plot = info.Plot
	}
	if doc.Director == "" {
		doc.Director = info.Director
	}
	if len(doc.Actors) == 0 {
		doc.Actors = info.Actors
	}
	if doc.Rating == "" {
		doc.Rating = info.Rating
		if doc.RatingValue == nil {
			doc.RatingValue = info.RatingValue
		}
	}
}

// syncSeed mirrors the document into the seed file. The seed is an
// eventually consistent export; failures are logged, not surfaced.
func (s *Service) syncSeed(ctx context.Context, doc *models.Content, overrideEpisodes []models.Episode) {
	if err := s.reconciler.SyncContentWithDoc(ctx, doc, overrideEpisodes); err != nil {
		s.logger.Warn("seed sync failed", "extId", doc.ExtID, "error", err)
	}
}

func (s *Service) validateMedia(path, wantPrefix string) error {
	if s.media == nil || path == "" {
		return nil
	}
	if err := s.media.ValidateKind(path, wantPrefix); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return nil
}

func normalizeEpisodes(eps []models.Episode) ([]models.Episode, error) {
	seen := make(map[[2]int]bool, len(eps))
	out := make([]models.Episode, 0, len(eps))
	for _, ep := range eps {
		if ep.Season < 1 || ep.Episode < 1 {
			return nil, ErrInvalidEpisode
		}
		slot := [2]int{ep.Season, ep.Episode}
		if seen[slot] {
			return nil, ErrDuplicateEpisode
		}
		seen[slot] = true
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Episode < out[j].Episode
	})
	return out, nil
}

func extIDPrefix(contentType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "movie":
		return "m", nil
	case "series":
		return "s", nil
	default:
		return "", ErrInvalidType
	}
}
