package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"streamvault/internal/database"
	"streamvault/models"
)

var (
	ErrNotFound     = errors.New("content not found")
	ErrInvalidYear  = errors.New("invalid year")
	ErrInvalidRange = errors.New("year_from must not be greater than year_to")
)

// Sort modes accepted by the catalog queries.
const (
	SortPopular = "popular"
	SortAlpha   = "alpha"
	SortRating  = "rating"
	SortNewest  = "newest"
)

const (
	maxPageSize     = 200
	defaultPageSize = 50
	maxSimilar      = 50
)

// ContentStore is the catalog read surface the engine queries.
type ContentStore interface {
	List(ctx context.Context) ([]models.Content, error)
	GetByExtID(ctx context.Context, extID string) (*models.Content, error)
}

// EngagementStore supplies per-profile like and progress lookups.
type EngagementStore interface {
	LikedSet(ctx context.Context, profileID string, extIDs []string) (map[string]bool, error)
	ListLiked(ctx context.Context, profileID string) ([]string, error)
	CompletedCounts(ctx context.Context, profileID string, extIDs []string) (map[string]models.CompletedState, error)
}

// MediaResolver repairs stale media references on the read path.
type MediaResolver interface {
	ResolveCover(extID, stored string) string
	FilterEpisodes(ctx context.Context, extID string, eps []models.Episode) []models.Episode
	ResolveVideo(ctx context.Context, extID, path string) string
}

// Service is the feed/search/similar/recommendation engine.
type Service struct {
	content    ContentStore
	engagement EngagementStore
	media      MediaResolver
	logger     *slog.Logger
}

// NewService wires the engine to its stores. media may be nil in contexts
// that never resolve covers (tests mostly pass a fake).
func NewService(content ContentStore, engagement EngagementStore, media MediaResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{content: content, engagement: engagement, media: media, logger: logger}
}

// FeedQuery are the parameters of a feed request.
type FeedQuery struct {
	Sort      string
	Limit     int
	Offset    int
	ProfileID string
}

// GetFeed returns one sorted, paginated page of the catalog, annotated for
// the profile when one is given.
func (s *Service) GetFeed(ctx context.Context, q FeedQuery) ([]models.FeedItem, error) {
	items, err := s.content.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	mode := normalizeSort(q.Sort)
	if mode == SortRating {
		items = filterRated(items)
	}
	sortContents(items, mode)
	page := paginate(items, q.Limit, q.Offset)

	s.logger.Debug("feed served", "sort", mode, "offset", q.Offset, "items", len(page))
	return s.annotate(ctx, q.ProfileID, page)
}

// GetDetail loads a single document, silently dropping episodes whose backing
// files are gone and clearing a missing movie video, then annotates it.
func (s *Service) GetDetail(ctx context.Context, extID, profileID string) (*models.FeedItem, error) {
	c, err := s.content.GetByExtID(ctx, extID)
	if err != nil {
		if errors.Is(err, database.ErrContentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load content %s: %w", extID, err)
	}

	if s.media != nil {
		c.Episodes = s.media.FilterEpisodes(ctx, c.ExtID, c.Episodes)
		c.EpisodeCount = len(c.Episodes)
		if !c.IsSeries() {
			c.VideoPath = s.media.ResolveVideo(ctx, c.ExtID, c.VideoPath)
		}
		c.Cover = s.media.ResolveCover(c.ExtID, c.Cover)
	}

	annotated, err := s.annotate(ctx, profileID, []models.Content{*c})
	if err != nil {
		return nil, err
	}
	return &annotated[0], nil
}

// Similar returns content sharing at least one genre with the base item,
// popular-first. A base without genres yields an empty result, not an error.
func (s *Service) Similar(ctx context.Context, extID string, limit int, profileID string) ([]models.FeedItem, error) {
	base, err := s.content.GetByExtID(ctx, extID)
	if err != nil {
		if errors.Is(err, database.ErrContentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load content %s: %w", extID, err)
	}
	if len(base.Genres) == 0 {
		return []models.FeedItem{}, nil
	}

	baseGenres := make(map[string]bool, len(base.Genres))
	for _, g := range base.Genres {
		baseGenres[strings.ToLower(g)] = true
	}

	all, err := s.content.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var candidates []models.Content
	for _, c := range all {
		if c.ExtID == base.ExtID {
			continue
		}
		for _, g := range c.Genres {
			if baseGenres[strings.ToLower(g)] {
				candidates = append(candidates, c)
				break
			}
		}
	}

	sortContents(candidates, SortPopular)
	if limit < 1 || limit > maxSimilar {
		limit = maxSimilar
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if s.media != nil {
		for i := range candidates {
			candidates[i].Cover = s.media.ResolveCover(candidates[i].ExtID, candidates[i].Cover)
		}
	}

	return s.annotate(ctx, profileID, candidates)
}

// annotate wraps a page of content into feed items, attaching liked state and
// the watched tag for the profile. Lookups are batched: one liked-set query
// and one completed-progress aggregation per page.
func (s *Service) annotate(ctx context.Context, profileID string, page []models.Content) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, len(page))
	for i, c := range page {
		items[i] = models.FeedItem{Content: c}
	}
	if profileID == "" {
		return items, nil
	}

	extIDs := distinctExtIDs(page)
	liked, err := s.engagement.LikedSet(ctx, profileID, extIDs)
	if err != nil {
		return nil, fmt.Errorf("liked set: %w", err)
	}
	idx, err := s.buildWatchedIndex(ctx, profileID, extIDs)
	if err != nil {
		return nil, err
	}

	for i := range items {
		l := liked[items[i].ExtID]
		items[i].Liked = &l
		if idx.watched(&items[i].Content) {
			items[i].Tags = append(items[i].Tags, "watched")
		}
	}
	return items, nil
}

func distinctExtIDs(page []models.Content) []string {
	seen := make(map[string]bool, len(page))
	ids := make([]string, 0, len(page))
	for _, c := range page {
		if !seen[c.ExtID] {
			seen[c.ExtID] = true
			ids = append(ids, c.ExtID)
		}
	}
	return ids
}

func normalizeSort(mode string) string {
	switch mode {
	case SortAlpha, SortRating, SortNewest:
		return mode
	default:
		return SortPopular
	}
}

func filterRated(items []models.Content) []models.Content {
	rated := items[:0]
	for _, c := range items {
		if c.RatingValue != nil {
			rated = append(rated, c)
		}
	}
	return rated
}

// sortContents orders items in place for the given mode. Every mode ends in
// a title ascending tiebreak so pagination stays stable.
func sortContents(items []models.Content, mode string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := &items[i], &items[j]
		switch mode {
		case SortAlpha:
			return lessTitle(a, b)
		case SortRating:
			av, bv := ratingOf(a), ratingOf(b)
			if av != bv {
				return av > bv
			}
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
			return lessTitle(a, b)
		case SortNewest:
			if a.Year != b.Year {
				return a.Year > b.Year
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return lessTitle(a, b)
		default: // popular
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
			return lessTitle(a, b)
		}
	})
}

func lessTitle(a, b *models.Content) bool {
	return strings.ToLower(a.Title) < strings.ToLower(b.Title)
}

func ratingOf(c *models.Content) float64 {
	if c.RatingValue == nil {
		return 0
	}
	return *c.RatingValue
}

// paginate clamps limit to [1,200] and applies skip/take. Exhaustion is
// signalled by a short page, not a total count.
func paginate(items []models.Content, limit, offset int) []models.Content {
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
