package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"

	"streamvault/models"
)

// SearchQuery carries raw search parameters. Year bounds arrive as the
// original query tokens so validation can distinguish "absent" from
// "non-numeric".
type SearchQuery struct {
	Query     string
	Type      string
	Genre     string
	YearFrom  string
	YearTo    string
	Sort      string
	Limit     int
	Offset    int
	ProfileID string
}

// Search filters the catalog with AND semantics, deduplicates by normalized
// title, then sorts, paginates and annotates like the feed. The normalized
// parameters are echoed back alongside the items.
func (s *Service) Search(ctx context.Context, q SearchQuery) (models.SearchQueryEcho, []models.FeedItem, error) {
	echo := models.SearchQueryEcho{
		Query:  strings.TrimSpace(q.Query),
		Type:   strings.TrimSpace(q.Type),
		Genre:  strings.TrimSpace(q.Genre),
		Sort:   normalizeSort(q.Sort),
		Limit:  clampLimit(q.Limit),
		Offset: maxInt(q.Offset, 0),
	}

	yearFrom, err := parseYear(q.YearFrom)
	if err != nil {
		return echo, nil, err
	}
	yearTo, err := parseYear(q.YearTo)
	if err != nil {
		return echo, nil, err
	}
	if yearFrom != nil && yearTo != nil && *yearFrom > *yearTo {
		return echo, nil, ErrInvalidRange
	}
	echo.YearFrom = yearFrom
	echo.YearTo = yearTo

	all, err := s.content.List(ctx)
	if err != nil {
		return echo, nil, fmt.Errorf("load catalog: %w", err)
	}

	matched := all[:0]
	for _, c := range all {
		if matchesSearch(&c, echo, yearFrom, yearTo) {
			matched = append(matched, c)
		}
	}

	deduped := dedupeByTitle(matched)
	if echo.Sort == SortRating {
		deduped = filterRated(deduped)
	}
	sortContents(deduped, echo.Sort)
	page := paginate(deduped, q.Limit, q.Offset)

	s.logger.Debug("search served", "query", echo.Query, "matches", len(deduped), "items", len(page))
	items, err := s.annotate(ctx, q.ProfileID, page)
	return echo, items, err
}

func matchesSearch(c *models.Content, echo models.SearchQueryEcho, yearFrom, yearTo *int) bool {
	if echo.Query != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(echo.Query)) {
		return false
	}
	if echo.Type != "" && !strings.EqualFold(c.Type, echo.Type) {
		return false
	}
	if echo.Genre != "" {
		want := strings.ToLower(echo.Genre)
		found := false
		for _, g := range c.Genres {
			if strings.Contains(strings.ToLower(g), want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if yearFrom != nil && c.Year < *yearFrom {
		return false
	}
	if yearTo != nil && c.Year > *yearTo {
		return false
	}
	return true
}

// dedupeByTitle keeps, per normalized title, only the entry with the highest
// likes*1000 + ratingValue score. This collapses re-seeded duplicates without
// touching the store.
func dedupeByTitle(items []models.Content) []models.Content {
	kept := make([]models.Content, 0, len(items))
	index := make(map[string]int, len(items))

	for _, c := range items {
		key := titleKey(c.Title)
		if at, ok := index[key]; ok {
			if contentScore(&c) > contentScore(&kept[at]) {
				kept[at] = c
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, c)
	}
	return kept
}

// titleKey folds a title into its dedupe key: transliterated, case-folded,
// trimmed. Transliteration collapses accented variants of the same title
// ("Café" and "Cafe" share a key), wider than plain lower-casing.
func titleKey(title string) string {
	return strings.TrimSpace(cases.Fold().String(unidecode.Unidecode(title)))
}

func contentScore(c *models.Content) float64 {
	return float64(c.Likes)*1000 + ratingOf(c)
}

func parseYear(token string) (*int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidYear, token)
	}
	return &year, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
