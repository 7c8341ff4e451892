package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"streamvault/models"
)

const topGenreCount = 5

// Recommend returns popular not-yet-liked content matching the profile's
// favorite genres. A profile with no likes gets the globally popular feed.
// Liked is always false by construction: the candidate set excludes liked
// items, so callers can rely on the constant instead of a lookup.
func (s *Service) Recommend(ctx context.Context, profileID string, limit, offset int) ([]models.FeedItem, error) {
	likedIDs, err := s.engagement.ListLiked(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list liked: %w", err)
	}

	all, err := s.content.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var candidates []models.Content
	if len(likedIDs) == 0 {
		// Cold start: globally popular, nothing filtered out.
		candidates = all
	} else {
		likedSet := make(map[string]bool, len(likedIDs))
		for _, id := range likedIDs {
			likedSet[id] = true
		}

		top := s.topGenres(all, likedSet)
		for _, c := range all {
			if likedSet[c.ExtID] {
				continue
			}
			if len(top) == 0 {
				// No liked content carried genres; fall back to "not liked".
				candidates = append(candidates, c)
				continue
			}
			for _, g := range c.Genres {
				if top[strings.ToLower(g)] {
					candidates = append(candidates, c)
					break
				}
			}
		}
	}

	sortContents(candidates, SortPopular)
	page := paginate(candidates, limit, offset)

	s.logger.Debug("recommendations served", "profile", profileID,
		"liked", len(likedIDs), "candidates", len(candidates), "items", len(page))

	items, err := s.annotateWatchedOnly(ctx, profileID, page)
	if err != nil {
		return nil, err
	}
	liked := false
	for i := range items {
		items[i].Liked = &liked
	}
	return items, nil
}

// topGenres counts genre frequency across the profile's liked content and
// keeps the five most frequent. Ties keep first-seen aggregation order, made
// deterministic here by recording first appearance instead of relying on map
// iteration.
func (s *Service) topGenres(all []models.Content, likedSet map[string]bool) map[string]bool {
	counts := make(map[string]int)
	var order []string
	for _, c := range all {
		if !likedSet[c.ExtID] {
			continue
		}
		for _, g := range c.Genres {
			key := strings.ToLower(g)
			if _, seen := counts[key]; !seen {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topGenreCount {
		order = order[:topGenreCount]
	}

	top := make(map[string]bool, len(order))
	for _, g := range order {
		top[g] = true
	}
	return top
}

// annotateWatchedOnly attaches watched tags without a like lookup, for the
// recommendation path where liked state is constant.
func (s *Service) annotateWatchedOnly(ctx context.Context, profileID string, page []models.Content) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, len(page))
	for i, c := range page {
		items[i] = models.FeedItem{Content: c}
	}
	if profileID == "" {
		return items, nil
	}

	idx, err := s.buildWatchedIndex(ctx, profileID, distinctExtIDs(page))
	if err != nil {
		return nil, err
	}
	for i := range items {
		if idx.watched(&items[i].Content) {
			items[i].Tags = append(items[i].Tags, "watched")
		}
	}
	return items, nil
}
