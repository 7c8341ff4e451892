package catalog

import (
	"context"
	"fmt"

	"streamvault/models"
)

// watchedIndex provides O(1) watched-state lookups for a page of items,
// built from a single completed-progress aggregation.
type watchedIndex struct {
	completed map[string]models.CompletedState
}

func (s *Service) buildWatchedIndex(ctx context.Context, profileID string, extIDs []string) (*watchedIndex, error) {
	completed, err := s.engagement.CompletedCounts(ctx, profileID, extIDs)
	if err != nil {
		return nil, fmt.Errorf("completed counts: %w", err)
	}
	return &watchedIndex{completed: completed}, nil
}

// watched reports whether the profile has finished the item: every episode
// slot completed for episode-bearing content, or the movie-level slot
// completed otherwise.
func (idx *watchedIndex) watched(c *models.Content) bool {
	st := idx.completed[c.ExtID]
	if c.EpisodeCount > 0 {
		return st.EpisodesDone >= c.EpisodeCount
	}
	return st.MovieDone
}
