package models

import "time"

// Like marks a (profile, content) pair as liked. Existence is the whole
// record; likes are created and destroyed by toggle, never updated.
type Like struct {
	ProfileID    string    `json:"profileId"`
	ContentExtID string    `json:"contentExtId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WatchProgress is one playback position report. A nil Season/Episode pair is
// whole-movie progress, distinct from any episode-level row for the same
// content.
type WatchProgress struct {
	ProfileID    string    `json:"profileId"`
	ContentExtID string    `json:"contentExtId"`
	Season       *int      `json:"season"`
	Episode      *int      `json:"episode"`
	PositionSec  float64   `json:"positionSec"`
	DurationSec  float64   `json:"durationSec"`
	Completed    bool      `json:"completed"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProgressUpsert is the request body for reporting playback progress.
type ProgressUpsert struct {
	ProfileID    string  `json:"profileId"`
	ContentExtID string  `json:"contentExtId"`
	Season       *int    `json:"season,omitempty"`
	Episode      *int    `json:"episode,omitempty"`
	PositionSec  float64 `json:"positionSec"`
	DurationSec  float64 `json:"durationSec"`
	Completed    bool    `json:"completed"`
}

// LikeToggle is the request body for toggling a like.
type LikeToggle struct {
	ProfileID    string `json:"profileId"`
	ContentExtID string `json:"contentExtId"`
	Like         bool   `json:"like"`
}

// CompletedState is the per-content result of the batched completed-progress
// aggregation used to compute the watched tag.
type CompletedState struct {
	EpisodesDone int
	MovieDone    bool
}
