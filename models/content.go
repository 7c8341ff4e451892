package models

import (
	"sort"
	"time"
)

// Content types. Series carry their video paths on episodes; movies carry a
// single VideoPath on the document itself.
const (
	ContentTypeMovie  = "Movie"
	ContentTypeSeries = "Series"
)

// Episode is a single episode of a series.
type Episode struct {
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	Title       string `json:"title"`
	VideoPath   string `json:"videoPath"`
	DurationSec int    `json:"durationSec,omitempty"`
}

// Content is a catalog document. ExtID is the stable external identifier
// ("m12", "s3") and never changes once assigned.
type Content struct {
	ExtID       string    `json:"extId"`
	Title       string    `json:"title"`
	Year        int       `json:"year"`
	Genres      []string  `json:"genres"`
	Likes       int       `json:"likes"`
	Cover       string    `json:"cover"`
	Type        string    `json:"type"`
	Plot        string    `json:"plot,omitempty"`
	Director    string    `json:"director,omitempty"`
	Actors      []string  `json:"actors,omitempty"`
	Rating      string    `json:"rating,omitempty"`
	RatingValue *float64  `json:"ratingValue,omitempty"`
	VideoPath   string    `json:"videoPath,omitempty"`
	Episodes    []Episode `json:"episodes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// EpisodeCount is populated on list queries without loading full episode
	// rows. For documents loaded with episodes it matches len(Episodes).
	EpisodeCount int `json:"-"`
}

// IsSeries reports whether the document is episode-bearing.
func (c *Content) IsSeries() bool {
	return c.Type == ContentTypeSeries
}

// SortEpisodes orders the episode list by (season, episode).
func (c *Content) SortEpisodes() {
	sort.Slice(c.Episodes, func(i, j int) bool {
		if c.Episodes[i].Season != c.Episodes[j].Season {
			return c.Episodes[i].Season < c.Episodes[j].Season
		}
		return c.Episodes[i].Episode < c.Episodes[j].Episode
	})
}

// FeedItem is the annotated projection returned by the catalog engine.
// Liked is only present when the query carried a profile id.
type FeedItem struct {
	Content
	Liked *bool    `json:"liked,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// SearchQueryEcho mirrors the normalized search parameters back to the caller.
type SearchQueryEcho struct {
	Query    string `json:"query,omitempty"`
	Type     string `json:"type,omitempty"`
	Genre    string `json:"genre,omitempty"`
	YearFrom *int   `json:"yearFrom,omitempty"`
	YearTo   *int   `json:"yearTo,omitempty"`
	Sort     string `json:"sort"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// ContentUpsert is the admin input for creating or updating content.
// Nil pointers mean "leave unchanged" on update.
type ContentUpsert struct {
	Title       *string   `json:"title,omitempty"`
	Year        *int      `json:"year,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Cover       *string   `json:"cover,omitempty"`
	Type        *string   `json:"type,omitempty"`
	Plot        *string   `json:"plot,omitempty"`
	Director    *string   `json:"director,omitempty"`
	Actors      []string  `json:"actors,omitempty"`
	Rating      *string   `json:"rating,omitempty"`
	RatingValue *float64  `json:"ratingValue,omitempty"`
	VideoPath   *string   `json:"videoPath,omitempty"`
	Episodes    []Episode `json:"episodes,omitempty"`
}

// MetadataInfo is the enrichment payload returned by the external metadata
// source for a title lookup.
type MetadataInfo struct {
	Plot        string
	Director    string
	Actors      []string
	Rating      string
	RatingValue *float64
}
