package seed

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"streamvault/internal/database"
	"streamvault/models"
)

var ratingNumberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// SeedContentIfNeeded bulk-loads the seed file into the content store.
// Entries missing from the store are inserted as-is (first-boot cold start);
// entries already present are only touched when force is set, and then with
// a field-level update that never overwrites the live like counter. Store
// documents absent from the seed are never deleted.
func (r *Reconciler) SeedContentIfNeeded(ctx context.Context, force bool) error {
	r.mu.Lock()
	f, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return err
	}

	inserted, updated, skipped := 0, 0, 0
	for _, raw := range f.Entries {
		doc, ok := parseEntry(raw)
		if !ok {
			skipped++
			continue
		}

		_, err := r.store.GetByExtID(ctx, doc.ExtID)
		switch {
		case errors.Is(err, database.ErrContentNotFound):
			if err := r.store.Insert(ctx, doc); err != nil {
				return err
			}
			inserted++
		case err != nil:
			return err
		case force:
			fields := map[string]any{
				"title":      doc.Title,
				"year":       doc.Year,
				"genres":     doc.Genres,
				"cover":      doc.Cover,
				"type":       doc.Type,
				"plot":       doc.Plot,
				"director":   doc.Director,
				"actors":     doc.Actors,
				"rating":     doc.Rating,
				"video_path": doc.VideoPath,
			}
			if doc.RatingValue != nil {
				fields["rating_value"] = *doc.RatingValue
			}
			if err := r.store.UpdateFields(ctx, doc.ExtID, fields); err != nil {
				return err
			}
			if doc.IsSeries() {
				if err := r.store.ReplaceEpisodes(ctx, doc.ExtID, doc.Episodes); err != nil {
					return err
				}
			}
			updated++
		default:
			skipped++
		}
	}

	r.logger.Info("seed reconciled", "entries", len(f.Entries),
		"inserted", inserted, "updated", updated, "skipped", skipped, "force", force)
	return nil
}

// parseEntry derives a content document from a raw seed record. Entries
// without an id or title are unusable and reported as not-ok.
func parseEntry(e Entry) (*models.Content, bool) {
	extID := e.extID()
	title := e.stringField("title")
	if extID == "" || title == "" {
		return nil, false
	}

	doc := &models.Content{
		ExtID:     extID,
		Title:     title,
		Genres:    e.stringsField("genres", "genre"),
		Cover:     e.stringField("cover", "poster", "image", "img"),
		Plot:      e.stringField("plot"),
		Director:  e.stringField("director"),
		Actors:    e.stringsField("actors"),
		Rating:    e.stringField("rating"),
		VideoPath: e.stringField("videoPath"),
	}
	if year, ok := e.intField("year", "releaseYear"); ok {
		doc.Year = year
	}
	if likes, ok := e.intField("likes"); ok && likes > 0 {
		doc.Likes = likes
	}
	if match := ratingNumberRe.FindString(doc.Rating); match != "" {
		if v, err := strconv.ParseFloat(match, 64); err == nil {
			doc.RatingValue = &v
		}
	}

	doc.Episodes = parseEpisodes(e["episodes"])
	doc.Type = normalizeType(e.stringField("type"), len(doc.Episodes) > 0)
	if doc.IsSeries() {
		doc.VideoPath = ""
	} else {
		doc.Episodes = nil
	}
	return doc, true
}

// parseEpisodes normalizes the raw episode list, dropping malformed entries:
// anything that is not an object with positive season and episode numbers.
func parseEpisodes(raw any) []models.Episode {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var eps []models.Episode
	seen := make(map[[2]int]bool)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := Entry(m)
		season, sok := entry.intField("season")
		episode, eok := entry.intField("episode")
		if !sok || !eok || season < 1 || episode < 1 {
			continue
		}
		slot := [2]int{season, episode}
		if seen[slot] {
			continue
		}
		seen[slot] = true

		ep := models.Episode{
			Season:    season,
			Episode:   episode,
			Title:     entry.stringField("title"),
			VideoPath: entry.stringField("videoPath"),
		}
		if d, ok := entry.intField("durationSec", "duration"); ok {
			ep.DurationSec = d
		}
		eps = append(eps, ep)
	}

	sort.Slice(eps, func(i, j int) bool {
		if eps[i].Season != eps[j].Season {
			return eps[i].Season < eps[j].Season
		}
		return eps[i].Episode < eps[j].Episode
	})
	return eps
}

func normalizeType(raw string, hasEpisodes bool) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "movie":
		return models.ContentTypeMovie
	case "series":
		return models.ContentTypeSeries
	}
	if hasEpisodes {
		return models.ContentTypeSeries
	}
	return models.ContentTypeMovie
}
