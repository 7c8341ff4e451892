package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"streamvault/models"
)

// EngagementRepository persists likes and watch progress.
type EngagementRepository struct {
	db *sql.DB
}

// NewEngagementRepository creates a repository bound to the given connection.
func NewEngagementRepository(db *sql.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// ToggleLike sets or clears a like for (profile, content) and adjusts the
// content's like counter in the same transaction. Toggling an already-set
// state is a no-op on the counter, so concurrent repeats cannot drift it.
func (r *EngagementRepository) ToggleLike(ctx context.Context, profileID, extID string, like bool) (bool, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin like toggle: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if like {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO likes (profile_id, content_ext_id, created_at) VALUES (?, ?, ?)`,
			profileID, extID, time.Now().UTC())
	} else {
		res, err = tx.ExecContext(ctx,
			`DELETE FROM likes WHERE profile_id = ? AND content_ext_id = ?`,
			profileID, extID)
	}
	if err != nil {
		return false, 0, fmt.Errorf("toggle like %s/%s: %w", profileID, extID, err)
	}

	changed, _ := res.RowsAffected()

	var likes int
	if changed > 0 {
		delta := 1
		if !like {
			delta = -1
		}
		err = tx.QueryRowContext(ctx,
			`UPDATE content SET likes = MAX(likes + ?, 0) WHERE ext_id = ? RETURNING likes`,
			delta, extID).Scan(&likes)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT likes FROM content WHERE ext_id = ?`, extID).Scan(&likes)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, ErrContentNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("adjust like counter %s: %w", extID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit like toggle: %w", err)
	}
	return like, likes, nil
}

// LikedSet reports which of the given ext ids the profile has liked.
func (r *EngagementRepository) LikedSet(ctx context.Context, profileID string, extIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(extIDs))
	if len(extIDs) == 0 {
		return liked, nil
	}

	query := fmt.Sprintf(
		`SELECT content_ext_id FROM likes WHERE profile_id = ? AND content_ext_id IN (%s)`,
		placeholders(len(extIDs)))
	args := make([]any, 0, len(extIDs)+1)
	args = append(args, profileID)
	for _, id := range extIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("liked set %s: %w", profileID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan liked id: %w", err)
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

// ListLiked returns every content ext id the profile has liked.
func (r *EngagementRepository) ListLiked(ctx context.Context, profileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT content_ext_id FROM likes WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list liked %s: %w", profileID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan liked id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertProgress records a playback position, replacing any previous report
// for the same (profile, content, season, episode) slot in one statement.
func (r *EngagementRepository) UpsertProgress(ctx context.Context, p models.WatchProgress) error {
	season, episode := progressSlot(p.Season, p.Episode)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watch_progress (profile_id, content_ext_id, season, episode,
			position_sec, duration_sec, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, content_ext_id, season, episode) DO UPDATE SET
			position_sec = excluded.position_sec,
			duration_sec = excluded.duration_sec,
			completed = excluded.completed,
			updated_at = excluded.updated_at`,
		p.ProfileID, p.ContentExtID, season, episode,
		p.PositionSec, p.DurationSec, p.Completed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert progress %s/%s: %w", p.ProfileID, p.ContentExtID, err)
	}
	return nil
}

// GetProgress returns all progress rows for a (profile, content) pair,
// movie-level row included.
func (r *EngagementRepository) GetProgress(ctx context.Context, profileID, extID string) ([]models.WatchProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT profile_id, content_ext_id, season, episode, position_sec,
			duration_sec, completed, updated_at
		FROM watch_progress
		WHERE profile_id = ? AND content_ext_id = ?
		ORDER BY season, episode`, profileID, extID)
	if err != nil {
		return nil, fmt.Errorf("get progress %s/%s: %w", profileID, extID, err)
	}
	defer rows.Close()

	return scanProgress(rows)
}

// ListContinueWatching returns the profile's most recent unfinished progress
// rows, newest first.
func (r *EngagementRepository) ListContinueWatching(ctx context.Context, profileID string, limit int) ([]models.WatchProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT profile_id, content_ext_id, season, episode, position_sec,
			duration_sec, completed, updated_at
		FROM watch_progress
		WHERE profile_id = ? AND completed = 0
		ORDER BY updated_at DESC
		LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("continue watching %s: %w", profileID, err)
	}
	defer rows.Close()

	return scanProgress(rows)
}

// DeleteProgress removes every progress row for (profile, content), the
// "rewatch" reset. Returns the number of rows dropped.
func (r *EngagementRepository) DeleteProgress(ctx context.Context, profileID, extID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_progress WHERE profile_id = ? AND content_ext_id = ?`,
		profileID, extID)
	if err != nil {
		return 0, fmt.Errorf("delete progress %s/%s: %w", profileID, extID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CompletedCounts aggregates completed progress per content in one query:
// distinct completed episode slots plus whether the movie-level slot is done.
func (r *EngagementRepository) CompletedCounts(ctx context.Context, profileID string, extIDs []string) (map[string]models.CompletedState, error) {
	out := make(map[string]models.CompletedState, len(extIDs))
	if len(extIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT content_ext_id,
			SUM(CASE WHEN season > 0 THEN 1 ELSE 0 END),
			MAX(CASE WHEN season = 0 AND episode = 0 THEN 1 ELSE 0 END)
		FROM watch_progress
		WHERE profile_id = ? AND completed = 1 AND content_ext_id IN (%s)
		GROUP BY content_ext_id`, placeholders(len(extIDs)))
	args := make([]any, 0, len(extIDs)+1)
	args = append(args, profileID)
	for _, id := range extIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("completed counts %s: %w", profileID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			episodes  int
			movieDone int
		)
		if err := rows.Scan(&id, &episodes, &movieDone); err != nil {
			return nil, fmt.Errorf("scan completed counts: %w", err)
		}
		out[id] = models.CompletedState{EpisodesDone: episodes, MovieDone: movieDone == 1}
	}
	return out, rows.Err()
}

func scanProgress(rows *sql.Rows) ([]models.WatchProgress, error) {
	var out []models.WatchProgress
	for rows.Next() {
		var (
			p               models.WatchProgress
			season, episode int
		)
		if err := rows.Scan(&p.ProfileID, &p.ContentExtID, &season, &episode,
			&p.PositionSec, &p.DurationSec, &p.Completed, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if season > 0 {
			p.Season = &season
			p.Episode = &episode
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// progressSlot maps the nullable (season, episode) pair onto the storage
// encoding where 0/0 is whole-movie progress.
func progressSlot(season, episode *int) (int, int) {
	if season == nil || episode == nil {
		return 0, 0
	}
	return *season, *episode
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
