package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"streamvault/models"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrDuplicateExtID  = errors.New("content ext id already exists")
)

// contentColumns are the fields allowed through UpdateFields, keyed by
// column name.
var contentColumns = map[string]bool{
	"title":        true,
	"year":         true,
	"genres":       true,
	"cover":        true,
	"type":         true,
	"plot":         true,
	"director":     true,
	"actors":       true,
	"rating":       true,
	"rating_value": true,
	"video_path":   true,
	"likes":        true,
}

// ContentRepository persists catalog content documents.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a repository bound to the given connection.
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Insert stores a new content document together with its episodes.
// Returns ErrDuplicateExtID when the ext id is already taken.
func (r *ContentRepository) Insert(ctx context.Context, c *models.Content) error {
	if c.ExtID == "" {
		return errors.New("ext id is required")
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content (ext_id, title, year, genres, likes, cover, type,
			plot, director, actors, rating, rating_value, video_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ExtID, c.Title, c.Year, marshalStrings(c.Genres), c.Likes, c.Cover, c.Type,
		c.Plot, c.Director, marshalStrings(c.Actors), c.Rating, c.RatingValue,
		c.VideoPath, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateExtID
		}
		return fmt.Errorf("insert content %s: %w", c.ExtID, err)
	}

	if err := insertEpisodes(ctx, tx, c.ExtID, c.Episodes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	c.EpisodeCount = len(c.Episodes)
	return nil
}

// GetByExtID loads a single document with its episode list, sorted by
// (season, episode).
func (r *ContentRepository) GetByExtID(ctx context.Context, extID string) (*models.Content, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT ext_id, title, year, genres, likes, cover, type, plot, director,
			actors, rating, rating_value, video_path, created_at, updated_at
		FROM content WHERE ext_id = ?`, extID)

	c, err := scanContent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("get content %s: %w", extID, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT season, episode, title, video_path, duration_sec
		FROM episodes WHERE content_ext_id = ?
		ORDER BY season, episode`, extID)
	if err != nil {
		return nil, fmt.Errorf("get episodes %s: %w", extID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ep models.Episode
		if err := rows.Scan(&ep.Season, &ep.Episode, &ep.Title, &ep.VideoPath, &ep.DurationSec); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		c.Episodes = append(c.Episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	c.EpisodeCount = len(c.Episodes)
	return c, nil
}

// List returns every content document without episode rows; EpisodeCount is
// filled from a subquery so the watched tag can be computed per page.
func (r *ContentRepository) List(ctx context.Context) ([]models.Content, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.ext_id, c.title, c.year, c.genres, c.likes, c.cover, c.type,
			c.plot, c.director, c.actors, c.rating, c.rating_value, c.video_path,
			c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM episodes e WHERE e.content_ext_id = c.ext_id)
		FROM content c`)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var out []models.Content
	for rows.Next() {
		c, err := scanContentRow(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return out, nil
}

// ListExtIDs returns all ext ids, optionally restricted to a content type.
func (r *ContentRepository) ListExtIDs(ctx context.Context, contentType string) ([]string, error) {
	query := `SELECT ext_id FROM content`
	args := []any{}
	if contentType != "" {
		query += ` WHERE type = ?`
		args = append(args, contentType)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ext ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ext id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateFields applies a field-level partial update. Keys must be column
// names from the content table; []string values are stored as JSON.
func (r *ContentRepository) UpdateFields(ctx context.Context, extID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for col, val := range fields {
		if !contentColumns[col] {
			return fmt.Errorf("update content: unknown column %q", col)
		}
		if ss, ok := val.([]string); ok {
			val = marshalStrings(ss)
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), extID)

	res, err := r.db.ExecContext(ctx,
		"UPDATE content SET "+strings.Join(sets, ", ")+" WHERE ext_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update content %s: %w", extID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContentNotFound
	}
	return nil
}

// Delete removes a document; episode rows go with it via the foreign key.
func (r *ContentRepository) Delete(ctx context.Context, extID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content WHERE ext_id = ?`, extID)
	if err != nil {
		return fmt.Errorf("delete content %s: %w", extID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContentNotFound
	}
	return nil
}

// IncrementLikes atomically adjusts the like counter, clamping at zero, and
// returns the new value.
func (r *ContentRepository) IncrementLikes(ctx context.Context, extID string, delta int) (int, error) {
	var likes int
	err := r.db.QueryRowContext(ctx,
		`UPDATE content SET likes = MAX(likes + ?, 0) WHERE ext_id = ? RETURNING likes`,
		delta, extID).Scan(&likes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrContentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment likes %s: %w", extID, err)
	}
	return likes, nil
}

// ClearVideoPath unsets a movie's video path after the backing file went
// missing.
func (r *ContentRepository) ClearVideoPath(ctx context.Context, extID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE content SET video_path = '', updated_at = ? WHERE ext_id = ?`,
		time.Now().UTC(), extID)
	if err != nil {
		return fmt.Errorf("clear video path %s: %w", extID, err)
	}
	return nil
}

// DeleteEpisode drops a single stale episode row.
func (r *ContentRepository) DeleteEpisode(ctx context.Context, extID string, season, episode int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM episodes WHERE content_ext_id = ? AND season = ? AND episode = ?`,
		extID, season, episode)
	if err != nil {
		return fmt.Errorf("delete episode %s s%de%d: %w", extID, season, episode, err)
	}
	return nil
}

// ReplaceEpisodes swaps the full episode list of a document.
func (r *ContentRepository) ReplaceEpisodes(ctx context.Context, extID string, eps []models.Episode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace episodes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM episodes WHERE content_ext_id = ?`, extID); err != nil {
		return fmt.Errorf("clear episodes %s: %w", extID, err)
	}
	if err := insertEpisodes(ctx, tx, extID, eps); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE content SET updated_at = ? WHERE ext_id = ?`, time.Now().UTC(), extID); err != nil {
		return fmt.Errorf("touch content %s: %w", extID, err)
	}
	return tx.Commit()
}

func insertEpisodes(ctx context.Context, tx *sql.Tx, extID string, eps []models.Episode) error {
	for _, ep := range eps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO episodes (content_ext_id, season, episode, title, video_path, duration_sec)
			VALUES (?, ?, ?, ?, ?, ?)`,
			extID, ep.Season, ep.Episode, ep.Title, ep.VideoPath, ep.DurationSec)
		if err != nil {
			return fmt.Errorf("insert episode %s s%de%d: %w", extID, ep.Season, ep.Episode, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.Content, error) {
	return scanContentRow(row, false)
}

func scanContentRow(row rowScanner, withCount bool) (*models.Content, error) {
	var (
		c           models.Content
		genres      string
		actors      string
		ratingValue sql.NullFloat64
	)

	dest := []any{
		&c.ExtID, &c.Title, &c.Year, &genres, &c.Likes, &c.Cover, &c.Type,
		&c.Plot, &c.Director, &actors, &c.Rating, &ratingValue, &c.VideoPath,
		&c.CreatedAt, &c.UpdatedAt,
	}
	if withCount {
		dest = append(dest, &c.EpisodeCount)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	c.Genres = unmarshalStrings(genres)
	c.Actors = unmarshalStrings(actors)
	if ratingValue.Valid {
		v := ratingValue.Float64
		c.RatingValue = &v
	}
	return &c, nil
}

func marshalStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalStrings(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(raw), &ss); err != nil {
		return nil
	}
	return ss
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
