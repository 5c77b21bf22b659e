package repositories

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"clipforge/internal/models"
	apperrors "clipforge/internal/pkg/errors"
)

type VideoRepository struct {
	db DBTX
}

func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, title, category, format, style, voice, script, keywords, negative_keywords,
	path, thumbnail_path, storage_provider, duration, status, created_at`

func scanVideo(row pgx.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Title, &v.Category, &v.Format, &v.Style, &v.Voice, &v.Script,
		&v.Keywords, &v.NegativeKeywords, &v.Path, &v.ThumbnailPath, &v.StorageProvider,
		&v.Duration, &v.Status, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VideoRepository) CreateVideo(ctx context.Context, v *models.Video) error {
	if v.Status == "" {
		v.Status = models.VideoStatusCompleted
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO videos (title, category, format, style, voice, script, keywords, negative_keywords,
			path, thumbnail_path, storage_provider, duration, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at
	`, v.Title, v.Category, v.Format, v.Style, v.Voice, v.Script, v.Keywords, v.NegativeKeywords,
		v.Path, v.ThumbnailPath, v.StorageProvider, v.Duration, v.Status).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return wrapPG(err, "videos.create", "insert video")
	}
	return nil
}

func (r *VideoRepository) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	v, err := scanVideo(r.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id=$1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound("video", strconv.FormatInt(id, 10))
		}
		return nil, wrapPG(err, "videos.get", "select video")
	}
	return v, nil
}

func (r *VideoRepository) ListVideos(ctx context.Context, f models.VideoFilter) ([]models.Video, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+videoColumns+` FROM videos
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, max(f.Offset, 0))
	if err != nil {
		return nil, wrapPG(err, "videos.list", "select videos")
	}
	return collectVideos(rows)
}

// SearchVideos matches title or category case-insensitively.
func (r *VideoRepository) SearchVideos(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := r.db.Query(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE title ILIKE $1 OR category ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, wrapPG(err, "videos.search", "search videos")
	}
	return collectVideos(rows)
}

func (r *VideoRepository) CountVideos(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, wrapPG(err, "videos.count", "count videos")
	}
	return n, nil
}

func (r *VideoRepository) DeleteVideo(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id=$1`, id)
	if err != nil {
		return wrapPG(err, "videos.delete", "delete video")
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NotFound("video", strconv.FormatInt(id, 10))
	}
	return nil
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	defer rows.Close()
	out := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, wrapPG(err, "videos.scan", "scan video")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPG(err, "videos.scan", "iterate videos")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
