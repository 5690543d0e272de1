package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidshare/internal/domain"
)

type VideosStore struct {
	pool *pgxpool.Pool
}

func NewVideosStore(pool *pgxpool.Pool) *VideosStore {
	return &VideosStore{pool: pool}
}

const videoColumns = `
	id::text AS id,
	title,
	COALESCE(description, '') AS description,
	video_url,
	video_size,
	share_link,
	uploaded_by::text AS uploaded_by,
	shares,
	views,
	created_at,
	updated_at
`

func (s *VideosStore) CreateVideo(ctx context.Context, v domain.NewVideo) (domain.Video, error) {
	uploader, ok := parseUUID(v.UploadedBy)
	if !ok {
		return domain.Video{}, domain.ErrNotFound
	}

	q := `
		INSERT INTO videos (title, description, video_url, video_size, share_link, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + videoColumns

	var out domain.Video
	err := pgxscan.Get(ctx, s.pool, &out, q, v.Title, nullIfEmpty(v.Description), v.Locator, v.Size, v.ShareLink, uploader)
	if err != nil {
		if notFound := notFoundIfMissingFK(err); notFound != nil {
			return domain.Video{}, notFound
		}
		return domain.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return out, nil
}

func (s *VideosStore) GetVideo(ctx context.Context, id string) (domain.Video, error) {
	videoID, ok := parseUUID(id)
	if !ok {
		return domain.Video{}, domain.ErrNotFound
	}

	var out domain.Video
	err := pgxscan.Get(ctx, s.pool, &out, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, videoID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return domain.Video{}, domain.ErrNotFound
		}
		return domain.Video{}, fmt.Errorf("get video: %w", err)
	}
	return out, nil
}

func (s *VideosStore) RecordShareView(ctx context.Context, shareLink string) (domain.Video, error) {
	q := `
		UPDATE videos
		SET views = views + 1
		WHERE share_link = $1
		RETURNING ` + videoColumns

	var out domain.Video
	if err := pgxscan.Get(ctx, s.pool, &out, q, shareLink); err != nil {
		if pgxscan.NotFound(err) {
			return domain.Video{}, domain.ErrNotFound
		}
		return domain.Video{}, fmt.Errorf("record share view: %w", err)
	}
	return out, nil
}

func (s *VideosStore) ListVideos(ctx context.Context, limit, offset int) ([]domain.Video, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM videos`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	var videos []domain.Video
	q := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	if err := pgxscan.Select(ctx, s.pool, &videos, q, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}
	return videos, total, nil
}

func (s *VideosStore) ListVideosByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Video, int, error) {
	uploader, ok := parseUUID(userID)
	if !ok {
		return []domain.Video{}, 0, nil
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM videos WHERE uploaded_by = $1`, uploader).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user videos: %w", err)
	}

	var videos []domain.Video
	q := `SELECT ` + videoColumns + ` FROM videos WHERE uploaded_by = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	if err := pgxscan.Select(ctx, s.pool, &videos, q, uploader, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list user videos: %w", err)
	}
	return videos, total, nil
}

func (s *VideosStore) UpdateVideo(ctx context.Context, id string, patch domain.VideoPatch) (domain.Video, error) {
	videoID, ok := parseUUID(id)
	if !ok {
		return domain.Video{}, domain.ErrNotFound
	}

	sets := []string{"updated_at = now()"}
	args := []any{videoID}
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, nullIfEmpty(*patch.Description))
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}

	q := `UPDATE videos SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + videoColumns

	var out domain.Video
	if err := pgxscan.Get(ctx, s.pool, &out, q, args...); err != nil {
		if pgxscan.NotFound(err) {
			return domain.Video{}, domain.ErrNotFound
		}
		return domain.Video{}, fmt.Errorf("update video: %w", err)
	}
	return out, nil
}

func (s *VideosStore) DeleteVideo(ctx context.Context, id string) error {
	videoID, ok := parseUUID(id)
	if !ok {
		return domain.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
