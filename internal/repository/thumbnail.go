package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// ThumbnailRepository — интерфейс для таблицы video_thumbnails.
type ThumbnailRepository interface {
	// ListByVideo возвращает превью видео в порядке position.
	ListByVideo(ctx context.Context, videoID string) ([]model.Thumbnail, error)
	// ListByVideos возвращает превью нескольких видео, сгруппированные по video_id.
	ListByVideos(ctx context.Context, videoIDs []string) (map[string][]model.Thumbnail, error)
	// Replace заменяет все превью видео на urls (в указанном порядке).
	Replace(ctx context.Context, videoID string, urls []string) ([]model.Thumbnail, error)
}

// thumbnailRepo — реализация ThumbnailRepository.
type thumbnailRepo struct {
	db DBTX
}

// NewThumbnailRepository создаёт репозиторий превью.
func NewThumbnailRepository(db DBTX) ThumbnailRepository {
	return &thumbnailRepo{db: db}
}

func (r *thumbnailRepo) ListByVideo(ctx context.Context, videoID string) ([]model.Thumbnail, error) {
	byVideo, err := r.ListByVideos(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	return byVideo[videoID], nil
}

func (r *thumbnailRepo) ListByVideos(ctx context.Context, videoIDs []string) (map[string][]model.Thumbnail, error) {
	result := make(map[string][]model.Thumbnail, len(videoIDs))
	if len(videoIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, video_id, position, url
		FROM video_thumbnails
		WHERE video_id = ANY($1)
		ORDER BY video_id, position`, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения превью: %w", err)
	}

	thumbs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Thumbnail, error) {
		var th model.Thumbnail
		err := row.Scan(&th.ID, &th.VideoID, &th.Position, &th.URL)
		return th, err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования превью: %w", err)
	}

	for _, th := range thumbs {
		result[th.VideoID] = append(result[th.VideoID], th)
	}
	return result, nil
}

// Replace удаляет старые превью и вставляет новые с позициями 0..n-1.
// Вызывается внутри транзакции вместе с обновлением записи.
func (r *thumbnailRepo) Replace(ctx context.Context, videoID string, urls []string) ([]model.Thumbnail, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM video_thumbnails WHERE video_id = $1`, videoID); err != nil {
		return nil, fmt.Errorf("ошибка удаления превью: %w", err)
	}

	thumbs := make([]model.Thumbnail, 0, len(urls))
	for i, u := range urls {
		th := model.Thumbnail{VideoID: videoID, Position: i, URL: u}
		err := r.db.QueryRow(ctx, `
			INSERT INTO video_thumbnails (video_id, position, url)
			VALUES ($1, $2, $3)
			RETURNING id`, videoID, i, u).Scan(&th.ID)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания превью: %w", err)
		}
		thumbs = append(thumbs, th)
	}
	return thumbs, nil
}
