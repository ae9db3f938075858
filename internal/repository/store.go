package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// Pool — пул подключений: выполняет запросы и открывает транзакции.
// Реализуется *pgxpool.Pool.
type Pool interface {
	DBTX
	TxBeginner
}

// VideoStore — хранилище VideoRecord вместе с превью.
// Запись и её превью создаются и заменяются в одной транзакции.
type VideoStore struct {
	db DBTX
	tx *TxRunner
}

// NewVideoStore создаёт VideoStore поверх пула подключений.
func NewVideoStore(pool Pool) *VideoStore {
	return &VideoStore{db: pool, tx: NewTxRunner(pool)}
}

// Create сохраняет новую запись и её превью атомарно.
func (s *VideoStore) Create(ctx context.Context, v *model.VideoRecord) error {
	urls := thumbnailURLs(v.Thumbnails)
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewVideoRepository(tx).Create(ctx, v); err != nil {
			return err
		}
		if len(urls) == 0 {
			return nil
		}
		thumbs, err := NewThumbnailRepository(tx).Replace(ctx, v.ID, urls)
		if err != nil {
			return err
		}
		v.Thumbnails = thumbs
		return nil
	})
}

// Get возвращает запись с превью по UUID.
func (s *VideoStore) Get(ctx context.Context, id string) (*model.VideoRecord, error) {
	v, err := NewVideoRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withThumbnails(ctx, v)
}

// GetByRemoteID возвращает запись с превью по идентификатору на хостинге.
func (s *VideoStore) GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error) {
	v, err := NewVideoRepository(s.db).GetByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	return s.withThumbnails(ctx, v)
}

// ListByOwner возвращает страницу записей автора с превью и общее количество.
func (s *VideoStore) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error) {
	videos := NewVideoRepository(s.db)

	items, err := videos.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := videos.CountByOwner(ctx, owner)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(items))
	for _, v := range items {
		ids = append(ids, v.ID)
	}
	byVideo, err := NewThumbnailRepository(s.db).ListByVideos(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, v := range items {
		v.Thumbnails = byVideo[v.ID]
	}
	return items, total, nil
}

// Update сохраняет метаданные записи, превью не меняются.
func (s *VideoStore) Update(ctx context.Context, v *model.VideoRecord) error {
	return NewVideoRepository(s.db).Update(ctx, v)
}

// SaveSynced сохраняет метаданные и заменяет превью в одной транзакции.
// Повторный вызов с теми же данными не создаёт дубликатов превью.
func (s *VideoStore) SaveSynced(ctx context.Context, v *model.VideoRecord, urls []string) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := NewVideoRepository(tx).Update(ctx, v); err != nil {
			return err
		}
		thumbs, err := NewThumbnailRepository(tx).Replace(ctx, v.ID, urls)
		if err != nil {
			return err
		}
		v.Thumbnails = thumbs
		return nil
	})
}

// Delete удаляет запись, превью удаляются каскадно (ON DELETE CASCADE).
func (s *VideoStore) Delete(ctx context.Context, id string) error {
	return NewVideoRepository(s.db).Delete(ctx, id)
}

func (s *VideoStore) withThumbnails(ctx context.Context, v *model.VideoRecord) (*model.VideoRecord, error) {
	thumbs, err := NewThumbnailRepository(s.db).ListByVideo(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("видео %s: %w", v.ID, err)
	}
	v.Thumbnails = thumbs
	return v, nil
}

func thumbnailURLs(thumbs []model.Thumbnail) []string {
	urls := make([]string, 0, len(thumbs))
	for _, th := range thumbs {
		urls = append(urls, th.URL)
	}
	return urls
}
