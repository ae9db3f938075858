package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
)

// VideoRepository — интерфейс CRUD для таблицы videos.
// Превью хранятся отдельно (ThumbnailRepository).
type VideoRepository interface {
	// Create создаёт запись. Дубликат remote_id → ErrConflict.
	Create(ctx context.Context, v *model.VideoRecord) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.VideoRecord, error)
	// GetByRemoteID возвращает запись по идентификатору на хостинге.
	GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error)
	// ListByOwner возвращает записи автора, новые первыми.
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, error)
	// CountByOwner возвращает количество записей автора.
	CountByOwner(ctx context.Context, owner string) (int, error)
	// Update обновляет метаданные записи.
	Update(ctx context.Context, v *model.VideoRecord) error
	// Delete удаляет запись (превью удаляются каскадно).
	Delete(ctx context.Context, id string) error
}

// videoRepo — реализация VideoRepository.
type videoRepo struct {
	db DBTX
}

// NewVideoRepository создаёт репозиторий видео.
func NewVideoRepository(db DBTX) VideoRepository {
	return &videoRepo{db: db}
}

const videoColumns = `id, remote_id, title, description, keywords, playback_url, embed_url,
	access_control, owner, synced, created_at, updated_at`

// scanVideo сканирует строку результата в модель VideoRecord.
func scanVideo(row pgx.Row) (*model.VideoRecord, error) {
	v := &model.VideoRecord{}
	var remoteID *string
	var access string
	err := row.Scan(
		&v.ID, &remoteID, &v.Title, &v.Description, &v.Keywords, &v.PlaybackURL, &v.EmbedURL,
		&access, &v.Owner, &v.Synced, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if remoteID != nil {
		v.RemoteID = *remoteID
	}
	v.AccessControl, err = model.ParseAccessControl(access)
	if err != nil {
		return nil, fmt.Errorf("запись %s: %w", v.ID, err)
	}
	return v, nil
}

// nullableRemoteID — пустой remote_id хранится как NULL (частичный уникальный индекс).
func nullableRemoteID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func (r *videoRepo) Create(ctx context.Context, v *model.VideoRecord) error {
	if !v.AccessControl.Valid() {
		return fmt.Errorf("ошибка создания видео: недопустимый уровень доступа %v", v.AccessControl)
	}

	query := `
		INSERT INTO videos (id, remote_id, title, description, keywords, playback_url, embed_url,
			access_control, owner, synced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		v.ID, nullableRemoteID(v.RemoteID), v.Title, v.Description, v.Keywords,
		v.PlaybackURL, v.EmbedURL, v.AccessControl.String(), v.Owner, v.Synced,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: видео с remote_id %q уже существует", ErrConflict, v.RemoteID)
		}
		return fmt.Errorf("ошибка создания видео: %w", err)
	}
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, id string) (*model.VideoRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE id = $1`, videoColumns)
	v, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения видео: %w", err)
	}
	return v, nil
}

func (r *videoRepo) GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE remote_id = $1`, videoColumns)
	v, err := scanVideo(r.db.QueryRow(ctx, query, remoteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения видео по remote_id: %w", err)
	}
	return v, nil
}

func (r *videoRepo) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM videos
		WHERE owner = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, videoColumns)

	rows, err := r.db.Query(ctx, query, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка видео: %w", err)
	}
	defer rows.Close()

	var result []*model.VideoRecord
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования видео: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации видео: %w", err)
	}
	return result, nil
}

func (r *videoRepo) CountByOwner(ctx context.Context, owner string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE owner = $1`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта видео: %w", err)
	}
	return count, nil
}

func (r *videoRepo) Update(ctx context.Context, v *model.VideoRecord) error {
	if !v.AccessControl.Valid() {
		return fmt.Errorf("ошибка обновления видео: недопустимый уровень доступа %v", v.AccessControl)
	}

	query := `
		UPDATE videos
		SET remote_id = $2, title = $3, description = $4, keywords = $5,
			playback_url = $6, embed_url = $7, access_control = $8, synced = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		v.ID, nullableRemoteID(v.RemoteID), v.Title, v.Description, v.Keywords,
		v.PlaybackURL, v.EmbedURL, v.AccessControl.String(), v.Synced,
	).Scan(&v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: видео с remote_id %q уже существует", ErrConflict, v.RemoteID)
		}
		if isCheckViolation(err) {
			return fmt.Errorf("ошибка обновления видео: недопустимый уровень доступа: %w", err)
		}
		return fmt.Errorf("ошибка обновления видео: %w", err)
	}
	return nil
}

func (r *videoRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления видео: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
