// Пакет service — бизнес-логика Video Module.
// videos.go — VideoService: жизненный цикл VideoRecord.
// Локальная запись — зеркало видео на хостинге. Создание следует за подтверждённой
// загрузкой, изменение и удаление сначала выполняются на хостинге и только после
// успеха сохраняются локально. Удалённые вызовы никогда не выполняются внутри транзакции БД.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/domain/rbac"
)

// PlaceholderTitle — название записи, созданной прямой загрузкой без подсказки.
const PlaceholderTitle = "tmp video"

// Ограничения ленты пользователя.
const (
	DefaultFeedLimit = 25
	MaxFeedLimit     = 50
)

// VideoStore — локальное хранилище VideoRecord и превью.
// Реализуется repository.VideoStore.
type VideoStore interface {
	Create(ctx context.Context, v *model.VideoRecord) error
	Get(ctx context.Context, id string) (*model.VideoRecord, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error)
	Update(ctx context.Context, v *model.VideoRecord) error
	SaveSynced(ctx context.Context, v *model.VideoRecord, thumbnailURLs []string) error
	Delete(ctx context.Context, id string) error
}

// DirectUpload — файл для прямой загрузки на хостинг.
type DirectUpload struct {
	Reader      io.Reader
	Filename    string
	Size        int64
	ContentType string
}

// Actor — пользователь, выполняющий операцию.
type Actor struct {
	Subject string
	Role    string
}

// VideoService — менеджер жизненного цикла VideoRecord.
type VideoService struct {
	remote  RemoteVideoService
	store   VideoStore
	events  EventPublisher
	staging StagingStore
	feed    *FeedCache
	logger  *slog.Logger
}

// NewVideoService создаёт менеджер жизненного цикла.
// events == nil — события не публикуются; staging == nil — поток передаётся на хостинг напрямую;
// feed == nil — ленты не кэшируются.
func NewVideoService(
	remote RemoteVideoService,
	store VideoStore,
	events EventPublisher,
	staging StagingStore,
	feed *FeedCache,
	logger *slog.Logger,
) *VideoService {
	if events == nil {
		events = NopPublisher{}
	}
	if staging == nil {
		staging = NewPassthroughStaging()
	}
	return &VideoService{
		remote:  remote,
		store:   store,
		events:  events,
		staging: staging,
		feed:    feed,
		logger:  logger.With(slog.String("component", "video_service")),
	}
}

// session открывает сессию хостинга для одной операции.
func (s *VideoService) session(ctx context.Context, op string) (RemoteSession, error) {
	session, err := s.remote.NewSession(ctx)
	if err != nil {
		return nil, remoteError(op, err)
	}
	return session, nil
}

// --- Создание ---

// CreateFromDirectUpload загружает файл на хостинг и создаёт запись.
// Без подтверждения загрузки запись не создаётся.
func (s *VideoService) CreateFromDirectUpload(ctx context.Context, upload DirectUpload, owner, titleHint string) (*model.VideoRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: не указан автор", ErrValidation)
	}
	if upload.Reader == nil {
		return nil, fmt.Errorf("%w: не передан файл", ErrValidation)
	}

	key, err := s.staging.Put(ctx, upload.Filename, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("сохранение файла во временное хранилище: %w", err)
	}
	defer s.removeStaged(ctx, key)

	session, err := s.session(ctx, "direct upload")
	if err != nil {
		return nil, err
	}

	file, err := s.staging.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("чтение файла из временного хранилища: %w", err)
	}
	defer file.Close()

	title := strings.TrimSpace(titleHint)
	if title == "" {
		title = PlaceholderTitle
	}

	entry, err := session.UploadDirect(ctx, file, model.VideoMetadata{Title: title}, model.DefaultAccessControl)
	if err != nil {
		s.logger.Warn("Хостинг отклонил загрузку",
			slog.String("owner", owner),
			slog.String("filename", upload.Filename),
			slog.String("error", err.Error()),
		)
		return nil, uploadError("direct upload", err)
	}
	if entry.RemoteID == "" {
		return nil, fmt.Errorf("%w: хостинг не вернул идентификатор видео", ErrUpload)
	}

	// Метаданные и превью подтягиваются позже через SyncNewRecord
	record := &model.VideoRecord{
		ID:            uuid.New().String(),
		RemoteID:      entry.RemoteID,
		Title:         title,
		PlaybackURL:   entry.PlaybackURL,
		EmbedURL:      entry.EmbedURL,
		AccessControl: model.DefaultAccessControl,
		Owner:         owner,
	}
	if err := s.store.Create(ctx, record); err != nil {
		// Откат: видео на хостинге без локальной записи недоступно для управления
		s.rollbackUpload(ctx, session, record.RemoteID)
		return nil, storeError("сохранение видео", err)
	}

	s.logger.Info("Видео загружено на хостинг",
		slog.String("video_id", record.ID),
		slog.String("remote_id", record.RemoteID),
		slog.String("owner", owner),
	)
	s.publishCreated(ctx, record)
	return record, nil
}

// rollbackUpload удаляет с хостинга видео, для которого не удалось создать запись.
func (s *VideoService) rollbackUpload(ctx context.Context, session RemoteSession, remoteID string) {
	if err := session.DeleteEntry(context.WithoutCancel(ctx), remoteID); err != nil {
		s.logger.Error("Не удалось удалить видео с хостинга после ошибки сохранения",
			slog.String("remote_id", remoteID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Warn("Загруженное видео удалено с хостинга после ошибки сохранения",
		slog.String("remote_id", remoteID),
	)
}

// CreateFromBrowserUploadCallback создаёт запись по результату загрузки из браузера.
// status — код, который хостинг передал в redirect; успех только "200".
func (s *VideoService) CreateFromBrowserUploadCallback(ctx context.Context, remoteID, status, owner string) (*model.VideoRecord, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, fmt.Errorf("%w: хостинг не вернул идентификатор видео", ErrUpload)
	}
	if status != "200" {
		return nil, fmt.Errorf("%w: хостинг вернул статус %q", ErrUpload, status)
	}
	if owner == "" {
		return nil, fmt.Errorf("%w: не указан автор", ErrValidation)
	}

	record := &model.VideoRecord{
		ID:            uuid.New().String(),
		RemoteID:      remoteID,
		AccessControl: model.DefaultAccessControl,
		Owner:         owner,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, storeError("сохранение видео", err)
	}

	s.logger.Info("Видео зарегистрировано после загрузки из браузера",
		slog.String("video_id", record.ID),
		slog.String("remote_id", remoteID),
		slog.String("owner", owner),
	)
	s.publishCreated(ctx, record)
	return record, nil
}

// CreateUploadSession выдаёт параметры загрузки из браузера.
func (s *VideoService) CreateUploadSession(ctx context.Context, meta model.VideoMetadata, ac model.AccessControl) (*model.UploadSession, error) {
	meta.Title = strings.TrimSpace(meta.Title)
	if meta.Title == "" {
		return nil, fmt.Errorf("%w: название обязательно", ErrValidation)
	}
	if !ac.Valid() {
		return nil, fmt.Errorf("%w: недопустимый уровень доступа %v", ErrValidation, ac)
	}

	session, err := s.session(ctx, "upload session")
	if err != nil {
		return nil, err
	}

	upload, err := session.CreateUploadSession(ctx, meta, ac)
	if err != nil {
		return nil, uploadError("upload session", err)
	}
	return upload, nil
}

// publishCreated публикует VideoCreated. Ошибка публикации только логируется.
func (s *VideoService) publishCreated(ctx context.Context, record *model.VideoRecord) {
	if err := s.events.PublishVideoCreated(ctx, record.Clone()); err != nil {
		s.logger.Warn("Не удалось опубликовать событие VideoCreated",
			slog.String("video_id", record.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *VideoService) removeStaged(ctx context.Context, key string) {
	if err := s.staging.Remove(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("Не удалось удалить файл из временного хранилища",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// --- Синхронизация ---

// SyncNewRecord загружает метаданные и превью записи с хостинга.
// Запись и превью сохраняются одной транзакцией, повторный вызов не создаёт дубликатов.
func (s *VideoService) SyncNewRecord(ctx context.Context, id string) (*model.VideoRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.RemoteID == "" {
		return nil, fmt.Errorf("%w: у видео %s нет идентификатора на хостинге", ErrValidation, id)
	}

	session, err := s.session(ctx, "sync")
	if err != nil {
		return nil, err
	}

	entry, err := session.FetchEntryByID(ctx, record.RemoteID)
	if err != nil {
		return nil, remoteError("sync", err)
	}

	record.ApplyEntry(entry)
	if err := s.store.SaveSynced(ctx, record, entry.Thumbnails); err != nil {
		return nil, storeError("сохранение синхронизированного видео", err)
	}

	s.logger.Info("Видео синхронизировано с хостингом",
		slog.String("video_id", record.ID),
		slog.String("remote_id", record.RemoteID),
		slog.Int("thumbnails", len(record.Thumbnails)),
	)
	return record, nil
}

// EnsureSynced синхронизирует запись, если метаданные ещё не получены.
func (s *VideoService) EnsureSynced(ctx context.Context, record *model.VideoRecord) (*model.VideoRecord, error) {
	if record.Synced || record.RemoteID == "" {
		return record, nil
	}
	return s.SyncNewRecord(ctx, record.ID)
}

// EnsureSyncedAll синхронизирует записи списка. Ошибка синхронизации одной записи
// не прерывает список: запись остаётся несинхронизированной до следующего запроса.
func (s *VideoService) EnsureSyncedAll(ctx context.Context, records []*model.VideoRecord) []*model.VideoRecord {
	for i, record := range records {
		synced, err := s.EnsureSynced(ctx, record)
		if err != nil {
			s.logger.Warn("Не удалось синхронизировать видео",
				slog.String("video_id", record.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		records[i] = synced
	}
	return records
}

// --- Изменение и удаление ---

// UpdateRecord применяет изменения на хостинге и только после успеха сохраняет их локально.
// Сохраняются метаданные, подтверждённые хостингом в ответе на изменение.
// При отказе хостинга возвращается ErrRemoteSync, сохранённая запись не меняется.
func (s *VideoService) UpdateRecord(ctx context.Context, id string, changes model.VideoChanges) (*model.VideoRecord, error) {
	if changes.IsEmpty() {
		return nil, fmt.Errorf("%w: нет изменений", ErrValidation)
	}
	if changes.AccessControl != nil && !changes.AccessControl.Valid() {
		return nil, fmt.Errorf("%w: недопустимый уровень доступа %v", ErrValidation, *changes.AccessControl)
	}
	if changes.Title != nil && strings.TrimSpace(*changes.Title) == "" {
		return nil, fmt.Errorf("%w: название не может быть пустым", ErrValidation)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.RemoteID == "" {
		return nil, fmt.Errorf("%w: у видео %s нет идентификатора на хостинге", ErrValidation, id)
	}

	// Хостинг получает метаданные целиком: несинхронизированная запись затёрла бы их пустыми
	current, err = s.EnsureSynced(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("%w: синхронизация перед изменением: %w", ErrRemoteSync, err)
	}

	updated := current.Clone()
	changes.ApplyTo(updated)

	session, err := s.remote.NewSession(ctx)
	if err != nil {
		return nil, syncError("update", err)
	}

	confirmed, err := session.UpdateEntry(ctx, updated.RemoteID, updated.Metadata(), updated.AccessControl)
	if err != nil {
		s.logger.Warn("Хостинг отклонил изменение видео",
			slog.String("video_id", id),
			slog.String("remote_id", updated.RemoteID),
			slog.String("error", err.Error()),
		)
		return nil, syncError("update", err)
	}
	if confirmed == nil {
		return nil, fmt.Errorf("%w: хостинг не вернул обновлённое видео", ErrRemoteSync)
	}
	updated.ApplyConfirmed(confirmed)

	if err := s.store.Update(ctx, updated); err != nil {
		return nil, storeError("сохранение изменений видео", err)
	}

	s.logger.Info("Видео обновлено",
		slog.String("video_id", id),
		slog.String("access_control", updated.AccessControl.String()),
	)
	return updated, nil
}

// DeleteRecord удаляет видео на хостинге и только после успеха удаляет запись с превью.
func (s *VideoService) DeleteRecord(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if record.RemoteID != "" {
		session, err := s.remote.NewSession(ctx)
		if err != nil {
			return syncError("delete", err)
		}
		if err := session.DeleteEntry(ctx, record.RemoteID); err != nil {
			s.logger.Warn("Хостинг отклонил удаление видео",
				slog.String("video_id", id),
				slog.String("remote_id", record.RemoteID),
				slog.String("error", err.Error()),
			)
			return syncError("delete", err)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return storeError("удаление видео", err)
	}

	s.logger.Info("Видео удалено",
		slog.String("video_id", id),
		slog.String("remote_id", record.RemoteID),
	)
	return nil
}

// --- Чтение ---

// CheckAvailability запрашивает у хостинга состояние обработки видео.
func (s *VideoService) CheckAvailability(ctx context.Context, remoteID string) (model.Availability, error) {
	if strings.TrimSpace(remoteID) == "" {
		return model.Availability{}, fmt.Errorf("%w: не указан идентификатор видео", ErrValidation)
	}

	session, err := s.session(ctx, "check status")
	if err != nil {
		return model.Availability{}, err
	}

	availability, err := session.CheckStatus(ctx, remoteID)
	if err != nil {
		return model.Availability{}, remoteError("check status", err)
	}
	return availability, nil
}

// Get возвращает запись по UUID.
func (s *VideoService) Get(ctx context.Context, id string) (*model.VideoRecord, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, ErrNotFound
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeError("получение видео", err)
	}
	return record, nil
}

// GetByRemoteID возвращает запись по идентификатору на хостинге.
func (s *VideoService) GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error) {
	record, err := s.store.GetByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, storeError("получение видео", err)
	}
	return record, nil
}

// ListByOwner возвращает страницу видео автора и их общее количество.
func (s *VideoService) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error) {
	if owner == "" {
		return nil, 0, fmt.Errorf("%w: не указан автор", ErrValidation)
	}
	if limit <= 0 || offset < 0 {
		return nil, 0, fmt.Errorf("%w: некорректные параметры пагинации", ErrValidation)
	}
	items, total, err := s.store.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, 0, storeError("получение списка видео", err)
	}
	return items, total, nil
}

// ListRemoteFeed возвращает до limit последних видео пользователя хостинга.
// Результат кэшируется по (username, limit).
func (s *VideoService) ListRemoteFeed(ctx context.Context, username string, limit int) ([]*model.RemoteEntry, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: не указан пользователь", ErrValidation)
	}
	if limit <= 0 || limit > MaxFeedLimit {
		return nil, fmt.Errorf("%w: limit должен быть от 1 до %d", ErrValidation, MaxFeedLimit)
	}

	if cached, ok := s.feed.Get(username, limit); ok {
		return cached, nil
	}

	session, err := s.session(ctx, "feed")
	if err != nil {
		return nil, err
	}

	entries := make([]*model.RemoteEntry, 0, limit)
	for entry, err := range session.FetchFeedByUser(ctx, username) {
		if err != nil {
			return nil, remoteError("feed", err)
		}
		entries = append(entries, entry)
		if len(entries) == limit {
			break
		}
	}

	s.feed.Set(username, limit, entries)
	return entries, nil
}

// --- Права ---

// Authorize возвращает запись, если actor может ей управлять (автор или администратор).
func (s *VideoService) Authorize(ctx context.Context, id string, actor Actor) (*model.VideoRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanManageVideo(actor.Subject, actor.Role, record.Owner) {
		return nil, fmt.Errorf("%w: видео %s принадлежит другому пользователю", ErrForbidden, id)
	}
	return record, nil
}
