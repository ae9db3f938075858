package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/video-module/internal/repository"
	"github.com/bigkaa/goartstore/video-module/internal/youtube"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Fakes ---

// fakeStore — in-memory VideoStore с семантикой репозитория.
type fakeStore struct {
	mu        sync.Mutex
	videos    map[string]*model.VideoRecord
	nextThumb int64
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{videos: make(map[string]*model.VideoRecord)}
}

func (s *fakeStore) thumbnails(videoID string, urls []string) []model.Thumbnail {
	thumbs := make([]model.Thumbnail, 0, len(urls))
	for i, u := range urls {
		s.nextThumb++
		thumbs = append(thumbs, model.Thumbnail{ID: s.nextThumb, VideoID: videoID, Position: i, URL: u})
	}
	return thumbs
}

func (s *fakeStore) Create(_ context.Context, v *model.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.videos {
		if v.RemoteID != "" && existing.RemoteID == v.RemoteID {
			return fmt.Errorf("%w: remote_id %s", repository.ErrConflict, v.RemoteID)
		}
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	s.videos[v.ID] = v.Clone()
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*model.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *fakeStore) GetByRemoteID(_ context.Context, remoteID string) (*model.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.videos {
		if v.RemoteID == remoteID {
			return v.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) ListByOwner(_ context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*model.VideoRecord
	for _, v := range s.videos {
		if v.Owner == owner {
			all = append(all, v.Clone())
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *fakeStore) Update(_ context.Context, v *model.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	existing, ok := s.videos[v.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := v.Clone()
	stored.Thumbnails = existing.Thumbnails
	stored.UpdatedAt = time.Now().UTC()
	s.videos[v.ID] = stored
	return nil
}

func (s *fakeStore) SaveSynced(_ context.Context, v *model.VideoRecord, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; !ok {
		return repository.ErrNotFound
	}
	v.Thumbnails = s.thumbnails(v.ID, urls)
	s.videos[v.ID] = v.Clone()
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.videos)
}

// put кладёт запись напрямую, минуя сервис.
func (s *fakeStore) put(v *model.VideoRecord, thumbURLs ...string) *model.VideoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.Thumbnails = s.thumbnails(v.ID, thumbURLs)
	s.videos[v.ID] = v.Clone()
	return v.Clone()
}

// fakeSession — сессия хостинга с настраиваемыми ответами.
type fakeSession struct {
	entries  map[string]*model.RemoteEntry
	statuses map[string]model.Availability
	feed     []*model.RemoteEntry

	uploadEntry *model.RemoteEntry
	// updateResult — ответ хостинга на изменение; nil — метаданные возвращаются как переданы
	updateResult *model.RemoteEntry
	uploadErr   error
	updateErr   error
	deleteErr   error
	fetchErr    error

	uploaded     []byte
	uploadMeta   model.VideoMetadata
	updateMeta   model.VideoMetadata
	updateAccess model.AccessControl
	updateCalls  int
	deleteCalls  int
	deleted      []string
	feedPulled   int
}

func (f *fakeSession) FetchEntryByID(_ context.Context, remoteID string) (*model.RemoteEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	entry, ok := f.entries[remoteID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", youtube.ErrNotFound, remoteID)
	}
	return entry, nil
}

func (f *fakeSession) FetchFeedByUser(_ context.Context, _ string) iter.Seq2[*model.RemoteEntry, error] {
	return func(yield func(*model.RemoteEntry, error) bool) {
		for _, entry := range f.feed {
			f.feedPulled++
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (f *fakeSession) CreateUploadSession(_ context.Context, meta model.VideoMetadata, ac model.AccessControl) (*model.UploadSession, error) {
	return &model.UploadSession{PostURL: "https://upload.example/" + ac.String(), Token: "token-" + meta.Title}, nil
}

func (f *fakeSession) UploadDirect(_ context.Context, r io.Reader, meta model.VideoMetadata, _ model.AccessControl) (*model.RemoteEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	f.uploadMeta = meta
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadEntry, nil
}

func (f *fakeSession) CheckStatus(_ context.Context, remoteID string) (model.Availability, error) {
	availability, ok := f.statuses[remoteID]
	if !ok {
		return model.Availability{}, fmt.Errorf("%w: %s", youtube.ErrNotFound, remoteID)
	}
	return availability, nil
}

func (f *fakeSession) UpdateEntry(_ context.Context, remoteID string, meta model.VideoMetadata, ac model.AccessControl) (*model.RemoteEntry, error) {
	f.updateCalls++
	f.updateMeta = meta
	f.updateAccess = ac
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateResult != nil {
		return f.updateResult, nil
	}
	return &model.RemoteEntry{
		RemoteID:      remoteID,
		Title:         meta.Title,
		Description:   meta.Description,
		Keywords:      meta.Keywords,
		AccessControl: ac,
	}, nil
}

func (f *fakeSession) DeleteEntry(_ context.Context, remoteID string) error {
	f.deleteCalls++
	f.deleted = append(f.deleted, remoteID)
	return f.deleteErr
}

// fakeRemote выдаёт одну и ту же fakeSession и считает аутентификации.
type fakeRemote struct {
	session  *fakeSession
	authErr  error
	sessions int
}

func (r *fakeRemote) NewSession(_ context.Context) (RemoteSession, error) {
	r.sessions++
	if r.authErr != nil {
		return nil, r.authErr
	}
	return r.session, nil
}

// fakePublisher запоминает события.
type fakePublisher struct {
	mu     sync.Mutex
	events []*model.VideoRecord
	err    error
}

func (p *fakePublisher) PublishVideoCreated(_ context.Context, v *model.VideoRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, v)
	return nil
}

// recordingStaging — PassthroughStaging, запоминающий удалённые ключи.
type recordingStaging struct {
	*PassthroughStaging
	removed []string
}

func (s *recordingStaging) Remove(ctx context.Context, key string) error {
	s.removed = append(s.removed, key)
	return s.PassthroughStaging.Remove(ctx, key)
}

type testEnv struct {
	svc       *VideoService
	store     *fakeStore
	remote    *fakeRemote
	session   *fakeSession
	publisher *fakePublisher
	staging   *recordingStaging
}

func newTestEnv() *testEnv {
	session := &fakeSession{
		entries:  make(map[string]*model.RemoteEntry),
		statuses: make(map[string]model.Availability),
	}
	env := &testEnv{
		store:     newFakeStore(),
		remote:    &fakeRemote{session: session},
		session:   session,
		publisher: &fakePublisher{},
		staging:   &recordingStaging{PassthroughStaging: NewPassthroughStaging()},
	}
	env.svc = NewVideoService(env.remote, env.store, env.publisher, env.staging, NewFeedCache(16, time.Minute), testLogger())
	return env
}

const (
	testVideoID = "6f1c2b9e-3d4a-4f5b-8c7d-1e2f3a4b5c6d"
	testOwner   = "user-1"
)

// syncedVideo — запись, уже синхронизированная с хостингом.
func syncedVideo() *model.VideoRecord {
	return &model.VideoRecord{
		ID:            testVideoID,
		RemoteID:      "abc123",
		Title:         "Original",
		Description:   "Original description",
		Keywords:      "go, video",
		PlaybackURL:   "https://host/abc123",
		EmbedURL:      "https://host/embed/abc123",
		AccessControl: model.AccessPublic,
		Owner:         testOwner,
		Synced:        true,
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// --- Прямая загрузка ---

func TestCreateFromDirectUpload_Success(t *testing.T) {
	env := newTestEnv()
	env.session.uploadEntry = &model.RemoteEntry{
		RemoteID:    "abc123",
		PlaybackURL: "https://host/abc123",
		EmbedURL:    "https://host/embed/abc123",
	}

	record, err := env.svc.CreateFromDirectUpload(context.Background(), DirectUpload{
		Reader:   strings.NewReader("video-bytes"),
		Filename: "clip.mp4",
		Size:     11,
	}, testOwner, "")
	if err != nil {
		t.Fatalf("CreateFromDirectUpload() ошибка: %v", err)
	}

	if record.RemoteID != "abc123" {
		t.Errorf("RemoteID = %q, ожидали abc123", record.RemoteID)
	}
	if record.PlaybackURL != "https://host/abc123" {
		t.Errorf("PlaybackURL = %q, ожидали https://host/abc123", record.PlaybackURL)
	}
	if record.Title != PlaceholderTitle {
		t.Errorf("Title = %q, ожидали %q", record.Title, PlaceholderTitle)
	}
	if record.Owner != testOwner || record.AccessControl != model.DefaultAccessControl {
		t.Errorf("record = %+v", record)
	}
	if record.Synced {
		t.Error("запись не должна быть синхронизирована до SyncNewRecord")
	}

	stored, err := env.store.Get(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("запись не сохранена: %v", err)
	}
	if stored.RemoteID != "abc123" {
		t.Errorf("сохранённый RemoteID = %q", stored.RemoteID)
	}
	if string(env.session.uploaded) != "video-bytes" {
		t.Errorf("на хостинг передано %q", env.session.uploaded)
	}
	if env.session.uploadMeta.Title != PlaceholderTitle {
		t.Errorf("название при загрузке = %q", env.session.uploadMeta.Title)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].ID != record.ID {
		t.Errorf("событий VideoCreated = %d, ожидали 1", len(env.publisher.events))
	}
	if len(env.staging.removed) != 1 {
		t.Errorf("временный файл удалён %d раз, ожидали 1", len(env.staging.removed))
	}
}

func TestCreateFromDirectUpload_TitleHint(t *testing.T) {
	env := newTestEnv()
	env.session.uploadEntry = &model.RemoteEntry{RemoteID: "abc123"}

	record, err := env.svc.CreateFromDirectUpload(context.Background(),
		DirectUpload{Reader: strings.NewReader("x"), Filename: "a.mp4"}, testOwner, "  Holiday  ")
	if err != nil {
		t.Fatalf("CreateFromDirectUpload() ошибка: %v", err)
	}
	if record.Title != "Holiday" || env.session.uploadMeta.Title != "Holiday" {
		t.Errorf("Title = %q / %q, ожидали Holiday", record.Title, env.session.uploadMeta.Title)
	}
}

func TestCreateFromDirectUpload_Failures(t *testing.T) {
	tests := []struct {
		name      string
		authErr   error
		uploadErr error
		entry     *model.RemoteEntry
		want      error
		notWant   error
	}{
		{
			name:      "хостинг отклонил файл",
			uploadErr: fmt.Errorf("%w: invalid video", youtube.ErrUpload),
			want:      ErrUpload,
		},
		{
			name:      "ошибка API при загрузке",
			uploadErr: fmt.Errorf("%w: backend error", youtube.ErrUnavailable),
			want:      ErrUpload,
		},
		{
			name:      "таймаут отличим от отказа",
			uploadErr: fmt.Errorf("%w: upload", youtube.ErrTimeout),
			want:      ErrTimeout,
			notWant:   ErrUpload,
		},
		{
			name:    "аутентификация",
			authErr: fmt.Errorf("%w: invalid_grant", youtube.ErrAuth),
			want:    ErrAuth,
		},
		{
			name:  "пустой идентификатор",
			entry: &model.RemoteEntry{},
			want:  ErrUpload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.remote.authErr = tt.authErr
			env.session.uploadErr = tt.uploadErr
			env.session.uploadEntry = tt.entry

			_, err := env.svc.CreateFromDirectUpload(context.Background(),
				DirectUpload{Reader: strings.NewReader("x"), Filename: "a.mp4"}, testOwner, "")
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидали %v, получили %v", tt.want, err)
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Errorf("ошибка не должна совпадать с %v: %v", tt.notWant, err)
			}
			if env.store.count() != 0 {
				t.Errorf("создано записей: %d, ожидали 0", env.store.count())
			}
			if len(env.publisher.events) != 0 {
				t.Errorf("событий: %d, ожидали 0", len(env.publisher.events))
			}
			if len(env.staging.removed) != 1 {
				t.Errorf("временный файл удалён %d раз, ожидали 1", len(env.staging.removed))
			}
		})
	}
}

func TestCreateFromDirectUpload_StoreFailureRemovesRemoteVideo(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
	}{
		{"видео удалено с хостинга", nil},
		{"ошибка удаления не подменяет ошибку сохранения", fmt.Errorf("%w: backend error", youtube.ErrUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			// Запись с тем же remote_id вызывает конфликт при сохранении
			env.store.put(syncedVideo())
			env.session.uploadEntry = &model.RemoteEntry{RemoteID: "abc123"}
			env.session.deleteErr = tt.deleteErr

			_, err := env.svc.CreateFromDirectUpload(context.Background(),
				DirectUpload{Reader: strings.NewReader("x"), Filename: "a.mp4"}, testOwner, "")
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("ожидали ErrConflict, получили %v", err)
			}
			if !reflect.DeepEqual(env.session.deleted, []string{"abc123"}) {
				t.Errorf("удалено с хостинга: %v, ожидали [abc123]", env.session.deleted)
			}
			if env.store.count() != 1 {
				t.Errorf("записей: %d, ожидали 1", env.store.count())
			}
			if len(env.publisher.events) != 0 {
				t.Errorf("событий: %d, ожидали 0", len(env.publisher.events))
			}
		})
	}
}

func TestCreateFromDirectUpload_Validation(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.CreateFromDirectUpload(context.Background(), DirectUpload{Filename: "a.mp4"}, testOwner, "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("без файла: ожидали ErrValidation, получили %v", err)
	}
	_, err = env.svc.CreateFromDirectUpload(context.Background(),
		DirectUpload{Reader: strings.NewReader("x")}, "", "")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("без автора: ожидали ErrValidation, получили %v", err)
	}
	if env.remote.sessions != 0 {
		t.Errorf("сессий: %d, ожидали 0", env.remote.sessions)
	}
}

func TestCreateFromDirectUpload_PublishErrorIgnored(t *testing.T) {
	env := newTestEnv()
	env.session.uploadEntry = &model.RemoteEntry{RemoteID: "abc123"}
	env.publisher.err = errors.New("redis недоступен")

	if _, err := env.svc.CreateFromDirectUpload(context.Background(),
		DirectUpload{Reader: strings.NewReader("x"), Filename: "a.mp4"}, testOwner, ""); err != nil {
		t.Fatalf("ошибка публикации не должна прерывать операцию: %v", err)
	}
	if env.store.count() != 1 {
		t.Errorf("записей: %d, ожидали 1", env.store.count())
	}
}

// --- Загрузка из браузера ---

func TestCreateFromBrowserUploadCallback(t *testing.T) {
	env := newTestEnv()

	record, err := env.svc.CreateFromBrowserUploadCallback(context.Background(), "abc123", "200", testOwner)
	if err != nil {
		t.Fatalf("CreateFromBrowserUploadCallback() ошибка: %v", err)
	}
	if record.RemoteID != "abc123" || record.Owner != testOwner {
		t.Errorf("record = %+v", record)
	}
	if record.Synced || record.Title != "" {
		t.Errorf("метаданные должны быть пустыми до синхронизации: %+v", record)
	}
	if len(env.publisher.events) != 1 {
		t.Errorf("событий VideoCreated = %d, ожидали 1", len(env.publisher.events))
	}
	if env.remote.sessions != 0 {
		t.Errorf("сессий: %d, ожидали 0", env.remote.sessions)
	}

	// Повтор с тем же remote_id
	_, err = env.svc.CreateFromBrowserUploadCallback(context.Background(), "abc123", "200", testOwner)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повтор: ожидали ErrConflict, получили %v", err)
	}
	if len(env.publisher.events) != 1 {
		t.Errorf("событий после конфликта = %d, ожидали 1", len(env.publisher.events))
	}
}

func TestCreateFromBrowserUploadCallback_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		remoteID string
		status   string
	}{
		{"нет идентификатора", "", "200"},
		{"статус ошибки", "abc123", "400"},
		{"пустой статус", "abc123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.svc.CreateFromBrowserUploadCallback(context.Background(), tt.remoteID, tt.status, testOwner)
			if !errors.Is(err, ErrUpload) {
				t.Fatalf("ожидали ErrUpload, получили %v", err)
			}
			if env.store.count() != 0 || len(env.publisher.events) != 0 {
				t.Error("запись или событие созданы при неуспешной загрузке")
			}
		})
	}
}

func TestCreateUploadSession(t *testing.T) {
	env := newTestEnv()

	upload, err := env.svc.CreateUploadSession(context.Background(),
		model.VideoMetadata{Title: "alice's video on example.org"}, model.AccessUnlisted)
	if err != nil {
		t.Fatalf("CreateUploadSession() ошибка: %v", err)
	}
	if upload.PostURL != "https://upload.example/unlisted" {
		t.Errorf("PostURL = %q", upload.PostURL)
	}

	if _, err := env.svc.CreateUploadSession(context.Background(), model.VideoMetadata{Title: " "}, model.AccessPublic); !errors.Is(err, ErrValidation) {
		t.Errorf("пустое название: ожидали ErrValidation, получили %v", err)
	}
	if _, err := env.svc.CreateUploadSession(context.Background(), model.VideoMetadata{Title: "t"}, model.AccessControl(0)); !errors.Is(err, ErrValidation) {
		t.Errorf("недопустимый доступ: ожидали ErrValidation, получили %v", err)
	}
}

// --- Синхронизация ---

func TestSyncNewRecord_OrderAndIdempotence(t *testing.T) {
	env := newTestEnv()
	env.store.put(&model.VideoRecord{
		ID:            testVideoID,
		RemoteID:      "abc123",
		AccessControl: model.AccessPublic,
		Owner:         testOwner,
	})
	thumbs := []string{"https://i/abc123/0.jpg", "https://i/abc123/1.jpg", "https://i/abc123/2.jpg"}
	env.session.entries["abc123"] = &model.RemoteEntry{
		RemoteID:      "abc123",
		Title:         "Remote title",
		Description:   "Remote description",
		Keywords:      []string{"go", "video"},
		PlaybackURL:   "https://host/abc123",
		EmbedURL:      "https://host/embed/abc123",
		AccessControl: model.AccessUnlisted,
		Thumbnails:    thumbs,
	}

	for range 2 {
		if _, err := env.svc.SyncNewRecord(context.Background(), testVideoID); err != nil {
			t.Fatalf("SyncNewRecord() ошибка: %v", err)
		}
	}

	stored, _ := env.store.Get(context.Background(), testVideoID)
	if !stored.Synced {
		t.Error("Synced = false после синхронизации")
	}
	if stored.Title != "Remote title" || stored.Keywords != "go, video" {
		t.Errorf("метаданные = %+v", stored)
	}
	if stored.AccessControl != model.AccessUnlisted {
		t.Errorf("AccessControl = %v, ожидали unlisted", stored.AccessControl)
	}
	if len(stored.Thumbnails) != len(thumbs) {
		t.Fatalf("превью: %d, ожидали %d (без дубликатов)", len(stored.Thumbnails), len(thumbs))
	}
	for i, th := range stored.Thumbnails {
		if th.URL != thumbs[i] || th.Position != i {
			t.Errorf("превью[%d] = %+v, ожидали %s на позиции %d", i, th, thumbs[i], i)
		}
	}
}

func TestSyncNewRecord_RemoteNotFound(t *testing.T) {
	env := newTestEnv()
	before := env.store.put(&model.VideoRecord{
		ID: testVideoID, RemoteID: "gone", AccessControl: model.AccessPublic, Owner: testOwner,
	})

	_, err := env.svc.SyncNewRecord(context.Background(), testVideoID)
	if !errors.Is(err, ErrRemoteNotFound) {
		t.Fatalf("ожидали ErrRemoteNotFound, получили %v", err)
	}
	after, _ := env.store.Get(context.Background(), testVideoID)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("запись изменилась:\nдо    %+v\nпосле %+v", before, after)
	}
}

func TestEnsureSynced_SkipsSyncedRecord(t *testing.T) {
	env := newTestEnv()
	record := env.store.put(syncedVideo())

	got, err := env.svc.EnsureSynced(context.Background(), record)
	if err != nil {
		t.Fatalf("EnsureSynced() ошибка: %v", err)
	}
	if got != record {
		t.Error("синхронизированная запись должна возвращаться как есть")
	}
	if env.remote.sessions != 0 {
		t.Errorf("сессий: %d, ожидали 0", env.remote.sessions)
	}
}

func TestEnsureSyncedAll_KeepsFailedRecords(t *testing.T) {
	env := newTestEnv()
	ok := env.store.put(&model.VideoRecord{
		ID: "11111111-1111-4111-8111-111111111111", RemoteID: "ok1", AccessControl: model.AccessPublic, Owner: testOwner,
	})
	failed := env.store.put(&model.VideoRecord{
		ID: "22222222-2222-4222-8222-222222222222", RemoteID: "missing", AccessControl: model.AccessPublic, Owner: testOwner,
	})
	env.session.entries["ok1"] = &model.RemoteEntry{RemoteID: "ok1", Title: "Synced", AccessControl: model.AccessPublic}

	records := env.svc.EnsureSyncedAll(context.Background(), []*model.VideoRecord{ok, failed})
	if !records[0].Synced || records[0].Title != "Synced" {
		t.Errorf("первая запись не синхронизирована: %+v", records[0])
	}
	if records[1].Synced {
		t.Error("запись с ошибкой синхронизации не должна отмечаться как синхронизированная")
	}
}

// --- Изменение ---

func TestUpdateRecord_RemoteFailureKeepsRecord(t *testing.T) {
	env := newTestEnv()
	before := env.store.put(syncedVideo(), "https://i/0.jpg", "https://i/1.jpg")
	env.session.updateErr = fmt.Errorf("%w: rejected", youtube.ErrUpdate)

	private := model.AccessPrivate
	_, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{AccessControl: &private})
	if !errors.Is(err, ErrRemoteSync) {
		t.Fatalf("ожидали ErrRemoteSync, получили %v", err)
	}
	if env.session.updateAccess != model.AccessPrivate {
		t.Errorf("на хостинг передан доступ %v, ожидали private", env.session.updateAccess)
	}

	after, _ := env.store.Get(context.Background(), testVideoID)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("запись изменилась:\nдо    %+v\nпосле %+v", before, after)
	}
	if after.AccessControl != model.AccessPublic {
		t.Errorf("AccessControl = %v, ожидали прежний public", after.AccessControl)
	}
}

func TestUpdateRecord_RemoteErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		authErr error
		err     error
		also    error
	}{
		{"таймаут", nil, fmt.Errorf("%w: update", youtube.ErrTimeout), ErrTimeout},
		{"видео удалено на хостинге", nil, fmt.Errorf("%w: abc123", youtube.ErrNotFound), ErrRemoteNotFound},
		{"аутентификация", fmt.Errorf("%w: invalid_grant", youtube.ErrAuth), nil, ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			before := env.store.put(syncedVideo())
			env.remote.authErr = tt.authErr
			env.session.updateErr = tt.err

			title := "New"
			_, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{Title: &title})
			if !errors.Is(err, ErrRemoteSync) {
				t.Errorf("ожидали ErrRemoteSync, получили %v", err)
			}
			if !errors.Is(err, tt.also) {
				t.Errorf("ожидали также %v, получили %v", tt.also, err)
			}
			after, _ := env.store.Get(context.Background(), testVideoID)
			if !reflect.DeepEqual(before, after) {
				t.Error("запись изменилась при ошибке хостинга")
			}
		})
	}
}

func TestUpdateRecord_Success(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo(), "https://i/0.jpg")

	title := "New title"
	keywords := "a, b"
	private := model.AccessPrivate
	updated, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{
		Title:         &title,
		Keywords:      &keywords,
		AccessControl: &private,
	})
	if err != nil {
		t.Fatalf("UpdateRecord() ошибка: %v", err)
	}
	if updated.Title != title || updated.AccessControl != model.AccessPrivate {
		t.Errorf("updated = %+v", updated)
	}
	if env.session.updateMeta.Title != title || env.session.updateMeta.Description != "Original description" {
		t.Errorf("метаданные на хостинге = %+v", env.session.updateMeta)
	}
	if !reflect.DeepEqual(env.session.updateMeta.Keywords, []string{"a", "b"}) {
		t.Errorf("теги на хостинге = %v", env.session.updateMeta.Keywords)
	}

	stored, _ := env.store.Get(context.Background(), testVideoID)
	if stored.Title != title || stored.AccessControl != model.AccessPrivate {
		t.Errorf("сохранено = %+v", stored)
	}
	if len(stored.Thumbnails) != 1 {
		t.Errorf("превью: %d, ожидали 1", len(stored.Thumbnails))
	}
}

func TestUpdateRecord_ClearsDescriptionAndKeywords(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())

	empty := ""
	updated, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{
		Description: &empty,
		Keywords:    &empty,
	})
	if err != nil {
		t.Fatalf("UpdateRecord() ошибка: %v", err)
	}
	if env.session.updateMeta.Description != "" || len(env.session.updateMeta.Keywords) != 0 {
		t.Errorf("на хостинг переданы %+v, ожидали пустые описание и теги", env.session.updateMeta)
	}
	if env.session.updateMeta.Title != "Original" {
		t.Errorf("название на хостинге = %q, ожидали прежнее", env.session.updateMeta.Title)
	}
	if updated.Description != "" || updated.Keywords != "" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUpdateRecord_SavesConfirmedMetadata(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())
	// Хостинг сохранил прежнее описание и нормализовал теги
	env.session.updateResult = &model.RemoteEntry{
		RemoteID:      "abc123",
		Title:         "Original",
		Description:   "Original description",
		Keywords:      []string{"go"},
		AccessControl: model.AccessPublic,
	}

	empty := ""
	keywords := "Go"
	updated, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{
		Description: &empty,
		Keywords:    &keywords,
	})
	if err != nil {
		t.Fatalf("UpdateRecord() ошибка: %v", err)
	}

	stored, _ := env.store.Get(context.Background(), testVideoID)
	for _, v := range []*model.VideoRecord{updated, stored} {
		if v.Description != "Original description" || v.Keywords != "go" {
			t.Errorf("сохранено %q / %q, ожидали подтверждённые хостингом значения", v.Description, v.Keywords)
		}
	}
}

func TestUpdateRecord_UnsyncedRecordSyncedFirst(t *testing.T) {
	env := newTestEnv()
	env.store.put(&model.VideoRecord{
		ID:            testVideoID,
		RemoteID:      "abc123",
		AccessControl: model.AccessUnlisted,
		Owner:         testOwner,
	})
	env.session.entries["abc123"] = &model.RemoteEntry{
		RemoteID:      "abc123",
		Title:         "Remote title",
		Description:   "Remote description",
		Keywords:      []string{"go"},
		AccessControl: model.AccessUnlisted,
	}

	private := model.AccessPrivate
	updated, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{AccessControl: &private})
	if err != nil {
		t.Fatalf("UpdateRecord() ошибка: %v", err)
	}
	want := model.VideoMetadata{Title: "Remote title", Description: "Remote description", Keywords: []string{"go"}}
	if !reflect.DeepEqual(env.session.updateMeta, want) {
		t.Errorf("на хостинг переданы %+v, ожидали %+v", env.session.updateMeta, want)
	}
	if !updated.Synced || updated.AccessControl != model.AccessPrivate {
		t.Errorf("updated = %+v", updated)
	}
}

func TestUpdateRecord_UnsyncedRecordSyncFailure(t *testing.T) {
	env := newTestEnv()
	before := env.store.put(&model.VideoRecord{ID: testVideoID, RemoteID: "abc123", Owner: testOwner})
	env.session.fetchErr = fmt.Errorf("%w: fetch", youtube.ErrTimeout)

	title := "New"
	_, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{Title: &title})
	if !errors.Is(err, ErrRemoteSync) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("ожидали ErrRemoteSync и ErrTimeout, получили %v", err)
	}
	if env.session.updateCalls != 0 {
		t.Errorf("вызовов UpdateEntry: %d, ожидали 0", env.session.updateCalls)
	}
	after, _ := env.store.Get(context.Background(), testVideoID)
	if !reflect.DeepEqual(before, after) {
		t.Error("запись изменилась при ошибке синхронизации")
	}
}

func TestUpdateRecord_Validation(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())

	empty := "  "
	invalid := model.AccessControl(7)
	tests := []struct {
		name    string
		changes model.VideoChanges
	}{
		{"нет изменений", model.VideoChanges{}},
		{"пустое название", model.VideoChanges{Title: &empty}},
		{"недопустимый доступ", model.VideoChanges{AccessControl: &invalid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.UpdateRecord(context.Background(), testVideoID, tt.changes); !errors.Is(err, ErrValidation) {
				t.Errorf("ожидали ErrValidation, получили %v", err)
			}
		})
	}
	if env.session.updateCalls != 0 {
		t.Errorf("вызовов UpdateEntry: %d, ожидали 0", env.session.updateCalls)
	}

	title := "x"
	if _, err := env.svc.UpdateRecord(context.Background(), "7b0e0a3c-0000-4000-8000-000000000000", model.VideoChanges{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующее видео: ожидали ErrNotFound, получили %v", err)
	}
}

func TestUpdateRecord_StoreFailureAfterRemote(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())
	env.store.updateErr = errors.New("connection refused")

	title := "New"
	_, err := env.svc.UpdateRecord(context.Background(), testVideoID, model.VideoChanges{Title: &title})
	if err == nil || errors.Is(err, ErrRemoteSync) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
}

// --- Удаление ---

func TestDeleteRecord_RemoteFailureKeepsRecord(t *testing.T) {
	env := newTestEnv()
	before := env.store.put(syncedVideo(), "https://i/0.jpg", "https://i/1.jpg")
	env.session.deleteErr = fmt.Errorf("%w: backend error", youtube.ErrUnavailable)

	err := env.svc.DeleteRecord(context.Background(), testVideoID)
	if !errors.Is(err, ErrRemoteSync) {
		t.Fatalf("ожидали ErrRemoteSync, получили %v", err)
	}

	after, getErr := env.store.Get(context.Background(), testVideoID)
	if getErr != nil {
		t.Fatalf("запись удалена при ошибке хостинга: %v", getErr)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("запись изменилась:\nдо    %+v\nпосле %+v", before, after)
	}
}

func TestDeleteRecord_Timeout(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())
	env.session.deleteErr = fmt.Errorf("%w: delete", youtube.ErrTimeout)

	err := env.svc.DeleteRecord(context.Background(), testVideoID)
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrRemoteSync) {
		t.Fatalf("ожидали ErrTimeout и ErrRemoteSync, получили %v", err)
	}
	if env.store.count() != 1 {
		t.Error("запись удалена при таймауте")
	}
}

func TestDeleteRecord_Success(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo(), "https://i/0.jpg")

	if err := env.svc.DeleteRecord(context.Background(), testVideoID); err != nil {
		t.Fatalf("DeleteRecord() ошибка: %v", err)
	}
	if env.session.deleteCalls != 1 {
		t.Errorf("вызовов DeleteEntry: %d, ожидали 1", env.session.deleteCalls)
	}
	if _, err := env.store.Get(context.Background(), testVideoID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("запись не удалена: %v", err)
	}
	if err := env.svc.DeleteRecord(context.Background(), testVideoID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидали ErrNotFound, получили %v", err)
	}
}

// --- Доступность ---

func TestCheckAvailability(t *testing.T) {
	env := newTestEnv()
	env.session.statuses["ready"] = model.Available()
	env.session.statuses["busy"] = model.Unavailable(model.AvailabilityProcessing, "transcoding")
	env.session.statuses["bad"] = model.Unavailable(model.AvailabilityRejected, "duplicate")

	tests := []struct {
		remoteID string
		state    model.AvailabilityState
		detail   string
	}{
		{"ready", model.AvailabilityAvailable, ""},
		{"busy", model.AvailabilityProcessing, "transcoding"},
		{"bad", model.AvailabilityRejected, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.remoteID, func(t *testing.T) {
			got, err := env.svc.CheckAvailability(context.Background(), tt.remoteID)
			if err != nil {
				t.Fatalf("CheckAvailability() ошибка: %v", err)
			}
			if got.State != tt.state || got.Detail != tt.detail {
				t.Errorf("CheckAvailability(%s) = %+v", tt.remoteID, got)
			}
			if got.IsAvailable() != (tt.state == model.AvailabilityAvailable) {
				t.Errorf("IsAvailable() = %v", got.IsAvailable())
			}
		})
	}

	if _, err := env.svc.CheckAvailability(context.Background(), "missing"); !errors.Is(err, ErrRemoteNotFound) {
		t.Errorf("ожидали ErrRemoteNotFound, получили %v", err)
	}
	if _, err := env.svc.CheckAvailability(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидали ErrValidation, получили %v", err)
	}
}

// --- Чтение ---

func TestListByOwner(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())
	env.store.put(&model.VideoRecord{ID: "33333333-3333-4333-8333-333333333333", RemoteID: "other", Owner: "user-2", AccessControl: model.AccessPublic})

	items, total, err := env.svc.ListByOwner(context.Background(), testOwner, 10, 0)
	if err != nil {
		t.Fatalf("ListByOwner() ошибка: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != testVideoID {
		t.Errorf("items = %v, total = %d", items, total)
	}

	if _, _, err := env.svc.ListByOwner(context.Background(), testOwner, 0, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("limit=0: ожидали ErrValidation, получили %v", err)
	}
}

func TestGet_InvalidID(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.Get(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestGetByRemoteID(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())

	got, err := env.svc.GetByRemoteID(context.Background(), "abc123")
	if err != nil || got.ID != testVideoID {
		t.Fatalf("GetByRemoteID() = %v, %v", got, err)
	}
	if _, err := env.svc.GetByRemoteID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestListRemoteFeed_LimitAndCache(t *testing.T) {
	env := newTestEnv()
	for i := range 5 {
		env.session.feed = append(env.session.feed, &model.RemoteEntry{RemoteID: fmt.Sprintf("v%d", i)})
	}

	entries, err := env.svc.ListRemoteFeed(context.Background(), "alice", 3)
	if err != nil {
		t.Fatalf("ListRemoteFeed() ошибка: %v", err)
	}
	if len(entries) != 3 || entries[2].RemoteID != "v2" {
		t.Errorf("entries = %v", entries)
	}
	if env.session.feedPulled != 3 {
		t.Errorf("прочитано элементов ленты: %d, ожидали 3", env.session.feedPulled)
	}

	if _, err := env.svc.ListRemoteFeed(context.Background(), "alice", 3); err != nil {
		t.Fatalf("ListRemoteFeed() повтор: %v", err)
	}
	if env.remote.sessions != 1 {
		t.Errorf("сессий: %d, ожидали 1 (второй запрос из кэша)", env.remote.sessions)
	}

	if _, err := env.svc.ListRemoteFeed(context.Background(), "alice", MaxFeedLimit+1); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидали ErrValidation, получили %v", err)
	}
}

// --- Права ---

func TestAuthorize(t *testing.T) {
	env := newTestEnv()
	env.store.put(syncedVideo())

	if _, err := env.svc.Authorize(context.Background(), testVideoID, Actor{Subject: testOwner, Role: rbac.RoleViewer}); err != nil {
		t.Errorf("автор: неожиданная ошибка %v", err)
	}
	if _, err := env.svc.Authorize(context.Background(), testVideoID, Actor{Subject: "admin-1", Role: rbac.RoleAdmin}); err != nil {
		t.Errorf("администратор: неожиданная ошибка %v", err)
	}
	if _, err := env.svc.Authorize(context.Background(), testVideoID, Actor{Subject: "user-2", Role: rbac.RoleViewer}); !errors.Is(err, ErrForbidden) {
		t.Errorf("чужое видео: ожидали ErrForbidden, получили %v", err)
	}
}

func TestPassthroughStaging(t *testing.T) {
	staging := NewPassthroughStaging()
	key, err := staging.Put(context.Background(), "Clip.MP4", bytes.NewReader([]byte("data")), 4, "video/mp4")
	if err != nil {
		t.Fatalf("Put() ошибка: %v", err)
	}
	if !strings.HasPrefix(key, "uploads/") || !strings.HasSuffix(key, ".mp4") {
		t.Errorf("key = %q", key)
	}

	rc, err := staging.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "data" {
		t.Errorf("data = %q", data)
	}
	if _, err := staging.Get(context.Background(), key); err == nil {
		t.Error("повторное чтение должно завершаться ошибкой")
	}
}
