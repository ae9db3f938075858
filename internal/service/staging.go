// staging.go — временное хранилище файлов прямой загрузки.
// MinIOStaging сохраняет файл в bucket до подтверждения загрузки на хостинг,
// после чего объект удаляется. PassthroughStaging используется без MinIO:
// поток запроса передаётся на хостинг напрямую.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StagingStore — временное хранилище загружаемых файлов.
type StagingStore interface {
	// Put сохраняет файл и возвращает ключ объекта. size < 0 — размер неизвестен.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Get открывает сохранённый файл на чтение.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove удаляет файл.
	Remove(ctx context.Context, key string) error
}

// stagingKey формирует ключ объекта, сохраняя расширение исходного файла.
func stagingKey(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(name)))
	return "uploads/" + uuid.New().String() + ext
}

// NewMinIOClient создаёт клиент MinIO со статическими ключами.
func NewMinIOClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("создание клиента MinIO: %w", err)
	}
	return client, nil
}

// MinIOStaging — StagingStore в bucket MinIO.
type MinIOStaging struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinIOStaging создаёт хранилище и при необходимости bucket.
func NewMinIOStaging(ctx context.Context, client *minio.Client, bucket string, logger *slog.Logger) (*MinIOStaging, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("проверка bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("создание bucket %s: %w", bucket, err)
		}
		logger.Info("Bucket MinIO создан", slog.String("bucket", bucket))
	}

	return &MinIOStaging{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "minio_staging")),
	}, nil
}

// Put загружает файл в bucket.
func (s *MinIOStaging) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := stagingKey(name)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("сохранение объекта %s: %w", key, err)
	}

	s.logger.Debug("Файл сохранён во временное хранилище",
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return key, nil
}

// Get открывает объект. Отсутствие объекта обнаруживается сразу через Stat.
func (s *MinIOStaging) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("получение объекта %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("получение объекта %s: %w", key, err)
	}
	return obj, nil
}

// Remove удаляет объект.
func (s *MinIOStaging) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("удаление объекта %s: %w", key, err)
	}
	return nil
}

// PassthroughStaging — StagingStore без хранения: Get возвращает поток, переданный в Put.
// Каждый ключ читается не более одного раза.
type PassthroughStaging struct {
	mu      sync.Mutex
	readers map[string]io.Reader
}

// NewPassthroughStaging создаёт хранилище-заглушку.
func NewPassthroughStaging() *PassthroughStaging {
	return &PassthroughStaging{readers: make(map[string]io.Reader)}
}

// Put запоминает поток.
func (s *PassthroughStaging) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	key := stagingKey(name)
	s.mu.Lock()
	s.readers[key] = r
	s.mu.Unlock()
	return key, nil
}

// Get отдаёт запомненный поток и забывает его.
func (s *PassthroughStaging) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	r, ok := s.readers[key]
	delete(s.readers, key)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("объект %s не найден", key)
	}
	return io.NopCloser(r), nil
}

// Remove забывает поток.
func (s *PassthroughStaging) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.readers, key)
	s.mu.Unlock()
	return nil
}
