// errors.go — ошибки клиента YouTube Data API и их классификация.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Ошибки клиента. Сопоставляются через errors.Is.
var (
	// ErrAuth — неверные учётные данные, отсутствующая сессия или отказ в доступе (401/403).
	ErrAuth = errors.New("ошибка аутентификации YouTube")
	// ErrNotFound — видео или канал отсутствует на хостинге.
	ErrNotFound = errors.New("запись на YouTube не найдена")
	// ErrUpload — загрузка отклонена или ответ хостинга некорректен.
	ErrUpload = errors.New("ошибка загрузки видео на YouTube")
	// ErrUpdate — хостинг отклонил изменение метаданных.
	ErrUpdate = errors.New("ошибка обновления видео на YouTube")
	// ErrTimeout — хостинг не ответил за отведённое время.
	ErrTimeout = errors.New("превышено время ожидания ответа YouTube")
	// ErrUnavailable — прочие ошибки API (5xx, квота, сеть).
	ErrUnavailable = errors.New("YouTube API недоступен")
)

// classify приводит ошибку вызова API к одному из sentinel-значений.
// fallback — ошибка операции для случаев, не попавших в общие категории.
func classify(ctx context.Context, op string, err error, fallback error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: обновление токена: %v", ErrAuth, op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", ErrAuth, op, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, op)
		}
	}

	return fmt.Errorf("%w: %s: %v", fallback, op, err)
}

// isRetryable — временные ошибки, после которых идемпотентный запрос можно повторить.
func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return false
}
