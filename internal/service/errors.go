// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/video-module/internal/repository"
	"github.com/bigkaa/goartstore/video-module/internal/youtube"
)

var (
	// ErrNotFound — запись не найдена в локальном хранилище.
	ErrNotFound = errors.New("видео не найдено")
	// ErrConflict — видео с таким remote_id уже зарегистрировано.
	ErrConflict = errors.New("конфликт — видео уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — у пользователя нет прав на изменение видео.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrAuth — хостинг отклонил учётные данные или сессия не аутентифицирована.
	ErrAuth = errors.New("ошибка аутентификации на хостинге")
	// ErrUpload — загрузка отклонена хостингом или не подтверждена.
	ErrUpload = errors.New("ошибка загрузки видео")
	// ErrRemoteNotFound — видео отсутствует на хостинге.
	ErrRemoteNotFound = errors.New("видео не найдено на хостинге")
	// ErrRemoteSync — хостинг отклонил изменение, локальная запись не изменена.
	ErrRemoteSync = errors.New("ошибка синхронизации с хостингом")
	// ErrTimeout — хостинг не ответил за отведённое время.
	ErrTimeout = errors.New("таймаут обращения к хостингу")
	// ErrRemoteUnavailable — хостинг недоступен.
	ErrRemoteUnavailable = errors.New("хостинг недоступен")
)

// remoteError переводит ошибку клиента хостинга в ошибку сервисного слоя.
// Таймаут всегда остаётся отличимым через errors.Is(err, ErrTimeout).
func remoteError(op string, err error) error {
	switch {
	case errors.Is(err, youtube.ErrTimeout):
		return fmt.Errorf("%w: %s: %w", ErrTimeout, op, err)
	case errors.Is(err, youtube.ErrAuth):
		return fmt.Errorf("%w: %s: %w", ErrAuth, op, err)
	case errors.Is(err, youtube.ErrNotFound):
		return fmt.Errorf("%w: %s: %w", ErrRemoteNotFound, op, err)
	case errors.Is(err, youtube.ErrUpload):
		return fmt.Errorf("%w: %s: %w", ErrUpload, op, err)
	case errors.Is(err, youtube.ErrUpdate):
		return fmt.Errorf("%w: %s: %w", ErrRemoteSync, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, op, err)
	}
}

// uploadError — ошибка загрузки: всё, кроме таймаута и аутентификации, считается ErrUpload.
func uploadError(op string, err error) error {
	if errors.Is(err, youtube.ErrTimeout) || errors.Is(err, youtube.ErrAuth) {
		return remoteError(op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpload, op, err)
}

// syncError — ошибка изменения на хостинге: всегда ErrRemoteSync плюс исходный вид ошибки.
func syncError(op string, err error) error {
	mapped := remoteError(op, err)
	if errors.Is(mapped, ErrRemoteSync) {
		return mapped
	}
	return fmt.Errorf("%w: %w", ErrRemoteSync, mapped)
}

// storeError переводит ошибку репозитория в ошибку сервисного слоя.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
