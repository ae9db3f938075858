// handler.go — основной обработчик JSON API Video Module.
// Регистрирует маршруты /api/v1 и делегирует запросы в менеджер жизненного цикла.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/video-module/internal/api/errors"
	"github.com/bigkaa/goartstore/video-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/service"
)

// Параметры пагинации списка видео.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// VideoService — операции менеджера жизненного цикла, используемые API и UI.
// Реализуется service.VideoService.
type VideoService interface {
	CreateFromDirectUpload(ctx context.Context, upload service.DirectUpload, owner, titleHint string) (*model.VideoRecord, error)
	CreateFromBrowserUploadCallback(ctx context.Context, remoteID, status, owner string) (*model.VideoRecord, error)
	CreateUploadSession(ctx context.Context, meta model.VideoMetadata, ac model.AccessControl) (*model.UploadSession, error)
	SyncNewRecord(ctx context.Context, id string) (*model.VideoRecord, error)
	EnsureSynced(ctx context.Context, record *model.VideoRecord) (*model.VideoRecord, error)
	EnsureSyncedAll(ctx context.Context, records []*model.VideoRecord) []*model.VideoRecord
	UpdateRecord(ctx context.Context, id string, changes model.VideoChanges) (*model.VideoRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, remoteID string) (model.Availability, error)
	Get(ctx context.Context, id string) (*model.VideoRecord, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error)
	ListRemoteFeed(ctx context.Context, username string, limit int) ([]*model.RemoteEntry, error)
	Authorize(ctx context.Context, id string, actor service.Actor) (*model.VideoRecord, error)
}

// APIHandler — обработчик JSON API Video Module.
type APIHandler struct {
	health        *HealthHandler
	videos        VideoService
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
// maxUploadSize — предельный размер тела прямой загрузки в байтах.
func NewAPIHandler(health *HealthHandler, videos VideoService, maxUploadSize int64, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:        health,
		videos:        videos,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterProbes регистрирует публичные endpoints: health и metrics.
func (h *APIHandler) RegisterProbes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
}

// RegisterAPI регистрирует маршруты /api/v1.
// auth — middleware аутентификации, применяется ко всем маршрутам группы.
func (h *APIHandler) RegisterAPI(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", h.ListVideos)
			r.Post("/direct-upload", h.DirectUpload)
			r.Post("/upload-session", h.CreateUploadSession)
			r.Post("/upload-callback", h.UploadCallback)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetVideo)
				r.Patch("/", h.UpdateVideo)
				r.Delete("/", h.DeleteVideo)
				r.Post("/sync", h.SyncVideo)
				r.Get("/availability", h.GetAvailability)
			})
		})

		r.Get("/remote/users/{username}/videos", h.ListRemoteFeed)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// actorFromRequest возвращает пользователя из claims запроса.
func actorFromRequest(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Subject == "" {
		return service.Actor{}, false
	}
	return service.Actor{Subject: claims.Subject, Role: claims.Role}, true
}

// queryInt разбирает целочисленный query-параметр. Отсутствующий параметр — nil.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("параметр %s должен быть целым числом", name)
	}
	return &v, nil
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := defaultPageLimit
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > maxPageLimit {
			l = maxPageLimit
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Таймаут проверяется первым: он может быть обёрнут в ErrRemoteSync.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	msg := err.Error()
	if code == apierrors.CodeInternalError {
		msg = "Внутренняя ошибка сервера"
	}
	apierrors.WriteError(w, status, code, msg)
}

// classifyError возвращает HTTP-статус и код ошибки API.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, apierrors.CodeValidationError
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, apierrors.CodeNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, apierrors.CodeForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, apierrors.CodeConflict
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout, apierrors.CodeRemoteTimeout
	case errors.Is(err, service.ErrRemoteSync):
		return http.StatusBadGateway, apierrors.CodeRemoteSyncError
	case errors.Is(err, service.ErrAuth):
		return http.StatusBadGateway, apierrors.CodeRemoteAuthError
	case errors.Is(err, service.ErrRemoteNotFound):
		return http.StatusNotFound, apierrors.CodeRemoteNotFound
	case errors.Is(err, service.ErrUpload):
		return http.StatusUnprocessableEntity, apierrors.CodeUploadError
	case errors.Is(err, service.ErrRemoteUnavailable):
		return http.StatusBadGateway, apierrors.CodeRemoteUnavail
	default:
		return http.StatusInternalServerError, apierrors.CodeInternalError
	}
}
