// videos.go — обработчики /api/v1/videos и /api/v1/remote endpoints.
// Создание (прямая загрузка, загрузка из браузера), чтение, изменение, удаление,
// синхронизация и проверка доступности видео.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/video-module/internal/api/errors"
	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/service"
)

// maxMultipartMemory — часть multipart-формы, хранимая в памяти; остальное — во временных файлах.
const maxMultipartMemory = 32 << 20

// --- DTO ---

// videoResponse — представление VideoRecord в API.
type videoResponse struct {
	ID            string   `json:"id"`
	RemoteID      string   `json:"remote_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Keywords      string   `json:"keywords"`
	PlaybackURL   string   `json:"playback_url,omitempty"`
	EmbedURL      string   `json:"embed_url,omitempty"`
	AccessControl string   `json:"access_control"`
	Owner         string   `json:"owner"`
	Synced        bool     `json:"synced"`
	Thumbnails    []string `json:"thumbnails"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

func toVideoResponse(v *model.VideoRecord) videoResponse {
	thumbs := make([]string, 0, len(v.Thumbnails))
	for _, t := range v.Thumbnails {
		thumbs = append(thumbs, t.URL)
	}
	return videoResponse{
		ID:            v.ID,
		RemoteID:      v.RemoteID,
		Title:         v.Title,
		Description:   v.Description,
		Keywords:      v.Keywords,
		PlaybackURL:   v.PlaybackURL,
		EmbedURL:      v.EmbedURL,
		AccessControl: v.AccessControl.String(),
		Owner:         v.Owner,
		Synced:        v.Synced,
		Thumbnails:    thumbs,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// videoListResponse — страница списка видео.
type videoListResponse struct {
	Items  []videoResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// uploadSessionRequest — тело POST /api/v1/videos/upload-session.
type uploadSessionRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Keywords      string `json:"keywords"`
	AccessControl string `json:"access_control"`
}

// uploadSessionResponse — параметры загрузки из браузера.
type uploadSessionResponse struct {
	PostURL string `json:"post_url"`
	Token   string `json:"token"`
}

// uploadCallbackRequest — тело POST /api/v1/videos/upload-callback.
type uploadCallbackRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// updateVideoRequest — тело PATCH /api/v1/videos/{id}. Отсутствующие поля не меняются.
type updateVideoRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Keywords      *string `json:"keywords"`
	AccessControl *string `json:"access_control"`
}

// availabilityResponse — состояние обработки видео на хостинге.
type availabilityResponse struct {
	RemoteID  string `json:"remote_id"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// remoteEntryResponse — видео из ленты пользователя хостинга.
type remoteEntryResponse struct {
	RemoteID      string   `json:"remote_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Keywords      []string `json:"keywords"`
	PlaybackURL   string   `json:"playback_url"`
	EmbedURL      string   `json:"embed_url"`
	AccessControl string   `json:"access_control,omitempty"`
	Thumbnails    []string `json:"thumbnails"`
	State         string   `json:"state"`
}

// --- Создание ---

// DirectUpload — POST /api/v1/videos/direct-upload.
// multipart/form-data: file (обязательно), title (опционально).
func (h *APIHandler) DirectUpload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.TooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", tooLarge.Limit))
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Файл (file) обязателен")
		return
	}
	defer file.Close()

	record, err := h.videos.CreateFromDirectUpload(r.Context(), service.DirectUpload{
		Reader:      file,
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, actor.Subject, r.FormValue("title"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(record))
}

// CreateUploadSession — POST /api/v1/videos/upload-session.
// Возвращает адрес и токен для загрузки файла из браузера напрямую на хостинг.
func (h *APIHandler) CreateUploadSession(w http.ResponseWriter, r *http.Request) {
	var req uploadSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	ac := model.DefaultAccessControl
	if req.AccessControl != "" {
		parsed, err := model.ParseAccessControl(req.AccessControl)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		ac = parsed
	}

	upload, err := h.videos.CreateUploadSession(r.Context(), model.VideoMetadata{
		Title:       req.Title,
		Description: req.Description,
		Keywords:    model.SplitKeywords(req.Keywords),
	}, ac)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadSessionResponse{PostURL: upload.PostURL, Token: upload.Token})
}

// UploadCallback — POST /api/v1/videos/upload-callback.
// Регистрирует видео, загруженное из браузера. Автор — текущий пользователь.
func (h *APIHandler) UploadCallback(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	var req uploadCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	record, err := h.videos.CreateFromBrowserUploadCallback(r.Context(), req.ID, req.Status, actor.Subject)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(record))
}

// --- Чтение ---

// ListVideos — GET /api/v1/videos?owner=&limit=&offset=.
// Без owner возвращаются видео текущего пользователя. Несинхронизированные записи
// синхронизируются перед ответом.
func (h *APIHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		actor, ok := actorFromRequest(r)
		if !ok {
			apierrors.Unauthorized(w, "Отсутствуют claims")
			return
		}
		owner = actor.Subject
	}

	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offsetParam, err := queryInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	items, total, err := h.videos.ListByOwner(r.Context(), owner, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items = h.videos.EnsureSyncedAll(r.Context(), items)

	resp := videoListResponse{
		Items:  make([]videoResponse, 0, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toVideoResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVideo — GET /api/v1/videos/{id}.
// Несинхронизированная запись синхронизируется; при отказе хостинга
// возвращается сохранённое состояние.
func (h *APIHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.videos.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if synced, syncErr := h.videos.EnsureSynced(r.Context(), record); syncErr == nil {
		record = synced
	} else {
		h.logger.Warn("Видео отдано без синхронизации",
			slog.String("video_id", id),
			slog.String("error", syncErr.Error()),
		)
	}

	writeJSON(w, http.StatusOK, toVideoResponse(record))
}

// GetAvailability — GET /api/v1/videos/{id}/availability.
func (h *APIHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	record, err := h.videos.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if record.RemoteID == "" {
		apierrors.ValidationError(w, "У видео нет идентификатора на хостинге")
		return
	}

	availability, err := h.videos.CheckAvailability(r.Context(), record.RemoteID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		RemoteID:  record.RemoteID,
		State:     availability.State.String(),
		Available: availability.IsAvailable(),
		Detail:    availability.Detail,
	})
}

// ListRemoteFeed — GET /api/v1/remote/users/{username}/videos?limit=.
func (h *APIHandler) ListRemoteFeed(w http.ResponseWriter, r *http.Request) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit := service.DefaultFeedLimit
	if limitParam != nil {
		limit = *limitParam
	}

	entries, err := h.videos.ListRemoteFeed(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]remoteEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := remoteEntryResponse{
			RemoteID:    e.RemoteID,
			Title:       e.Title,
			Description: e.Description,
			Keywords:    e.Keywords,
			PlaybackURL: e.PlaybackURL,
			EmbedURL:    e.EmbedURL,
			Thumbnails:  e.Thumbnails,
			State:       e.Availability.State.String(),
		}
		if e.AccessControl.Valid() {
			item.AccessControl = e.AccessControl.String()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- Изменение ---

// UpdateVideo — PATCH /api/v1/videos/{id}.
// Доступ: автор видео или admin.
func (h *APIHandler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	changes := model.VideoChanges{
		Title:       req.Title,
		Description: req.Description,
		Keywords:    req.Keywords,
	}
	if req.AccessControl != nil {
		ac, err := model.ParseAccessControl(*req.AccessControl)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		changes.AccessControl = &ac
	}

	record, err := h.videos.UpdateRecord(r.Context(), id, changes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(record))
}

// DeleteVideo — DELETE /api/v1/videos/{id}.
// Доступ: автор видео или admin.
func (h *APIHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}

	if err := h.videos.DeleteRecord(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncVideo — POST /api/v1/videos/{id}/sync.
// Повторно загружает метаданные и превью с хостинга. Доступ: автор видео или admin.
func (h *APIHandler) SyncVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.authorize(w, r, id) {
		return
	}

	record, err := h.videos.SyncNewRecord(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(record))
}

// authorize проверяет право текущего пользователя управлять видео.
// При отказе записывает ответ и возвращает false.
func (h *APIHandler) authorize(w http.ResponseWriter, r *http.Request, id string) bool {
	actor, ok := actorFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return false
	}
	if _, err := h.videos.Authorize(r.Context(), id, actor); err != nil {
		if errors.Is(err, service.ErrForbidden) {
			apierrors.Forbidden(w, "Управлять видео может только автор или администратор")
			return false
		}
		h.writeServiceError(w, r, err)
		return false
	}
	return true
}
