// Пакет handlers — HTTP-обработчики страниц Video Module.
// Файл videos.go — страницы загрузки, просмотра, списка и удаления видео.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/video-module/internal/api/errors"
	"github.com/bigkaa/goartstore/video-module/internal/domain/model"
	"github.com/bigkaa/goartstore/video-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/video-module/internal/service"
	"github.com/bigkaa/goartstore/video-module/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/goartstore/video-module/internal/ui/middleware"
	"github.com/bigkaa/goartstore/video-module/internal/ui/pages"
	"github.com/bigkaa/goartstore/video-module/internal/ui/static"
)

const (
	// listPageSize — видео на странице списка автора
	listPageSize = 24
	// maxMultipartMemory — часть формы прямой загрузки, хранимая в памяти
	maxMultipartMemory = 32 << 20
	// uploadReturnPath — адрес возврата браузера после загрузки на хостинг
	uploadReturnPath = "/videos/upload/return"
)

// VideoService — операции менеджера жизненного цикла, используемые страницами.
// Реализуется service.VideoService.
type VideoService interface {
	CreateFromDirectUpload(ctx context.Context, upload service.DirectUpload, owner, titleHint string) (*model.VideoRecord, error)
	CreateFromBrowserUploadCallback(ctx context.Context, remoteID, status, owner string) (*model.VideoRecord, error)
	CreateUploadSession(ctx context.Context, meta model.VideoMetadata, ac model.AccessControl) (*model.UploadSession, error)
	EnsureSynced(ctx context.Context, record *model.VideoRecord) (*model.VideoRecord, error)
	EnsureSyncedAll(ctx context.Context, records []*model.VideoRecord) []*model.VideoRecord
	DeleteRecord(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, remoteID string) (model.Availability, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*model.VideoRecord, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]*model.VideoRecord, int, error)
	Authorize(ctx context.Context, id string, actor service.Actor) (*model.VideoRecord, error)
}

// VideoPagesHandler — обработчик страниц видео.
type VideoPagesHandler struct {
	videos        VideoService
	renderer      *pages.Renderer
	publicHost    string
	adminGroups   []string
	maxUploadSize int64
	logger        *slog.Logger
}

// NewVideoPagesHandler создаёт обработчик страниц.
// publicHost — имя хоста в названии по умолчанию и в адресе возврата после загрузки.
// maxUploadSize — предельный размер тела прямой загрузки в байтах.
func NewVideoPagesHandler(
	videos VideoService,
	renderer *pages.Renderer,
	publicHost string,
	adminGroups []string,
	maxUploadSize int64,
	logger *slog.Logger,
) *VideoPagesHandler {
	return &VideoPagesHandler{
		videos:        videos,
		renderer:      renderer,
		publicHost:    publicHost,
		adminGroups:   adminGroups,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "ui.videos")),
	}
}

// Register регистрирует страницы, статику и переключение языка.
func (h *VideoPagesHandler) Register(r chi.Router) {
	r.Handle("/static/*", static.Handler())

	r.Group(func(r chi.Router) {
		r.Use(i18n.Middleware())
		r.Use(uimiddleware.IdentityMiddleware(h.adminGroups))

		r.Post("/set-language", HandleSetLanguage)

		r.Get("/videos/upload", h.HandleUploadForm)
		r.Post("/videos/upload", h.HandleUploadSession)
		r.Get(uploadReturnPath, h.HandleUploadReturn)
		r.Post("/videos/direct-upload", h.HandleDirectUpload)

		r.Get("/videos/{remoteID}", h.HandleVideo)
		r.Get("/videos/{remoteID}/availability", h.HandleAvailability)
		r.Post("/videos/{remoteID}/remove", h.HandleRemove)

		r.Get("/users/{owner}/videos", h.HandleList)
	})
}

// --- Загрузка ---

// HandleUploadForm обрабатывает GET /videos/upload — форма загрузки.
func (h *VideoPagesHandler) HandleUploadForm(w http.ResponseWriter, r *http.Request) {
	id := uimiddleware.IdentityFromContext(r.Context())
	h.render(w, r, http.StatusOK, h.renderer.UploadForm(pages.NewUploadFormData(h.defaultTitle(id.User))))
}

// HandleUploadSession обрабатывает POST /videos/upload.
// Создаёт сессию загрузки на хостинге и отдаёт страницу выбора файла.
func (h *VideoPagesHandler) HandleUploadSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Некорректная форма: "+err.Error())
		return
	}

	form := pages.NewUploadFormData(r.PostFormValue("title"))
	form.Description = r.PostFormValue("description")
	form.Keywords = r.PostFormValue("keywords")
	if raw := r.PostFormValue("access_control"); raw != "" {
		ac, err := model.ParseAccessControl(raw)
		if err != nil {
			form.Error = err.Error()
			h.render(w, r, http.StatusBadRequest, h.renderer.UploadForm(form))
			return
		}
		form.Access = ac
	}

	session, err := h.videos.CreateUploadSession(r.Context(), model.VideoMetadata{
		Title:       form.Title,
		Description: form.Description,
		Keywords:    model.SplitKeywords(form.Keywords),
	}, form.Access)
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		form.Error = err.Error()
		h.render(w, r, status, h.renderer.UploadForm(form))
		return
	}

	h.logger.Debug("Сессия загрузки создана", slog.String("user", id.User))
	h.render(w, r, http.StatusOK, h.renderer.BrowserUpload(pages.BrowserUploadData{
		ActionURL: session.PostURL + "?nexturl=" + url.QueryEscape(h.absoluteURL(r, uploadReturnPath)),
		Token:     session.Token,
	}))
}

// HandleUploadReturn обрабатывает GET /videos/upload/return?status=&id=.
// Хостинг возвращает сюда браузер после загрузки файла.
func (h *VideoPagesHandler) HandleUploadReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	record, err := h.videos.CreateFromBrowserUploadCallback(r.Context(), q.Get("id"), q.Get("status"), id.User)
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		form := pages.NewUploadFormData(h.defaultTitle(id.User))
		form.Error = err.Error()
		h.render(w, r, status, h.renderer.UploadForm(form))
		return
	}

	http.Redirect(w, r, videoURL(record.RemoteID), http.StatusSeeOther)
}

// directUploadResponse — ответ быстрой загрузки с only_data=true.
type directUploadResponse struct {
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
}

// HandleDirectUpload обрабатывает POST /videos/direct-upload.
// Файл передаётся на хостинг через сервер. С only_data=true ответ — JSON, иначе redirect.
func (h *VideoPagesHandler) HandleDirectUpload(w http.ResponseWriter, r *http.Request) {
	onlyData := r.URL.Query().Get("only_data") == "true"

	id := uimiddleware.IdentityFromContext(r.Context())
	if id.Anonymous() {
		h.directUploadError(w, r, onlyData, http.StatusUnauthorized, apierrors.CodeUnauthorized, "Требуется аутентификация")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.directUploadError(w, r, onlyData, http.StatusRequestEntityTooLarge, apierrors.CodeTooLarge,
				fmt.Sprintf("Размер файла превышает %d байт", tooLarge.Limit))
			return
		}
		h.directUploadError(w, r, onlyData, http.StatusBadRequest, apierrors.CodeValidationError, "Некорректная multipart-форма: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	onlyData = onlyData || r.FormValue("only_data") == "true"

	file, header, err := r.FormFile("file")
	if err != nil {
		h.directUploadError(w, r, onlyData, http.StatusBadRequest, apierrors.CodeValidationError, "Файл (file) обязателен")
		return
	}
	defer file.Close()

	record, err := h.videos.CreateFromDirectUpload(r.Context(), service.DirectUpload{
		Reader:      file,
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	}, id.User, r.FormValue("title"))
	if err != nil {
		status, code := errorStatus(err)
		h.logServiceError(r, err, status)
		h.directUploadError(w, r, onlyData, status, code, err.Error())
		return
	}

	if onlyData {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(directUploadResponse{
			VideoID:  record.RemoteID,
			VideoURL: videoURL(record.RemoteID),
		})
		return
	}
	http.Redirect(w, r, videoURL(record.RemoteID), http.StatusSeeOther)
}

// directUploadError отвечает JSON-конвертом ошибки или страницей ошибки.
func (h *VideoPagesHandler) directUploadError(w http.ResponseWriter, r *http.Request, onlyData bool, status int, code, msg string) {
	if onlyData {
		apierrors.WriteError(w, status, code, msg)
		return
	}
	h.renderError(w, r, status, msg)
}

// --- Просмотр ---

// HandleVideo обрабатывает GET /videos/{remoteID}.
// Проигрыватель показывается только для видео, которое хостинг обработал.
func (h *VideoPagesHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	remoteID := chi.URLParam(r, "remoteID")

	availability, err := h.videos.CheckAvailability(ctx, remoteID)
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		h.renderError(w, r, status, err.Error())
		return
	}

	switch {
	case availability.IsTerminalFailure():
		h.render(w, r, http.StatusOK, h.renderer.Failed(pages.StatusData{RemoteID: remoteID, Detail: availability.Detail}))
		return
	case !availability.IsAvailable():
		h.render(w, r, http.StatusOK, h.renderer.Processing(pages.StatusData{RemoteID: remoteID, Detail: availability.Detail}))
		return
	}

	record, err := h.videos.GetByRemoteID(ctx, remoteID)
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		h.renderError(w, r, status, err.Error())
		return
	}

	synced, err := h.videos.EnsureSynced(ctx, record)
	if err != nil {
		// Показываем сохранённую запись, синхронизация повторится при следующем просмотре
		h.logger.Warn("Не удалось синхронизировать видео",
			slog.String("remote_id", remoteID),
			slog.String("error", err.Error()),
		)
	} else {
		record = synced
	}

	id := uimiddleware.IdentityFromContext(ctx)
	h.render(w, r, http.StatusOK, h.renderer.Video(pages.VideoData{
		Video:     record,
		CanManage: !id.Anonymous() && rbac.CanManageVideo(id.User, id.Role, record.Owner),
	}))
}

// availabilityResponse — ответ опроса готовности.
type availabilityResponse struct {
	Success bool `json:"success"`
}

// HandleAvailability обрабатывает GET /videos/{remoteID}/availability.
// Ошибка хостинга отдаётся как success=false: страница продолжит опрос.
func (h *VideoPagesHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	remoteID := chi.URLParam(r, "remoteID")

	resp := availabilityResponse{}
	availability, err := h.videos.CheckAvailability(r.Context(), remoteID)
	if err != nil {
		h.logger.Debug("Проверка готовности видео не удалась",
			slog.String("remote_id", remoteID),
			slog.String("error", err.Error()),
		)
	} else {
		resp.Success = availability.IsAvailable()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleList обрабатывает GET /users/{owner}/videos?page=.
func (h *VideoPagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := chi.URLParam(r, "owner")

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	records, total, err := h.videos.ListByOwner(ctx, owner, listPageSize, (page-1)*listPageSize)
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		h.renderError(w, r, status, err.Error())
		return
	}
	records = h.videos.EnsureSyncedAll(ctx, records)

	h.render(w, r, http.StatusOK, h.renderer.List(pages.NewListData(owner, records, total, page, listPageSize)))
}

// --- Удаление ---

// HandleRemove обрабатывает POST /videos/{remoteID}/remove.
// Удалять видео может автор или администратор.
func (h *VideoPagesHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	remoteID := chi.URLParam(r, "remoteID")

	record, err := h.videos.GetByRemoteID(ctx, remoteID)
	if err == nil {
		_, err = h.videos.Authorize(ctx, record.ID, service.Actor{Subject: id.User, Role: id.Role})
	}
	if err == nil {
		err = h.videos.DeleteRecord(ctx, record.ID)
	}
	if err != nil {
		status, _ := errorStatus(err)
		h.logServiceError(r, err, status)
		h.renderError(w, r, status, err.Error())
		return
	}

	h.logger.Info("Видео удалено со страницы",
		slog.String("remote_id", remoteID),
		slog.String("user", id.User),
	)
	http.Redirect(w, r, "/users/"+url.PathEscape(record.Owner)+"/videos", http.StatusSeeOther)
}

// --- Вспомогательные функции ---

// render отдаёт страницу с указанным статусом.
func (h *VideoPagesHandler) render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// renderError отдаёт страницу ошибки.
func (h *VideoPagesHandler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	h.render(w, r, status, h.renderer.Error(pages.ErrorData{Message: msg}))
}

// requireUser возвращает пользователя или отвечает 401 для анонимного запроса.
func (h *VideoPagesHandler) requireUser(w http.ResponseWriter, r *http.Request) (uimiddleware.Identity, bool) {
	id := uimiddleware.IdentityFromContext(r.Context())
	if id.Anonymous() {
		h.renderError(w, r, http.StatusUnauthorized, "Требуется аутентификация")
		return id, false
	}
	return id, true
}

// logServiceError логирует ошибки сервиса, кроме ожидаемых ошибок клиента.
func (h *VideoPagesHandler) logServiceError(r *http.Request, err error, status int) {
	level := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusUnprocessableEntity:
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "Ошибка обработки страницы",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}

// defaultTitle — название видео по умолчанию: "<user>'s video on <host>".
func (h *VideoPagesHandler) defaultTitle(user string) string {
	return fmt.Sprintf("%s's video on %s", user, h.publicHost)
}

// absoluteURL строит абсолютный адрес на публичном хосте.
// Схема берётся из X-Forwarded-Proto (TLS завершается на gateway).
func (h *VideoPagesHandler) absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := h.publicHost
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + path
}

// videoURL — адрес страницы видео.
func videoURL(remoteID string) string {
	return "/videos/" + url.PathEscape(remoteID)
}

// errorStatus возвращает HTTP-статус и код ошибки сервисного слоя.
// Таймаут проверяется раньше ErrRemoteSync: он может быть в него обёрнут.
func errorStatus(err error) (int, string) {
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
