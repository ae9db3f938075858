// Пакет errors — конструкторы стандартных ошибок API Video Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeUploadError     = "UPLOAD_ERROR"
	CodeRemoteAuthError = "REMOTE_AUTH_ERROR"
	CodeRemoteNotFound  = "REMOTE_NOT_FOUND"
	CodeRemoteSyncError = "REMOTE_SYNC_ERROR"
	CodeRemoteTimeout   = "REMOTE_TIMEOUT"
	CodeRemoteUnavail   = "REMOTE_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 видео уже зарегистрировано.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// TooLarge — 413 тело запроса превышает допустимый размер.
func TooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, message)
}

// UploadError — 422 хостинг отклонил загрузку.
func UploadError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeUploadError, message)
}

// RemoteAuthError — 502 хостинг отклонил учётные данные сервиса.
func RemoteAuthError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeRemoteAuthError, message)
}

// RemoteNotFound — 404 видео отсутствует на хостинге.
func RemoteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeRemoteNotFound, message)
}

// RemoteSyncError — 502 хостинг отклонил изменение.
func RemoteSyncError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeRemoteSyncError, message)
}

// RemoteTimeout — 504 хостинг не ответил вовремя.
func RemoteTimeout(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusGatewayTimeout, CodeRemoteTimeout, message)
}

// RemoteUnavailable — 502 хостинг недоступен.
func RemoteUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeRemoteUnavail, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
