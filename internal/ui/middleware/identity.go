// Пакет middleware — HTTP middleware страниц Video Module.
// identity.go — пользователь страницы из заголовков API Gateway.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bigkaa/goartstore/video-module/internal/domain/rbac"
)

// AnonymousUser — имя пользователя, если gateway не передал X-Forwarded-User.
const AnonymousUser = "anonymous"

const (
	headerForwardedUser   = "X-Forwarded-User"
	headerForwardedGroups = "X-Forwarded-Groups"
)

// contextKey — тип для ключей контекста UI (избегаем коллизий с API middleware).
type contextKey string

const contextKeyIdentity contextKey = "ui_identity"

// Identity — пользователь страницы.
type Identity struct {
	// User — идентификатор пользователя (автор видео)
	User string
	// Role — роль по группам IdP (viewer, admin)
	Role string
}

// Anonymous сообщает, что пользователь не аутентифицирован gateway.
func (i Identity) Anonymous() bool {
	return i.User == AnonymousUser
}

// IdentityMiddleware извлекает пользователя из заголовков gateway и помещает в контекст.
// Запросы без X-Forwarded-User получают пользователя "anonymous".
func IdentityMiddleware(adminGroups []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{User: AnonymousUser}
			if user := strings.TrimSpace(r.Header.Get(headerForwardedUser)); user != "" {
				id.User = user
				id.Role = rbac.MapGroupsToRole(splitGroups(r.Header.Get(headerForwardedGroups)), adminGroups)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity возвращает контекст с пользователем.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext извлекает пользователя из контекста.
// Без IdentityMiddleware возвращает анонимного пользователя.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKeyIdentity).(Identity); ok {
		return id
	}
	return Identity{User: AnonymousUser}
}

// splitGroups разбирает список групп через запятую.
func splitGroups(s string) []string {
	var groups []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(g), "/")); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
