// auth.go — аутентификация запросов к API Video Module.
// JWTAuth проверяет Bearer token по JWKS провайдера, извлекает subject (автор видео)
// и группы, маппит группы в роль. TrustedHeaderAuth используется, когда JWKS не задан
// и идентичность пользователя передаёт API Gateway в заголовках.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/video-module/internal/api/errors"
	"github.com/bigkaa/goartstore/video-module/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

const (
	// HeaderForwardedUser — заголовок с идентификатором пользователя от API Gateway.
	HeaderForwardedUser = "X-Forwarded-User"
	// HeaderForwardedGroups — заголовок с группами пользователя через запятую.
	HeaderForwardedGroups = "X-Forwarded-Groups"
)

// jwksRefreshInterval — интервал фонового обновления JWKS.
const jwksRefreshInterval = 15 * time.Minute

// AuthClaims — claims аутентифицированного пользователя.
type AuthClaims struct {
	// Subject — sub из JWT, используется как автор видео.
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Email — email из JWT.
	Email string
	// Groups — группы пользователя.
	Groups []string
	// Roles — роли из realm_access.roles.
	Roles []string
	// Role — итоговая роль (viewer или admin).
	Role string
}

// IsAdmin возвращает true для администратора.
func (c *AuthClaims) IsAdmin() bool {
	return c.Role == rbac.RoleAdmin
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	issuer      string
	groupsClaim string
	adminGroups []string
}

// NewJWTAuth создаёт JWT middleware с ключами из JWKS endpoint.
// issuer — ожидаемый issuer (пусто — не проверяется).
// groupsClaim — имя claim со списком групп.
// adminGroups — группы, дающие роль admin.
func NewJWTAuth(
	jwksURL string,
	issuer string,
	groupsClaim string,
	adminGroups []string,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTAuthWithKeyfunc(k, issuer, groupsClaim, adminGroups, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	groupsClaim string,
	adminGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	if groupsClaim == "" {
		groupsClaim = "groups"
	}
	return &JWTAuth{
		jwks:        kf,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		issuer:      issuer,
		groupsClaim: groupsClaim,
		adminGroups: adminGroups,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), формирует AuthClaims
// и помещает их в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Группы лежат в настраиваемом claim, поэтому парсим в MapClaims
			rawClaims := jwt.MapClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				msg := "невалидный токен"
				if err != nil {
					msg = err.Error()
				}
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", msg),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			claims := j.buildAuthClaims(subject, rawClaims)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// buildAuthClaims формирует AuthClaims из MapClaims.
// Роль определяется по группам; если ни одна группа не дала admin,
// учитываются допустимые роли из realm_access.roles.
func (j *JWTAuth) buildAuthClaims(subject string, raw jwt.MapClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           subject,
		PreferredUsername: stringClaim(raw, "preferred_username"),
		Email:             stringClaim(raw, "email"),
		Groups:            stringsClaim(raw[j.groupsClaim]),
	}
	if realm, ok := raw["realm_access"].(map[string]any); ok {
		claims.Roles = stringsClaim(realm["roles"])
	}

	roles := []string{rbac.MapGroupsToRole(claims.Groups, j.adminGroups)}
	for _, r := range claims.Roles {
		if rbac.IsValidRole(r) {
			roles = append(roles, r)
		}
	}
	claims.Role = rbac.HighestRole(roles)
	return claims
}

// stringClaim возвращает строковый claim или пустую строку.
func stringClaim(raw jwt.MapClaims, name string) string {
	s, _ := raw[name].(string)
	return s
}

// stringsClaim разбирает claim-список. Keycloak отдаёт группы с ведущим "/",
// он отбрасывается.
func stringsClaim(v any) []string {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	case []string:
		items = append(items, t...)
	case string:
		items = strings.Fields(strings.ReplaceAll(t, ",", " "))
	}
	for i, s := range items {
		items[i] = strings.TrimPrefix(s, "/")
	}
	return items
}

// TrustedHeaderAuth возвращает middleware, доверяющий заголовкам API Gateway.
// Применяется, когда JWKS не настроен: аутентификацию выполнил gateway.
// Запрос без X-Forwarded-User отклоняется с 401.
func TrustedHeaderAuth(adminGroups []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(HeaderForwardedUser))
			if user == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок "+HeaderForwardedUser)
				return
			}

			groups := stringsClaim(r.Header.Get(HeaderForwardedGroups))
			claims := &AuthClaims{
				Subject:           user,
				PreferredUsername: user,
				Groups:            groups,
				Role:              rbac.MapGroupsToRole(groups, adminGroups),
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// --- Context helpers ---

// WithClaims возвращает контекст с claims.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// RoleFromContext извлекает роль из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func RoleFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Role
}
