// client.go — клиент YouTube Data API v3.
// Client не хранит учётных данных: каждая логическая операция получает собственную
// Session через Authenticate (обмен refresh token на access token по OAuth2).
// Операции сессии: FetchEntryByID, FetchFeedByUser, CreateUploadSession, UploadDirect,
// CheckStatus, UpdateEntry, DeleteEntry.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Prometheus-метрики вызовов API.
var remoteCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vm_youtube_requests_total",
		Help: "Количество вызовов YouTube Data API по операциям и результатам.",
	},
	[]string{"operation", "outcome"},
)

// Credentials — учётные данные OAuth2 канала.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Options — параметры клиента.
type Options struct {
	// APIURL — базовый URL API с завершающим слешем (https://youtube.googleapis.com/)
	APIURL string
	// TokenURL — OAuth2 token endpoint
	TokenURL string
	// CallTimeout — таймаут одного вызова API (включая повторы)
	CallTimeout time.Duration
	// UploadTimeout — таймаут загрузки файла
	UploadTimeout time.Duration
	// MaxRetries — количество повторов идемпотентных чтений
	MaxRetries int
	// RetryBackoff — начальная пауза между повторами
	RetryBackoff time.Duration
	// HTTPClient — базовый HTTP-клиент (TLS, прокси); nil — http.DefaultClient
	HTTPClient *http.Client
}

// Client — фабрика сессий YouTube Data API. Безопасен для конкурентного использования.
type Client struct {
	apiURL        string
	tokenURL      string
	callTimeout   time.Duration
	uploadTimeout time.Duration
	maxRetries    int
	retryBackoff  time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient создаёт клиент. Незаданные параметры получают значения по умолчанию.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.APIURL == "" {
		opts.APIURL = "https://youtube.googleapis.com/"
	}
	if !strings.HasSuffix(opts.APIURL, "/") {
		opts.APIURL += "/"
	}
	if opts.TokenURL == "" {
		opts.TokenURL = "https://oauth2.googleapis.com/token"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 30 * time.Minute
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		apiURL:        opts.APIURL,
		tokenURL:      opts.TokenURL,
		callTimeout:   opts.CallTimeout,
		uploadTimeout: opts.UploadTimeout,
		maxRetries:    opts.MaxRetries,
		retryBackoff:  opts.RetryBackoff,
		httpClient:    opts.HTTPClient,
		logger:        logger.With(slog.String("component", "youtube_client")),
	}
}

// APIURL возвращает базовый URL API (для мониторинга зависимостей).
func (c *Client) APIURL() string {
	return c.apiURL
}

// Authenticate обменивает refresh token на access token и возвращает новую сессию.
// Сессия принадлежит одной логической операции и не разделяется между запросами.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.ClientID == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: не заданы client_id или refresh_token", ErrAuth)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{youtube.YoutubeScope, youtube.YoutubeUploadScope},
	}

	// Контекст для последующих обновлений токена: живёт дольше вызова Authenticate
	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	token, err := oauthCfg.TokenSource(
		context.WithValue(callCtx, oauth2.HTTPClient, c.httpClient),
		&oauth2.Token{RefreshToken: creds.RefreshToken},
	).Token()
	if err != nil {
		remoteCallsTotal.WithLabelValues("authenticate", "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: authenticate", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	httpClient := oauth2.NewClient(baseCtx, oauthCfg.TokenSource(baseCtx, token))

	svc, err := youtube.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(c.apiURL),
	)
	if err != nil {
		return nil, fmt.Errorf("создание youtube.Service: %w", err)
	}

	remoteCallsTotal.WithLabelValues("authenticate", "ok").Inc()
	c.logger.Debug("Сессия YouTube создана",
		slog.Time("token_expires_at", token.Expiry),
	)

	return &Session{
		client:    c,
		svc:       svc,
		http:      httpClient,
		uploadURL: c.apiURL + "upload/youtube/v3/videos",
	}, nil
}

// retry выполняет fn с повторами при временных ошибках (5xx, 429).
// Пауза удваивается после каждой попытки, ожидание прерывается контекстом.
func (c *Client) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := c.retryBackoff
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = fn(ctx); err == nil || !isRetryable(err) {
			return err
		}
		if attempt == c.maxRetries {
			break
		}

		c.logger.Debug("Повтор запроса к YouTube",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return err
}

// observe учитывает результат вызова в метриках.
func observe(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrAuth):
		outcome = "auth_error"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	remoteCallsTotal.WithLabelValues(operation, outcome).Inc()
}
