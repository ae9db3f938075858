// Пакет config — загрузка и валидация конфигурации Video Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Video Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8010-8019)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Имя хоста для подписей по умолчанию ("<user>'s video on <host>")
	PublicHost string
	// Включены ли HTML-страницы (VM_UI_ENABLED)
	UIEnabled bool
	// Максимальный размер тела прямой загрузки в байтах
	MaxUploadSize int64

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- YouTube Data API ---

	// OAuth2 client ID приложения
	YouTubeClientID string
	// OAuth2 client secret приложения
	YouTubeClientSecret string
	// Refresh token канала, от имени которого выполняются операции
	YouTubeRefreshToken string
	// Базовый URL YouTube Data API (переопределяется в тестовых стендах)
	YouTubeAPIURL string
	// Token endpoint OAuth2
	YouTubeTokenURL string
	// Таймаут одного вызова API
	YouTubeCallTimeout time.Duration
	// Таймаут загрузки файла
	YouTubeUploadTimeout time.Duration
	// Количество повторов идемпотентных запросов при временных ошибках
	YouTubeMaxRetries int

	// --- JWT ---

	// Issuer JWT (пусто — не проверяется)
	JWTIssuer string
	// URL JWKS endpoint (пусто — аутентификация API отключена)
	JWTJWKSURL string
	// Claim для групп в JWT
	JWTGroupsClaim string
	// Группы IdP, дающие роль admin
	RoleAdminGroups []string

	// --- Redis (события VideoCreated) ---

	// Адрес Redis host:port (пусто — события не публикуются)
	RedisAddr string
	// Пароль Redis
	RedisPassword string
	// Номер базы Redis
	RedisDB int
	// Канал PUBLISH для событий
	RedisEventChannel string

	// --- MinIO (staging прямых загрузок) ---

	// Endpoint MinIO host:port (пусто — staging отключён)
	MinIOEndpoint string
	MinIOAccessKey string
	MinIOSecretKey string
	// Бакет для временных файлов
	MinIOBucket string
	// Использовать TLS
	MinIOUseSSL bool

	// --- Кэш ленты ---

	// Максимальное количество лент в кэше
	FeedCacheSize int
	// Время жизни ленты в кэше
	FeedCacheTTL time.Duration

	// --- Мониторинг ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Группа в метриках dephealth
	DephealthGroup string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// VM_PORT — порт HTTP-сервера (по умолчанию 8010)
	cfg.Port, err = getEnvInt("VM_PORT", 8010)
	if err != nil {
		return nil, fmt.Errorf("VM_PORT: %w", err)
	}
	if cfg.Port < 8010 || cfg.Port > 8019 {
		return nil, fmt.Errorf("VM_PORT: значение %d вне допустимого диапазона 8010-8019", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("VM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("VM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("VM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// VM_PUBLIC_HOST — имя сайта в подписи видео по умолчанию
	cfg.PublicHost = getEnvDefault("VM_PUBLIC_HOST", "localhost")

	cfg.UIEnabled, err = getEnvBool("VM_UI_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("VM_UI_ENABLED: %w", err)
	}

	maxUpload, err := getEnvInt("VM_MAX_UPLOAD_SIZE", 2<<30)
	if err != nil {
		return nil, fmt.Errorf("VM_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("VM_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("VM_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("VM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("VM_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("VM_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("VM_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("VM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("VM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("VM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- YouTube Data API ---

	cfg.YouTubeClientID, err = getEnvRequired("VM_YOUTUBE_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	cfg.YouTubeClientSecret, err = getEnvRequired("VM_YOUTUBE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.YouTubeRefreshToken, err = getEnvRequired("VM_YOUTUBE_REFRESH_TOKEN")
	if err != nil {
		return nil, err
	}

	// VM_YOUTUBE_API_URL — базовый URL API (по умолчанию https://youtube.googleapis.com/)
	cfg.YouTubeAPIURL, err = getEnvURL("VM_YOUTUBE_API_URL", "https://youtube.googleapis.com/")
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(cfg.YouTubeAPIURL, "/") {
		cfg.YouTubeAPIURL += "/"
	}

	cfg.YouTubeTokenURL, err = getEnvURL("VM_YOUTUBE_TOKEN_URL", "https://oauth2.googleapis.com/token")
	if err != nil {
		return nil, err
	}

	cfg.YouTubeCallTimeout, err = getEnvPositiveDuration("VM_YOUTUBE_CALL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_YOUTUBE_CALL_TIMEOUT: %w", err)
	}

	cfg.YouTubeUploadTimeout, err = getEnvPositiveDuration("VM_YOUTUBE_UPLOAD_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_YOUTUBE_UPLOAD_TIMEOUT: %w", err)
	}

	cfg.YouTubeMaxRetries, err = getEnvInt("VM_YOUTUBE_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("VM_YOUTUBE_MAX_RETRIES: %w", err)
	}
	if cfg.YouTubeMaxRetries < 0 || cfg.YouTubeMaxRetries > 10 {
		return nil, fmt.Errorf("VM_YOUTUBE_MAX_RETRIES: значение %d вне допустимого диапазона 0-10", cfg.YouTubeMaxRetries)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("VM_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("VM_JWT_ISSUER", "")
	cfg.JWTGroupsClaim = getEnvDefault("VM_JWT_GROUPS_CLAIM", "groups")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("VM_ROLE_ADMIN_GROUPS", "video-admins"))

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("VM_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("VM_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("VM_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("VM_REDIS_DB: %w", err)
	}
	cfg.RedisEventChannel = getEnvDefault("VM_REDIS_EVENT_CHANNEL", "video.created")

	// --- MinIO ---

	cfg.MinIOEndpoint = getEnvDefault("VM_MINIO_ENDPOINT", "")
	cfg.MinIOAccessKey = getEnvDefault("VM_MINIO_ACCESS_KEY", "")
	cfg.MinIOSecretKey = getEnvDefault("VM_MINIO_SECRET_KEY", "")
	cfg.MinIOBucket = getEnvDefault("VM_MINIO_BUCKET", "video-staging")
	cfg.MinIOUseSSL, err = getEnvBool("VM_MINIO_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("VM_MINIO_USE_SSL: %w", err)
	}
	if cfg.MinIOEndpoint != "" && (cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "") {
		return nil, fmt.Errorf("VM_MINIO_ACCESS_KEY и VM_MINIO_SECRET_KEY обязательны при заданном VM_MINIO_ENDPOINT")
	}

	// --- Кэш ленты ---

	cfg.FeedCacheSize, err = getEnvInt("VM_FEED_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("VM_FEED_CACHE_SIZE: %w", err)
	}
	if cfg.FeedCacheSize < 1 {
		return nil, fmt.Errorf("VM_FEED_CACHE_SIZE: значение должно быть > 0")
	}

	cfg.FeedCacheTTL, err = getEnvPositiveDuration("VM_FEED_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_FEED_CACHE_TTL: %w", err)
	}

	// --- Мониторинг ---

	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("VM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("VM_DEPHEALTH_GROUP", "artstore")

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvPositiveDuration("VM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для миграций и меток dephealth).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// JWTEnabled сообщает, включена ли проверка JWT для API.
func (c *Config) JWTEnabled() bool {
	return c.JWTJWKSURL != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvPositiveDuration возвращает положительную time.Duration из переменной окружения
// или значение по умолчанию.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// getEnvURL возвращает абсолютный URL из переменной окружения или значение по умолчанию.
func getEnvURL(key, defaultVal string) (string, error) {
	val := getEnvDefault(key, defaultVal)
	u, err := url.Parse(val)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s: некорректный URL %q", key, val)
	}
	return val, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
