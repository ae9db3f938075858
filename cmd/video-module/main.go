// Точка входа Video Module — синхронизация видео между каталогом и YouTube.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт клиент YouTube Data API и менеджер жизненного цикла видео,
// запускает topologymetrics, HTTP-сервер (JSON API и страницы) с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/video-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/video-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/video-module/internal/config"
	"github.com/bigkaa/goartstore/video-module/internal/database"
	"github.com/bigkaa/goartstore/video-module/internal/repository"
	"github.com/bigkaa/goartstore/video-module/internal/server"
	"github.com/bigkaa/goartstore/video-module/internal/service"
	uihandlers "github.com/bigkaa/goartstore/video-module/internal/ui/handlers"
	"github.com/bigkaa/goartstore/video-module/internal/ui/i18n"
	"github.com/bigkaa/goartstore/video-module/internal/ui/pages"
	"github.com/bigkaa/goartstore/video-module/internal/youtube"
)

// youtubeDependency — имя зависимости YouTube API в topologymetrics.
const youtubeDependency = "youtube-api"

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Video Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("VM_DEPHEALTH_GROUP") == "" {
		logger.Warn("VM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент YouTube Data API
	ytClient := youtube.NewClient(youtube.Options{
		APIURL:        cfg.YouTubeAPIURL,
		TokenURL:      cfg.YouTubeTokenURL,
		CallTimeout:   cfg.YouTubeCallTimeout,
		UploadTimeout: cfg.YouTubeUploadTimeout,
		MaxRetries:    cfg.YouTubeMaxRetries,
	}, logger)
	remote := service.NewYouTubeRemote(ytClient, youtube.Credentials{
		ClientID:     cfg.YouTubeClientID,
		ClientSecret: cfg.YouTubeClientSecret,
		RefreshToken: cfg.YouTubeRefreshToken,
	})
	logger.Info("Клиент YouTube Data API создан", slog.String("api_url", cfg.YouTubeAPIURL))

	// 6. Публикация событий VideoCreated (опционально, Redis)
	var events service.EventPublisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		events = service.NewRedisPublisher(rdb, cfg.RedisEventChannel, logger)
		logger.Info("События VideoCreated публикуются в Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.String("channel", cfg.RedisEventChannel),
		)
	} else {
		logger.Info("VM_REDIS_ADDR не задан, события VideoCreated не публикуются")
	}

	// 7. Staging прямых загрузок (опционально, MinIO)
	var staging service.StagingStore
	if cfg.MinIOEndpoint != "" {
		minioClient, minioErr := service.NewMinIOClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
		if minioErr != nil {
			logger.Error("Ошибка создания MinIO-клиента", slog.String("error", minioErr.Error()))
			os.Exit(1)
		}
		minioStaging, minioErr := service.NewMinIOStaging(ctx, minioClient, cfg.MinIOBucket, logger)
		if minioErr != nil {
			logger.Error("Ошибка подготовки бакета MinIO", slog.String("error", minioErr.Error()))
			os.Exit(1)
		}
		staging = minioStaging
		logger.Info("Staging прямых загрузок в MinIO",
			slog.String("endpoint", cfg.MinIOEndpoint),
			slog.String("bucket", cfg.MinIOBucket),
		)
	}

	// 8. Менеджер жизненного цикла
	store := repository.NewVideoStore(pool)
	feedCache := service.NewFeedCache(cfg.FeedCacheSize, cfg.FeedCacheTTL)
	videoSvc := service.NewVideoService(remote, store, events, staging, feedCache, logger)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + YouTube API)
	var youtubeChecker handlers.ReadinessChecker
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "video-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL(),
		YouTubeAPIURL: cfg.YouTubeAPIURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		youtubeChecker = dephealthSvc.ReadinessChecker(youtubeDependency)
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. Health и API handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), youtubeChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, videoSvc, cfg.MaxUploadSize, logger)

	// 11. Аутентификация API: JWT при заданном JWKS, иначе заголовки gateway
	var apiAuth func(http.Handler) http.Handler
	if cfg.JWTEnabled() {
		jwtAuth, jwtErr := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTGroupsClaim, cfg.RoleAdminGroups, logger)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		apiAuth = jwtAuth.Middleware()
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		apiAuth = middleware.TrustedHeaderAuth(cfg.RoleAdminGroups)
		logger.Warn("VM_JWT_JWKS_URL не задан, API доверяет заголовкам X-Forwarded-User от gateway")
	}

	// 12. Страницы (опционально, VM_UI_ENABLED)
	var ui server.UIRoutes
	if cfg.UIEnabled {
		bundle, i18nErr := i18n.Load(logger)
		if i18nErr != nil {
			logger.Error("Ошибка загрузки переводов", slog.String("error", i18nErr.Error()))
			os.Exit(1)
		}
		renderer, renderErr := pages.NewRenderer(bundle)
		if renderErr != nil {
			logger.Error("Ошибка разбора шаблонов страниц", slog.String("error", renderErr.Error()))
			os.Exit(1)
		}
		ui = uihandlers.NewVideoPagesHandler(videoSvc, renderer, cfg.PublicHost, cfg.RoleAdminGroups, cfg.MaxUploadSize, logger)
		logger.Info("Страницы видео включены", slog.String("public_host", cfg.PublicHost))
	} else {
		logger.Info("Страницы видео отключены (VM_UI_ENABLED=false)")
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, apiAuth, ui)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Video Module остановлен")
}
