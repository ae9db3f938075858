// Пакет server — HTTP-сервер Video Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/goartstore/video-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/video-module/internal/config"
)

// APIRoutes — маршруты JSON API и служебные endpoints.
type APIRoutes interface {
	RegisterProbes(r chi.Router)
	RegisterAPI(r chi.Router, auth func(http.Handler) http.Handler)
}

// UIRoutes — маршруты HTML-страниц.
type UIRoutes interface {
	Register(r chi.Router)
}

// Server — HTTP-сервер Video Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// apiAuth применяется только к /api/v1: health и metrics проверяются Kubernetes напрямую,
// страницы получают пользователя из заголовков gateway.
// ui может быть nil — страницы не регистрируются.
func New(cfg *config.Config, logger *slog.Logger, api APIRoutes, apiAuth func(http.Handler) http.Handler, ui UIRoutes) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(logger, api, apiAuth, ui),
		ReadHeaderTimeout: 30 * time.Second,
		// Прямая загрузка передаёт файл на хостинг в рамках запроса
		ReadTimeout:  cfg.YouTubeUploadTimeout,
		WriteTimeout: cfg.YouTubeUploadTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршрутизатор со всеми middleware.
func NewRouter(logger *slog.Logger, api APIRoutes, apiAuth func(http.Handler) http.Handler, ui UIRoutes) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	api.RegisterProbes(router)
	api.RegisterAPI(router, apiAuth)

	if ui != nil {
		ui.Register(router)
		router.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/videos/upload", http.StatusFound)
		})
	}

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
