// Пакет server — HTTP-сервер SecureVault с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/arturkryukov/securevault/internal/api/errors"
	"github.com/arturkryukov/securevault/internal/api/handlers"
	"github.com/arturkryukov/securevault/internal/api/middleware"
	"github.com/arturkryukov/securevault/internal/config"
)

// Handlers — набор обработчиков, монтируемых на роутер.
type Handlers struct {
	Files    *handlers.FilesHandler
	Download *handlers.DownloadHandler
	Settings *handlers.SettingsHandler
	Health   *handlers.HealthHandler
}

// Server — HTTP-сервер SecureVault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// auth может быть nil — тогда административные маршруты закрыты (401),
// а скачивание работает только для анонимных клиентов.
func New(cfg *config.Config, logger *slog.Logger, h *Handlers, auth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Скачивание: токен решает доступ, JWT необязателен.
	router.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Optional())
		}
		r.Get("/download", h.Download.Download)
	})

	// Административный API: JWT обязателен.
	router.Route("/api/v1", func(r chi.Router) {
		if auth == nil {
			r.Use(denyAll(logger))
		} else {
			r.Use(auth.Middleware())
		}

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(middleware.RequireScope("files:upload"))
			}
			r.Post("/files", h.Files.Upload)
			// Список нужен той же роли, что и загрузка: редактор выбирает
			// ранее загруженный файл вместо повторной загрузки.
			r.Get("/files", h.Files.List)
		})

		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(middleware.RequireScope("files:manage"))
			}
			r.Delete("/files/{record_id}", h.Files.Delete)
			r.Get("/settings", h.Settings.Get)
			r.Put("/settings", h.Settings.Update)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Настройка TLS
	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// denyAll закрывает маршруты, когда JWT-аутентификация не настроена.
func denyAll(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(_ http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("Запрос к административному API при отключённой аутентификации",
				slog.String("path", r.URL.Path),
			)
			apierrors.Unauthorized(w, "Аутентификация не настроена")
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
