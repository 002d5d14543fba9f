// Пакет server — HTTP-сервер Blockhood API с graceful shutdown.
// Без TLS — TLS termination на ingress.
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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/blockhood/internal/api/handlers"
	"github.com/bigkaa/blockhood/internal/api/middleware"
	"github.com/bigkaa/blockhood/internal/config"
)

// Deps — обработчики и middleware, из которых собирается роутер.
type Deps struct {
	API    *handlers.APIHandler
	Health *handlers.HealthHandler
	// OpenAPI отдаёт контракт API в JSON
	OpenAPI http.Handler
	// Auth — JWT middleware для маршрутов, требующих пользователя
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
}

// NewRouter собирает chi-роутер со всеми маршрутами Blockhood API.
//
// Чтение публикаций, тегов и загруженных файлов доступно без токена.
// Создание, изменение, удаление, запись на события, загрузка и /me — только с JWT.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)

	// Служебные endpoints
	r.Get("/health/live", d.Health.HealthLive)
	r.Get("/health/ready", d.Health.HealthReady)
	r.Get("/metrics", d.Health.GetMetrics)

	// Загруженные изображения
	r.Get("/uploads/*", d.API.ServeUpload)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/openapi.json", d.OpenAPI)

		// Публичное чтение
		r.Get("/tags", d.API.ListTags)
		r.Get("/guides", d.API.ListGuides)
		r.Get("/guides/{ref}", d.API.GetGuide)
		r.Get("/events", d.API.ListEvents)
		r.Get("/events/{ref}", d.API.GetEvent)
		r.Get("/careers", d.API.ListCareers)
		r.Get("/careers/{ref}", d.API.GetCareer)
		r.Get("/users/{id}", d.API.GetUser)

		// Требуется аутентификация
		r.Group(func(r chi.Router) {
			r.Use(d.Auth)

			r.Get("/me", d.API.GetMe)
			r.Post("/uploads", d.API.UploadImage)

			r.Post("/guides", d.API.CreateGuide)
			r.Patch("/guides/{ref}", d.API.UpdateGuide)
			r.Delete("/guides/{ref}", d.API.DeleteGuide)

			r.Post("/events", d.API.CreateEvent)
			r.Patch("/events/{ref}", d.API.UpdateEvent)
			r.Delete("/events/{ref}", d.API.DeleteEvent)
			r.Get("/events/{ref}/registration", d.API.GetRegistration)
			r.Post("/events/{ref}/registration", d.API.Register)
			r.Delete("/events/{ref}/registration", d.API.Unregister)

			r.Post("/careers", d.API.CreateCareer)
			r.Patch("/careers/{ref}", d.API.UpdateCareer)
			r.Delete("/careers/{ref}", d.API.DeleteCareer)
		})
	})

	return r
}

// Server — HTTP-сервер Blockhood API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с готовым роутером.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
