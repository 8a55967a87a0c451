// Пакет server — HTTP-сервер с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talentgate/talentgate/internal/api/handlers"
	"github.com/talentgate/talentgate/internal/api/middleware"
	"github.com/talentgate/talentgate/internal/config"
)

// Handlers — набор обработчиков API для маршрутизации.
type Handlers struct {
	Health        *handlers.HealthHandler
	Applications  *handlers.ApplicationsHandler
	JobOffers     *handlers.JobOffersHandler
	Notifications *handlers.NotificationsHandler
}

// Server — HTTP-сервер.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, h *Handlers, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую; публичная подача
	// заявок доступна гостям без токена.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics", "/api/v1/public/"))
	}

	// Health и метрики
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Публичные endpoints (без аутентификации)
	router.Route("/api/v1/public/job-offers/{job_offer_id}", func(r chi.Router) {
		r.Get("/", h.JobOffers.GetPublicJobOffer)
		r.Post("/applications", h.Applications.SubmitApplication)
	})

	// Endpoints компании (JWT обязателен)
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/job-offers", func(r chi.Router) {
			r.Get("/", h.JobOffers.ListJobOffers)
			r.Post("/", h.JobOffers.CreateJobOffer)
			r.Route("/{job_offer_id}", func(r chi.Router) {
				r.Get("/", h.JobOffers.GetJobOffer)
				r.Patch("/publish", h.JobOffers.SetPublished)
				r.Get("/applications", h.Applications.ListApplications)
			})
		})

		r.Route("/applications/{application_id}", func(r chi.Router) {
			r.Get("/", h.Applications.GetApplication)
			r.Get("/cv", h.Applications.DownloadCV)
			r.Post("/analysis", h.Applications.TriggerAnalysis)
			r.Patch("/status", h.Applications.UpdateStatus)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notifications.ListNotifications)
			r.Post("/{notification_id}/read", h.Notifications.MarkRead)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем JWT middleware
			jwtMiddleware(next).ServeHTTP(w, r)
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
		)

		err := s.httpServer.ListenAndServe()
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
