// Точка входа TalentGate — сервис приёма заявок и AI-скоринга кандидатов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует Gemini-скоринг и SMTP-отправитель, создаёт сервисный слой
// и API handlers, запускает фоновые задачи (пул анализа, очистка,
// topologymetrics), HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/talentgate/talentgate/internal/api/handlers"
	"github.com/talentgate/talentgate/internal/api/middleware"
	"github.com/talentgate/talentgate/internal/config"
	"github.com/talentgate/talentgate/internal/database"
	"github.com/talentgate/talentgate/internal/mailer"
	"github.com/talentgate/talentgate/internal/notify"
	"github.com/talentgate/talentgate/internal/repository"
	"github.com/talentgate/talentgate/internal/scoring"
	"github.com/talentgate/talentgate/internal/server"
	"github.com/talentgate/talentgate/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("TalentGate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("TG_DEPHEALTH_GROUP") == "" {
		logger.Warn("TG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
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

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	appRepo := repository.NewApplicationRepository(pool)
	jobRepo := repository.NewJobOfferRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)
	noteRepo := repository.NewNotificationRepository(pool)

	// 6. SMTP-отправитель (NoopSender если TG_SMTP_HOST не задан)
	var sender mailer.Sender
	if cfg.EmailEnabled() {
		smtpSender, smtpErr := mailer.NewSMTPSender(
			cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUser, cfg.SMTPPassword,
			cfg.SMTPFrom,
			logger,
		)
		if smtpErr != nil {
			logger.Error("Ошибка создания SMTP-отправителя", slog.String("error", smtpErr.Error()))
			os.Exit(1)
		}
		sender = smtpSender
		logger.Info("SMTP-отправитель инициализирован",
			slog.String("host", cfg.SMTPHost),
			slog.Int("port", cfg.SMTPPort),
		)
	} else {
		sender = mailer.NewNoopSender(logger)
		logger.Info("Отправка писем отключена (TG_SMTP_HOST не задан)")
	}
	dispatcher := notify.NewDispatcher(noteRepo, sender, logger)

	// 7. Gemini-скоринг
	scorer, err := scoring.NewGeminiScorer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Error("Ошибка создания Gemini-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Gemini-скоринг инициализирован",
		slog.String("model", cfg.GeminiModel),
	)

	// 8. Services
	quotaGuard := service.NewQuotaGuard(subRepo, logger)

	analysisSvc := service.NewAnalysisService(
		appRepo, jobRepo, quotaGuard, scorer, dispatcher,
		service.AnalysisConfig{
			Workers:        cfg.AnalysisWorkers,
			QueueSize:      cfg.AnalysisQueueSize,
			ScoringTimeout: cfg.ScoringTimeout,
			CacheSize:      cfg.ExtractCacheSize,
			CacheTTL:       cfg.ExtractCacheTTL,
		},
		logger,
	)

	applicationsSvc := service.NewApplicationService(
		appRepo, jobRepo, quotaGuard, analysisSvc, dispatcher,
		logger,
	)
	jobOffersSvc := service.NewJobOfferService(jobRepo, logger)

	retentionSvc := service.NewRetentionService(appRepo, cfg.RetentionSweepInterval, logger)

	// 9. Readiness checker и handlers
	pgChecker := database.NewReadinessChecker(pool)
	h := &server.Handlers{
		Health:        handlers.NewHealthHandler(pgChecker),
		Applications:  handlers.NewApplicationsHandler(applicationsSvc, logger),
		JobOffers:     handlers.NewJobOffersHandler(jobOffersSvc, logger),
		Notifications: handlers.NewNotificationsHandler(noteRepo, logger),
	}

	// 10. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTLeeway, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. Запуск фоновых задач
	analysisSvc.Start(ctx)
	retentionSvc.Start(ctx)

	// 11.1 topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS + Gemini)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"talentgate",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthErr == nil {
		dephealthSvc.Stop()
	}
	retentionSvc.Stop()
	analysisSvc.Stop()

	logger.Info("TalentGate остановлен")
}
