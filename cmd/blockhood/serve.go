package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/blockhood/internal/api/handlers"
	"github.com/bigkaa/blockhood/internal/api/middleware"
	"github.com/bigkaa/blockhood/internal/api/openapi"
	"github.com/bigkaa/blockhood/internal/config"
	"github.com/bigkaa/blockhood/internal/database"
	"github.com/bigkaa/blockhood/internal/domain/model"
	"github.com/bigkaa/blockhood/internal/repository"
	"github.com/bigkaa/blockhood/internal/server"
	"github.com/bigkaa/blockhood/internal/service"
	"github.com/bigkaa/blockhood/internal/storage/filestore"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает сервисный слой и API, запускает фоновые задачи (очистка тегов,
// topologymetrics) и HTTP-сервер с graceful shutdown.
//
//nolint:funlen // линейная сборка зависимостей
func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Blockhood API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("BH_DEPHEALTH_GROUP") == "" {
		logger.Warn("BH_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("миграции БД: %w", err)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics: проверка идёт через тот же пул
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище записей и транзакции
	store := repository.NewStore(pool, repository.DefaultSchema)
	txRunner := repository.NewTxRunner(pool)

	// 6. Файловое хранилище загрузок
	files, err := filestore.New(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("хранилище загрузок: %w", err)
	}

	// 7. Сервисы
	svc := handlers.Services{
		Users: service.NewUserService(store, logger),
		Guides: service.NewGuideService(store, txRunner,
			service.NewCacheService[*model.Guide]("guide", cfg.CacheSize, cfg.CacheTTL), logger),
		Events: service.NewEventService(store, txRunner,
			service.NewCacheService[*model.Event]("event", cfg.CacheSize, cfg.CacheTTL), logger),
		Careers: service.NewCareerService(store, txRunner,
			service.NewCacheService[*model.Career]("career", cfg.CacheSize, cfg.CacheTTL), logger),
		Tags:    service.NewTagService(store, logger),
		Uploads: service.NewUploadService(files, cfg.PublicBaseURL, cfg.UploadMaxSize, logger),
	}

	// 8. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.AuthConfig{
		JWKSURL:         cfg.AuthJWKSURL,
		CACertPath:      cfg.AuthCACertPath,
		Issuer:          cfg.AuthIssuer,
		Audience:        cfg.AuthAudience,
		ModeratorRoles:  cfg.ModeratorRoles,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		Leeway:          cfg.JWTLeeway,
	}, logger)
	if err != nil {
		return fmt.Errorf("JWT middleware: %w", err)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.AuthJWKSURL),
		slog.String("issuer", cfg.AuthIssuer),
	)

	// 9. Readiness checkers (PostgreSQL + JWKS)
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.AuthJWKSURL, cfg.AuthCACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		return fmt.Errorf("JWKS readiness checker: %w", err)
	}
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), jwksChecker)

	// 10. Контракт API
	doc, err := openapi.Load()
	if err != nil {
		return err
	}
	docHandler, err := openapi.Handler(doc)
	if err != nil {
		return err
	}

	// 11. Фоновая очистка тегов
	if cfg.TagCleanupSchedule != "" {
		janitor, err := service.NewJanitor(cfg.TagCleanupSchedule, svc.Tags, logger)
		if err != nil {
			return err
		}
		janitor.Start()
		defer janitor.Stop()
	}

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS).
	// Недоступность SDK не мешает работе API.
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "blockhood",
		Group:         cfg.DephealthGroup,
		DatabaseURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.AuthJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, pgDB, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. HTTP-сервер
	router := server.NewRouter(server.Deps{
		API:     handlers.NewAPIHandler(svc, logger),
		Health:  healthHandler,
		OpenAPI: docHandler,
		Auth:    jwtAuth.Middleware(),
		Logger:  logger,
	})
	srv := server.New(cfg, logger, router)

	// 14. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("Blockhood API остановлен")
	return nil
}
