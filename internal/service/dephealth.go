// dephealth.go — мониторинг зависимостей через topologymetrics SDK.
//
// Blockhood мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (critical)
//   - сервис аутентификации — HTTP checker к JWKS endpoint (critical)
//
// Метрики app_dependency_* публикуются на /metrics вместе с остальными.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// Имя вершины графа текущего приложения
	ServiceID string
	// Имя группы в метриках
	Group string
	// URL PostgreSQL без пароля (только для лейблов)
	DatabaseURL string
	// URL JWKS endpoint сервиса аутентификации
	JWKSURL string
	// Интервал проверки
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга. Метрики регистрируются
// в глобальном Prometheus registry.
//
// db — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool): проверка идёт через
// тот же пул, что и запросы API, и видит его исчерпание.
func NewDephealthService(cfg DephealthConfig, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	db *sql.DB,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	cfg DephealthConfig,
	db *sql.DB,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	authBase, authPath, err := splitHealthURL(cfg.JWKSURL)
	if err != nil {
		return nil, err
	}

	authDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(authBase),
		dephealth.WithHTTPHealthPath(authPath),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if u, _ := url.Parse(authBase); u.Scheme == "https" {
		authDepOpts = append(authDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.DatabaseURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("auth-jwks", authDepOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// splitHealthURL делит URL на базу (scheme://host[:port]) и путь проверки.
// Query string сохраняется в пути.
func splitHealthURL(raw string) (base, healthPath string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("некорректный URL зависимости %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("некорректный URL зависимости %q: ожидается http или https", raw)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("некорректный URL зависимости %q: нет host", raw)
	}

	healthPath = u.EscapedPath()
	if healthPath == "" {
		healthPath = "/"
	}
	if u.RawQuery != "" {
		healthPath += "?" + u.RawQuery
	}
	return u.Scheme + "://" + u.Host, healthPath, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + JWKS)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей (имя → ok).
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
