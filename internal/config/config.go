// Пакет config — загрузка и валидация конфигурации Blockhood API
// из переменных окружения.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Blockhood API.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Путь к файлу логов с ротацией (пусто — только stdout)
	LogFile string
	// Максимальный размер файла логов в мегабайтах до ротации
	LogMaxSizeMB int
	// Количество хранимых архивов логов
	LogMaxBackups int
	// Срок хранения архивов логов в днях
	LogMaxAgeDays int

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Аутентификация (JWT от hosted auth backend) ---

	// URL JWKS endpoint сервиса аутентификации
	AuthJWKSURL string
	// Ожидаемый issuer JWT (пусто — не проверяется)
	AuthIssuer string
	// Ожидаемая audience JWT (пусто — не проверяется)
	AuthAudience string
	// Путь к CA-сертификату для JWKS (опционально)
	AuthCACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Значения app_metadata.role, дающие права модератора
	ModeratorRoles []string

	// --- Загрузка файлов ---

	// Директория хранения загруженных файлов
	UploadsDir string
	// Публичный базовый URL сервиса (для ссылок на загруженные файлы)
	PublicBaseURL string
	// Максимальный размер загружаемого изображения в байтах
	UploadMaxSize int64

	// --- Кэш ---

	// Максимальное количество записей LRU-кэша детальных страниц
	CacheSize int
	// Время жизни записи кэша
	CacheTTL time.Duration

	// --- Фоновые задачи ---

	// Cron-расписание очистки тегов без привязок (пусто — отключено)
	TagCleanupSchedule string
	// Группа topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:gocyclo // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// BH_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("BH_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("BH_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("BH_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// BH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BH_LOG_LEVEL: %w", err)
	}

	// BH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// BH_LOG_FILE — файл логов с ротацией (опционально)
	cfg.LogFile = getEnvDefault("BH_LOG_FILE", "")

	cfg.LogMaxSizeMB, err = getEnvInt("BH_LOG_MAX_SIZE_MB", 50)
	if err != nil {
		return nil, fmt.Errorf("BH_LOG_MAX_SIZE_MB: %w", err)
	}
	cfg.LogMaxBackups, err = getEnvInt("BH_LOG_MAX_BACKUPS", 5)
	if err != nil {
		return nil, fmt.Errorf("BH_LOG_MAX_BACKUPS: %w", err)
	}
	cfg.LogMaxAgeDays, err = getEnvInt("BH_LOG_MAX_AGE_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("BH_LOG_MAX_AGE_DAYS: %w", err)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("BH_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("BH_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("BH_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("BH_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("BH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("BH_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("BH_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("BH_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("BH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("BH_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("BH_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Аутентификация ---

	// BH_AUTH_JWKS_URL — обязательный
	cfg.AuthJWKSURL, err = getEnvRequired("BH_AUTH_JWKS_URL")
	if err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.AuthJWKSURL); err != nil {
		return nil, fmt.Errorf("BH_AUTH_JWKS_URL: некорректный URL %q", cfg.AuthJWKSURL)
	}
	cfg.AuthIssuer = getEnvDefault("BH_AUTH_ISSUER", "")
	// Hosted auth выдаёт access token с aud=authenticated
	cfg.AuthAudience = getEnvDefault("BH_AUTH_AUDIENCE", "authenticated")
	cfg.AuthCACertPath = getEnvDefault("BH_AUTH_CA_CERT_PATH", "")

	cfg.JWKSClientTimeout, err = getEnvDurationPositive("BH_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationPositive("BH_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("BH_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("BH_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_JWT_LEEWAY: %w", err)
	}
	cfg.ModeratorRoles = parseCSV(getEnvDefault("BH_MODERATOR_ROLES", "moderator,admin"))

	// --- Загрузка файлов ---

	cfg.UploadsDir = getEnvDefault("BH_UPLOADS_DIR", "./data/uploads")
	cfg.PublicBaseURL = strings.TrimRight(
		getEnvDefault("BH_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	if _, err := url.ParseRequestURI(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("BH_PUBLIC_BASE_URL: некорректный URL %q", cfg.PublicBaseURL)
	}

	// BH_UPLOAD_MAX_SIZE — максимальный размер изображения (по умолчанию 2 MiB)
	cfg.UploadMaxSize, err = getEnvInt64("BH_UPLOAD_MAX_SIZE", 2*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("BH_UPLOAD_MAX_SIZE: %w", err)
	}
	if cfg.UploadMaxSize <= 0 {
		return nil, fmt.Errorf("BH_UPLOAD_MAX_SIZE: значение должно быть > 0")
	}

	// --- Кэш ---

	cfg.CacheSize, err = getEnvInt("BH_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("BH_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("BH_CACHE_SIZE: значение должно быть >= 1")
	}
	cfg.CacheTTL, err = getEnvDurationPositive("BH_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("BH_CACHE_TTL: %w", err)
	}

	// --- Фоновые задачи ---

	cfg.TagCleanupSchedule = getEnvDefault("BH_TAG_CLEANUP_SCHEDULE", "@daily")
	if strings.EqualFold(cfg.TagCleanupSchedule, "off") {
		cfg.TagCleanupSchedule = ""
	}
	cfg.DephealthGroup = getEnvDefault("BH_DEPHEALTH_GROUP", "blockhood")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("BH_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("BH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BH_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.User(c.DBUser),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// Если задан LogFile, записи дублируются в файл с ротацией (lumberjack).
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o750); err == nil {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.LogMaxSizeMB,
				MaxBackups: cfg.LogMaxBackups,
				MaxAge:     cfg.LogMaxAgeDays,
				Compress:   true,
			})
		}
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
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

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
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
