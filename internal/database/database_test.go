package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/blockhood/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("blockhood_test"),
		postgres.WithUsername("blockhood"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("BH_DB_HOST", host)
	t.Setenv("BH_DB_PORT", port.Port())
	t.Setenv("BH_DB_NAME", "blockhood_test")
	t.Setenv("BH_DB_USER", "blockhood")
	t.Setenv("BH_DB_PASSWORD", "test-password")
	t.Setenv("BH_DB_SSL_MODE", "disable")
	t.Setenv("BH_AUTH_JWKS_URL", "http://localhost:9999/jwks.json")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestMigrate проверяет применение миграций и наличие таблиц.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"users", "tags", "guides", "events", "careers",
		"guide_tags", "event_tags", "career_tags", "event_registrations",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	// Имена FK-ограничений используются в подсказках выборки связей
	var fkCount int
	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.table_constraints
		 WHERE constraint_type = 'FOREIGN KEY'
		   AND constraint_name IN ('guides_user_id_fkey', 'events_user_id_fkey', 'careers_user_id_fkey')`,
	).Scan(&fkCount)
	if err != nil {
		t.Fatalf("Ошибка проверки FK: %v", err)
	}
	if fkCount != 3 {
		t.Errorf("найдено %d FK автора, ожидали 3", fkCount)
	}

	checks := []string{
		"guides_level_check", "careers_job_type_check",
		"events_location_type_check", "events_capacity_check", "events_attendees_count_check",
	}
	var checkCount int
	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.table_constraints
		 WHERE constraint_type = 'CHECK' AND constraint_name = ANY($1)`,
		checks,
	).Scan(&checkCount)
	if err != nil {
		t.Fatalf("Ошибка проверки CHECK: %v", err)
	}
	if checkCount != len(checks) {
		t.Errorf("найдено %d CHECK-ограничений, ожидали %d", checkCount, len(checks))
	}
}

// TestMigrateDown проверяет откат миграции.
func TestMigrateDown(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	if err := MigrateDirection(cfg, Down, logger); err != nil {
		t.Fatalf("MigrateDirection(Down) вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'guides')`,
	).Scan(&exists); err != nil {
		t.Fatalf("Ошибка проверки таблицы: %v", err)
	}
	if exists {
		t.Error("таблица guides должна быть удалена после отката")
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали status = %q", status, msg, "ok")
	}

	pool.Close()
	if status, _ := checker.CheckReady(); status != "fail" {
		t.Errorf("CheckReady() после Close status = %q, ожидали fail", status)
	}
}

func TestMigrateDirection_Unknown(t *testing.T) {
	cfg := &config.Config{DBHost: "localhost", DBPort: 1, DBName: "x", DBUser: "x", DBPassword: "x", DBSSLMode: "disable"}
	if err := MigrateDirection(cfg, Direction("sideways"), testLogger()); err == nil {
		t.Error("ожидалась ошибка для неизвестного направления")
	}
}
