// janitor.go — фоновая очистка тегов без привязок по cron-расписанию.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// Prometheus-метрики очистки тегов.
var (
	tagCleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bh_tag_cleanup_runs_total",
		Help: "Количество запусков очистки тегов по результату.",
	}, []string{"result"})
	tagCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bh_tag_cleanup_deleted_total",
		Help: "Количество тегов, удалённых очисткой.",
	})
)

// tagCleaner — операция очистки тегов (TagService.CleanupOrphans).
type tagCleaner interface {
	CleanupOrphans(ctx context.Context) (int64, error)
}

// Janitor — планировщик фоновых задач обслуживания.
type Janitor struct {
	cron    *cron.Cron
	cleaner tagCleaner
	timeout time.Duration
	logger  *slog.Logger
}

// NewJanitor создаёт планировщик очистки тегов по расписанию schedule
// (стандартный cron или дескрипторы @daily, @every 1h).
func NewJanitor(schedule string, cleaner tagCleaner, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		cron:    cron.New(),
		cleaner: cleaner,
		timeout: 5 * time.Minute,
		logger:  logger.With(slog.String("component", "janitor")),
	}
	if _, err := j.cron.AddFunc(schedule, j.runTagCleanup); err != nil {
		return nil, fmt.Errorf("некорректное расписание очистки тегов %q: %w", schedule, err)
	}
	return j, nil
}

// runTagCleanup выполняет одну очистку. Ошибки логируются.
func (j *Janitor) runTagCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.cleaner.CleanupOrphans(ctx)
	if err != nil {
		tagCleanupRunsTotal.WithLabelValues("error").Inc()
		j.logger.Error("Ошибка очистки тегов", slog.String("error", err.Error()))
		return
	}
	tagCleanupRunsTotal.WithLabelValues("ok").Inc()
	tagCleanupDeletedTotal.Add(float64(n))
	j.logger.Debug("Очистка тегов завершена",
		slog.Int64("deleted", n),
		slog.Duration("duration", time.Since(start)),
	)
}

// Start запускает планировщик в фоне.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Планировщик очистки тегов запущен")
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Планировщик очистки тегов остановлен")
}
