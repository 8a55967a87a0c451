// retention.go — фоновая очистка заявок с истёкшим сроком хранения.
//
// Срок хранения персональных данных фиксируется при подаче заявки
// (6 месяцев) и никогда не продлевается. Просроченные заявки помечаются
// удалёнными (soft delete) и исчезают из всех выборок API.
//
// Запускается как горутина с периодическим тикером (TG_RETENTION_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talentgate/talentgate/internal/repository"
)

// Prometheus метрики очистки
var (
	retentionRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tg_retention_runs_total",
		Help: "Общее количество запусков очистки просроченных заявок",
	})

	retentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tg_retention_deleted_total",
		Help: "Общее количество заявок, помеченных удалёнными",
	})

	retentionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tg_retention_duration_seconds",
		Help:    "Длительность одного прохода очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// RetentionService — сервис фоновой очистки просроченных заявок.
type RetentionService struct {
	applications repository.ApplicationRepository
	interval     time.Duration
	logger       *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewRetentionService создаёт сервис очистки.
func NewRetentionService(applications repository.ApplicationRepository, interval time.Duration, logger *slog.Logger) *RetentionService {
	return &RetentionService{
		applications: applications,
		interval:     interval,
		logger:       logger.With(slog.String("component", "retention")),
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rs *RetentionService) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(sweepCtx)

	rs.logger.Info("Очистка просроченных заявок запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс очистки.
func (rs *RetentionService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Очистка просроченных заявок остановлена")
}

// run — основной цикл фоновой горутины.
func (rs *RetentionService) run(ctx context.Context) {
	// Первый проход — сразу после старта
	rs.RunOnce(ctx)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (rs *RetentionService) RunOnce(ctx context.Context) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()

	deleted, err := rs.applications.SoftDeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		rs.logger.Error("Ошибка очистки просроченных заявок",
			slog.String("error", err.Error()),
		)
		return 0
	}

	retentionRunsTotal.Inc()
	retentionDeletedTotal.Add(float64(deleted))
	retentionDurationSeconds.Observe(time.Since(start).Seconds())

	if deleted > 0 {
		rs.logger.Info("Очистка завершена",
			slog.Int("deleted", deleted),
			slog.Duration("duration", time.Since(start)),
		)
	} else {
		rs.logger.Debug("Очистка завершена, просроченных заявок нет")
	}

	return deleted
}
