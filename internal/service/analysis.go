package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/extractor"
	"github.com/talentgate/talentgate/internal/notify"
	"github.com/talentgate/talentgate/internal/repository"
	"github.com/talentgate/talentgate/internal/scoring"
)

// Метрики AI-конвейера.
var (
	analysisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tg_analysis_total",
		Help: "Количество AI-анализов по результату (success, extract_error, scoring_error, storage_error).",
	}, []string{"result"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tg_analysis_duration_seconds",
		Help:    "Длительность AI-анализа заявки от взятия из очереди до записи результата.",
		Buckets: prometheus.DefBuckets,
	})

	analysisQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tg_analysis_queue_depth",
		Help: "Текущая глубина очереди задач AI-анализа.",
	})
)

// AnalysisTask — задача AI-анализа заявки в очереди пула воркеров.
type AnalysisTask struct {
	// ApplicationID — UUID заявки
	ApplicationID string
	// JobOfferID — UUID вакансии
	JobOfferID string
	// CompanyID — владелец вакансии (для квоты и уведомлений)
	CompanyID string
}

// AnalysisConfig — параметры пула воркеров анализа.
type AnalysisConfig struct {
	// Workers — количество воркеров
	Workers int
	// QueueSize — ёмкость очереди задач
	QueueSize int
	// ScoringTimeout — таймаут одного вызова скоринга
	ScoringTimeout time.Duration
	// CacheSize — ёмкость кэша извлечённого текста CV
	CacheSize int
	// CacheTTL — срок жизни записи кэша
	CacheTTL time.Duration
}

// AnalysisService — пул воркеров AI-анализа заявок.
//
// Конвейер одной задачи: извлечение текста из PDF → вызов скоринга →
// запись результата (ANALYZED). Любой сбой откатывает заявку в PENDING
// с сообщением об ошибке и возвращает зарезервированную квоту.
type AnalysisService struct {
	applications repository.ApplicationRepository
	jobOffers    repository.JobOfferRepository
	quota        *QuotaGuard
	scorer       scoring.Scorer
	dispatcher   *notify.Dispatcher
	logger       *slog.Logger

	cfg       AnalysisConfig
	tasks     chan AnalysisTask
	textCache *expirable.LRU[string, string]

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewAnalysisService создаёт пул воркеров анализа.
func NewAnalysisService(
	applications repository.ApplicationRepository,
	jobOffers repository.JobOfferRepository,
	quota *QuotaGuard,
	scorer scoring.Scorer,
	dispatcher *notify.Dispatcher,
	cfg AnalysisConfig,
	logger *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		applications: applications,
		jobOffers:    jobOffers,
		quota:        quota,
		scorer:       scorer,
		dispatcher:   dispatcher,
		cfg:          cfg,
		tasks:        make(chan AnalysisTask, cfg.QueueSize),
		textCache:    expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:       logger.With(slog.String("component", "analysis_service")),
	}
}

// Enqueue ставит задачу анализа в очередь без блокировки.
// Возвращает false при переполненной очереди.
func (s *AnalysisService) Enqueue(task AnalysisTask) bool {
	select {
	case s.tasks <- task:
		analysisQueueDepth.Set(float64(len(s.tasks)))
		return true
	default:
		return false
	}
}

// Start запускает воркеры пула.
func (s *AnalysisService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Пул воркеров AI-анализа запущен",
		slog.Int("workers", s.cfg.Workers),
		slog.Int("queue_size", s.cfg.QueueSize),
	)
}

// Stop останавливает пул и дожидается завершения текущих задач.
// Задачи, оставшиеся в очереди, не обрабатываются: их заявки остаются
// в ANALYZING и возвращаются в PENDING оператором либо повторным запуском.
func (s *AnalysisService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Пул воркеров AI-анализа остановлен")
}

// worker — цикл одного воркера.
func (s *AnalysisService) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	logger := s.logger.With(slog.Int("worker", id))
	logger.Debug("Воркер запущен")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Воркер остановлен")
			return
		case task := <-s.tasks:
			analysisQueueDepth.Set(float64(len(s.tasks)))
			s.process(ctx, task, logger)
		}
	}
}

// process выполняет одну задачу анализа.
// К моменту вызова заявка уже в ANALYZING, квота зарезервирована.
func (s *AnalysisService) process(ctx context.Context, task AnalysisTask, logger *slog.Logger) {
	started := time.Now()

	logger.Info("Анализ заявки начат",
		slog.String("application_id", task.ApplicationID),
	)

	offer, err := s.jobOffers.GetByID(ctx, task.JobOfferID)
	if err != nil {
		s.fail(ctx, task, "storage_error",
			fmt.Sprintf("вакансия недоступна: %s", err.Error()), logger)
		return
	}

	text, err := s.extractText(ctx, task.ApplicationID)
	if err != nil {
		s.fail(ctx, task, "extract_error",
			fmt.Sprintf("извлечение текста CV: %s", err.Error()), logger)
		return
	}

	scoreCtx, cancel := context.WithTimeout(ctx, s.cfg.ScoringTimeout)
	result, err := s.scorer.Score(scoreCtx, text, offer.Description, offer.Requirements)
	cancel()
	if err != nil {
		s.fail(ctx, task, "scoring_error",
			fmt.Sprintf("AI-скоринг: %s", err.Error()), logger)
		return
	}

	processedAt := time.Now().UTC()
	if err := s.applications.CompleteAnalysis(ctx, task.ApplicationID, result.Score, result.Rationale, processedAt); err != nil {
		s.fail(ctx, task, "storage_error",
			fmt.Sprintf("запись результата анализа: %s", err.Error()), logger)
		return
	}

	analysisTotal.WithLabelValues("success").Inc()
	analysisDuration.Observe(time.Since(started).Seconds())

	logger.Info("Анализ заявки завершён",
		slog.String("application_id", task.ApplicationID),
		slog.Int("score", result.Score),
		slog.Duration("duration", time.Since(started)),
	)

	s.dispatcher.Notify(context.WithoutCancel(ctx), task.CompanyID, "",
		model.NotificationKindAnalysisDone,
		"AI-анализ заявки завершён",
		fmt.Sprintf("Заявка на вакансию «%s» получила оценку %d/100", offer.Title, result.Score),
		map[string]string{
			"application_id": task.ApplicationID,
			"job_offer_id":   task.JobOfferID,
			"score":          fmt.Sprintf("%d", result.Score),
		},
	)
}

// extractText извлекает текст CV заявки с кэшированием.
// Кэш переживает повторные запуски анализа одной и той же заявки
// (например, после таймаута скоринга): PDF не парсится заново.
func (s *AnalysisService) extractText(ctx context.Context, applicationID string) (string, error) {
	if text, ok := s.textCache.Get(applicationID); ok {
		return text, nil
	}

	cv, err := s.applications.GetCV(ctx, applicationID)
	if err != nil {
		return "", fmt.Errorf("чтение CV: %w", err)
	}

	text, err := extractor.Extract(cv.Payload)
	if err != nil {
		return "", err
	}
	text = extractor.Normalize(text)

	s.textCache.Add(applicationID, text)
	return text, nil
}

// fail фиксирует сбой анализа: заявка возвращается в PENDING с сообщением
// об ошибке, зарезервированная квота возвращается компании.
// Откат выполняется даже при остановке пула (cancelled ctx), иначе заявка
// навсегда останется в ANALYZING.
func (s *AnalysisService) fail(ctx context.Context, task AnalysisTask, result, message string, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	analysisTotal.WithLabelValues(result).Inc()

	logger.Warn("Анализ заявки завершился ошибкой",
		slog.String("application_id", task.ApplicationID),
		slog.String("result", result),
		slog.String("error", message),
	)

	if err := s.applications.FailAnalysis(ctx, task.ApplicationID, message); err != nil {
		logger.Error("Не удалось откатить заявку в PENDING",
			slog.String("application_id", task.ApplicationID),
			slog.String("error", err.Error()),
		)
	}

	s.quota.ReleaseAnalysis(ctx, task.CompanyID)
}
