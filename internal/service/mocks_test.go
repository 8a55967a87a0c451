package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
	"github.com/talentgate/talentgate/internal/mailer"
	"github.com/talentgate/talentgate/internal/notify"
	"github.com/talentgate/talentgate/internal/repository"
	"github.com/talentgate/talentgate/internal/scoring"
)

// testLogger возвращает логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeApplicationRepo — in-memory реализация ApplicationRepository
// с теми же контрактами, что и у PostgreSQL-реализации.
type fakeApplicationRepo struct {
	mu   sync.Mutex
	apps map[string]*model.Application
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: make(map[string]*model.Application)}
}

func (r *fakeApplicationRepo) Create(_ context.Context, a *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.apps[a.ID] = &cp
	return nil
}

func (r *fakeApplicationRepo) GetByID(_ context.Context, id string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeApplicationRepo) GetCV(_ context.Context, id string) (*model.CVDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.DeletedAt != nil || a.CV == nil {
		return nil, repository.ErrNotFound
	}
	cp := *a.CV
	return &cp, nil
}

func (r *fakeApplicationRepo) ListByJobOffer(_ context.Context, jobOfferID string, _, _ int) ([]*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Application
	for _, a := range r.apps {
		if a.JobOfferID == jobOfferID && a.DeletedAt == nil {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeApplicationRepo) CountByJobOffer(_ context.Context, jobOfferID string) (int, error) {
	apps, _ := r.ListByJobOffer(context.Background(), jobOfferID, 0, 0)
	return len(apps), nil
}

func (r *fakeApplicationRepo) MarkAnalyzing(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if a.Status != status.StatusPending {
		return fmt.Errorf("%w: заявка в статусе %s", repository.ErrConflict, a.Status)
	}
	a.Status = status.StatusAnalyzing
	a.AIError = nil
	return nil
}

func (r *fakeApplicationRepo) CompleteAnalysis(_ context.Context, id string, score int, rationale string, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.Status != status.StatusAnalyzing {
		return repository.ErrNotFound
	}
	a.Status = status.StatusAnalyzed
	a.AIScore = &score
	a.AIRationale = &rationale
	a.AIProcessedAt = &processedAt
	return nil
}

func (r *fakeApplicationRepo) FailAnalysis(_ context.Context, id string, aiError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.Status != status.StatusAnalyzing {
		return repository.ErrNotFound
	}
	a.Status = status.StatusPending
	a.AIError = &aiError
	return nil
}

func (r *fakeApplicationRepo) RevertAnalyzing(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.Status != status.StatusAnalyzing {
		return repository.ErrNotFound
	}
	a.Status = status.StatusPending
	return nil
}

func (r *fakeApplicationRepo) UpdateStatus(_ context.Context, id string, st status.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok || a.DeletedAt != nil {
		return repository.ErrNotFound
	}
	a.Status = st
	return nil
}

func (r *fakeApplicationRepo) SoftDeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.apps {
		if a.DeletedAt == nil && a.DataRetentionUntil.Before(now) {
			ts := now
			a.DeletedAt = &ts
			count++
		}
	}
	return count, nil
}

// get возвращает заявку напрямую, минуя фильтр deleted_at.
func (r *fakeApplicationRepo) get(id string) *model.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apps[id]
}

// fakeJobOfferRepo — in-memory реализация JobOfferRepository.
type fakeJobOfferRepo struct {
	mu     sync.Mutex
	offers map[string]*model.JobOffer
}

func newFakeJobOfferRepo() *fakeJobOfferRepo {
	return &fakeJobOfferRepo{offers: make(map[string]*model.JobOffer)}
}

func (r *fakeJobOfferRepo) Create(_ context.Context, j *model.JobOffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.offers[j.ID] = &cp
	return nil
}

func (r *fakeJobOfferRepo) GetByID(_ context.Context, id string) (*model.JobOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobOfferRepo) ListByCompany(_ context.Context, companyID string, _, _ int) ([]*model.JobOffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.JobOffer
	for _, j := range r.offers {
		if j.CompanyID == companyID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeJobOfferRepo) SetPublished(_ context.Context, id string, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.offers[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Published = published
	return nil
}

// fakeSubscriptionRepo — in-memory реализация SubscriptionRepository
// с атомарным резервированием квоты.
type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*model.Subscription)}
}

func (r *fakeSubscriptionRepo) GetActiveByCompany(_ context.Context, companyID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[companyID]
	if !ok || !s.Active {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubscriptionRepo) ReserveAnalysis(_ context.Context, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[companyID]
	if !ok || !s.Active {
		return repository.ErrNotFound
	}
	if s.MonthlyAnalyses != model.UnlimitedQuota && s.AnalysesUsed >= s.MonthlyAnalyses {
		return fmt.Errorf("%w: месячная квота AI-анализов исчерпана", repository.ErrConflict)
	}
	s.AnalysesUsed++
	return nil
}

func (r *fakeSubscriptionRepo) ReleaseAnalysis(_ context.Context, companyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[companyID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.AnalysesUsed > 0 {
		s.AnalysesUsed--
	}
	return nil
}

// used возвращает текущее значение счётчика квоты компании.
func (r *fakeSubscriptionRepo) used(companyID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[companyID].AnalysesUsed
}

// fakeNotificationRepo — in-memory реализация NotificationRepository.
type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*model.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// count возвращает количество сохранённых уведомлений.
func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

// fakeScorer — настраиваемая реализация scoring.Scorer.
type fakeScorer struct {
	result *scoring.Result
	err    error
	// delay имитирует долгий вызов модели (для теста таймаута)
	delay time.Duration
}

func (s *fakeScorer) Score(ctx context.Context, _, _, _ string) (*scoring.Result, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, &scoring.ScoringError{Message: "таймаут вызова скоринга", Err: ctx.Err()}
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// testDispatcher создаёт диспетчер уведомлений поверх in-memory хранилища.
func testDispatcher(t *testing.T, notifications repository.NotificationRepository) *notify.Dispatcher {
	t.Helper()
	return notify.NewDispatcher(notifications, mailer.NewNoopSender(testLogger()), testLogger())
}
