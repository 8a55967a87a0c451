package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
	"github.com/talentgate/talentgate/internal/repository"
)

// testLogger возвращает логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore — общее in-memory хранилище для фейковых репозиториев.
type memStore struct {
	mu    sync.Mutex
	apps  map[string]*model.Application
	jobs  map[string]*model.JobOffer
	subs  map[string]*model.Subscription
	notes []*model.Notification
}

func newMemStore() *memStore {
	return &memStore{
		apps: make(map[string]*model.Application),
		jobs: make(map[string]*model.JobOffer),
		subs: make(map[string]*model.Subscription),
	}
}

// --- ApplicationRepository ---

type memAppRepo struct{ s *memStore }

func (r *memAppRepo) Create(_ context.Context, a *model.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	r.s.apps[a.ID] = &cp
	return nil
}

func (r *memAppRepo) GetByID(_ context.Context, id string) (*model.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok || a.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAppRepo) GetCV(_ context.Context, id string) (*model.CVDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok || a.CV == nil {
		return nil, repository.ErrNotFound
	}
	cp := *a.CV
	return &cp, nil
}

func (r *memAppRepo) ListByJobOffer(_ context.Context, jobOfferID string, _, _ int) ([]*model.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Application
	for _, a := range r.s.apps {
		if a.JobOfferID == jobOfferID && a.DeletedAt == nil {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAppRepo) CountByJobOffer(ctx context.Context, jobOfferID string) (int, error) {
	apps, _ := r.ListByJobOffer(ctx, jobOfferID, 0, 0)
	return len(apps), nil
}

func (r *memAppRepo) MarkAnalyzing(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != status.StatusPending {
		return fmt.Errorf("%w: заявка в статусе %s", repository.ErrConflict, a.Status)
	}
	a.Status = status.StatusAnalyzing
	return nil
}

func (r *memAppRepo) CompleteAnalysis(_ context.Context, id string, score int, rationale string, processedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status.StatusAnalyzed
	a.AIScore = &score
	a.AIRationale = &rationale
	a.AIProcessedAt = &processedAt
	return nil
}

func (r *memAppRepo) FailAnalysis(_ context.Context, id string, aiError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status.StatusPending
	a.AIError = &aiError
	return nil
}

func (r *memAppRepo) RevertAnalyzing(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != status.StatusAnalyzing {
		return fmt.Errorf("%w: заявка в статусе %s", repository.ErrConflict, a.Status)
	}
	a.Status = status.StatusPending
	return nil
}

func (r *memAppRepo) UpdateStatus(_ context.Context, id string, st status.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = st
	return nil
}

func (r *memAppRepo) SoftDeleteExpired(_ context.Context, now time.Time) (int, error) {
	return 0, nil
}

// --- JobOfferRepository ---

type memJobRepo struct{ s *memStore }

func (r *memJobRepo) Create(_ context.Context, j *model.JobOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *j
	r.s.jobs[j.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*model.JobOffer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ListByCompany(_ context.Context, companyID string, _, _ int) ([]*model.JobOffer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.JobOffer
	for _, j := range r.s.jobs {
		if j.CompanyID == companyID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memJobRepo) SetPublished(_ context.Context, id string, published bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Published = published
	return nil
}

// --- SubscriptionRepository ---

type memSubRepo struct{ s *memStore }

func (r *memSubRepo) GetActiveByCompany(_ context.Context, companyID string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[companyID]
	if !ok || !sub.Active {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubRepo) ReserveAnalysis(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[companyID]
	if !ok || !sub.Active {
		return repository.ErrNotFound
	}
	if sub.MonthlyAnalyses != model.UnlimitedQuota && sub.AnalysesUsed >= sub.MonthlyAnalyses {
		return fmt.Errorf("%w: месячная квота AI-анализов исчерпана", repository.ErrConflict)
	}
	sub.AnalysesUsed++
	return nil
}

func (r *memSubRepo) ReleaseAnalysis(_ context.Context, companyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[companyID]
	if !ok {
		return repository.ErrNotFound
	}
	if sub.AnalysesUsed > 0 {
		sub.AnalysesUsed--
	}
	return nil
}

// --- NotificationRepository ---

type memNoteRepo struct{ s *memStore }

func (r *memNoteRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *n
	r.s.notes = append(r.s.notes, &cp)
	return nil
}

func (r *memNoteRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.s.notes {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memNoteRepo) MarkRead(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notes {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}
