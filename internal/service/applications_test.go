package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
)

// fakeQueue — запись задач вместо реального пула воркеров.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []AnalysisTask
	full  bool
}

func (q *fakeQueue) Enqueue(task AnalysisTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.tasks = append(q.tasks, task)
	return true
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// appTestEnv — окружение тестов сервиса заявок.
type appTestEnv struct {
	svc   *ApplicationService
	apps  *fakeApplicationRepo
	jobs  *fakeJobOfferRepo
	subs  *fakeSubscriptionRepo
	notes *fakeNotificationRepo
	queue *fakeQueue
}

// setupAppService создаёт сервис заявок с опубликованной вакансией
// company-1/job-1 и подпиской company-1 (10 анализов, 50 заявок).
func setupAppService(t *testing.T) *appTestEnv {
	t.Helper()

	apps := newFakeApplicationRepo()
	jobs := newFakeJobOfferRepo()
	subs := newFakeSubscriptionRepo()
	notes := newFakeNotificationRepo()
	queue := &fakeQueue{}

	jobs.offers["job-1"] = &model.JobOffer{
		ID:           "job-1",
		CompanyID:    "company-1",
		Title:        "Go-разработчик",
		Description:  "Разработка backend-сервисов",
		Requirements: "Go, PostgreSQL",
		Published:    true,
	}
	subs.subs["company-1"] = testSubscription("company-1", 10, 0, 50)

	svc := NewApplicationService(
		apps, jobs,
		NewQuotaGuard(subs, testLogger()),
		queue,
		testDispatcher(t, notes),
		testLogger(),
	)

	return &appTestEnv{svc: svc, apps: apps, jobs: jobs, subs: subs, notes: notes, queue: queue}
}

// validPDF — минимальный валидный payload для проверок размера/типа.
var validPDF = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 100)...)

func guestSubmitRequest() *SubmitRequest {
	return &SubmitRequest{
		JobOfferID: "job-1",
		Identity:   model.GuestIdentity("Иван Петров", "ivan@example.com", "+79990001122"),
		CV: &model.CVDocument{
			Payload:  validPDF,
			Filename: "cv.pdf",
			Size:     int64(len(validPDF)),
			MimeType: "application/pdf",
		},
		ConsentGiven: true,
	}
}

func TestSubmit_Guest(t *testing.T) {
	env := setupAppService(t)

	app, err := env.svc.Submit(context.Background(), guestSubmitRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if app.Status != status.StatusPending {
		t.Errorf("статус новой заявки: хотели PENDING, получили %s", app.Status)
	}
	if app.AIScore != nil {
		t.Errorf("AIScore новой заявки должен быть nil, получили %v", *app.AIScore)
	}
	if app.Identity.IsRegistered() {
		t.Error("гостевая заявка не должна быть зарегистрированной")
	}

	wantRetention := time.Now().UTC().Add(model.RetentionPeriod)
	if diff := app.DataRetentionUntil.Sub(wantRetention); diff < -time.Minute || diff > time.Minute {
		t.Errorf("DataRetentionUntil: хотели ~%v, получили %v", wantRetention, app.DataRetentionUntil)
	}

	if env.queue.len() != 0 {
		t.Error("подача заявки не должна запускать анализ")
	}
}

func TestSubmit_Registered(t *testing.T) {
	env := setupAppService(t)

	req := guestSubmitRequest()
	req.Identity = model.RegisteredIdentity("candidate-42")

	app, err := env.svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !app.Identity.IsRegistered() {
		t.Error("заявка зарегистрированного кандидата должна быть Registered")
	}
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SubmitRequest)
		wantErr error
	}{
		{
			"без согласия",
			func(r *SubmitRequest) { r.ConsentGiven = false },
			ErrConsentRequired,
		},
		{
			"без CV",
			func(r *SubmitRequest) { r.CV = nil },
			ErrValidation,
		},
		{
			"не PDF",
			func(r *SubmitRequest) { r.CV.MimeType = "application/msword" },
			ErrValidation,
		},
		{
			"CV больше 5 МБ",
			func(r *SubmitRequest) { r.CV.Size = MaxCVSize + 1 },
			ErrValidation,
		},
		{
			"гость без имени",
			func(r *SubmitRequest) { r.Identity = model.GuestIdentity("", "a@b.c", "") },
			ErrValidation,
		},
		{
			"смешанная идентичность",
			func(r *SubmitRequest) {
				id := "candidate-1"
				r.Identity = model.Identity{CandidateID: &id, GuestName: "Иван"}
			},
			ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupAppService(t)
			req := guestSubmitRequest()
			tt.mutate(req)

			_, err := env.svc.Submit(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit: хотели %v, получили %v", tt.wantErr, err)
			}
		})
	}
}

func TestSubmit_UnpublishedOffer(t *testing.T) {
	env := setupAppService(t)
	env.jobs.offers["job-1"].Published = false

	_, err := env.svc.Submit(context.Background(), guestSubmitRequest())
	if !errors.Is(err, ErrJobOfferClosed) {
		t.Errorf("хотели ErrJobOfferClosed, получили %v", err)
	}
}

func TestSubmit_UnknownOffer(t *testing.T) {
	env := setupAppService(t)

	req := guestSubmitRequest()
	req.JobOfferID = "no-such-job"

	_, err := env.svc.Submit(context.Background(), req)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("хотели ErrNotFound, получили %v", err)
	}
}

func TestSubmit_JobOfferFull(t *testing.T) {
	env := setupAppService(t)
	env.subs.subs["company-1"].MaxApplicationsPerJob = 1

	if _, err := env.svc.Submit(context.Background(), guestSubmitRequest()); err != nil {
		t.Fatalf("первая заявка: %v", err)
	}

	_, err := env.svc.Submit(context.Background(), guestSubmitRequest())
	if !errors.Is(err, ErrJobOfferFull) {
		t.Errorf("вторая заявка: хотели ErrJobOfferFull, получили %v", err)
	}
}

// submitApp подаёт заявку и возвращает её ID.
func submitApp(t *testing.T, env *appTestEnv) string {
	t.Helper()
	app, err := env.svc.Submit(context.Background(), guestSubmitRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return app.ID
}

func TestUpdateStatus_Decision(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)
	ctx := context.Background()

	app, err := env.svc.UpdateStatus(ctx, "company-1", id, "SHORTLISTED")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if app.Status != status.StatusShortlisted {
		t.Errorf("статус: хотели SHORTLISTED, получили %s", app.Status)
	}

	// Повторное применение того же решения допустимо (идемпотентность)
	if _, err := env.svc.UpdateStatus(ctx, "company-1", id, "SHORTLISTED"); err != nil {
		t.Errorf("повторное SHORTLISTED: %v", err)
	}

	// Смена решения допустима
	app, err = env.svc.UpdateStatus(ctx, "company-1", id, "REJECTED")
	if err != nil {
		t.Fatalf("SHORTLISTED → REJECTED: %v", err)
	}
	if app.Status != status.StatusRejected {
		t.Errorf("статус: хотели REJECTED, получили %s", app.Status)
	}
}

func TestUpdateStatus_PipelineStatusRejected(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)

	// Статусы AI-конвейера не выставляются через API
	for _, target := range []string{"ANALYZING", "ANALYZED", "PENDING"} {
		if _, err := env.svc.UpdateStatus(context.Background(), "company-1", id, target); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("UpdateStatus(%s): хотели ErrInvalidTransition, получили %v", target, err)
		}
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)

	_, err := env.svc.UpdateStatus(context.Background(), "company-1", id, "HIRED")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("хотели ErrValidation, получили %v", err)
	}
}

func TestUpdateStatus_ForeignCompany(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)

	_, err := env.svc.UpdateStatus(context.Background(), "company-2", id, "SHORTLISTED")
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("хотели ErrForbidden, получили %v", err)
	}
}

func TestTriggerAnalysis(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)
	ctx := context.Background()

	if err := env.svc.TriggerAnalysis(ctx, "company-1", id); err != nil {
		t.Fatalf("TriggerAnalysis: %v", err)
	}

	if got := env.apps.get(id).Status; got != status.StatusAnalyzing {
		t.Errorf("статус после запуска: хотели ANALYZING, получили %s", got)
	}
	if got := env.subs.used("company-1"); got != 1 {
		t.Errorf("AnalysesUsed: хотели 1, получили %d", got)
	}
	if env.queue.len() != 1 {
		t.Errorf("в очереди должна быть одна задача, получили %d", env.queue.len())
	}
}

func TestTriggerAnalysis_Concurrent(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)
	ctx := context.Background()

	if err := env.svc.TriggerAnalysis(ctx, "company-1", id); err != nil {
		t.Fatalf("первый запуск: %v", err)
	}

	// Повторный запуск для заявки в ANALYZING отклоняется,
	// квота второй раз не тратится
	err := env.svc.TriggerAnalysis(ctx, "company-1", id)
	if !errors.Is(err, ErrAlreadyAnalyzing) {
		t.Errorf("второй запуск: хотели ErrAlreadyAnalyzing, получили %v", err)
	}
	if got := env.subs.used("company-1"); got != 1 {
		t.Errorf("AnalysesUsed: хотели 1, получили %d", got)
	}
	if env.queue.len() != 1 {
		t.Errorf("в очереди должна остаться одна задача, получили %d", env.queue.len())
	}
}

func TestTriggerAnalysis_QuotaExceeded(t *testing.T) {
	env := setupAppService(t)
	env.subs.subs["company-1"].MonthlyAnalyses = 0
	id := submitApp(t, env)
	ctx := context.Background()

	err := env.svc.TriggerAnalysis(ctx, "company-1", id)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("хотели ErrQuotaExceeded, получили %v", err)
	}

	// Заявка возвращается в PENDING, счётчик не тронут
	if got := env.apps.get(id).Status; got != status.StatusPending {
		t.Errorf("статус после отказа по квоте: хотели PENDING, получили %s", got)
	}
	// Анализ не начинался — ошибка анализа не записывается
	if got := env.apps.get(id).AIError; got != nil {
		t.Errorf("ai_error после отказа по квоте: хотели nil, получили %q", *got)
	}
	if got := env.subs.used("company-1"); got != 0 {
		t.Errorf("AnalysesUsed: хотели 0, получили %d", got)
	}
	if env.queue.len() != 0 {
		t.Error("задача не должна попасть в очередь при исчерпанной квоте")
	}
}

func TestTriggerAnalysis_QueueFull(t *testing.T) {
	env := setupAppService(t)
	env.queue.full = true
	id := submitApp(t, env)
	ctx := context.Background()

	if err := env.svc.TriggerAnalysis(ctx, "company-1", id); err == nil {
		t.Fatal("хотели ошибку при переполненной очереди")
	}

	// Откат: заявка в PENDING без ai_error, квота возвращена
	if got := env.apps.get(id).Status; got != status.StatusPending {
		t.Errorf("статус после переполнения очереди: хотели PENDING, получили %s", got)
	}
	if got := env.apps.get(id).AIError; got != nil {
		t.Errorf("ai_error после переполнения очереди: хотели nil, получили %q", *got)
	}
	if got := env.subs.used("company-1"); got != 0 {
		t.Errorf("AnalysesUsed после отката: хотели 0, получили %d", got)
	}
}

func TestTriggerAnalysis_MissingCV(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)

	// Имитация заявки без CV (legacy-записи)
	env.apps.get(id).CV = nil

	err := env.svc.TriggerAnalysis(context.Background(), "company-1", id)
	if !errors.Is(err, ErrMissingCV) {
		t.Errorf("хотели ErrMissingCV, получили %v", err)
	}
}

func TestGetCV(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)

	cv, filename, err := env.svc.GetCV(context.Background(), "company-1", id)
	if err != nil {
		t.Fatalf("GetCV: %v", err)
	}
	// Имя для скачивания строится из имени кандидата, не из имени файла
	if filename != "Иван Петров.pdf" {
		t.Errorf("filename: хотели %q, получили %q", "Иван Петров.pdf", filename)
	}
	if !bytes.Equal(cv.Payload, validPDF) {
		t.Error("payload CV не совпадает с загруженным")
	}

	if _, _, err := env.svc.GetCV(context.Background(), "company-2", id); !errors.Is(err, ErrForbidden) {
		t.Errorf("чужая компания: хотели ErrForbidden, получили %v", err)
	}
}

func TestDownloadFilename(t *testing.T) {
	candidateID := "c-42"
	tests := []struct {
		name     string
		identity model.Identity
		want     string
	}{
		{"гость", model.GuestIdentity("Иван Петров", "ivan@example.com", ""), "Иван Петров.pdf"},
		{"зарегистрированный", model.Identity{CandidateID: &candidateID}, "candidate-c-42.pdf"},
		{"небезопасные символы", model.GuestIdentity(`a/b\c"d:e`, "x@example.com", ""), "a_b_c_d_e.pdf"},
		{"пустое имя", model.GuestIdentity("   ", "x@example.com", ""), "cv.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := downloadFilename(tt.identity); got != tt.want {
				t.Errorf("downloadFilename() = %q, хотели %q", got, tt.want)
			}
		})
	}
}

func TestList_OwnershipAndSoftDelete(t *testing.T) {
	env := setupAppService(t)
	id := submitApp(t, env)
	ctx := context.Background()

	apps, err := env.svc.List(ctx, "company-1", "job-1", 20, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("хотели 1 заявку, получили %d", len(apps))
	}

	if _, err := env.svc.List(ctx, "company-2", "job-1", 20, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("чужая компания: хотели ErrForbidden, получили %v", err)
	}

	// Soft-deleted заявка исчезает из выборок
	now := time.Now().UTC()
	env.apps.get(id).DeletedAt = &now

	apps, err = env.svc.List(ctx, "company-1", "job-1", 20, 0)
	if err != nil {
		t.Fatalf("List после удаления: %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("после soft delete хотели 0 заявок, получили %d", len(apps))
	}
	if _, err := env.svc.Get(ctx, "company-1", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get после soft delete: хотели ErrNotFound, получили %v", err)
	}
}
