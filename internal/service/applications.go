// Пакет service — бизнес-логика приёма и AI-скоринга заявок.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
	"github.com/talentgate/talentgate/internal/notify"
	"github.com/talentgate/talentgate/internal/repository"
)

// MaxCVSize — максимальный размер файла CV в байтах (5 МБ).
const MaxCVSize = 5 * 1024 * 1024

// analysisQueue — очередь задач AI-анализа (реализуется AnalysisService).
type analysisQueue interface {
	// Enqueue ставит задачу в очередь. false — очередь переполнена.
	Enqueue(task AnalysisTask) bool
}

// SubmitRequest — данные подачи заявки на вакансию.
type SubmitRequest struct {
	// JobOfferID — UUID вакансии
	JobOfferID string
	// Identity — идентичность кандидата
	Identity model.Identity
	// CV — документ CV (обязателен)
	CV *model.CVDocument
	// Motivation — мотивационное письмо (опционально)
	Motivation *string
	// LinkedInURL — ссылка на профиль LinkedIn (опционально)
	LinkedInURL *string
	// ConsentGiven — согласие на обработку персональных данных
	ConsentGiven bool
}

// ApplicationService — приём заявок и управление их жизненным циклом.
type ApplicationService struct {
	applications repository.ApplicationRepository
	jobOffers    repository.JobOfferRepository
	quota        *QuotaGuard
	queue        analysisQueue
	dispatcher   *notify.Dispatcher
	logger       *slog.Logger
}

// NewApplicationService создаёт сервис заявок.
func NewApplicationService(
	applications repository.ApplicationRepository,
	jobOffers repository.JobOfferRepository,
	quota *QuotaGuard,
	queue analysisQueue,
	dispatcher *notify.Dispatcher,
	logger *slog.Logger,
) *ApplicationService {
	return &ApplicationService{
		applications: applications,
		jobOffers:    jobOffers,
		quota:        quota,
		queue:        queue,
		dispatcher:   dispatcher,
		logger:       logger.With(slog.String("component", "application_service")),
	}
}

// Submit принимает заявку на вакансию от гостя или зарегистрированного
// кандидата. Заявка создаётся в статусе PENDING, AI-анализ при подаче
// не запускается. Срок хранения данных фиксируется в момент подачи.
func (s *ApplicationService) Submit(ctx context.Context, req *SubmitRequest) (*model.Application, error) {
	if !req.ConsentGiven {
		return nil, ErrConsentRequired
	}
	if err := req.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if err := validateCV(req.CV); err != nil {
		return nil, err
	}

	offer, err := s.jobOffers.GetByID(ctx, req.JobOfferID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение вакансии %s: %w", req.JobOfferID, err)
	}
	if !offer.Published {
		return nil, ErrJobOfferClosed
	}

	count, err := s.applications.CountByJobOffer(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("подсчёт заявок вакансии %s: %w", offer.ID, err)
	}
	if err := s.quota.CheckApplicationCapacity(ctx, offer.CompanyID, count); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &model.Application{
		ID:                 uuid.NewString(),
		JobOfferID:         offer.ID,
		Identity:           req.Identity,
		Status:             status.StatusPending,
		CV:                 req.CV,
		Motivation:         req.Motivation,
		LinkedInURL:        req.LinkedInURL,
		ConsentGiven:       true,
		DataRetentionUntil: now.Add(model.RetentionPeriod),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("создание заявки: %w", err)
	}

	s.logger.Info("Заявка принята",
		slog.String("application_id", app.ID),
		slog.String("job_offer_id", offer.ID),
		slog.Bool("registered", req.Identity.IsRegistered()),
	)

	// Уведомление компании не должно задерживать ответ кандидату.
	go s.dispatcher.Notify(context.WithoutCancel(ctx), offer.CompanyID, "",
		model.NotificationKindNewApplicant,
		"Новая заявка на вакансию",
		fmt.Sprintf("Кандидат %s откликнулся на вакансию «%s»", req.Identity.DisplayName(), offer.Title),
		map[string]string{
			"application_id": app.ID,
			"job_offer_id":   offer.ID,
		},
	)

	return app, nil
}

// Get возвращает заявку компании. Владение проверяется через вакансию.
func (s *ApplicationService) Get(ctx context.Context, companyID, applicationID string) (*model.Application, error) {
	app, _, err := s.getOwned(ctx, companyID, applicationID)
	return app, err
}

// List возвращает заявки вакансии компании с пагинацией.
func (s *ApplicationService) List(ctx context.Context, companyID, jobOfferID string, limit, offset int) ([]*model.Application, error) {
	offer, err := s.jobOffers.GetByID(ctx, jobOfferID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение вакансии %s: %w", jobOfferID, err)
	}
	if offer.CompanyID != companyID {
		return nil, ErrForbidden
	}

	apps, err := s.applications.ListByJobOffer(ctx, jobOfferID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список заявок вакансии %s: %w", jobOfferID, err)
	}
	return apps, nil
}

// GetCV возвращает документ CV заявки для скачивания компанией.
func (s *ApplicationService) GetCV(ctx context.Context, companyID, applicationID string) (*model.CVDocument, string, error) {
	app, _, err := s.getOwned(ctx, companyID, applicationID)
	if err != nil {
		return nil, "", err
	}

	cv, err := s.applications.GetCV(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrMissingCV
		}
		return nil, "", fmt.Errorf("получение CV заявки %s: %w", applicationID, err)
	}
	return cv, downloadFilename(app.Identity), nil
}

// downloadFilename строит имя файла для выдачи CV из имени кандидата.
// Символы, небезопасные в именах файлов, заменяются подчёркиванием.
func downloadFilename(identity model.Identity) string {
	name := strings.TrimSpace(identity.DisplayName())
	if name == "" {
		return "cv.pdf"
	}
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == ':':
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, name)
	return sanitized + ".pdf"
}

// UpdateStatus применяет статус-решение компании к заявке.
// Решения (SHORTLISTED, REJECTED, CONTACTED) достижимы из любого статуса
// и идемпотентны: повторное применение того же решения допустимо и
// заново отправляет уведомление кандидату.
func (s *ApplicationService) UpdateStatus(ctx context.Context, companyID, applicationID, newStatus string) (*model.Application, error) {
	app, offer, err := s.getOwned(ctx, companyID, applicationID)
	if err != nil {
		return nil, err
	}

	target, err := status.Parse(newStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	// Через API компания выставляет только решения; статусы AI-конвейера
	// управляются самим конвейером.
	if !status.IsDecision(target) {
		return nil, fmt.Errorf("%w: статус %s управляется AI-конвейером", ErrInvalidTransition, target)
	}
	if err := status.Validate(app.Status, target); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, err.Error())
	}

	if err := s.applications.UpdateStatus(ctx, applicationID, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление статуса заявки %s: %w", applicationID, err)
	}

	s.logger.Info("Статус заявки изменён компанией",
		slog.String("application_id", applicationID),
		slog.String("from", string(app.Status)),
		slog.String("to", string(target)),
	)

	s.notifyCandidate(ctx, app, offer, target)

	app.Status = target
	app.UpdatedAt = time.Now().UTC()
	return app, nil
}

// notifyCandidate отправляет кандидату уведомление о решении компании.
// Гость получает письмо, зарегистрированный кандидат — внутреннее
// уведомление.
func (s *ApplicationService) notifyCandidate(ctx context.Context, app *model.Application, offer *model.JobOffer, target status.Status) {
	title, message := decisionText(target, offer.Title)

	userID := ""
	if app.Identity.IsRegistered() {
		userID = *app.Identity.CandidateID
	}

	go s.dispatcher.Notify(context.WithoutCancel(ctx), userID, app.Identity.Email(),
		model.NotificationKindStatusChange, title, message,
		map[string]string{
			"application_id": app.ID,
			"job_offer_id":   offer.ID,
			"status":         string(target),
		},
	)
}

// decisionText возвращает заголовок и текст уведомления для решения.
func decisionText(target status.Status, offerTitle string) (string, string) {
	switch target {
	case status.StatusShortlisted:
		return "Вы в коротком списке",
			fmt.Sprintf("Ваша заявка на вакансию «%s» включена в короткий список.", offerTitle)
	case status.StatusRejected:
		return "Заявка отклонена",
			fmt.Sprintf("К сожалению, ваша заявка на вакансию «%s» отклонена.", offerTitle)
	case status.StatusContacted:
		return "С вами свяжутся",
			fmt.Sprintf("Компания хочет связаться с вами по вакансии «%s».", offerTitle)
	default:
		return "Статус заявки изменён",
			fmt.Sprintf("Статус вашей заявки на вакансию «%s» изменён.", offerTitle)
	}
}

// TriggerAnalysis запускает AI-анализ заявки. Заявка атомарно переводится
// PENDING → ANALYZING (конкурентный запуск отклоняется), резервируется
// единица квоты, задача ставится в очередь пула воркеров. Метод возвращает
// управление сразу после постановки в очередь, не дожидаясь результата.
func (s *ApplicationService) TriggerAnalysis(ctx context.Context, companyID, applicationID string) error {
	app, offer, err := s.getOwned(ctx, companyID, applicationID)
	if err != nil {
		return err
	}
	if !app.HasCV() {
		return ErrMissingCV
	}

	if err := s.applications.MarkAnalyzing(ctx, applicationID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%w: заявка в статусе %s", ErrAlreadyAnalyzing, app.Status)
		default:
			return fmt.Errorf("перевод заявки %s в ANALYZING: %w", applicationID, err)
		}
	}

	if err := s.quota.ReserveAnalysis(ctx, offer.CompanyID); err != nil {
		// Квота не получена — заявка возвращается в PENDING.
		s.revertAnalyzing(ctx, applicationID)
		return err
	}

	task := AnalysisTask{
		ApplicationID: applicationID,
		JobOfferID:    offer.ID,
		CompanyID:     offer.CompanyID,
	}
	if !s.queue.Enqueue(task) {
		s.quota.ReleaseAnalysis(ctx, offer.CompanyID)
		s.revertAnalyzing(ctx, applicationID)
		return fmt.Errorf("%w: очередь анализа переполнена, повторите позже", ErrValidation)
	}

	s.logger.Info("Анализ заявки поставлен в очередь",
		slog.String("application_id", applicationID),
		slog.String("company_id", offer.CompanyID),
	)
	return nil
}

// revertAnalyzing откатывает заявку ANALYZING → PENDING при сбое запуска.
// Анализ не начинался, поэтому ai_error не записывается: это не
// неудачный анализ, а несостоявшийся.
func (s *ApplicationService) revertAnalyzing(ctx context.Context, applicationID string) {
	if err := s.applications.RevertAnalyzing(ctx, applicationID); err != nil {
		s.logger.Error("Не удалось откатить заявку в PENDING",
			slog.String("application_id", applicationID),
			slog.String("error", err.Error()),
		)
	}
}

// getOwned возвращает заявку и её вакансию с проверкой владения компанией.
func (s *ApplicationService) getOwned(ctx context.Context, companyID, applicationID string) (*model.Application, *model.JobOffer, error) {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("получение заявки %s: %w", applicationID, err)
	}

	offer, err := s.jobOffers.GetByID(ctx, app.JobOfferID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("получение вакансии %s: %w", app.JobOfferID, err)
	}
	if offer.CompanyID != companyID {
		return nil, nil, ErrForbidden
	}
	return app, offer, nil
}

// validateCV проверяет обязательность, тип и размер документа CV.
func validateCV(cv *model.CVDocument) error {
	if cv == nil || len(cv.Payload) == 0 {
		return fmt.Errorf("%w: файл CV обязателен", ErrValidation)
	}
	if cv.Size > MaxCVSize {
		return fmt.Errorf("%w: размер CV %d байт превышает лимит %d", ErrValidation, cv.Size, MaxCVSize)
	}
	if !strings.EqualFold(cv.MimeType, "application/pdf") {
		return fmt.Errorf("%w: допустим только PDF, получен %q", ErrValidation, cv.MimeType)
	}
	return nil
}
