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
	"github.com/talentgate/talentgate/internal/repository"
)

// JobOfferService — управление вакансиями компании.
type JobOfferService struct {
	jobOffers repository.JobOfferRepository
	logger    *slog.Logger
}

// NewJobOfferService создаёт сервис вакансий.
func NewJobOfferService(jobOffers repository.JobOfferRepository, logger *slog.Logger) *JobOfferService {
	return &JobOfferService{
		jobOffers: jobOffers,
		logger:    logger.With(slog.String("component", "joboffer_service")),
	}
}

// CreateJobOfferRequest — данные создания вакансии.
type CreateJobOfferRequest struct {
	// Title — название вакансии
	Title string
	// Description — описание (передаётся в скоринг)
	Description string
	// Requirements — требования к кандидату (передаётся в скоринг)
	Requirements string
	// Published — сразу принимать заявки
	Published bool
}

// Create создаёт вакансию компании.
func (s *JobOfferService) Create(ctx context.Context, companyID string, req *CreateJobOfferRequest) (*model.JobOffer, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: название вакансии обязательно", ErrValidation)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: описание вакансии обязательно", ErrValidation)
	}

	now := time.Now().UTC()
	offer := &model.JobOffer{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Published:    req.Published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.jobOffers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("создание вакансии: %w", err)
	}

	s.logger.Info("Вакансия создана",
		slog.String("job_offer_id", offer.ID),
		slog.String("company_id", companyID),
		slog.Bool("published", offer.Published),
	)
	return offer, nil
}

// Get возвращает вакансию компании с проверкой владения.
func (s *JobOfferService) Get(ctx context.Context, companyID, jobOfferID string) (*model.JobOffer, error) {
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
	return offer, nil
}

// GetPublic возвращает опубликованную вакансию для публичной страницы подачи.
// Неопубликованные вакансии не раскрываются (404 вместо 409).
func (s *JobOfferService) GetPublic(ctx context.Context, jobOfferID string) (*model.JobOffer, error) {
	offer, err := s.jobOffers.GetByID(ctx, jobOfferID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение вакансии %s: %w", jobOfferID, err)
	}
	if !offer.Published {
		return nil, ErrNotFound
	}
	return offer, nil
}

// List возвращает вакансии компании с пагинацией.
func (s *JobOfferService) List(ctx context.Context, companyID string, limit, offset int) ([]*model.JobOffer, error) {
	offers, err := s.jobOffers.ListByCompany(ctx, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список вакансий компании %s: %w", companyID, err)
	}
	return offers, nil
}

// SetPublished открывает или закрывает приём заявок на вакансию.
func (s *JobOfferService) SetPublished(ctx context.Context, companyID, jobOfferID string, published bool) (*model.JobOffer, error) {
	offer, err := s.Get(ctx, companyID, jobOfferID)
	if err != nil {
		return nil, err
	}

	if err := s.jobOffers.SetPublished(ctx, jobOfferID, published); err != nil {
		return nil, fmt.Errorf("публикация вакансии %s: %w", jobOfferID, err)
	}

	offer.Published = published
	offer.UpdatedAt = time.Now().UTC()

	s.logger.Info("Статус публикации вакансии изменён",
		slog.String("job_offer_id", jobOfferID),
		slog.Bool("published", published),
	)
	return offer, nil
}
