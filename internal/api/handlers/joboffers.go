// joboffers.go — HTTP handlers вакансий.
// CRUD вакансий компании и публичная карточка вакансии для подачи заявки.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/talentgate/talentgate/internal/api/errors"
	"github.com/talentgate/talentgate/internal/api/middleware"
	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/service"
)

// JobOffersHandler — обработчик endpoints вакансий.
type JobOffersHandler struct {
	jobOffers *service.JobOfferService
	logger    *slog.Logger
}

// NewJobOffersHandler создаёт обработчик вакансий.
func NewJobOffersHandler(jobOffers *service.JobOfferService, logger *slog.Logger) *JobOffersHandler {
	return &JobOffersHandler{
		jobOffers: jobOffers,
		logger:    logger.With(slog.String("component", "joboffers_handler")),
	}
}

// jobOfferResponse — представление вакансии в API.
type jobOfferResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements,omitempty"`
	Published    bool   `json:"published"`
	CreatedAt    string `json:"created_at"`
}

func toJobOfferResponse(j *model.JobOffer) jobOfferResponse {
	return jobOfferResponse{
		ID:           j.ID,
		Title:        j.Title,
		Description:  j.Description,
		Requirements: j.Requirements,
		Published:    j.Published,
		CreatedAt:    j.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// createJobOfferRequest — тело запроса создания вакансии.
type createJobOfferRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Published    bool   `json:"published"`
}

// CreateJobOffer обрабатывает POST /api/v1/job-offers.
func (h *JobOffersHandler) CreateJobOffer(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())

	var req createJobOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса")
		return
	}

	offer, err := h.jobOffers.Create(r.Context(), companyID, &service.CreateJobOfferRequest{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Published:    req.Published,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toJobOfferResponse(offer))
}

// GetJobOffer обрабатывает GET /api/v1/job-offers/{job_offer_id}.
func (h *JobOffersHandler) GetJobOffer(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	jobOfferID := chi.URLParam(r, "job_offer_id")

	offer, err := h.jobOffers.Get(r.Context(), companyID, jobOfferID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobOfferResponse(offer))
}

// GetPublicJobOffer обрабатывает GET /api/v1/public/job-offers/{job_offer_id}.
// Публичная карточка вакансии для страницы подачи заявки.
func (h *JobOffersHandler) GetPublicJobOffer(w http.ResponseWriter, r *http.Request) {
	jobOfferID := chi.URLParam(r, "job_offer_id")

	offer, err := h.jobOffers.GetPublic(r.Context(), jobOfferID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobOfferResponse(offer))
}

// jobOfferListResponse — ответ списка вакансий.
type jobOfferListResponse struct {
	Items  []jobOfferResponse `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ListJobOffers обрабатывает GET /api/v1/job-offers.
func (h *JobOffersHandler) ListJobOffers(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	limit, offset := paginationDefaults(r)

	offers, err := h.jobOffers.List(r.Context(), companyID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]jobOfferResponse, 0, len(offers))
	for _, offer := range offers {
		items = append(items, toJobOfferResponse(offer))
	}

	writeJSON(w, http.StatusOK, jobOfferListResponse{Items: items, Limit: limit, Offset: offset})
}

// publishRequest — тело запроса смены статуса публикации.
type publishRequest struct {
	Published bool `json:"published"`
}

// SetPublished обрабатывает PATCH /api/v1/job-offers/{job_offer_id}/publish.
func (h *JobOffersHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	jobOfferID := chi.URLParam(r, "job_offer_id")

	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса")
		return
	}

	offer, err := h.jobOffers.SetPublished(r.Context(), companyID, jobOfferID, req.Published)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobOfferResponse(offer))
}

// writeServiceError транслирует ошибки сервисного слоя в HTTP-ответы.
func (h *JobOffersHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Вакансия не найдена")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Вакансия принадлежит другой компании")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
