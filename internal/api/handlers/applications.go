// applications.go — HTTP handlers заявок кандидатов.
// Публичная подача заявки (multipart), просмотр и управление заявками
// компанией, скачивание CV, запуск AI-анализа, статусы-решения.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/talentgate/talentgate/internal/api/errors"
	"github.com/talentgate/talentgate/internal/api/middleware"
	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/service"
)

// ApplicationsHandler — обработчик endpoints заявок.
type ApplicationsHandler struct {
	applications *service.ApplicationService
	logger       *slog.Logger
}

// NewApplicationsHandler создаёт обработчик заявок.
func NewApplicationsHandler(applications *service.ApplicationService, logger *slog.Logger) *ApplicationsHandler {
	return &ApplicationsHandler{
		applications: applications,
		logger:       logger.With(slog.String("component", "applications_handler")),
	}
}

// applicationResponse — представление заявки в API.
// Бинарный payload CV никогда не включается в JSON-ответы.
type applicationResponse struct {
	ID                 string  `json:"id"`
	JobOfferID         string  `json:"job_offer_id"`
	Status             string  `json:"status"`
	CandidateID        *string `json:"candidate_id,omitempty"`
	GuestName          string  `json:"guest_name,omitempty"`
	GuestEmail         string  `json:"guest_email,omitempty"`
	GuestPhone         string  `json:"guest_phone,omitempty"`
	CVFilename         string  `json:"cv_filename,omitempty"`
	CVSize             int64   `json:"cv_size,omitempty"`
	Motivation         *string `json:"motivation,omitempty"`
	LinkedInURL        *string `json:"linkedin_url,omitempty"`
	AIScore            *int    `json:"ai_score,omitempty"`
	AIRationale        *string `json:"ai_rationale,omitempty"`
	AIError            *string `json:"ai_error,omitempty"`
	AIProcessedAt      *string `json:"ai_processed_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
	DataRetentionUntil string  `json:"data_retention_until"`
}

// toApplicationResponse преобразует доменную заявку в API-формат.
func toApplicationResponse(a *model.Application) applicationResponse {
	resp := applicationResponse{
		ID:                 a.ID,
		JobOfferID:         a.JobOfferID,
		Status:             string(a.Status),
		CandidateID:        a.Identity.CandidateID,
		GuestName:          a.Identity.GuestName,
		GuestEmail:         a.Identity.GuestEmail,
		GuestPhone:         a.Identity.GuestPhone,
		Motivation:         a.Motivation,
		LinkedInURL:        a.LinkedInURL,
		AIScore:            a.AIScore,
		AIRationale:        a.AIRationale,
		AIError:            a.AIError,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
		DataRetentionUntil: a.DataRetentionUntil.UTC().Format(time.RFC3339),
	}
	if a.CV != nil {
		resp.CVFilename = a.CV.Filename
		resp.CVSize = a.CV.Size
	}
	if a.AIProcessedAt != nil {
		ts := a.AIProcessedAt.UTC().Format(time.RFC3339)
		resp.AIProcessedAt = &ts
	}
	return resp
}

// SubmitApplication обрабатывает POST /api/v1/public/job-offers/{job_offer_id}/applications.
// Публичный endpoint: аутентификация не требуется.
// Multipart form: cv (PDF, обязательно), consent (обязательно "true"),
// candidate_id ИЛИ guest_name+guest_email (+guest_phone),
// motivation и linkedin_url — опционально.
func (h *ApplicationsHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	jobOfferID := chi.URLParam(r, "job_offer_id")

	// Жёсткий лимит на размер тела: CV до 5 МБ + запас на остальные поля
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxCVSize+1<<20)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", maxErr.Limit))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("cv")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'cv' обязательно")
		return
	}
	defer file.Close()

	if header.Size > service.MaxCVSize {
		apierrors.PayloadTooLarge(w, fmt.Sprintf("Файл CV %d байт превышает лимит %d", header.Size, service.MaxCVSize))
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения файла CV")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	if mediaType, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = mediaType
	}

	identity := parseIdentity(r)

	req := &service.SubmitRequest{
		JobOfferID: jobOfferID,
		Identity:   identity,
		CV: &model.CVDocument{
			Payload:  payload,
			Filename: header.Filename,
			Size:     int64(len(payload)),
			MimeType: contentType,
		},
		ConsentGiven: strings.EqualFold(r.FormValue("consent"), "true"),
	}
	if v := r.FormValue("motivation"); v != "" {
		req.Motivation = &v
	}
	if v := r.FormValue("linkedin_url"); v != "" {
		req.LinkedInURL = &v
	}

	app, err := h.applications.Submit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// parseIdentity собирает идентичность кандидата из полей формы.
func parseIdentity(r *http.Request) model.Identity {
	if candidateID := r.FormValue("candidate_id"); candidateID != "" {
		return model.RegisteredIdentity(candidateID)
	}
	return model.GuestIdentity(
		r.FormValue("guest_name"),
		r.FormValue("guest_email"),
		r.FormValue("guest_phone"),
	)
}

// GetApplication обрабатывает GET /api/v1/applications/{application_id}.
func (h *ApplicationsHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	applicationID := chi.URLParam(r, "application_id")

	app, err := h.applications.Get(r.Context(), companyID, applicationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// applicationListResponse — ответ списка заявок.
type applicationListResponse struct {
	Items  []applicationResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListApplications обрабатывает GET /api/v1/job-offers/{job_offer_id}/applications.
// Пагинация: limit, offset.
func (h *ApplicationsHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	jobOfferID := chi.URLParam(r, "job_offer_id")
	limit, offset := paginationDefaults(r)

	apps, err := h.applications.List(r.Context(), companyID, jobOfferID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, toApplicationResponse(app))
	}

	writeJSON(w, http.StatusOK, applicationListResponse{
		Items:  items,
		Limit:  limit,
		Offset: offset,
	})
}

// DownloadCV обрабатывает GET /api/v1/applications/{application_id}/cv.
// Отдаёт бинарный PDF с Content-Disposition attachment; имя файла
// строится из имени кандидата, а не из имени загруженного файла.
func (h *ApplicationsHandler) DownloadCV(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	applicationID := chi.URLParam(r, "application_id")

	cv, filename, err := h.applications.GetCV(r.Context(), companyID, applicationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", cv.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(cv.Payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cv.Payload)
}

// TriggerAnalysis обрабатывает POST /api/v1/applications/{application_id}/analysis.
// Запускает AI-анализ и возвращает 202: результат появится асинхронно.
func (h *ApplicationsHandler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	applicationID := chi.URLParam(r, "application_id")

	if err := h.applications.TriggerAnalysis(r.Context(), companyID, applicationID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"application_id": applicationID,
		"status":         "ANALYZING",
	})
}

// statusUpdateRequest — тело запроса смены статуса.
type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateStatus обрабатывает PATCH /api/v1/applications/{application_id}/status.
// Принимает только статусы-решения (SHORTLISTED, REJECTED, CONTACTED).
func (h *ApplicationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	companyID := middleware.CompanyFromContext(r.Context())
	applicationID := chi.URLParam(r, "application_id")

	var req statusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса: ожидается {\"status\": \"...\"}")
		return
	}

	app, err := h.applications.UpdateStatus(r.Context(), companyID, applicationID, req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(app))
}

// writeServiceError транслирует sentinel-ошибки сервисного слоя в HTTP-ответы.
func (h *ApplicationsHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Заявка или вакансия не найдена")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Заявка принадлежит другой компании")
	case errors.Is(err, service.ErrConsentRequired):
		apierrors.ConsentRequired(w, "Требуется согласие на обработку персональных данных")
	case errors.Is(err, service.ErrJobOfferClosed):
		apierrors.Conflict(w, "Вакансия не принимает заявки")
	case errors.Is(err, service.ErrJobOfferFull):
		apierrors.QuotaExceeded(w, "Достигнут лимит заявок на вакансию")
	case errors.Is(err, service.ErrQuotaExceeded):
		apierrors.QuotaExceeded(w, "Месячная квота AI-анализов исчерпана")
	case errors.Is(err, service.ErrNoSubscription):
		apierrors.QuotaExceeded(w, "У компании нет активной подписки")
	case errors.Is(err, service.ErrAlreadyAnalyzing):
		apierrors.Conflict(w, "Анализ заявки уже запущен или завершён")
	case errors.Is(err, service.ErrMissingCV):
		apierrors.ValidationError(w, "К заявке не прикреплён документ CV")
	case errors.Is(err, service.ErrInvalidTransition):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
