// notifications.go — HTTP handlers внутренних уведомлений пользователя.
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
	"github.com/talentgate/talentgate/internal/repository"
)

// NotificationsHandler — обработчик endpoints уведомлений.
type NotificationsHandler struct {
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

// NewNotificationsHandler создаёт обработчик уведомлений.
func NewNotificationsHandler(notifications repository.NotificationRepository, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{
		notifications: notifications,
		logger:        logger.With(slog.String("component", "notifications_handler")),
	}
}

// notificationResponse — представление уведомления в API.
type notificationResponse struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt string            `json:"created_at"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		Metadata:  n.Metadata,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// notificationListResponse — ответ списка уведомлений.
type notificationListResponse struct {
	Items  []notificationResponse `json:"items"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ListNotifications обрабатывает GET /api/v1/notifications.
// Возвращает уведомления текущего пользователя (sub из JWT).
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}
	limit, offset := paginationDefaults(r)

	// Уведомления адресуются компании (company_id), а для кандидатов — sub
	items := make([]notificationResponse, 0)
	for _, userID := range []string{claims.CompanyID, claims.Subject} {
		list, err := h.notifications.ListByUser(r.Context(), userID, limit, offset)
		if err != nil {
			h.logger.Error("Ошибка чтения уведомлений",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка сервера")
			return
		}
		for _, n := range list {
			items = append(items, toNotificationResponse(n))
		}
		if claims.CompanyID == claims.Subject {
			break
		}
	}

	writeJSON(w, http.StatusOK, notificationListResponse{Items: items, Limit: limit, Offset: offset})
}

// MarkRead обрабатывает POST /api/v1/notifications/{notification_id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}
	notificationID := chi.URLParam(r, "notification_id")

	err := h.notifications.MarkRead(r.Context(), notificationID, claims.CompanyID)
	if errors.Is(err, repository.ErrNotFound) && claims.CompanyID != claims.Subject {
		err = h.notifications.MarkRead(r.Context(), notificationID, claims.Subject)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Уведомление не найдено")
			return
		}
		h.logger.Error("Ошибка пометки уведомления прочитанным",
			slog.String("notification_id", notificationID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
