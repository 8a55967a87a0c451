// Пакет notify — доставка уведомлений пользователям.
// Уведомление сохраняется в хранилище и дублируется письмом.
// Ошибки доставки логируются и не прерывают бизнес-операцию.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/mailer"
	"github.com/talentgate/talentgate/internal/repository"
)

// Dispatcher — диспетчер уведомлений.
type Dispatcher struct {
	notifications repository.NotificationRepository
	sender        mailer.Sender
	logger        *slog.Logger
}

// NewDispatcher создаёт диспетчер уведомлений.
func NewDispatcher(notifications repository.NotificationRepository, sender mailer.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		sender:        sender,
		logger:        logger.With(slog.String("component", "notify_dispatcher")),
	}
}

// Notify сохраняет уведомление пользователю и отправляет письмо на email.
// Пустой userID означает гостя: записи в хранилище не будет, только письмо.
// Пустой email означает "только внутреннее уведомление".
// Оба сбоя (БД и почта) логируются, ошибка наружу не возвращается:
// уведомления не должны откатывать завершённые операции.
func (d *Dispatcher) Notify(ctx context.Context, userID, email, kind, title, message string, metadata map[string]string) {
	if userID != "" {
		notification := &model.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Kind:      kind,
			Title:     title,
			Message:   message,
			Metadata:  metadata,
			CreatedAt: time.Now().UTC(),
		}

		if err := d.notifications.Create(ctx, notification); err != nil {
			d.logger.Error("Не удалось сохранить уведомление",
				slog.String("user_id", userID),
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	}

	if email == "" {
		return
	}

	body := fmt.Sprintf("<h2>%s</h2><p>%s</p>", title, message)
	if err := d.sender.Send(ctx, email, title, body); err != nil {
		d.logger.Error("Не удалось отправить письмо-уведомление",
			slog.String("user_id", userID),
			slog.String("email", email),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
