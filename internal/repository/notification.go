package repository

import (
	"context"
	"fmt"

	"github.com/talentgate/talentgate/internal/domain/model"
)

// NotificationRepository — интерфейс доступа к таблице notifications.
type NotificationRepository interface {
	// Create сохраняет внутреннее уведомление.
	Create(ctx context.Context, n *model.Notification) error
	// ListByUser возвращает уведомления пользователя, новые — первыми.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error)
	// MarkRead помечает уведомление прочитанным.
	MarkRead(ctx context.Context, id, userID string) error
}

// notificationRepo — реализация NotificationRepository.
type notificationRepo struct {
	db DBTX
}

// NewNotificationRepository создаёт репозиторий уведомлений.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, kind, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	err := r.db.QueryRow(ctx, query,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, metadata,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания уведомления: %w", err)
	}
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, message, metadata, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уведомлений: %w", err)
	}
	defer rows.Close()

	var result []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message,
			&n.Metadata, &n.Read, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("ошибка пометки уведомления прочитанным: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
