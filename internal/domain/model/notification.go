package model

import "time"

// Виды внутренних уведомлений.
const (
	NotificationKindAnalysisDone = "analysis_done"
	NotificationKindStatusChange = "status_change"
	NotificationKindNewApplicant = "new_applicant"
)

// Notification — внутреннее уведомление пользователя.
// Хранится в таблице notifications.
type Notification struct {
	// ID — UUID уведомления
	ID string
	// UserID — идентификатор получателя (sub из JWT)
	UserID string
	// Kind — вид уведомления (analysis_done, status_change, new_applicant)
	Kind string
	// Title — заголовок
	Title string
	// Message — текст уведомления
	Message string
	// Metadata — произвольные данные (application_id, score, ...)
	Metadata map[string]string
	// Read — прочитано ли уведомление
	Read bool
	// CreatedAt — время создания
	CreatedAt time.Time
}
