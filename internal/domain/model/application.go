package model

import (
	"errors"
	"strings"
	"time"

	"github.com/talentgate/talentgate/internal/domain/status"
)

// RetentionPeriod — срок хранения заявки с момента подачи.
// Фиксируется при создании и никогда не продлевается.
const RetentionPeriod = 6 * 30 * 24 * time.Hour // 6 месяцев

// Identity — идентичность кандидата: либо зарегистрированный кандидат,
// либо гость с контактными данными. Взаимоисключающие варианты.
type Identity struct {
	// CandidateID — UUID зарегистрированного кандидата (вариант Registered)
	CandidateID *string
	// GuestName — имя гостя (вариант Guest)
	GuestName string
	// GuestEmail — email гостя (вариант Guest)
	GuestEmail string
	// GuestPhone — телефон гостя (вариант Guest)
	GuestPhone string
}

// RegisteredIdentity создаёт идентичность зарегистрированного кандидата.
func RegisteredIdentity(candidateID string) Identity {
	return Identity{CandidateID: &candidateID}
}

// GuestIdentity создаёт гостевую идентичность.
func GuestIdentity(name, email, phone string) Identity {
	return Identity{GuestName: name, GuestEmail: email, GuestPhone: phone}
}

// IsRegistered сообщает, принадлежит ли заявка зарегистрированному кандидату.
func (i Identity) IsRegistered() bool {
	return i.CandidateID != nil
}

// DisplayName возвращает имя кандидата для писем и content-disposition.
func (i Identity) DisplayName() string {
	if i.IsRegistered() {
		return "candidate-" + *i.CandidateID
	}
	return i.GuestName
}

// Email возвращает адрес кандидата, если он известен.
// Для зарегистрированных кандидатов адрес подставляется из профиля
// на уровне сервиса, здесь известен только гостевой.
func (i Identity) Email() string {
	return i.GuestEmail
}

// Validate проверяет взаимоисключение вариантов идентичности.
func (i Identity) Validate() error {
	if i.IsRegistered() {
		if i.GuestName != "" || i.GuestEmail != "" || i.GuestPhone != "" {
			return errors.New("идентичность не может быть одновременно зарегистрированной и гостевой")
		}
		return nil
	}
	if strings.TrimSpace(i.GuestName) == "" {
		return errors.New("имя гостя обязательно")
	}
	if strings.TrimSpace(i.GuestEmail) == "" {
		return errors.New("email гостя обязателен")
	}
	return nil
}

// CVDocument — бинарный документ CV, прикреплённый к заявке.
type CVDocument struct {
	// Payload — бинарное содержимое файла
	Payload []byte
	// Filename — оригинальное имя файла
	Filename string
	// Size — размер в байтах
	Size int64
	// MimeType — MIME-тип (application/pdf)
	MimeType string
}

// Application — заявка кандидата на вакансию.
// Хранится в таблице applications.
type Application struct {
	// ID — UUID заявки
	ID string
	// JobOfferID — UUID вакансии
	JobOfferID string
	// Identity — идентичность кандидата (зарегистрированный или гость)
	Identity Identity
	// Status — статус заявки (см. domain/status)
	Status status.Status
	// CV — документ CV (может быть nil, если SELECT без payload)
	CV *CVDocument
	// Motivation — мотивационное письмо (опционально)
	Motivation *string
	// LinkedInURL — ссылка на профиль LinkedIn (опционально)
	LinkedInURL *string
	// ConsentGiven — согласие на обработку персональных данных
	ConsentGiven bool
	// DataRetentionUntil — срок хранения данных (created_at + 6 месяцев)
	DataRetentionUntil time.Time
	// AIScore — оценка AI 0-100 (заполнена только в статусе ANALYZED)
	AIScore *int
	// AIRationale — обоснование оценки
	AIRationale *string
	// AIError — сообщение об ошибке последней попытки анализа
	AIError *string
	// AIProcessedAt — время успешного завершения анализа
	AIProcessedAt *time.Time
	// CreatedAt — время подачи заявки
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
	// DeletedAt — время soft delete (nil — заявка активна)
	DeletedAt *time.Time
}

// HasCV сообщает, прикреплён ли к заявке документ CV.
// Учитывает записи, загруженные без бинарного payload (по размеру).
func (a *Application) HasCV() bool {
	return a.CV != nil && (len(a.CV.Payload) > 0 || a.CV.Size > 0)
}
