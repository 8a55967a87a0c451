package model

import "time"

// JobOffer — вакансия компании.
// Хранится в таблице job_offers.
type JobOffer struct {
	// ID — UUID вакансии
	ID string
	// CompanyID — идентификатор компании-владельца (sub из JWT)
	CompanyID string
	// Title — название вакансии
	Title string
	// Description — описание вакансии (передаётся в скоринг)
	Description string
	// Requirements — требования к кандидату (передаётся в скоринг)
	Requirements string
	// Published — принимает ли вакансия заявки
	Published bool
	// CreatedAt — время создания
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
