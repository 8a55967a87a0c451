package model

import "time"

// UnlimitedQuota — sentinel-значение квоты «без ограничений».
const UnlimitedQuota = -1

// Subscription — активная подписка компании и счётчик использования
// AI-анализов в текущем расчётном периоде.
// Хранится в таблице subscriptions; продление периода и активация
// по платёжным webhook — зона ответственности биллинга, не этого сервиса.
type Subscription struct {
	// ID — UUID подписки
	ID string
	// CompanyID — идентификатор компании
	CompanyID string
	// Plan — имя тарифного плана (free, starter, business)
	Plan string
	// MonthlyAnalyses — месячная квота AI-анализов (-1 — безлимит)
	MonthlyAnalyses int
	// AnalysesUsed — использовано анализов в текущем периоде
	AnalysesUsed int
	// MaxApplicationsPerJob — лимит заявок на одну вакансию (-1 — безлимит)
	MaxApplicationsPerJob int
	// PeriodStart — начало текущего расчётного периода
	PeriodStart time.Time
	// Active — активна ли подписка
	Active bool
}

// AnalysesRemaining возвращает остаток квоты анализов.
// Для безлимитного плана возвращает UnlimitedQuota.
func (s *Subscription) AnalysesRemaining() int {
	if s.MonthlyAnalyses == UnlimitedQuota {
		return UnlimitedQuota
	}
	remaining := s.MonthlyAnalyses - s.AnalysesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
