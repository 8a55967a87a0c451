package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/repository"
)

// QuotaGuard — проверка тарифных ограничений компании.
// Квота AI-анализов резервируется атомарно (Reserve) и возвращается
// при неуспешной попытке (Release): неудачный анализ квоту не тратит.
type QuotaGuard struct {
	subscriptions repository.SubscriptionRepository
	logger        *slog.Logger
}

// NewQuotaGuard создаёт страж квот.
func NewQuotaGuard(subscriptions repository.SubscriptionRepository, logger *slog.Logger) *QuotaGuard {
	return &QuotaGuard{
		subscriptions: subscriptions,
		logger:        logger.With(slog.String("component", "quota_guard")),
	}
}

// CheckApplicationCapacity проверяет, позволяет ли тариф компании принять
// ещё одну заявку на вакансию при текущем количестве currentCount.
// Отсутствие активной подписки трактуется как ErrNoSubscription.
func (g *QuotaGuard) CheckApplicationCapacity(ctx context.Context, companyID string, currentCount int) error {
	sub, err := g.subscriptions.GetActiveByCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoSubscription
		}
		return fmt.Errorf("получение подписки компании %s: %w", companyID, err)
	}

	if sub.MaxApplicationsPerJob == model.UnlimitedQuota {
		return nil
	}
	if currentCount >= sub.MaxApplicationsPerJob {
		g.logger.Warn("Лимит заявок на вакансию исчерпан",
			slog.String("company_id", companyID),
			slog.Int("limit", sub.MaxApplicationsPerJob),
			slog.Int("current", currentCount),
		)
		return ErrJobOfferFull
	}
	return nil
}

// ReserveAnalysis атомарно резервирует единицу месячной квоты анализов.
// Попытка сверх квоты возвращает ErrQuotaExceeded без изменения счётчика.
func (g *QuotaGuard) ReserveAnalysis(ctx context.Context, companyID string) error {
	err := g.subscriptions.ReserveAnalysis(ctx, companyID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNoSubscription
	case errors.Is(err, repository.ErrConflict):
		g.logger.Warn("Квота AI-анализов исчерпана",
			slog.String("company_id", companyID),
		)
		return ErrQuotaExceeded
	default:
		return fmt.Errorf("резервирование квоты компании %s: %w", companyID, err)
	}
}

// ReleaseAnalysis возвращает единицу квоты после неуспешного анализа.
// Ошибка логируется и не возвращается: откат квоты не должен маскировать
// исходную причину сбоя анализа.
func (g *QuotaGuard) ReleaseAnalysis(ctx context.Context, companyID string) {
	if err := g.subscriptions.ReleaseAnalysis(ctx, companyID); err != nil {
		g.logger.Error("Не удалось вернуть квоту после сбоя анализа",
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
	}
}
