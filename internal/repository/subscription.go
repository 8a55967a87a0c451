package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/talentgate/talentgate/internal/domain/model"
)

// SubscriptionRepository — интерфейс доступа к таблице subscriptions.
type SubscriptionRepository interface {
	// GetActiveByCompany возвращает активную подписку компании.
	GetActiveByCompany(ctx context.Context, companyID string) (*model.Subscription, error)
	// ReserveAnalysis атомарно инкрементирует счётчик использования
	// с проверкой потолка квоты одним UPDATE. Ноль затронутых строк —
	// квота исчерпана (ErrConflict). Устраняет гонку read-then-increment.
	ReserveAnalysis(ctx context.Context, companyID string) error
	// ReleaseAnalysis декрементирует счётчик после неудачного анализа
	// (неудачная попытка не расходует квоту). Не опускается ниже нуля.
	ReleaseAnalysis(ctx context.Context, companyID string) error
}

// subscriptionRepo — реализация SubscriptionRepository.
type subscriptionRepo struct {
	db DBTX
}

// NewSubscriptionRepository создаёт репозиторий подписок.
func NewSubscriptionRepository(db DBTX) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) GetActiveByCompany(ctx context.Context, companyID string) (*model.Subscription, error) {
	query := `
		SELECT id, company_id, plan, monthly_analyses, analyses_used,
			max_applications_per_job, period_start, active
		FROM subscriptions
		WHERE company_id = $1 AND active = TRUE`

	s := &model.Subscription{}
	err := r.db.QueryRow(ctx, query, companyID).Scan(
		&s.ID, &s.CompanyID, &s.Plan, &s.MonthlyAnalyses, &s.AnalysesUsed,
		&s.MaxApplicationsPerJob, &s.PeriodStart, &s.Active,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения подписки: %w", err)
	}
	return s, nil
}

func (r *subscriptionRepo) ReserveAnalysis(ctx context.Context, companyID string) error {
	query := `
		UPDATE subscriptions
		SET analyses_used = analyses_used + 1
		WHERE company_id = $1 AND active = TRUE
			AND (monthly_analyses = -1 OR analyses_used < monthly_analyses)`

	tag, err := r.db.Exec(ctx, query, companyID)
	if err != nil {
		return fmt.Errorf("ошибка резервирования квоты анализа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо подписки нет, либо квота исчерпана
		_, getErr := r.GetActiveByCompany(ctx, companyID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: месячная квота AI-анализов исчерпана", ErrConflict)
	}
	return nil
}

func (r *subscriptionRepo) ReleaseAnalysis(ctx context.Context, companyID string) error {
	query := `
		UPDATE subscriptions
		SET analyses_used = GREATEST(analyses_used - 1, 0)
		WHERE company_id = $1 AND active = TRUE`

	if _, err := r.db.Exec(ctx, query, companyID); err != nil {
		return fmt.Errorf("ошибка возврата квоты анализа: %w", err)
	}
	return nil
}
