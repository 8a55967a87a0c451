package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/talentgate/talentgate/internal/domain/model"
)

// JobOfferRepository — интерфейс доступа к таблице job_offers.
type JobOfferRepository interface {
	// Create создаёт вакансию.
	Create(ctx context.Context, j *model.JobOffer) error
	// GetByID возвращает вакансию по UUID.
	GetByID(ctx context.Context, id string) (*model.JobOffer, error)
	// ListByCompany возвращает вакансии компании с пагинацией.
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*model.JobOffer, error)
	// SetPublished публикует или снимает вакансию с публикации.
	SetPublished(ctx context.Context, id string, published bool) error
}

// jobOfferRepo — реализация JobOfferRepository.
type jobOfferRepo struct {
	db DBTX
}

// NewJobOfferRepository создаёт репозиторий вакансий.
func NewJobOfferRepository(db DBTX) JobOfferRepository {
	return &jobOfferRepo{db: db}
}

func (r *jobOfferRepo) Create(ctx context.Context, j *model.JobOffer) error {
	query := `
		INSERT INTO job_offers (id, company_id, title, description, requirements, published)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		j.ID, j.CompanyID, j.Title, j.Description, j.Requirements, j.Published,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: вакансия с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания вакансии: %w", err)
	}
	return nil
}

func (r *jobOfferRepo) GetByID(ctx context.Context, id string) (*model.JobOffer, error) {
	query := `
		SELECT id, company_id, title, description, requirements, published, created_at, updated_at
		FROM job_offers
		WHERE id = $1`

	j := &model.JobOffer{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.CompanyID, &j.Title, &j.Description, &j.Requirements,
		&j.Published, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения вакансии: %w", err)
	}
	return j, nil
}

func (r *jobOfferRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*model.JobOffer, error) {
	query := `
		SELECT id, company_id, title, description, requirements, published, created_at, updated_at
		FROM job_offers
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка вакансий: %w", err)
	}
	defer rows.Close()

	var result []*model.JobOffer
	for rows.Next() {
		j := &model.JobOffer{}
		if err := rows.Scan(
			&j.ID, &j.CompanyID, &j.Title, &j.Description, &j.Requirements,
			&j.Published, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования вакансии: %w", err)
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

func (r *jobOfferRepo) SetPublished(ctx context.Context, id string, published bool) error {
	query := `
		UPDATE job_offers
		SET published = $2, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, published)
	if err != nil {
		return fmt.Errorf("ошибка публикации вакансии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
