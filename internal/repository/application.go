package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/talentgate/talentgate/internal/domain/model"
	"github.com/talentgate/talentgate/internal/domain/status"
)

// ApplicationRepository — интерфейс доступа к таблице applications.
// Все операции чтения фильтруют soft-deleted записи (deleted_at IS NULL).
type ApplicationRepository interface {
	// Create создаёт новую заявку вместе с CV.
	Create(ctx context.Context, a *model.Application) error
	// GetByID возвращает заявку без бинарного payload CV.
	GetByID(ctx context.Context, id string) (*model.Application, error)
	// GetCV возвращает документ CV заявки.
	GetCV(ctx context.Context, id string) (*model.CVDocument, error)
	// ListByJobOffer возвращает заявки вакансии с пагинацией.
	ListByJobOffer(ctx context.Context, jobOfferID string, limit, offset int) ([]*model.Application, error)
	// CountByJobOffer возвращает количество активных заявок вакансии.
	CountByJobOffer(ctx context.Context, jobOfferID string) (int, error)
	// MarkAnalyzing атомарно переводит заявку PENDING → ANALYZING
	// (compare-and-swap) и очищает ai_error. Если заявка не в PENDING —
	// возвращает ErrConflict, конкурентный запуск анализа отклоняется.
	MarkAnalyzing(ctx context.Context, id string) error
	// CompleteAnalysis записывает результат успешного анализа и переводит
	// заявку ANALYZING → ANALYZED. Оценка записывается только вместе со
	// статусом ANALYZED (одним UPDATE).
	CompleteAnalysis(ctx context.Context, id string, score int, rationale string, processedAt time.Time) error
	// FailAnalysis записывает сообщение об ошибке и откатывает заявку
	// ANALYZING → PENDING. Поле оценки не изменяется.
	FailAnalysis(ctx context.Context, id string, aiError string) error
	// RevertAnalyzing откатывает заявку ANALYZING → PENDING без записи
	// ошибки анализа: запуск сорвался до начала самого анализа
	// (квота, переполненная очередь), сущность не должна выглядеть
	// как пережившая неудачный анализ.
	RevertAnalyzing(ctx context.Context, id string) error
	// UpdateStatus устанавливает статус-решение компании.
	UpdateStatus(ctx context.Context, id string, st status.Status) error
	// SoftDeleteExpired помечает удалёнными заявки с истёкшим сроком хранения.
	// Возвращает количество помеченных заявок.
	SoftDeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// applicationRepo — реализация ApplicationRepository.
type applicationRepo struct {
	db DBTX
}

// NewApplicationRepository создаёт репозиторий заявок.
func NewApplicationRepository(db DBTX) ApplicationRepository {
	return &applicationRepo{db: db}
}

// appColumns — колонки заявки без бинарного payload CV.
const appColumns = `id, job_offer_id, candidate_id, guest_name, guest_email, guest_phone,
	status, cv_filename, cv_size, cv_mime_type, motivation, linkedin_url,
	consent_given, data_retention_until, ai_score, ai_rationale, ai_error,
	ai_processed_at, created_at, updated_at, deleted_at`

func (r *applicationRepo) Create(ctx context.Context, a *model.Application) error {
	query := `
		INSERT INTO applications (id, job_offer_id, candidate_id, guest_name, guest_email,
			guest_phone, status, cv_payload, cv_filename, cv_size, cv_mime_type,
			motivation, linkedin_url, consent_given, data_retention_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	var payload []byte
	var filename, mimeType string
	var size int64
	if a.CV != nil {
		payload = a.CV.Payload
		filename = a.CV.Filename
		size = a.CV.Size
		mimeType = a.CV.MimeType
	}

	err := r.db.QueryRow(ctx, query,
		a.ID, a.JobOfferID, a.Identity.CandidateID, a.Identity.GuestName,
		a.Identity.GuestEmail, a.Identity.GuestPhone, string(a.Status),
		payload, filename, size, mimeType,
		a.Motivation, a.LinkedInURL, a.ConsentGiven, a.DataRetentionUntil,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заявка с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		WHERE id = $1 AND deleted_at IS NULL`, appColumns)

	a, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return a, nil
}

func (r *applicationRepo) GetCV(ctx context.Context, id string) (*model.CVDocument, error) {
	query := `
		SELECT cv_payload, cv_filename, cv_size, cv_mime_type
		FROM applications
		WHERE id = $1 AND deleted_at IS NULL`

	cv := &model.CVDocument{}
	err := r.db.QueryRow(ctx, query, id).Scan(&cv.Payload, &cv.Filename, &cv.Size, &cv.MimeType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения CV: %w", err)
	}
	if len(cv.Payload) == 0 {
		return nil, ErrNotFound
	}
	return cv, nil
}

func (r *applicationRepo) ListByJobOffer(ctx context.Context, jobOfferID string, limit, offset int) ([]*model.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		WHERE job_offer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, appColumns)

	rows, err := r.db.Query(ctx, query, jobOfferID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *applicationRepo) CountByJobOffer(ctx context.Context, jobOfferID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM applications
		WHERE job_offer_id = $1 AND deleted_at IS NULL`

	var count int
	if err := r.db.QueryRow(ctx, query, jobOfferID).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return count, nil
}

// MarkAnalyzing — compare-and-swap PENDING → ANALYZING.
// При нуле затронутых строк различает «заявка не найдена» и
// «заявка не в PENDING» (конкурентный анализ уже запущен).
func (r *applicationRepo) MarkAnalyzing(ctx context.Context, id string) error {
	query := `
		UPDATE applications
		SET status = 'ANALYZING', ai_error = NULL, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status = 'PENDING'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка перевода заявки в ANALYZING: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.db.QueryRow(ctx,
			`SELECT status FROM applications WHERE id = $1 AND deleted_at IS NULL`, id,
		).Scan(&current)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка проверки статуса заявки: %w", err)
		}
		return fmt.Errorf("%w: заявка в статусе %s, анализ возможен только из PENDING", ErrConflict, current)
	}
	return nil
}

func (r *applicationRepo) CompleteAnalysis(ctx context.Context, id string, score int, rationale string, processedAt time.Time) error {
	query := `
		UPDATE applications
		SET status = 'ANALYZED', ai_score = $2, ai_rationale = $3,
			ai_processed_at = $4, ai_error = NULL, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status = 'ANALYZING'`

	tag, err := r.db.Exec(ctx, query, id, score, rationale, processedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи результата анализа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: заявка не в статусе ANALYZING", ErrConflict)
	}
	return nil
}

func (r *applicationRepo) FailAnalysis(ctx context.Context, id string, aiError string) error {
	query := `
		UPDATE applications
		SET status = 'PENDING', ai_error = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status = 'ANALYZING'`

	tag, err := r.db.Exec(ctx, query, id, aiError)
	if err != nil {
		return fmt.Errorf("ошибка отката заявки в PENDING: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: заявка не в статусе ANALYZING", ErrConflict)
	}
	return nil
}

func (r *applicationRepo) RevertAnalyzing(ctx context.Context, id string) error {
	query := `
		UPDATE applications
		SET status = 'PENDING', updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND status = 'ANALYZING'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка отката заявки в PENDING: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: заявка не в статусе ANALYZING", ErrConflict)
	}
	return nil
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, id string, st status.Status) error {
	query := `
		UPDATE applications
		SET status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, string(st))
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *applicationRepo) SoftDeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE applications
		SET deleted_at = now(), updated_at = now()
		WHERE deleted_at IS NULL AND data_retention_until < $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка пометки просроченных заявок: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanApplication сканирует строку applications (без payload CV).
func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{CV: &model.CVDocument{}}
	var st string

	err := row.Scan(
		&a.ID, &a.JobOfferID, &a.Identity.CandidateID, &a.Identity.GuestName,
		&a.Identity.GuestEmail, &a.Identity.GuestPhone, &st,
		&a.CV.Filename, &a.CV.Size, &a.CV.MimeType,
		&a.Motivation, &a.LinkedInURL, &a.ConsentGiven, &a.DataRetentionUntil,
		&a.AIScore, &a.AIRationale, &a.AIError, &a.AIProcessedAt,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = status.Status(st)
	// Payload не выбирается списочными запросами; наличие CV
	// определяется по размеру.
	if a.CV.Size == 0 {
		a.CV = nil
	}
	return a, nil
}
