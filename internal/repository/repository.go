// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM. Конкурентные переходы
// статусов и учёт квот выражены одиночными условными UPDATE,
// поэтому многошаговые транзакции слою не нужны.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — состояние записи не позволяет операцию
	// (дублирующийся ресурс или CAS-переход из неподходящего статуса).
	ErrConflict = errors.New("конфликт состояния записи")
)

// DBTX — интерфейс выполнения SQL-запросов, его реализует *pgxpool.Pool.
// Репозитории принимают интерфейс, чтобы тесты могли подменять соединение.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
