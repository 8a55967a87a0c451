// Пакет status — конечный автомат статусов заявки.
//
// AI-конвейер: PENDING → ANALYZING → ANALYZED, с откатом
// ANALYZING → PENDING при ошибке анализа (повтор возможен).
//
// Решения компании: SHORTLISTED, REJECTED, CONTACTED — достижимы
// из любого статуса (включая самих себя: повторное применение того же
// решения допустимо и является no-op на уровне сущности).
package status

import "fmt"

// Status — статус заявки.
type Status string

const (
	// StatusPending — заявка подана, анализ не выполнялся или откатился
	StatusPending Status = "PENDING"
	// StatusAnalyzing — анализ выполняется
	StatusAnalyzing Status = "ANALYZING"
	// StatusAnalyzed — анализ успешно завершён, оценка записана
	StatusAnalyzed Status = "ANALYZED"
	// StatusShortlisted — кандидат в коротком списке
	StatusShortlisted Status = "SHORTLISTED"
	// StatusRejected — кандидат отклонён
	StatusRejected Status = "REJECTED"
	// StatusContacted — с кандидатом связались
	StatusContacted Status = "CONTACTED"
)

// pipelineTransitions — матрица переходов AI-конвейера.
// Решения компании обрабатываются отдельно (см. IsDecision).
var pipelineTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusAnalyzing: true},
	StatusAnalyzing: {StatusAnalyzed: true, StatusPending: true}, // откат при ошибке
	StatusAnalyzed:  {},
}

// IsDecision сообщает, является ли статус решением компании.
// Решения достижимы из любого статуса и идемпотентны.
func IsDecision(s Status) bool {
	switch s {
	case StatusShortlisted, StatusRejected, StatusContacted:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to Status) bool {
	if !isValid(from) || !isValid(to) {
		return false
	}
	// Решения компании достижимы из любого статуса.
	if IsDecision(to) {
		return true
	}
	transitions, ok := pipelineTransitions[from]
	if !ok {
		// Из статуса-решения AI-конвейер не стартует напрямую:
		// заявка уже рассмотрена компанией.
		return false
	}
	return transitions[to]
}

// Validate проверяет переход from → to и возвращает TransitionError,
// если он недопустим.
func Validate(from, to Status) error {
	if !isValid(to) {
		return &TransitionError{
			Code:    "INVALID_STATUS",
			Message: fmt.Sprintf("недопустимый целевой статус: %q", to),
		}
	}
	if !CanTransition(from, to) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}
	return nil
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_STATUS, INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isValid проверяет, является ли строка допустимым статусом.
func isValid(s Status) bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusAnalyzed,
		StatusShortlisted, StatusRejected, StatusContacted:
		return true
	default:
		return false
	}
}

// Parse преобразует строку в Status.
// Возвращает ошибку для недопустимых значений.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !isValid(st) {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: PENDING, ANALYZING, ANALYZED, SHORTLISTED, REJECTED, CONTACTED", s)
	}
	return st, nil
}
