// Пакет scoring — обёртка внешней способности оценивать CV
// относительно описания вакансии. Возвращает целочисленную оценку
// 0-100 и текстовое обоснование.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Result — результат скоринга CV.
type Result struct {
	// Score — оценка соответствия 0-100
	Score int
	// Rationale — обоснование оценки
	Rationale string
}

// Scorer — интерфейс внешнего скоринга.
// Реализация: GeminiScorer. В тестах подменяется фейком.
type Scorer interface {
	// Score оценивает CV относительно описания и требований вакансии.
	// Таймаут задаётся вызывающей стороной через ctx.
	Score(ctx context.Context, cvText, jobDescription, jobRequirements string) (*Result, error)
}

// ScoringError — ошибка вызова скоринга: сбой внешнего вызова,
// таймаут или полностью нечитаемый ответ модели.
type ScoringError struct {
	Message string
	Err     error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ошибка скоринга: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ошибка скоринга: %s", e.Message)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// parseResult разбирает сырой ответ модели в Result.
// Нечитаемая оценка приводится к 0, оценка вне диапазона обрезается
// в [0,100]; полностью пустой или не-JSON ответ — ScoringError.
func parseResult(raw string) (*Result, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, &ScoringError{Message: "модель вернула пустой ответ"}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, &ScoringError{Message: "ответ модели не является JSON", Err: err}
	}

	return &Result{
		Score:     clampScore(coerceScore(data["score"])),
		Rationale: coerceString(data["rationale"]),
	}, nil
}

// extractJSON убирает markdown-ограждение (```json ... ```) вокруг ответа.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// coerceScore приводит значение произвольного типа к целому.
// Нечитаемые значения приводятся к 0, а не к ошибке вызова.
func coerceScore(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val + 0.5)
	case int:
		return val
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0
		}
		return int(f + 0.5)
	default:
		return 0
	}
}

// clampScore обрезает оценку в диапазон [0,100].
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// coerceString приводит значение произвольного типа к строке.
func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
