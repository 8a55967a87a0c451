package scoring

import (
	"errors"
	"strings"
	"testing"
)

// TestParseResult_ValidJSON проверяет разбор корректного ответа модели.
func TestParseResult_ValidJSON(t *testing.T) {
	raw := `{"score": 87, "rationale": "Сильный кандидат с релевантным опытом."}`

	result, err := parseResult(raw)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.Score != 87 {
		t.Errorf("ожидалась оценка 87, получено %d", result.Score)
	}
	if result.Rationale == "" {
		t.Error("обоснование не должно быть пустым")
	}
}

// TestParseResult_FencedJSON проверяет разбор ответа в markdown-ограждении.
func TestParseResult_FencedJSON(t *testing.T) {
	raw := "```json\n{\"score\": 42, \"rationale\": \"ok\"}\n```"

	result, err := parseResult(raw)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.Score != 42 {
		t.Errorf("ожидалась оценка 42, получено %d", result.Score)
	}
}

// TestParseResult_ScoreClamping проверяет обрезание оценки в [0,100]
// и приведение нечитаемых значений к нулю.
func TestParseResult_ScoreClamping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"выше диапазона", `{"score": 150, "rationale": "x"}`, 100},
		{"ниже диапазона", `{"score": -20, "rationale": "x"}`, 0},
		{"оценка строкой", `{"score": "73", "rationale": "x"}`, 73},
		{"дробная оценка", `{"score": 66.7, "rationale": "x"}`, 67},
		{"нечитаемая оценка", `{"score": "great", "rationale": "x"}`, 0},
		{"отсутствующая оценка", `{"rationale": "x"}`, 0},
		{"null-оценка", `{"score": null, "rationale": "x"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult(tt.raw)
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if result.Score != tt.want {
				t.Errorf("ожидалась оценка %d, получено %d", tt.want, result.Score)
			}
		})
	}
}

// TestParseResult_GarbledResponse проверяет, что полностью нечитаемый
// ответ модели является ошибкой вызова, а не нулевой оценкой.
func TestParseResult_GarbledResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"пустой ответ", ""},
		{"только пробелы", "   \n\t"},
		{"не JSON", "I think the candidate is great!"},
		{"пустое ограждение", "```json\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResult(tt.raw)
			if err == nil {
				t.Fatal("ожидалась ошибка для нечитаемого ответа")
			}

			var se *ScoringError
			if !errors.As(err, &se) {
				t.Fatalf("ожидался *ScoringError, получено %T", err)
			}
		})
	}
}

// TestBuildPrompt проверяет подстановку текстов в шаблон промпта.
func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("cv text here", "job description here", "job requirements here")

	for _, want := range []string{"cv text here", "job description here", "job requirements here"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("промпт не содержит %q", want)
		}
	}
	for _, placeholder := range []string{"{{CV_TEXT}}", "{{JOB_DESCRIPTION}}", "{{JOB_REQUIREMENTS}}"} {
		if strings.Contains(prompt, placeholder) {
			t.Errorf("в промпте осталась незаполненная подстановка %q", placeholder)
		}
	}
}
