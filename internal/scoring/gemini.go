// gemini.go — реализация Scorer поверх Gemini API (google.golang.org/genai).
package scoring

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

//go:embed prompt.md
var promptTemplate string

// GeminiScorer — скоринг CV через Gemini API.
type GeminiScorer struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// NewGeminiScorer создаёт скорер, настроенный на Gemini API backend.
func NewGeminiScorer(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiScorer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API-ключ Gemini обязателен")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("создание genai клиента: %w", err)
	}

	return &GeminiScorer{
		client:    client,
		modelName: model,
		logger:    logger.With(slog.String("component", "gemini_scorer")),
	}, nil
}

// Score оценивает CV относительно вакансии.
// Истечение ctx (таймаут скоринга) возвращается как ScoringError.
func (g *GeminiScorer) Score(ctx context.Context, cvText, jobDescription, jobRequirements string) (*Result, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, &ScoringError{Message: "текст CV пуст"}
	}

	prompt := buildPrompt(cvText, jobDescription, jobRequirements)

	g.logger.Debug("Запрос скоринга к Gemini",
		slog.String("model", g.modelName),
		slog.Int("prompt_length", len(prompt)),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ScoringError{Message: "таймаут вызова скоринга", Err: ctx.Err()}
		}
		return nil, &ScoringError{Message: "сбой вызова Gemini", Err: err}
	}

	raw := collectText(resp)
	if raw == "" {
		return nil, &ScoringError{Message: "модель вернула пустой ответ"}
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Ответ скоринга получен",
		slog.Int("score", result.Score),
		slog.Int("response_length", len(raw)),
	)

	return result, nil
}

// buildPrompt подставляет тексты в embedded шаблон промпта.
func buildPrompt(cvText, jobDescription, jobRequirements string) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_DESCRIPTION}}", jobDescription)
	prompt = strings.ReplaceAll(prompt, "{{JOB_REQUIREMENTS}}", jobRequirements)
	prompt = strings.ReplaceAll(prompt, "{{CV_TEXT}}", cvText)
	return prompt
}

// collectText собирает текстовые части всех кандидатов ответа.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return strings.TrimSpace(sb.String())
}
