package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clip-relay/internal/domain"
	openai "clip-relay/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует анализатор через OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт провайдер обогащения.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

var _ domain.Analyzer = (*OpenAI)(nil)

type analysisPayload struct {
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	Citation    string   `json:"citation"`
}

// Analyze строит подпись, хэштеги и ссылку на автора по метаданным ролика.
func (a *OpenAI) Analyze(ctx context.Context, item domain.QueueItem, meta domain.VideoMetadata) (domain.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Подготовь публикацию по метаданным видео с платформы %s.
Верни JSON формата {"description": "...", "hashtags": ["#..."], "citation": "..."} без пояснений.
Описание — до 400 символов, живым языком. Хэштеги — 5-10 штук латиницей.
Citation — короткая ссылка на автора.
Заголовок: %s
Описание: %s
Автор: %s`, item.Platform, clipRunes(meta.Title, 300), clipRunes(meta.Description, 1000), meta.Author)

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.4,
		MaxTokens:   400,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "Ты редактор видеоподборки. Используй только факты из метаданных и не выдумывай ничего нового.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Analysis{}, fmt.Errorf("openai completion: пустой ответ")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed analysisPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.Analysis{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	analysis := domain.Analysis{
		Description: clipRunes(strings.TrimSpace(parsed.Description), maxDescriptionRunes),
		Hashtags:    NormalizeHashtags(parsed.Hashtags),
		Citation:    strings.TrimSpace(parsed.Citation),
	}
	if analysis.Description == "" {
		return domain.Analysis{}, fmt.Errorf("openai completion: пустое описание")
	}
	return analysis, nil
}

const maxDescriptionRunes = 2000

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
