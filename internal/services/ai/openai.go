package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/taskquest/taskquest-api/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	dueDateLayout = "2006-01-02"
)

const extractionSystemPrompt = "You are an assistant that reads emails and extracts actionable tasks. " +
	"Respond with valid JSON only, shaped as " +
	`{"tasks":[{"title":"...","description":"...","priority":"low|medium|high","due_date":"YYYY-MM-DD or null"}]}. ` +
	"Only include genuinely actionable items. An email with no action items yields an empty tasks array."

// OpenAIExtractor implements Provider using OpenAI's chat completions API.
type OpenAIExtractor struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

var _ Provider = (*OpenAIExtractor)(nil)

// NewOpenAIExtractor creates an extractor with default base URL and no logger.
func NewOpenAIExtractor(apiKey, model string) *OpenAIExtractor {
	return NewOpenAIExtractorWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIExtractorWithLogger creates an extractor with logger support.
func NewOpenAIExtractorWithLogger(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIExtractor {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	)

	return &OpenAIExtractor{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// ExtractTasks sends the email body to the model and parses the returned
// task list.
func (p *OpenAIExtractor) ExtractTasks(ctx context.Context, emailText string) ([]ExtractedTask, error) {
	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(emailText),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "extract_tasks"),
			zap.String("model", p.model),
			zap.Int("email_length", len(emailText)),
		)
	}

	resp, err := p.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	tasks, err := parseExtractionResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "extract_tasks"),
			zap.Int("task_count", len(tasks)),
		)
	}
	return tasks, nil
}

// parseExtractionResponse decodes the model output, tolerating prose or code
// fences around the JSON object. Entries without a title are dropped;
// unrecognized priorities fall back to medium; malformed due dates are
// treated as absent.
func parseExtractionResponse(content string) ([]ExtractedTask, error) {
	var payload struct {
		Tasks []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
			DueDate     string `json:"due_date"`
		} `json:"tasks"`
	}

	raw := content
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		start := bytes.Index([]byte(raw), []byte("{"))
		end := bytes.LastIndex([]byte(raw), []byte("}"))
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
		raw = raw[start : end+1]
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	tasks := make([]ExtractedTask, 0, len(payload.Tasks))
	for _, entry := range payload.Tasks {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		task := ExtractedTask{
			Title:       title,
			Description: strings.TrimSpace(entry.Description),
			Priority:    models.TaskPriority(entry.Priority),
		}
		switch task.Priority {
		case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
		default:
			task.Priority = models.TaskPriorityMedium
		}

		if entry.DueDate != "" && entry.DueDate != "null" {
			if due, err := time.Parse(dueDateLayout, entry.DueDate); err == nil {
				task.DueDate = &due
			}
		}

		tasks = append(tasks, task)
	}
	return tasks, nil
}
