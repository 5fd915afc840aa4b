package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/lotr-chat/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// Completer 对话补全接口
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const (
	defaultCompletionModel   = openai.GPT4oMini
	defaultCompletionTimeout = 60 * time.Second
)

// OpenAICompleter sends one system and one user message to the chat completions API.
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewOpenAICompleter 创建OpenAI补全客户端
func NewOpenAICompleter(cfg config.AIConfig) *OpenAICompleter {
	model := cfg.Model
	if model == "" {
		model = defaultCompletionModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.OpenAIAPIKey))
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
		N:           1,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrCompletionService)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrCompletionService)
	}
	return content, nil
}
