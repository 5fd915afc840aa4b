package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/lotr-chat/internal/config"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

const defaultEmbeddingTimeout = 30 * time.Second

// NewEmbedder 根据配置创建向量化客户端
func NewEmbedder(cfg config.EmbeddingConfig, aiCfg config.AIConfig, log *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "", "jina":
		return NewJinaEmbedder(JinaOptions{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Task:       cfg.Task,
			Timeout:    cfg.Timeout,
			Logger:     log,
		}), nil
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = aiCfg.OpenAIAPIKey
		}
		return NewOpenAIEmbedder(apiKey, aiCfg.OpenAIBaseURL, cfg.Model, cfg.Dimensions, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// NewOpenAIEmbedder creates an embedder for OpenAI-compatible embedding endpoints.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int, timeout time.Duration) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}

	clientConfig := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	// 只有text-embedding-3系列支持自定义维度
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrEmbeddingService, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai: empty embedding response", ErrEmbeddingService)
	}

	return checkDimensions(resp.Data[0].Embedding, e.dimensions)
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func checkDimensions(vector []float32, want int) ([]float32, error) {
	if want > 0 && len(vector) != want {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingService, want, len(vector))
	}
	result := make([]float32, len(vector))
	copy(result, vector)
	return result, nil
}
