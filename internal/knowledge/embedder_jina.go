package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/lotr-chat/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	defaultJinaModel = "jina-embeddings-v4"
	defaultJinaTask  = "retrieval.query"
	defaultJinaDims  = 512
)

// JinaOptions Jina Embedding客户端配置
type JinaOptions struct {
	URL        string
	APIKey     string
	Model      string
	Dimensions int
	Task       string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// JinaEmbedder calls the Jina embeddings HTTP API with a query-oriented task.
type JinaEmbedder struct {
	client     *http.Client
	url        string
	apiKey     string
	model      string
	dimensions int
	task       string
	logger     *zap.Logger
}

// NewJinaEmbedder 创建Jina向量化客户端
func NewJinaEmbedder(opts JinaOptions) *JinaEmbedder {
	if opts.URL == "" {
		opts.URL = defaultJinaURL
	}
	if opts.Model == "" {
		opts.Model = defaultJinaModel
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = defaultJinaDims
	}
	if opts.Task == "" {
		opts.Task = defaultJinaTask
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultEmbeddingTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("embedder")
	}

	return &JinaEmbedder{
		client:     &http.Client{Timeout: opts.Timeout},
		url:        opts.URL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      opts.Model,
		dimensions: opts.Dimensions,
		task:       opts.Task,
		logger:     opts.Logger,
	}
}

type jinaEmbeddingRequest struct {
	Input        []string `json:"input"`
	Model        string   `json:"model"`
	Dimensions   int      `json:"dimensions"`
	Task         string   `json:"task"`
	LateChunking bool     `json:"late_chunking"`
}

type jinaEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests exactly one embedding. Any non-200 status, transport error or
// malformed body fails with ErrEmbeddingService; there is no retry.
func (e *JinaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	payload, err := json.Marshal(jinaEmbeddingRequest{
		Input:        []string{text},
		Model:        e.model,
		Dimensions:   e.dimensions,
		Task:         e.task,
		LateChunking: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrEmbeddingService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrEmbeddingService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrEmbeddingService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrEmbeddingService, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jina api error: %d - %s", ErrEmbeddingService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed jinaEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrEmbeddingService, err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: response has no embedding data", ErrEmbeddingService)
	}

	e.logger.Debug("query embedded",
		zap.String("model", e.model),
		zap.Int("dimensions", len(parsed.Data[0].Embedding)),
		zap.Duration("elapsed", time.Since(start)))

	return checkDimensions(parsed.Data[0].Embedding, e.dimensions)
}

func (e *JinaEmbedder) Dimensions() int {
	return e.dimensions
}
