package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func vectorOf(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i) / float32(n)
	}
	return v
}

func jinaServer(t *testing.T, status int, body any, seen *jinaEmbeddingRequest, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestJina(url string, dims int) *JinaEmbedder {
	return NewJinaEmbedder(JinaOptions{
		URL:        url,
		APIKey:     "test-key",
		Dimensions: dims,
		Timeout:    2 * time.Second,
		Logger:     zap.NewNop(),
	})
}

func TestJinaEmbedder_Embed(t *testing.T) {
	var seen jinaEmbeddingRequest
	srv := jinaServer(t, http.StatusOK, map[string]any{
		"data": []map[string]any{{"index": 0, "embedding": vectorOf(512)}},
	}, &seen, nil)

	vec, err := newTestJina(srv.URL, 512).Embed(context.Background(), "Who is Frodo?")
	require.NoError(t, err)
	assert.Len(t, vec, 512)

	assert.Equal(t, []string{"Who is Frodo?"}, seen.Input)
	assert.Equal(t, "jina-embeddings-v4", seen.Model)
	assert.Equal(t, 512, seen.Dimensions)
	assert.Equal(t, "retrieval.query", seen.Task)
	assert.True(t, seen.LateChunking)
}

func TestJinaEmbedder_NonOKStatus(t *testing.T) {
	srv := jinaServer(t, http.StatusUnauthorized, map[string]any{"detail": "invalid key"}, nil, nil)

	_, err := newTestJina(srv.URL, 512).Embed(context.Background(), "Who is Frodo?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingService)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid key")
}

func TestJinaEmbedder_WrongDimensions(t *testing.T) {
	srv := jinaServer(t, http.StatusOK, map[string]any{
		"data": []map[string]any{{"index": 0, "embedding": vectorOf(128)}},
	}, nil, nil)

	_, err := newTestJina(srv.URL, 512).Embed(context.Background(), "Who is Frodo?")
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestJinaEmbedder_EmptyData(t *testing.T) {
	srv := jinaServer(t, http.StatusOK, map[string]any{"data": []any{}}, nil, nil)

	_, err := newTestJina(srv.URL, 512).Embed(context.Background(), "Who is Frodo?")
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestJinaEmbedder_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestJina(srv.URL, 512).Embed(context.Background(), "Who is Frodo?")
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestJinaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestJina(url, 512).Embed(context.Background(), "Who is Frodo?")
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestJinaEmbedder_EmptyQueryMakesNoCall(t *testing.T) {
	var calls int32
	srv := jinaServer(t, http.StatusOK, map[string]any{}, nil, &calls)

	_, err := newTestJina(srv.URL, 512).Embed(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrEmptyQuery))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])
		assert.EqualValues(t, 512, req["dimensions"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vectorOf(512)},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("sk-test", srv.URL+"/v1", "", 512, time.Second)
	vec, err := e.Embed(context.Background(), "Who is Frodo?")
	require.NoError(t, err)
	assert.Len(t, vec, 512)
	assert.Equal(t, 512, e.Dimensions())
}

func TestOpenAIEmbedder_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder("sk-test", srv.URL+"/v1", "", 512, time.Second).Embed(context.Background(), "Who is Frodo?")
	assert.ErrorIs(t, err, ErrEmbeddingService)
}

func TestNewEmbedder_SelectsProvider(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Dimensions: 512}, config.AIConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &JinaEmbedder{}, e)

	e, err = NewEmbedder(config.EmbeddingConfig{Provider: "openai", Dimensions: 256}, config.AIConfig{OpenAIAPIKey: "sk"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, e)
	assert.Equal(t, 256, e.Dimensions())

	_, err = NewEmbedder(config.EmbeddingConfig{Provider: "word2vec"}, config.AIConfig{}, zap.NewNop())
	assert.Error(t, err)
}
