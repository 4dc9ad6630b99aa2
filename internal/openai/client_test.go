package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL, "text-embedding-3-small", "gpt-4o-mini")
}

func TestCreateEmbeddings_OrderPreserved(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		require.Len(t, req.Input, 3)

		// Respond out of order; clients must place vectors by index.
		json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"data": []map[string]any{
				{"index": 2, "embedding": []float32{3, 3}},
				{"index": 0, "embedding": []float32{1, 1}},
				{"index": 1, "embedding": []float32{2, 2}},
			},
		})
	})

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 2}, vectors[1])
	assert.Equal(t, []float32{3, 3}, vectors[2])
}

func TestCreateEmbeddings_EmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty batch")
	})
	vectors, err := client.CreateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestCreateEmbeddings_ProviderErrorOnStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limit"}`, http.StatusTooManyRequests)
	})

	_, err := client.CreateEmbeddings(context.Background(), []string{"text"})
	require.Error(t, err)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, "embeddings", pe.Op)
}

func TestCreateEmbeddings_CountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float32{1}},
			},
		})
	})

	_, err := client.CreateEmbeddings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message, "expected 2 embeddings")
}

func TestChatCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "the answer"}},
			},
		})
	})

	answer, err := client.ChatCompletion(context.Background(), []Message{
		{Role: "system", Content: "instructions"},
		{Role: "user", Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestChatCompletion_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "q"}})
	require.Error(t, err)
	var pe *ProviderError
	assert.True(t, errors.As(err, &pe))
}
