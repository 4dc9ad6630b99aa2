package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderError is returned when an embedding or chat call fails: transport
// error, non-2xx status, or a malformed response body. No retries happen
// here; retry policy belongs to whatever wraps the client.
type ProviderError struct {
	Op         string // "embeddings" or "chat/completions"
	StatusCode int    // 0 when the request never got a response
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("openai %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

type Client struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	client     *http.Client
}

func NewClient(apiKey, baseURL, embedModel, chatModel string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		EmbedModel: embedModel,
		ChatModel:  chatModel,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// CreateEmbeddings embeds a batch of texts and returns one vector per input,
// in input order. The provider reports an index per entry; placing results by
// that index is what guarantees output[i] corresponds to texts[i]. Provider
// batch-size and token limits are the caller's responsibility.
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embResp embeddingResponse
	if err := c.post(ctx, "embeddings", embeddingRequest{Input: texts, Model: c.EmbedModel}, &embResp); err != nil {
		return nil, err
	}

	if len(embResp.Data) != len(texts) {
		return nil, &ProviderError{
			Op:      "embeddings",
			Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(embResp.Data)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, &ProviderError{Op: "embeddings", Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, &ProviderError{Op: "embeddings", Message: fmt.Sprintf("missing embedding for input %d", i)}
		}
	}
	return vectors, nil
}

// ChatCompletion sends the messages to the chat model and returns the first
// choice's content.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	var chatResp chatResponse
	if err := c.post(ctx, "chat/completions", chatRequest{Model: c.ChatModel, Messages: messages}, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", &ProviderError{Op: "chat/completions", Message: "no completion returned"}
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return &ProviderError{Op: path, Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+path, bytes.NewReader(reqBody))
	if err != nil {
		return &ProviderError{Op: path, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &ProviderError{Op: path, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{Op: path, StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Op: path, Message: "decode response", Err: err}
	}
	return nil
}
