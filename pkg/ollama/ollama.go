// Package ollama provides HTTP clients for a local Ollama server: batch
// embeddings for the ingest pipeline and non-streaming chat for answer
// generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

// EmbedClient calls Ollama's embedding endpoint. Calls are rate limited so a
// large ingest run doesn't starve the shared model server.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewEmbedClient creates an embedding client for the given model.
func NewEmbedClient(baseURL, model string) *EmbedClient {
	return &EmbedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 4),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch embeds a batch of texts in one call, returning one vector per
// input in input order.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(embedRequest{Model: c.model, Input: texts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, domain.EmbeddingError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.EmbeddingError("ollama embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.EmbeddingError("ollama embed", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.EmbeddingError("decode response", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, domain.EmbeddingError("ollama embed",
			fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts)))
	}
	return result.Embeddings, nil
}

// Embed embeds a single text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// ChatClient calls Ollama's chat endpoint without streaming.
type ChatClient struct {
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
}

// NewChatClient creates a chat client for the given model.
func NewChatClient(baseURL, model string, temperature float32, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Chat sends the assembled prompt and returns the raw model reply.
func (c *ChatClient) Chat(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  map[string]any{"temperature": c.temperature},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", domain.GenerationError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.GenerationError("ollama chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", domain.GenerationError("ollama chat", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", domain.GenerationError("decode response", err)
	}
	return result.Message.Content, nil
}
