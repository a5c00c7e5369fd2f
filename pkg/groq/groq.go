// Package groq provides a chat client for Groq's OpenAI-compatible
// completions API, used as the hosted language-model backend.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

// DefaultBaseURL is Groq's OpenAI-compatible API root.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Client calls the chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	client      *http.Client
}

// New creates a Groq chat client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey, model string, temperature float32, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Chat sends the assembled prompt and returns the raw model reply.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.GenerationError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.GenerationError("groq chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", domain.GenerationError("groq chat", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", domain.GenerationError("decode response", err)
	}
	if len(result.Choices) == 0 {
		return "", domain.GenerationError("groq chat", fmt.Errorf("response contained no choices"))
	}
	return result.Choices[0].Message.Content, nil
}
