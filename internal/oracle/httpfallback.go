package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFallbackConfig configures the optional direct HTTPS oracle backend,
// used when the host does not inject a Generate function directly.
type HTTPFallbackConfig struct {
	APIKey  string
	BaseURL string // OpenAI-compatible Chat Completions endpoint
	Model   string
	Timeout time.Duration
}

// HTTPFallbackClient calls an OpenAI-compatible Chat Completions endpoint.
type HTTPFallbackClient struct {
	cfg    HTTPFallbackConfig
	client *http.Client
}

// NewHTTPFallbackClient constructs a client with sensible defaults.
func NewHTTPFallbackClient(cfg HTTPFallbackConfig) *HTTPFallbackClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &HTTPFallbackClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPStatusError carries the response status code for classification.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Generate implements the oracle.Generate signature over HTTP.
func (c *HTTPFallbackClient) Generate(ctx context.Context, p Params) (Response, error) {
	reqBody := chatRequest{
		Model:     c.cfg.Model,
		MaxTokens: p.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("oracle: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("oracle: parse response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("oracle: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("oracle: no completion returned")
	}

	return Response{
		Content: parsed.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
