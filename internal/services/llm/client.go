package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cubby/internal/services/retry"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Config captures the runtime settings required to talk to the chat model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title are sent as attribution headers (OpenRouter reads them).
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	policy retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryPolicy overrides retry.DefaultPolicy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// NewClient constructs a chat client. Requests time out after 60s unless
// cfg.TimeoutSeconds says otherwise.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: timeout}, policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a system and user prompt and returns the model's text
// verbatim. No response format is forced, so callers may ask for arrays.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, "llm complete", systemPrompt, userPrompt, false)
}

// HealthCheck issues one small JSON request to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.chat(ctx, "llm health", "You must respond with JSON only.", `Respond with {"ok":true}`, true)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// emptyContentError is retried: providers occasionally return a blank choice
// under load.
type emptyContentError struct {
	op, finishReason, refusal, snippet string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.op, e.finishReason, e.refusal, e.snippet)
}

func (e *emptyContentError) Retryable() bool { return true }

func (c *Client) chat(ctx context.Context, op, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	systemPrompt, userPrompt = strings.TrimSpace(systemPrompt), strings.TrimSpace(userPrompt)
	switch {
	case c.cfg.APIKey == "":
		return "", fmt.Errorf("%s: api key required", op)
	case systemPrompt == "":
		return "", fmt.Errorf("%s: system prompt required", op)
	case userPrompt == "":
		return "", fmt.Errorf("%s: user prompt required", op)
	}
	payload := chatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if jsonMode {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}

	var content string
	err = c.policy.Do(ctx, op, func(ctx context.Context) error {
		resp, raw, err := c.post(ctx, op, body)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: empty choices", op)
		}
		choice := resp.Choices[0]
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			content = text
			return nil
		}
		return &emptyContentError{
			op:           op,
			finishReason: choice.FinishReason,
			refusal:      strings.TrimSpace(choice.Message.Refusal),
			snippet:      SummarizeSnippet(string(raw), 160),
		}
	})
	return content, err
}

func (c *Client) post(ctx context.Context, op string, body []byte) (chatCompletionResponse, []byte, error) {
	var parsed chatCompletionResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return parsed, nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return parsed, nil, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return parsed, nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return parsed, raw, retry.NewStatusError(op, resp, raw)
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, raw, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if parsed.Error != nil {
		return parsed, raw, fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(parsed.Error.Message))
	}
	return parsed, raw, nil
}
