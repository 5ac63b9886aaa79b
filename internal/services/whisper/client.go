// Package whisper is a client for OpenAI-compatible speech-to-text endpoints
// (POST {base}/audio/transcriptions) returning segment-level timestamps.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cubby/internal/services/retry"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "whisper-1"
	defaultHTTPTimeout = 10 * time.Minute
)

// Config captures the runtime settings for the transcription endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Segment is one timed span of recognised speech, relative to the uploaded file.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the verbose_json response body.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Client uploads audio files for transcription.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultBaseURL
	}
	if c.cfg.Model == "" {
		c.cfg.Model = defaultModel
	}
	return c
}

// TranscribeFile uploads audioPath and returns its segments.
func (c *Client) TranscribeFile(ctx context.Context, audioPath string) (Transcription, error) {
	var result Transcription
	if c.cfg.APIKey == "" {
		return result, errors.New("whisper transcribe: api key required")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return result, fmt.Errorf("whisper transcribe: stat audio: %w", err)
	}
	err := c.policy.Do(ctx, "whisper transcribe", func(ctx context.Context) error {
		var err error
		result, err = c.sendOnce(ctx, audioPath)
		return err
	})
	return result, err
}

// HealthCheck verifies the API key by listing models on the same base URL.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("whisper health: api key required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("whisper health: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper health: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return retry.NewStatusError("whisper health", resp, body)
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, audioPath string) (Transcription, error) {
	var result Transcription
	body, contentType, err := c.buildMultipart(audioPath)
	if err != nil {
		return result, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return result, fmt.Errorf("whisper request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("whisper request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("whisper request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return result, retry.NewStatusError("whisper request", resp, payload)
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return result, fmt.Errorf("whisper request: decode response: %w", err)
	}
	return result, nil
}

func (c *Client) buildMultipart(audioPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("whisper request: open audio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("whisper request: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("whisper request: copy audio: %w", err)
	}
	fields := [][2]string{
		{"model", c.cfg.Model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if c.cfg.Language != "" {
		fields = append(fields, [2]string{"language", c.cfg.Language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("whisper request: write %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper request: close multipart: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
