package extractor

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

	"voice-memories-go/internal/logger"
)

const mockAnalysis = `{"title":"Beta release planning","summary":"The team agreed to ship the beta on Friday and lined up the follow-up work.","key_points":["Beta ships Friday","Release notes need an update"],"action_items":["Priya updates the release notes","Sam schedules the customer demo"]}`

// Config for the chat completion provider.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Mock        bool
}

// Client performs one JSON-mode chat completion per call. Retrying is the
// caller's job.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(cfg Config, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 2 * time.Minute},
		log:  log.Component("extractor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt pair and returns choices[0].message.content.
// A null or empty content is returned as "" with a nil error so the caller can
// tell "the model said nothing" apart from transport and protocol failures.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.Mock {
		c.log.Debug("mock LLM mode on, returning canned analysis")
		return mockAnalysis, nil
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	c.log.WithField("http_status", resp.StatusCode).WithField("bytes", len(body)).Debug("llm response")
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if content == nil {
		return "", nil
	}
	return *content, nil
}

// StripFence removes one markdown code fence wrapping the whole string, such
// as "```json\n{...}\n```". Fences anywhere else are left alone; ok is false
// when s is not fully fenced.
func StripFence(s string) (inner string, ok bool) {
	t := strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return "", false
	}
	nl := strings.IndexByte(t, '\n')
	if nl == -1 {
		return "", false
	}
	// the opening line may only carry a language tag
	if tag := strings.TrimSpace(t[3:nl]); strings.ContainsAny(tag, " {\"`") {
		return "", false
	}
	body := t[nl+1 : len(t)-3]
	return strings.TrimSpace(body), true
}

func snippet(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
