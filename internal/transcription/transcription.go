package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/types"
)

const mockTranscript = "MOCK TRANSCRIPT: We agreed to ship the beta on Friday. Priya will update the release notes and Sam will schedule the customer demo."

// Config for the speech-to-text provider.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Mock    bool
}

// Client calls an OpenAI-compatible /audio/transcriptions endpoint. It never
// retries; the pipeline treats any failure as terminal.
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
		http: &http.Client{Timeout: 10 * time.Minute},
		log:  log.Component("transcription"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verboseResponse struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Duration *float64 `json:"duration"`
}

// Transcribe uploads audio as multipart form data. filename only needs a
// meaningful extension so the provider can detect the format.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error) {
	if c.cfg.Mock {
		dur := 42.0
		return &types.TranscriptionResult{Text: mockTranscript, Language: "en", Duration: &dur}, nil
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	_ = w.WriteField("model", c.cfg.Model)
	_ = w.WriteField("response_format", "verbose_json")
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription provider status %d: %s", resp.StatusCode, snippet(raw))
	}

	var out verboseResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("json decode error: %v body=%s", err, snippet(raw))
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, errors.New("transcription provider returned no text")
	}

	c.log.WithField("bytes", len(audio)).
		WithField("elapsed_ms", time.Since(start).Milliseconds()).
		Debug("transcription complete")
	return &types.TranscriptionResult{Text: out.Text, Language: out.Language, Duration: out.Duration}, nil
}

func snippet(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
