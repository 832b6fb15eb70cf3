// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voice-memories-go/internal/config"
	"voice-memories-go/internal/queue"
	"voice-memories-go/internal/repository"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a local-mode config rooted in a per-test temp directory
// with both provider mocks enabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = "fs"
	cfg.Storage.Dir = filepath.Join(base, "audio")
	cfg.Queue.Backend = "sqlite"
	cfg.Queue.Path = filepath.Join(base, "queue.db")
	cfg.Database.Path = filepath.Join(base, "memories.db")
	cfg.LLM.MockTranscribe = true
	cfg.LLM.MockAnalysis = true
	cfg.Worker.WaitSeconds = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return &cfg
}

// WithLLMBaseURL points both provider clients at a test server.
func WithLLMBaseURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.LLM.BaseURL = url
		c.LLM.APIKey = "test-key"
		c.LLM.MockTranscribe = false
		c.LLM.MockAnalysis = false
	}
}

// MustOpenRepository opens a fresh repository and closes it at test end.
func MustOpenRepository(t testing.TB) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "memories.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// MustOpenQueue opens a fresh SQLite queue and closes it at test end.
func MustOpenQueue(t testing.TB, visibility time.Duration) *queue.SQLiteQueue {
	t.Helper()
	q, err := queue.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"), visibility)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}
