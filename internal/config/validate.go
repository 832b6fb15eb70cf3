package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Port) == "" {
		return errors.New("app.port must be set")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.URL) == "" {
		return errors.New("redis.url must be set when redis.enabled is true")
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return c.validateRunBudget()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage.bucket must be set for the s3 backend (S3_BUCKET_NAME)")
		}
	case "fs":
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("storage.dir must be set for the fs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be s3 or fs", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "sqs":
		if strings.TrimSpace(c.Queue.URL) == "" {
			return errors.New("queue.url must be set for the sqs backend (SQS_QUEUE_URL)")
		}
	case "sqlite":
		if strings.TrimSpace(c.Queue.Path) == "" {
			return errors.New("queue.path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("queue.backend %q must be sqs or sqlite", c.Queue.Backend)
	}
	if c.Queue.VisibilityTimeout <= 0 {
		return errors.New("queue.visibility_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	needsKey := !c.LLM.MockTranscribe || !c.LLM.MockAnalysis
	if needsKey && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key is required unless both mock modes are on (OPENAI_API_KEY)")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > MaxTemperature {
		return fmt.Errorf("llm.temperature must be between 0 and %.1f", MaxTemperature)
	}
	if c.LLM.MaxRetries < 1 || c.LLM.MaxRetries > MaxAnalysisAttempts {
		return fmt.Errorf("llm.max_retries must be between 1 and %d", MaxAnalysisAttempts)
	}
	return nil
}

func (c *Config) validateWorker() error {
	w := c.Worker
	if w.MaxMessages < 1 || w.MaxMessages > 10 {
		return errors.New("worker.max_messages must be between 1 and 10")
	}
	if w.WaitSeconds < 0 || w.WaitSeconds > 20 {
		return errors.New("worker.wait_seconds must be between 0 and 20")
	}
	if w.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	for name, v := range map[string]int{
		"store_timeout":      w.StoreTimeout,
		"transcribe_timeout": w.TranscribeTimeout,
		"analyze_timeout":    w.AnalyzeTimeout,
		"notify_timeout":     w.NotifyTimeout,
		"persist_timeout":    w.PersistTimeout,
	} {
		if v <= 0 {
			return fmt.Errorf("worker.%s must be positive", name)
		}
	}
	return nil
}

// validateRunBudget keeps a message invisible for as long as one pipeline run
// may take, so a slow run is not redelivered while it is still going. SQS
// queues carry their own visibility timeout and are not checked here.
func (c *Config) validateRunBudget() error {
	if c.Queue.Backend != "sqlite" {
		return nil
	}
	if budget := c.RunBudget(); Seconds(c.Queue.VisibilityTimeout) < budget {
		return fmt.Errorf("queue.visibility_timeout_seconds (%d) is shorter than one worker run (%s)",
			c.Queue.VisibilityTimeout, budget)
	}
	return nil
}
