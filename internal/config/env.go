package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	flag := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}

	str("PORT", &c.App.Port)
	str("ENVIRONMENT", &c.App.Environment)
	flag("EMBEDDED_WORKER", &c.App.EmbeddedWorker)
	str("LOG_LEVEL", &c.Logging.Level)

	str("AWS_REGION", &c.AWS.Region)
	str("AWS_ENDPOINT_URL", &c.AWS.Endpoint)

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("S3_BUCKET_NAME", &c.Storage.Bucket)
	str("STORAGE_DIR", &c.Storage.Dir)

	str("QUEUE_BACKEND", &c.Queue.Backend)
	str("SQS_QUEUE_URL", &c.Queue.URL)
	str("QUEUE_PATH", &c.Queue.Path)
	num("QUEUE_VISIBILITY_TIMEOUT", &c.Queue.VisibilityTimeout)

	str("DATABASE_PATH", &c.Database.Path)

	str("OPENAI_API_KEY", &c.LLM.APIKey)
	str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	str("OPENAI_MODEL", &c.LLM.Model)
	str("WHISPER_MODEL", &c.LLM.WhisperModel)
	flag("USE_MOCK_TRANSCRIBE", &c.LLM.MockTranscribe)
	flag("USE_MOCK_LLM", &c.LLM.MockAnalysis)

	flag("REDIS_ENABLED", &c.Redis.Enabled)
	str("REDIS_URL", &c.Redis.URL)

	num("WORKER_CONCURRENCY", &c.Worker.Concurrency)
	num("WORKER_MAX_MESSAGES", &c.Worker.MaxMessages)
	num("WORKER_WAIT_SECONDS", &c.Worker.WaitSeconds)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) normalize() {
	c.App.Environment = strings.ToLower(strings.TrimSpace(c.App.Environment))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = defaultMaxRetries
	}
}
