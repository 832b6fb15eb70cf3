package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// App holds HTTP surface settings.
type App struct {
	Port               string `toml:"port"`
	Environment        string `toml:"environment"`
	MaxUploadMegabytes int    `toml:"max_upload_megabytes"`
	SSEKeepalive       int    `toml:"sse_keepalive_seconds"`
	EmbeddedWorker     bool   `toml:"embedded_worker"`
}

// AWS holds shared SDK settings. Endpoint points at LocalStack in development.
type AWS struct {
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// Storage selects the artifact store.
type Storage struct {
	Backend string `toml:"backend"` // s3 | fs
	Bucket  string `toml:"bucket"`
	Dir     string `toml:"dir"`
}

// Queue selects the job queue.
type Queue struct {
	Backend           string `toml:"backend"` // sqs | sqlite
	URL               string `toml:"url"`
	Path              string `toml:"path"`
	VisibilityTimeout int    `toml:"visibility_timeout_seconds"`
}

type Database struct {
	Path string `toml:"path"`
}

// LLM covers both the transcription and the analysis provider.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	WhisperModel   string  `toml:"whisper_model"`
	Temperature    float64 `toml:"temperature"`
	MaxRetries     int     `toml:"max_retries"`
	MockTranscribe bool    `toml:"mock_transcribe"`
	MockAnalysis   bool    `toml:"mock_analysis"`
}

type Redis struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Channel string `toml:"channel"`
}

// Worker tunes the consumer loop. Timeouts are seconds.
type Worker struct {
	MaxMessages       int `toml:"max_messages"`
	WaitSeconds       int `toml:"wait_seconds"`
	Concurrency       int `toml:"concurrency"`
	StoreTimeout      int `toml:"store_timeout"`
	TranscribeTimeout int `toml:"transcribe_timeout"`
	AnalyzeTimeout    int `toml:"analyze_timeout"`
	NotifyTimeout     int `toml:"notify_timeout"`
	PersistTimeout    int `toml:"persist_timeout"`
	StuckAfterMinutes int `toml:"stuck_after_minutes"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Config is the full set of knobs for the API, worker, and lambda binaries.
type Config struct {
	App      App      `toml:"app"`
	AWS      AWS      `toml:"aws"`
	Storage  Storage  `toml:"storage"`
	Queue    Queue    `toml:"queue"`
	Database Database `toml:"database"`
	LLM      LLM      `toml:"llm"`
	Redis    Redis    `toml:"redis"`
	Worker   Worker   `toml:"worker"`
	Logging  Logging  `toml:"logging"`
}

// Load reads the optional TOML file at path, then the .env file, then the
// environment. An empty or missing path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const (
	// MaxTemperature keeps analysis output close to deterministic.
	MaxTemperature = 0.5
	// MaxAnalysisAttempts bounds the retry schedule (the last wait is 2^9s).
	MaxAnalysisAttempts = 10
)

// RunBudget is the longest one pipeline run can take with the configured
// stage timeouts: claim, store, transcribe, analyze, persist, plus a notify
// after each of the two transitions.
func (c *Config) RunBudget() time.Duration {
	w := c.Worker
	return Seconds(2*w.PersistTimeout + w.StoreTimeout + w.TranscribeTimeout + w.AnalyzeTimeout + 2*w.NotifyTimeout)
}

// Seconds converts a config value in seconds to a duration.
func Seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

// IsLocal reports whether the process runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.App.Environment == "" || c.App.Environment == "local"
}

func (c *Config) Addr() string {
	return ":" + c.App.Port
}
