// Package bootstrap builds the object graph shared by the API, worker, and
// lambda binaries from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"voice-memories-go/internal/analysis"
	"voice-memories-go/internal/awsutil"
	"voice-memories-go/internal/config"
	"voice-memories-go/internal/events"
	"voice-memories-go/internal/extractor"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/memory"
	"voice-memories-go/internal/pipeline"
	"voice-memories-go/internal/processor"
	"voice-memories-go/internal/queue"
	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/storage"
	"voice-memories-go/internal/transcription"
)

// App holds every long-lived component. Close releases them.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Repo         *repository.Repository
	Store        storage.Store
	Queue        queue.Queue
	Bus          *events.EventBus
	Publisher    events.Publisher
	Subscriber   events.Subscriber
	Orchestrator *pipeline.Orchestrator
	Handler      *processor.Handler
	Memories     *memory.Service

	closers []func() error
}

// New opens storage, queue, and database and wires the pipeline. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (app *App, err error) {
	app = &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	if err := ensureDir(cfg.Database.Path); err != nil {
		return nil, err
	}
	repo, err := repository.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	app.Repo = repo
	app.closers = append(app.closers, repo.Close)

	var clients *awsutil.Clients
	needAWS := cfg.Storage.Backend == "s3" || cfg.Queue.Backend == "sqs"
	if needAWS {
		clients, err = awsutil.New(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Storage.Backend {
	case "s3":
		app.Store = storage.NewS3(clients.S3, cfg.Storage.Bucket)
	default:
		if err := ensureWritableDir(cfg.Storage.Dir); err != nil {
			return nil, err
		}
		fsStore, err := storage.NewFS(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		app.Store = fsStore
	}

	switch cfg.Queue.Backend {
	case "sqs":
		app.Queue = queue.NewSQS(clients.SQS, cfg.Queue.URL)
	default:
		if err := ensureDir(cfg.Queue.Path); err != nil {
			return nil, err
		}
		q, err := queue.OpenSQLite(ctx, cfg.Queue.Path, config.Seconds(cfg.Queue.VisibilityTimeout))
		if err != nil {
			return nil, err
		}
		app.Queue = q
		app.closers = append(app.closers, q.Close)
	}

	app.Bus = events.NewEventBus(0)
	app.Publisher = app.Bus
	app.Subscriber = app.Bus
	if cfg.Redis.Enabled {
		client, err := events.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		app.Publisher = events.Multi{app.Bus, events.NewRedisPublisher(client, cfg.Redis.Channel)}
		app.Subscriber = redisOrBus{
			redis: events.NewRedisSubscriber(client, cfg.Redis.Channel, log),
			bus:   app.Bus,
			log:   log,
		}
	}

	transcriber := transcription.New(transcription.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.WhisperModel,
		Mock:    cfg.LLM.MockTranscribe,
	}, log)
	completer := extractor.New(extractor.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Mock:        cfg.LLM.MockAnalysis,
	}, log)
	analyzer := analysis.New(transcriber, completer, log)

	app.Orchestrator = pipeline.New(app.Repo, app.Store, analyzer, app.Publisher, log, Timeouts(cfg), cfg.LLM.MaxRetries)
	app.Handler = processor.NewHandler(app.Orchestrator, log)
	app.Memories = memory.NewService(app.Repo, app.Store, app.Queue, app.Publisher, log)
	return app, nil
}

// Timeouts maps the worker section onto per-stage pipeline deadlines.
func Timeouts(cfg *config.Config) pipeline.Timeouts {
	return pipeline.Timeouts{
		Persist:    config.Seconds(cfg.Worker.PersistTimeout),
		Store:      config.Seconds(cfg.Worker.StoreTimeout),
		Transcribe: config.Seconds(cfg.Worker.TranscribeTimeout),
		Analyze:    config.Seconds(cfg.Worker.AnalyzeTimeout),
		Notify:     config.Seconds(cfg.Worker.NotifyTimeout),
	}
}

// Consumer builds the polling worker over the app's queue.
func (a *App) Consumer() *processor.Consumer {
	return processor.NewConsumer(a.Queue, a.Handler, a.Log, processor.ConsumerConfig{
		MaxMessages: a.Config.Worker.MaxMessages,
		WaitSeconds: a.Config.Worker.WaitSeconds,
		Concurrency: a.Config.Worker.Concurrency,
	})
}

// Close releases resources in reverse open order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" {
		return nil
	}
	return ensureWritableDir(dir)
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("data dir %s is not writable: %w", dir, err)
	}
	return nil
}

// redisOrBus subscribes through Redis so events from separate worker
// processes reach SSE clients, and falls back to the local bus when Redis is
// unreachable.
type redisOrBus struct {
	redis *events.RedisSubscriber
	bus   *events.EventBus
	log   *logger.Logger
}

func (s redisOrBus) Subscribe(ctx context.Context) (<-chan events.Event, func(), error) {
	ch, cancel, err := s.redis.Subscribe(ctx)
	if err == nil {
		return ch, cancel, nil
	}
	s.log.WithError(err).Warn("redis subscribe failed, using in-process events")
	return s.bus.Subscribe(ctx)
}
