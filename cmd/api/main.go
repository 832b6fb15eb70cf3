package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"voice-memories-go/internal/bootstrap"
	"voice-memories-go/internal/config"
	"voice-memories-go/internal/logger"
)

func main() {
	cfg, err := config.Load(envOr("CONFIG_PATH", "config.toml"))
	if err != nil {
		logger.New().WithError(err).Fatal("failed to load config")
	}

	log := logger.NewWithOptions(logger.Options{
		Environment: cfg.App.Environment,
		Level:       cfg.Logging.Level,
	})
	log.WithField("service", "voice-memories-go").Info("starting service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise components")
	}
	defer app.Close()

	srv := &server{
		memories:  app.Memories,
		all:       app.Repo,
		events:    app.Subscriber,
		log:       log.Component("api"),
		maxUpload: int64(cfg.App.MaxUploadMegabytes) << 20,
		keepalive: config.Seconds(cfg.App.SSEKeepalive),
		done:      ctx.Done(),
	}

	var wg sync.WaitGroup
	if cfg.App.EmbeddedWorker {
		log.Info("embedded worker enabled")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Consumer().Run(ctx); err != nil {
				log.WithError(err).Error("embedded worker stopped")
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	log.WithField("addr", httpSrv.Addr).Info("listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	wg.Wait()
	log.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
