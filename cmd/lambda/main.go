// Command lambda processes SQS batches and reports per-record failures so only
// those records are redelivered.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"voice-memories-go/internal/bootstrap"
	"voice-memories-go/internal/config"
	"voice-memories-go/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log = logger.NewWithOptions(logger.Options{
		Environment: cfg.App.Environment,
		Level:       cfg.Logging.Level,
	})

	app, err := bootstrap.New(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise components")
	}
	// the runtime freezes the process between invocations; app stays open

	log.WithField("service", "voice-memories-lambda").Info("ready for invocations")
	lambda.Start(app.Handler.HandleSQSEvent)
}
