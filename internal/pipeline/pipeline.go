// Package pipeline runs one processing job through its stages:
// processing -> download -> transcribe -> analyze -> ready, or failed when a
// terminal stage breaks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"voice-memories-go/internal/events"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/storage"
	"voice-memories-go/internal/types"
)

// Repository is the persistence the orchestrator needs.
type Repository interface {
	UpdateStatus(ctx context.Context, id string, status types.Status) (*types.Artifact, error)
	UpdateResults(ctx context.Context, id string, res types.Results) (*types.Artifact, error)
}

// Store fetches uploaded audio.
type Store interface {
	Get(ctx context.Context, reference string) ([]byte, error)
}

// Analyzer is implemented by analysis.Client.
type Analyzer interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error)
	Analyze(ctx context.Context, transcript string, maxRetries int) (types.AnalysisResult, error)
}

// Timeouts bound each external call.
type Timeouts struct {
	Persist    time.Duration
	Store      time.Duration
	Transcribe time.Duration
	Analyze    time.Duration
	Notify     time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Persist <= 0 {
		t.Persist = 15 * time.Second
	}
	if t.Store <= 0 {
		t.Store = time.Minute
	}
	if t.Transcribe <= 0 {
		t.Transcribe = 5 * time.Minute
	}
	if t.Analyze <= 0 {
		t.Analyze = 2 * time.Minute
	}
	if t.Notify <= 0 {
		t.Notify = 5 * time.Second
	}
	return t
}

// Orchestrator drives the memory state machine for one job at a time. It is
// safe for concurrent use; runs share nothing but the injected clients.
type Orchestrator struct {
	repo       Repository
	store      Store
	analyzer   Analyzer
	publisher  events.Publisher
	log        *logger.Logger
	timeouts   Timeouts
	maxRetries int
}

func New(repo Repository, store Store, analyzer Analyzer, publisher events.Publisher, log *logger.Logger, timeouts Timeouts, maxRetries int) *Orchestrator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Orchestrator{
		repo:       repo,
		store:      store,
		analyzer:   analyzer,
		publisher:  publisher,
		log:        log.Component("pipeline"),
		timeouts:   timeouts.withDefaults(),
		maxRetries: maxRetries,
	}
}

// Process runs every stage for job. Terminal stage failures are recorded as
// status failed and return nil; the message is then done. A non-nil error means
// the job should be redelivered (persistence trouble, missing memory, panic).
func (o *Orchestrator) Process(ctx context.Context, job types.ProcessingJob) (err error) {
	log := o.log.WithJob(job.ArtifactID, job.CorrelationID)
	started := time.Now()
	claimed := false

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.WithField("panic", fmt.Sprint(r)).Error("pipeline run panicked")
		if claimed {
			if failErr := o.fail(ctx, log, job.ArtifactID, "panic", fmt.Errorf("%v", r)); failErr != nil {
				log.WithError(failErr).Error("could not mark memory failed after panic")
			}
		}
		err = fmt.Errorf("pipeline panic: %v", r)
	}()

	// Stage 1: claim.
	artifact, err := o.updateStatus(ctx, job.ArtifactID, types.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	claimed = true
	o.notify(ctx, log, artifact)

	// Stage 2: download. Terminal.
	audio, err := o.download(ctx, job.AudioReference)
	if err != nil {
		return o.fail(ctx, log, job.ArtifactID, "download", err)
	}

	// Stage 3: transcribe. Terminal.
	transcript, err := o.transcribe(ctx, audio, storage.FilenameHint(job.AudioReference))
	if err != nil {
		return o.fail(ctx, log, job.ArtifactID, "transcribe", err)
	}

	// Stage 4: analyze. Any error leaves a transcript-only memory.
	results := types.Results{
		Transcript: types.StringPtr(transcript.Text),
		Duration:   transcript.Duration,
		Status:     types.StatusReady,
	}
	analysis, analysisErr := o.analyze(ctx, transcript.Text)
	if analysisErr != nil {
		log.WithError(analysisErr).Warn("analysis failed, storing transcript only")
	} else {
		results.Title = types.StringPtr(analysis.Title)
		results.Summary = types.StringPtr(analysis.Summary)
		results.KeyPoints = analysis.KeyPoints
		results.ActionItems = analysis.ActionItems
		if results.ActionItems == nil {
			results.ActionItems = []string{}
		}
	}

	// Stage 5: persist.
	artifact, err = o.updateResults(ctx, job.ArtifactID, results)
	if err != nil {
		if failErr := o.fail(ctx, log, job.ArtifactID, "persist", err); failErr != nil {
			log.WithError(failErr).Error("could not mark memory failed")
		}
		return fmt.Errorf("persist results: %w", err)
	}
	o.notify(ctx, log, artifact)

	log.WithFields(logrus.Fields{
		"elapsed_ms":     time.Since(started).Milliseconds(),
		"transcript_len": len(transcript.Text),
		"has_summary":    artifact.HasSummary(),
		"fallback":       analysisErr == nil && analysis.Fallback,
	}).Info("memory ready")
	return nil
}

func (o *Orchestrator) updateStatus(ctx context.Context, id string, status types.Status) (*types.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Persist)
	defer cancel()
	return o.repo.UpdateStatus(ctx, id, status)
}

func (o *Orchestrator) updateResults(ctx context.Context, id string, res types.Results) (*types.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Persist)
	defer cancel()
	return o.repo.UpdateResults(ctx, id, res)
}

func (o *Orchestrator) download(ctx context.Context, reference string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Store)
	defer cancel()
	data, err := o.store.Get(ctx, reference)
	if err != nil {
		var storeErr *types.StoreError
		if !errors.As(err, &storeErr) {
			err = &types.StoreError{Op: "get", Key: reference, Err: err}
		}
		return nil, err
	}
	return data, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Transcribe)
	defer cancel()
	return o.analyzer.Transcribe(ctx, audio, filename)
}

func (o *Orchestrator) analyze(ctx context.Context, transcript string) (types.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Analyze)
	defer cancel()
	return o.analyzer.Analyze(ctx, transcript, o.maxRetries)
}

// fail records a terminal stage failure. It returns an error only when the
// failed status itself could not be written.
func (o *Orchestrator) fail(ctx context.Context, log *logger.Logger, id, stage string, cause error) error {
	log.WithError(cause).WithField("stage", stage).Error("pipeline stage failed")
	artifact, err := o.updateStatus(ctx, id, types.StatusFailed)
	if err != nil {
		return fmt.Errorf("mark failed after %s: %w", stage, err)
	}
	o.notify(ctx, log, artifact)
	return nil
}

// notify publishes the transition. Failures are logged and otherwise ignored.
func (o *Orchestrator) notify(ctx context.Context, log *logger.Logger, artifact *types.Artifact) {
	if artifact == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Notify)
	defer cancel()
	if err := o.publisher.Publish(ctx, events.FromArtifact(artifact)); err != nil {
		log.WithError(err).WithField("status", artifact.Status).Warn("status notification failed")
	}
}
