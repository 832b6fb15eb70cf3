// Package analysis wraps the transcription and analysis providers with the
// error contract the pipeline relies on: transcription failures are typed and
// never retried, analysis failures are retried with doubling delays and end in
// a fixed fallback result.
package analysis

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"voice-memories-go/internal/extractor"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/types"
)

// DefaultMaxRetries is the number of analysis attempts.
const DefaultMaxRetries = 3

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error)
}

// Completer runs one JSON-mode completion and returns the raw content.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client is the analysis client used by the pipeline.
type Client struct {
	transcriber Transcriber
	completer   Completer
	log         *logger.Logger
	baseDelay   time.Duration
	timer       func() backoff.Timer
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseDelay sets the delay before the second attempt. Later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithTimer replaces the timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *Client) {
		c.timer = newTimer
	}
}

func New(transcriber Transcriber, completer Completer, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		transcriber: transcriber,
		completer:   completer,
		log:         log.Component("analysis"),
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe returns the provider result or a *types.TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error) {
	res, err := c.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, &types.TranscriptionError{Err: err}
	}
	if res == nil {
		return nil, &types.TranscriptionError{Err: errors.New("provider returned no result")}
	}
	return res, nil
}

// Delay is the wait after the zero-indexed attempt fails. It saturates at
// the largest duration instead of overflowing.
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		return 0
	}
	if attempt > 62 || base > time.Duration(math.MaxInt64)>>uint(attempt) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(attempt)
}

// doubling yields base, 2*base, 4*base... with no jitter.
type doubling struct {
	base    time.Duration
	attempt int
}

func (d *doubling) NextBackOff() time.Duration {
	next := Delay(d.base, d.attempt)
	d.attempt++
	return next
}

func (d *doubling) Reset() { d.attempt = 0 }

// Analyze extracts structured notes from transcript using up to maxRetries
// attempts. Empty provider content returns *types.AnalysisValidationError at
// once. Exhausting the attempts returns the fallback result and no error. A
// cancelled ctx returns ctx.Err().
func (c *Client) Analyze(ctx context.Context, transcript string, maxRetries int) (types.AnalysisResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	system, user := extractor.BuildAnalysisPrompt(transcript)

	var (
		attempt int
		result  types.AnalysisResult
	)
	op := func() error {
		content, err := c.completer.Complete(ctx, system, user)
		outcome := Classify(content, err)
		n := attempt
		attempt++
		switch outcome.Kind {
		case OutcomeSuccess:
			result = outcome.Result
			return nil
		case OutcomeEmpty:
			return backoff.Permanent(&types.AnalysisValidationError{Reason: outcome.Err.Error()})
		default:
			return &types.AnalysisTransientError{Attempt: n, Err: outcome.Err}
		}
	}

	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait.String()).Warn("analysis attempt failed")
	}

	var timer backoff.Timer
	if c.timer != nil {
		timer = c.timer()
	}
	// WithMaxRetries treats zero as unlimited, so a single attempt needs StopBackOff.
	var schedule backoff.BackOff = &backoff.StopBackOff{}
	if maxRetries > 1 {
		schedule = backoff.WithMaxRetries(&doubling{base: c.baseDelay}, uint64(maxRetries-1))
	}
	policy := backoff.WithContext(schedule, ctx)

	err := backoff.RetryNotifyWithTimer(op, policy, notify, timer)
	if err == nil {
		return result, nil
	}

	var validation *types.AnalysisValidationError
	if errors.As(err, &validation) {
		return types.AnalysisResult{}, validation
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.AnalysisResult{}, ctxErr
	}
	c.log.WithError(err).WithField("attempts", attempt).Warn("analysis exhausted retries, using fallback")
	return types.FallbackAnalysis(), nil
}
