package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// StoreError is a failed get or put against the artifact store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("artifact store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TranscriptionError wraps any failure of the speech-to-text provider.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// AnalysisValidationError means the provider answered with no content at all.
// It is never retried.
type AnalysisValidationError struct {
	Reason string
}

func (e *AnalysisValidationError) Error() string {
	return "analysis validation failed: " + e.Reason
}

// AnalysisTransientError is a parse, schema or provider failure of one analysis
// attempt. It is retried and finally masked by the fallback result.
type AnalysisTransientError struct {
	Attempt int
	Err     error
}

func (e *AnalysisTransientError) Error() string {
	return fmt.Sprintf("analysis attempt %d: %v", e.Attempt, e.Err)
}

func (e *AnalysisTransientError) Unwrap() error { return e.Err }

// EnqueueError is a failed publish of a processing job.
type EnqueueError struct {
	ArtifactID string
	Err        error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue memory %s: %v", e.ArtifactID, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
