package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a memory.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// ParseStatus normalizes a user supplied status filter.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Artifact is one uploaded recording ("memory") and everything derived from it.
// Result fields are nil until the pipeline fills them in.
type Artifact struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	AudioReference string    `json:"audio_url"`
	Title          *string   `json:"title"`
	Transcript     *string   `json:"transcript"`
	Summary        *string   `json:"summary"`
	KeyPoints      []string  `json:"key_points"`
	ActionItems    []string  `json:"action_items"`
	Duration       *float64  `json:"duration"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasSummary reports whether analysis results were stored.
func (a *Artifact) HasSummary() bool {
	return a != nil && a.Summary != nil
}

// ProcessingJob is the queue message that asks a worker to run the pipeline.
// CorrelationID is only a trace token; duplicate deliveries share it.
type ProcessingJob struct {
	ArtifactID     string `json:"artifact_id"`
	AudioReference string `json:"audio_reference"`
	CorrelationID  string `json:"correlation_id"`
}

// Results is a partial update of a memory. Nil fields are left untouched so
// values that were set once are never cleared.
type Results struct {
	Transcript  *string
	Summary     *string
	KeyPoints   []string
	ActionItems []string
	Title       *string
	Duration    *float64
	Status      Status
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
