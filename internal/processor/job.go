// Package processor consumes processing jobs from the queue and hands each one
// to the pipeline. A message is acknowledged only after its run succeeded.
package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"voice-memories-go/internal/types"
)

// NewJob builds the message for artifactID with a fresh correlation id.
func NewJob(artifactID, audioReference string) types.ProcessingJob {
	return types.ProcessingJob{
		ArtifactID:     artifactID,
		AudioReference: audioReference,
		CorrelationID:  uuid.NewString(),
	}
}

// EncodeJob renders the queue body.
func EncodeJob(job types.ProcessingJob) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	return string(data), nil
}

// DecodeJob parses and validates a queue body. A missing correlation id is
// filled in so logs can still be tied together.
func DecodeJob(body string) (types.ProcessingJob, error) {
	var job types.ProcessingJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, fmt.Errorf("decode job: %w", err)
	}
	job.ArtifactID = strings.TrimSpace(job.ArtifactID)
	if _, err := uuid.Parse(job.ArtifactID); err != nil {
		return job, fmt.Errorf("decode job: artifact_id %q is not a uuid", job.ArtifactID)
	}
	if strings.TrimSpace(job.AudioReference) == "" {
		return job, errors.New("decode job: audio_reference is empty")
	}
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	return job, nil
}
