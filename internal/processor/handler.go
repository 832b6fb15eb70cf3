package processor

import (
	"context"
	"errors"
	"fmt"

	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/types"
)

// Processor runs one job. Implemented by pipeline.Orchestrator.
type Processor interface {
	Process(ctx context.Context, job types.ProcessingJob) error
}

// Handler turns a raw message body into a pipeline run.
type Handler struct {
	proc Processor
	log  *logger.Logger
}

func NewHandler(proc Processor, log *logger.Logger) *Handler {
	return &Handler{proc: proc, log: log.Component("handler")}
}

// Handle returns nil when the message is done and may be deleted. Malformed
// bodies return an error so the queue's redrive policy can park them. A job for
// a memory that no longer exists is dropped.
func (h *Handler) Handle(ctx context.Context, body string) error {
	job, err := DecodeJob(body)
	if err != nil {
		h.log.WithError(err).Error("rejecting malformed job")
		return err
	}
	if err := h.proc.Process(ctx, job); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.log.WithJob(job.ArtifactID, job.CorrelationID).Warn("memory no longer exists, dropping job")
			return nil
		}
		return fmt.Errorf("process %s: %w", job.ArtifactID, err)
	}
	return nil
}
