// Package memory implements the user-facing operations on memories: upload,
// manual trigger, lookup, listing, and deletion.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"voice-memories-go/internal/events"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/processor"
	"voice-memories-go/internal/queue"
	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/storage"
	"voice-memories-go/internal/types"
)

// ErrNoAudio is returned by Trigger for a memory whose upload never finished.
var ErrNoAudio = errors.New("no uploaded audio")

// ErrEmptyUpload rejects zero-byte uploads.
var ErrEmptyUpload = errors.New("uploaded file is empty")

// Repository is the persistence the service needs.
type Repository interface {
	Create(ctx context.Context, id string) (*types.Artifact, error)
	GetByID(ctx context.Context, id string) (*types.Artifact, error)
	UpdateStatus(ctx context.Context, id string, status types.Status) (*types.Artifact, error)
	SetAudioReference(ctx context.Context, id, reference string, status types.Status) (*types.Artifact, error)
	List(ctx context.Context, opts repository.ListOptions) (*repository.Page, error)
	Delete(ctx context.Context, id string) error
}

// Service wires the repository, artifact store, and job queue together.
type Service struct {
	repo      Repository
	store     storage.Store
	queue     queue.Queue
	publisher events.Publisher
	log       *logger.Logger
}

func NewService(repo Repository, store storage.Store, q queue.Queue, publisher events.Publisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{repo: repo, store: store, queue: q, publisher: publisher, log: log.Component("memory")}
}

// UploadResult reports the memory and whether its job reached the queue.
type UploadResult struct {
	Memory   *types.Artifact `json:"memory"`
	Enqueued bool            `json:"enqueued"`
	Message  string          `json:"message"`
}

// Upload creates a memory, stores its audio, and enqueues processing. A failed
// enqueue is not an error: the memory goes back to uploading and can be
// triggered later.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.webm"
	}

	id := uuid.NewString()
	log := s.log.WithField("memory_id", id)
	memory, err := s.repo.Create(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	s.notify(ctx, memory)

	key := storage.GenerateKey(id, filename)
	reference, err := s.store.Put(ctx, key, data, storage.ContentType(filename))
	if err != nil {
		log.WithError(err).Error("audio upload failed, memory left in uploading")
		return nil, err
	}

	memory, err = s.repo.SetAudioReference(ctx, id, reference, types.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("record audio reference: %w", err)
	}
	s.notify(ctx, memory)

	job := processor.NewJob(id, reference)
	if err := s.enqueue(ctx, job); err != nil {
		log.WithError(err).Warn("enqueue failed, memory can be re-triggered manually")
		if reverted, revertErr := s.repo.UpdateStatus(ctx, id, types.StatusUploading); revertErr != nil {
			log.WithError(revertErr).Error("could not revert memory to uploading")
		} else {
			memory = reverted
			s.notify(ctx, memory)
		}
		return &UploadResult{Memory: memory, Enqueued: false, Message: "Audio uploaded; processing could not be queued and can be re-triggered"}, nil
	}

	log.WithField("correlation_id", job.CorrelationID).Info("memory uploaded and queued")
	return &UploadResult{Memory: memory, Enqueued: true, Message: "Audio uploaded and processing enqueued"}, nil
}

// Trigger re-enqueues processing for an existing memory without re-uploading.
// On enqueue failure the previous status is restored and *types.EnqueueError
// is returned.
func (s *Service) Trigger(ctx context.Context, id string) (*types.Artifact, error) {
	memory, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if memory.AudioReference == "" {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNoAudio)
	}
	previous := memory.Status

	memory, err = s.repo.UpdateStatus(ctx, id, types.StatusProcessing)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, memory)

	job := processor.NewJob(id, memory.AudioReference)
	if err := s.enqueue(ctx, job); err != nil {
		if reverted, revertErr := s.repo.UpdateStatus(ctx, id, previous); revertErr != nil {
			s.log.WithField("memory_id", id).WithError(revertErr).Error("could not restore status after failed trigger")
		} else {
			s.notify(ctx, reverted)
		}
		return nil, err
	}
	s.log.WithJob(id, job.CorrelationID).Info("processing re-triggered")
	return memory, nil
}

func (s *Service) Get(ctx context.Context, id string) (*types.Artifact, error) {
	return s.repo.GetByID(ctx, id)
}

// ListResult is a page of memories plus a has-next hint.
type ListResult struct {
	*repository.Page
	HasNext bool `json:"has_next"`
}

func (s *Service) List(ctx context.Context, opts repository.ListOptions) (*ListResult, error) {
	page, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &ListResult{Page: page, HasNext: page.Page*page.PageSize < page.Total}, nil
}

// Delete removes the memory and then its audio. A failed audio delete is
// logged; the row is already gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	memory, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if memory.AudioReference != "" {
		if err := s.store.Delete(ctx, memory.AudioReference); err != nil {
			s.log.WithField("memory_id", id).WithError(err).Warn("audio delete failed")
		}
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, job types.ProcessingJob) error {
	body, err := processor.EncodeJob(job)
	if err != nil {
		return &types.EnqueueError{ArtifactID: job.ArtifactID, Err: err}
	}
	if _, err := s.queue.Send(ctx, body); err != nil {
		return &types.EnqueueError{ArtifactID: job.ArtifactID, Err: err}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, memory *types.Artifact) {
	if err := s.publisher.Publish(ctx, events.FromArtifact(memory)); err != nil {
		s.log.WithField("memory_id", memory.ID).WithError(err).Warn("status notification failed")
	}
}
