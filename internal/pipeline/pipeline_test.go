package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-memories-go/internal/events"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/pipeline"
	"voice-memories-go/internal/repository"
	"voice-memories-go/internal/testsupport"
	"voice-memories-go/internal/types"
)

// recordingRepo records every status written through it.
type recordingRepo struct {
	*repository.Repository
	mu          sync.Mutex
	transitions []types.Status
	failResults error
}

func (r *recordingRepo) UpdateStatus(ctx context.Context, id string, status types.Status) (*types.Artifact, error) {
	a, err := r.Repository.UpdateStatus(ctx, id, status)
	if err == nil {
		r.mu.Lock()
		r.transitions = append(r.transitions, status)
		r.mu.Unlock()
	}
	return a, err
}

func (r *recordingRepo) UpdateResults(ctx context.Context, id string, res types.Results) (*types.Artifact, error) {
	if r.failResults != nil {
		return nil, r.failResults
	}
	a, err := r.Repository.UpdateResults(ctx, id, res)
	if err == nil {
		r.mu.Lock()
		r.transitions = append(r.transitions, res.Status)
		r.mu.Unlock()
	}
	return a, err
}

type fakeStore struct {
	data []byte
	err  error
}

func (f *fakeStore) Get(ctx context.Context, reference string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type fakeAnalyzer struct {
	transcript      *types.TranscriptionResult
	transcribeErr   error
	analysis        types.AnalysisResult
	analyzeErr      error
	panicOnAnalyze  bool
	blockTranscribe bool
	transcribeCalls int
	analyzeCalls    int
	filename        string
}

func (f *fakeAnalyzer) Transcribe(ctx context.Context, audio []byte, filename string) (*types.TranscriptionResult, error) {
	f.transcribeCalls++
	f.filename = filename
	if f.blockTranscribe {
		<-ctx.Done()
		return nil, &types.TranscriptionError{Err: ctx.Err()}
	}
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript string, maxRetries int) (types.AnalysisResult, error) {
	f.analyzeCalls++
	if f.panicOnAnalyze {
		panic("analyzer exploded")
	}
	return f.analysis, f.analyzeErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	repo      *recordingRepo
	store     *fakeStore
	analyzer  *fakeAnalyzer
	publisher *recordingPublisher
	orch      *pipeline.Orchestrator
	job       types.ProcessingJob
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &recordingRepo{Repository: testsupport.MustOpenRepository(t)}
	if _, err := repo.Create(context.Background(), "m-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dur := 61.5
	f := &fixture{
		repo:  repo,
		store: &fakeStore{data: []byte("audio")},
		analyzer: &fakeAnalyzer{
			transcript: &types.TranscriptionResult{Text: "we decided things", Duration: &dur},
			analysis: types.AnalysisResult{
				Title:       "Decisions",
				Summary:     "The team decided several things.",
				KeyPoints:   []string{"Things decided"},
				ActionItems: []string{"Follow up"},
			},
		},
		publisher: &recordingPublisher{},
		job:       types.ProcessingJob{ArtifactID: "m-1", AudioReference: "audio/m-1.m4a", CorrelationID: "c-1"},
	}
	f.orch = pipeline.New(f.repo, f.store, f.analyzer, f.publisher, logger.Discard(), pipeline.Timeouts{}, 3)
	return f
}

func (f *fixture) load(t *testing.T) *types.Artifact {
	t.Helper()
	a, err := f.repo.GetByID(context.Background(), f.job.ArtifactID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return a
}

func statuses(evs []events.Event) []types.Status {
	out := make([]types.Status, len(evs))
	for i, ev := range evs {
		out[i] = ev.Status
	}
	return out
}

func sameStatuses(got []types.Status, want ...types.Status) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	a := f.load(t)
	if a.Status != types.StatusReady {
		t.Fatalf("expected ready, got %s", a.Status)
	}
	if a.Transcript == nil || *a.Transcript != "we decided things" || a.Title == nil || *a.Title != "Decisions" {
		t.Fatalf("results not persisted: %+v", a)
	}
	if len(a.KeyPoints) != 1 || len(a.ActionItems) != 1 || a.Duration == nil || *a.Duration != 61.5 {
		t.Fatalf("lists or duration missing: %+v", a)
	}
	if !sameStatuses(f.repo.transitions, types.StatusProcessing, types.StatusReady) {
		t.Fatalf("unexpected transitions %v", f.repo.transitions)
	}
	if !sameStatuses(statuses(f.publisher.events), types.StatusProcessing, types.StatusReady) {
		t.Fatalf("expected a notification per transition, got %v", statuses(f.publisher.events))
	}
	if f.analyzer.filename != "m-1.m4a" {
		t.Fatalf("unexpected filename hint %q", f.analyzer.filename)
	}
}

func TestProcessDownloadFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("NoSuchKey")

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("terminal failures must not propagate: %v", err)
	}
	a := f.load(t)
	if a.Status != types.StatusFailed || a.Transcript != nil {
		t.Fatalf("expected failed with no transcript, got %+v", a)
	}
	if f.analyzer.transcribeCalls != 0 || f.analyzer.analyzeCalls != 0 {
		t.Fatal("later stages must not run after a download failure")
	}
	if !sameStatuses(statuses(f.publisher.events), types.StatusProcessing, types.StatusFailed) {
		t.Fatalf("unexpected notifications %v", statuses(f.publisher.events))
	}
}

func TestProcessTranscriptionFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.analyzer.transcribeErr = &types.TranscriptionError{Err: errors.New("bad audio")}

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if a := f.load(t); a.Status != types.StatusFailed {
		t.Fatalf("expected failed, got %s", a.Status)
	}
	if f.analyzer.analyzeCalls != 0 {
		t.Fatal("analysis must not run after transcription fails")
	}
}

func TestProcessAnalysisErrorLeavesTranscriptOnly(t *testing.T) {
	f := newFixture(t)
	f.analyzer.analyzeErr = &types.AnalysisValidationError{Reason: "empty content"}

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	a := f.load(t)
	if a.Status != types.StatusReady || a.Transcript == nil {
		t.Fatalf("expected ready with transcript, got %+v", a)
	}
	if a.Summary != nil || a.Title != nil || a.KeyPoints != nil || a.ActionItems != nil {
		t.Fatalf("analysis fields must stay null, got %+v", a)
	}
	if a.Duration == nil {
		t.Fatal("duration should still be stored on the transcript-only path")
	}
}

func TestProcessFallbackAnalysisIsStored(t *testing.T) {
	f := newFixture(t)
	f.analyzer.analysis = types.FallbackAnalysis()

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	a := f.load(t)
	if a.Title == nil || *a.Title != "Untitled Memory" || a.ActionItems == nil || len(a.ActionItems) != 0 {
		t.Fatalf("fallback not persisted: %+v", a)
	}
}

func TestProcessPanicMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.analyzer.panicOnAnalyze = true

	err := f.orch.Process(context.Background(), f.job)
	if err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if a := f.load(t); a.Status != types.StatusFailed {
		t.Fatalf("crashed run must not stay processing, got %s", a.Status)
	}
}

func TestProcessMissingMemory(t *testing.T) {
	f := newFixture(t)
	f.job.ArtifactID = "ghost"

	err := f.orch.Process(context.Background(), f.job)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatal("nothing should be published for a missing memory")
	}
}

func TestProcessPublisherFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("redis down")

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("publisher failure must not fail the run: %v", err)
	}
	if a := f.load(t); a.Status != types.StatusReady {
		t.Fatalf("expected ready, got %s", a.Status)
	}
}

func TestProcessRerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		if err := f.orch.Process(context.Background(), f.job); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	a := f.load(t)
	if a.Status != types.StatusReady || *a.Summary != "The team decided several things." || len(a.KeyPoints) != 1 {
		t.Fatalf("rerun changed the outcome: %+v", a)
	}
}

func TestProcessResultWriteFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.repo.failResults = errors.New("disk full")

	err := f.orch.Process(context.Background(), f.job)
	if err == nil {
		t.Fatal("persistence failures must be returned for redelivery")
	}
	if a := f.load(t); a.Status != types.StatusFailed {
		t.Fatalf("expected best-effort failed status, got %s", a.Status)
	}
}

func TestProcessStageTimeout(t *testing.T) {
	f := newFixture(t)
	f.analyzer.blockTranscribe = true
	f.orch = pipeline.New(f.repo, f.store, f.analyzer, f.publisher, logger.Discard(),
		pipeline.Timeouts{Transcribe: 20 * time.Millisecond}, 3)

	if err := f.orch.Process(context.Background(), f.job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if a := f.load(t); a.Status != types.StatusFailed {
		t.Fatalf("timed out transcription should fail the memory, got %s", a.Status)
	}
}
