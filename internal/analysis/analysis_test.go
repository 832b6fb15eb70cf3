package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"voice-memories-go/internal/analysis"
	"voice-memories-go/internal/logger"
	"voice-memories-go/internal/types"
)

const validJSON = `{"title":"Sprint sync","summary":"Discussed the sprint goals and blockers.","key_points":["Goals agreed"],"action_items":null}`

type scriptedCompleter struct {
	responses []response
	calls     int
}

type response struct {
	content string
	err     error
}

func (s *scriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i].content, s.responses[i].err
}

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	delays []time.Duration
	ch     chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{ch: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.delays = append(r.delays, d)
	r.ch <- time.Now()
}

func (r *recordingTimer) Stop()               {}
func (r *recordingTimer) C() <-chan time.Time { return r.ch }

func newClient(c analysis.Completer, timer *recordingTimer) *analysis.Client {
	return analysis.New(nil, c, logger.Discard(),
		analysis.WithTimer(func() backoff.Timer { return timer }))
}

func equalDelays(got []time.Duration, want ...time.Duration) bool {
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

func TestAnalyzeFallbackAfterExhaustion(t *testing.T) {
	completer := &scriptedCompleter{responses: []response{{content: "not json"}}}
	timer := newRecordingTimer()

	result, err := newClient(completer, timer).Analyze(context.Background(), "transcript", 3)
	if err != nil {
		t.Fatalf("exhaustion must not surface an error: %v", err)
	}
	if completer.calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", completer.calls)
	}
	if !equalDelays(timer.delays, time.Second, 2*time.Second) {
		t.Fatalf("expected delays [1s 2s], got %v", timer.delays)
	}
	want := types.FallbackAnalysis()
	if !result.Fallback || result.Title != want.Title || result.Summary != want.Summary ||
		len(result.KeyPoints) != 1 || result.KeyPoints[0] != want.KeyPoints[0] || len(result.ActionItems) != 0 {
		t.Fatalf("unexpected fallback %+v", result)
	}
}

func TestAnalyzeEmptyContentBypassesRetries(t *testing.T) {
	completer := &scriptedCompleter{responses: []response{{content: ""}, {content: validJSON}}}
	timer := newRecordingTimer()

	_, err := newClient(completer, timer).Analyze(context.Background(), "transcript", 3)
	var validation *types.AnalysisValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected AnalysisValidationError, got %v", err)
	}
	if completer.calls != 1 || len(timer.delays) != 0 {
		t.Fatalf("expected one call and no sleep, got %d calls delays=%v", completer.calls, timer.delays)
	}
}

func TestAnalyzeRecoversAfterTransientFailures(t *testing.T) {
	completer := &scriptedCompleter{responses: []response{
		{err: errors.New("503 from provider")},
		{content: `{"title":"","summary":"too short","key_points":[]}`},
		{content: "```json\n" + validJSON + "\n```"},
	}}
	timer := newRecordingTimer()

	result, err := newClient(completer, timer).Analyze(context.Background(), "transcript", 3)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Fallback || result.Title != "Sprint sync" {
		t.Fatalf("expected parsed result, got %+v", result)
	}
	if result.ActionItems == nil || len(result.ActionItems) != 0 {
		t.Fatalf("null action items should decode to empty, got %#v", result.ActionItems)
	}
	if !equalDelays(timer.delays, time.Second, 2*time.Second) {
		t.Fatalf("unexpected delays %v", timer.delays)
	}
}

func TestAnalyzeDelaysDoublePerAttempt(t *testing.T) {
	completer := &scriptedCompleter{responses: []response{{err: errors.New("boom")}}}
	timer := newRecordingTimer()

	_, err := newClient(completer, timer).Analyze(context.Background(), "t", 4)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if completer.calls != 4 || !equalDelays(timer.delays, time.Second, 2*time.Second, 4*time.Second) {
		t.Fatalf("calls=%d delays=%v", completer.calls, timer.delays)
	}
}

func TestAnalyzeSingleAttempt(t *testing.T) {
	completer := &scriptedCompleter{responses: []response{{content: "nope"}}}
	timer := newRecordingTimer()

	result, err := newClient(completer, timer).Analyze(context.Background(), "t", 1)
	if err != nil || !result.Fallback {
		t.Fatalf("expected fallback, got %+v %v", result, err)
	}
	if completer.calls != 1 || len(timer.delays) != 0 {
		t.Fatalf("calls=%d delays=%v", completer.calls, timer.delays)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	completer := &scriptedCompleter{responses: []response{{content: validJSON}}}

	_, err := newClient(completer, newRecordingTimer()).Analyze(ctx, "t", 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		content string
		err     error
		want    analysis.OutcomeKind
	}{
		{"provider error", "", errors.New("timeout"), analysis.OutcomeTransient},
		{"empty", "", nil, analysis.OutcomeEmpty},
		{"garbage", "hello", nil, analysis.OutcomeTransient},
		{"schema: long title", `{"title":"` + strings.Repeat("x", 201) + `","summary":"long enough summary","key_points":["a"]}`, nil, analysis.OutcomeTransient},
		{"schema: blank key points", `{"title":"t","summary":"long enough summary","key_points":["  "]}`, nil, analysis.OutcomeTransient},
		{"schema: too many key points", `{"title":"t","summary":"long enough summary","key_points":["1","2","3","4","5","6","7","8","9","10","11"]}`, nil, analysis.OutcomeTransient},
		{"valid", validJSON, nil, analysis.OutcomeSuccess},
		{"fenced", "```json\n" + validJSON + "\n```", nil, analysis.OutcomeSuccess},
		{"prose around json", "Sure! Here you go: " + validJSON + " hope that helps", nil, analysis.OutcomeTransient},
		{"trailing prose after fence", "```json\n" + validJSON + "\n``` let me know", nil, analysis.OutcomeTransient},
		{"two objects", validJSON + validJSON, nil, analysis.OutcomeTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analysis.Classify(tc.content, tc.err)
			if got.Kind != tc.want {
				t.Fatalf("Classify = %s (%v), want %s", got.Kind, got.Err, tc.want)
			}
		})
	}
}

func TestClassifyKeepsBackticksInsideValues(t *testing.T) {
	content := "{\"title\":\"Use ``` fences\",\"summary\":\"Run `go test` with ```json blocks everywhere.\",\"key_points\":[\"```\"]}"
	for name, in := range map[string]string{
		"plain":  content,
		"fenced": "```json\n" + content + "\n```",
	} {
		got := analysis.Classify(in, nil)
		if got.Kind != analysis.OutcomeSuccess {
			t.Fatalf("%s: Classify = %s (%v)", name, got.Kind, got.Err)
		}
		if got.Result.Title != "Use ``` fences" || got.Result.Summary != "Run `go test` with ```json blocks everywhere." {
			t.Fatalf("%s: values were altered: %+v", name, got.Result)
		}
	}
}

type fakeTranscriber struct {
	err error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) (*types.TranscriptionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.TranscriptionResult{Text: "hi"}, nil
}

func TestTranscribeWrapsErrors(t *testing.T) {
	boom := errors.New("provider down")
	client := analysis.New(fakeTranscriber{err: boom}, nil, logger.Discard())
	_, err := client.Transcribe(context.Background(), []byte("a"), "a.webm")
	var terr *types.TranscriptionError
	if !errors.As(err, &terr) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped TranscriptionError, got %v", err)
	}

	ok := analysis.New(fakeTranscriber{}, nil, logger.Discard())
	res, err := ok.Transcribe(context.Background(), []byte("a"), "a.webm")
	if err != nil || res.Text != "hi" {
		t.Fatalf("Transcribe: %+v %v", res, err)
	}
}

func TestDelay(t *testing.T) {
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		if got := analysis.Delay(time.Second, attempt); got != want {
			t.Fatalf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
	for _, attempt := range []int{33, 34, 40, 63, 100} {
		got := analysis.Delay(time.Second, attempt)
		if got <= 0 || got < analysis.Delay(time.Second, 32) {
			t.Fatalf("Delay(%d) = %v, should saturate rather than overflow", attempt, got)
		}
	}
	if got := analysis.Delay(time.Second, -1); got != time.Second {
		t.Fatalf("Delay(-1) = %v", got)
	}
}
