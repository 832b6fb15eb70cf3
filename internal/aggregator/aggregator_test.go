package aggregator_test

import (
	"testing"

	"voice-memories-go/internal/aggregator"
	"voice-memories-go/internal/types"
)

func f(v float64) *float64 { return &v }

func TestAggregate(t *testing.T) {
	fallback := types.FallbackAnalysis()
	memories := []*types.Artifact{
		{Status: types.StatusReady, Summary: types.StringPtr("s"), Title: types.StringPtr("Standup"), ActionItems: []string{"a", "b"}, Duration: f(30)},
		{Status: types.StatusReady, Transcript: types.StringPtr("t"), Duration: f(90)},
		{Status: types.StatusReady, Summary: types.StringPtr(fallback.Summary), Title: types.StringPtr(fallback.Title)},
		{Status: types.StatusFailed},
		nil,
	}
	ins := aggregator.Aggregate(memories)
	if ins.Total != 4 || ins.StatusCounts[types.StatusReady] != 3 || ins.StatusCounts[types.StatusFailed] != 1 {
		t.Fatalf("unexpected counts %+v", ins)
	}
	if ins.WithSummary != 2 || ins.TranscriptOnly != 1 || ins.FallbackResults != 1 {
		t.Fatalf("unexpected result breakdown %+v", ins)
	}
	if ins.FailureRate != 0.25 || ins.AvgDuration != 60 || ins.ActionItems != 2 {
		t.Fatalf("unexpected rates %+v", ins)
	}
	if empty := aggregator.Aggregate(nil); empty.FailureRate != 0 || empty.Total != 0 {
		t.Fatalf("empty aggregate should be zero, got %+v", empty)
	}
}
