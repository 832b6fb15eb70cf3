package aggregator

import "voice-memories-go/internal/types"

// Insight summarizes a set of memories for reports and the insights endpoint.
type Insight struct {
	Total           int                  `json:"total"`
	StatusCounts    map[types.Status]int `json:"status_counts"`
	WithSummary     int                  `json:"with_summary"`
	TranscriptOnly  int                  `json:"transcript_only"`
	FallbackResults int                  `json:"fallback_results"`
	FailureRate     float64              `json:"failure_rate"`
	TotalDuration   float64              `json:"total_duration_seconds"`
	AvgDuration     float64              `json:"avg_duration_seconds"`
	ActionItems     int                  `json:"action_items"`
}

func Aggregate(memories []*types.Artifact) Insight {
	ins := Insight{StatusCounts: map[types.Status]int{}}
	fallbackTitle := types.FallbackAnalysis().Title
	withDuration := 0
	for _, m := range memories {
		if m == nil {
			continue
		}
		ins.Total++
		ins.StatusCounts[m.Status]++
		if m.Status == types.StatusReady {
			if m.Summary != nil {
				ins.WithSummary++
			} else {
				ins.TranscriptOnly++
			}
		}
		if m.Title != nil && *m.Title == fallbackTitle {
			ins.FallbackResults++
		}
		if m.Duration != nil {
			ins.TotalDuration += *m.Duration
			withDuration++
		}
		ins.ActionItems += len(m.ActionItems)
	}
	if ins.Total > 0 {
		ins.FailureRate = float64(ins.StatusCounts[types.StatusFailed]) / float64(ins.Total)
	}
	if withDuration > 0 {
		ins.AvgDuration = ins.TotalDuration / float64(withDuration)
	}
	return ins
}
