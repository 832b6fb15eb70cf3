package actionable

import (
	"fmt"

	"voice-memories-go/internal/aggregator"
	"voice-memories-go/internal/types"
)

// ActionCard is the operator hint shown next to a report.
type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

const (
	failureThreshold  = 0.2
	fallbackThreshold = 0.3
)

// Generate picks the most pressing follow-up for the aggregated memories.
func Generate(ins aggregator.Insight) ActionCard {
	if ins.Total == 0 {
		return ActionCard{
			Insight: "No memories recorded yet",
			Action:  "Upload a recording to get started",
			Impact:  "None",
		}
	}
	if ins.FailureRate >= failureThreshold {
		return ActionCard{
			Insight: fmt.Sprintf("%.0f%% of memories failed to process", ins.FailureRate*100),
			Action:  "Check storage and transcription provider health, then re-trigger failed memories",
			Impact:  "Failed memories have no transcript until reprocessed",
		}
	}
	ready := ins.WithSummary + ins.TranscriptOnly
	if ready > 0 {
		degraded := float64(ins.TranscriptOnly+ins.FallbackResults) / float64(ready)
		if degraded >= fallbackThreshold {
			return ActionCard{
				Insight: fmt.Sprintf("%.0f%% of ready memories lack a real summary", degraded*100),
				Action:  "Review the analysis model and prompt, then re-trigger affected memories",
				Impact:  "Summaries and action items are missing for these memories",
			}
		}
	}
	if stuck := ins.StatusCounts[types.StatusUploading]; stuck > 0 {
		return ActionCard{
			Insight: fmt.Sprintf("%d memories are waiting in uploading", stuck),
			Action:  "Re-trigger processing once the queue is reachable",
			Impact:  "These memories will not be processed on their own",
		}
	}
	return ActionCard{
		Insight: "Processing is healthy",
		Action:  "No action needed",
		Impact:  "Low",
	}
}
