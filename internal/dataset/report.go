package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"voice-memories-go/internal/actionable"
	"voice-memories-go/internal/aggregator"
	"voice-memories-go/internal/types"
)

const (
	memoriesSheet = "Memories"
	summarySheet  = "Summary"
)

var reportHeader = []any{"ID", "Status", "Title", "Summary", "Key Points", "Action Items", "Duration (s)", "Created", "Updated"}

// WriteReport saves one row per memory plus a summary sheet built from the
// aggregated insight and its action card.
func WriteReport(path string, memories []*types.Artifact) (aggregator.Insight, error) {
	ins := aggregator.Aggregate(memories)
	card := actionable.Generate(ins)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", memoriesSheet); err != nil {
		return ins, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(memoriesSheet, "A1", &reportHeader); err != nil {
		return ins, fmt.Errorf("write header: %w", err)
	}
	for i, m := range memories {
		row := []any{
			m.ID,
			string(m.Status),
			deref(m.Title),
			deref(m.Summary),
			strings.Join(m.KeyPoints, "\n"),
			strings.Join(m.ActionItems, "\n"),
			durationCell(m.Duration),
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return ins, err
		}
		if err := f.SetSheetRow(memoriesSheet, cell, &row); err != nil {
			return ins, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return ins, fmt.Errorf("add summary sheet: %w", err)
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Total memories", ins.Total},
		{"Ready", ins.StatusCounts[types.StatusReady]},
		{"Processing", ins.StatusCounts[types.StatusProcessing]},
		{"Uploading", ins.StatusCounts[types.StatusUploading]},
		{"Failed", ins.StatusCounts[types.StatusFailed]},
		{"With summary", ins.WithSummary},
		{"Transcript only", ins.TranscriptOnly},
		{"Fallback results", ins.FallbackResults},
		{"Failure rate", ins.FailureRate},
		{"Average duration (s)", ins.AvgDuration},
		{"Action items", ins.ActionItems},
		{},
		{"Insight", card.Insight},
		{"Action", card.Action},
		{"Impact", card.Impact},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return ins, fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return ins, fmt.Errorf("save report: %w", err)
	}
	return ins, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func durationCell(d *float64) any {
	if d == nil {
		return ""
	}
	return *d
}
