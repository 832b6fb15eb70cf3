// internal/types/analysis.go
package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 200
	MinSummaryLength = 10
	MaxKeyPoints     = 10
)

// TranscriptionResult is what the speech-to-text provider returns.
type TranscriptionResult struct {
	Text     string   `json:"text"`
	Language string   `json:"language,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// AnalysisResult is the structured knowledge extracted from a transcript.
type AnalysisResult struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`

	// Fallback marks the placeholder result returned after every attempt failed.
	Fallback bool `json:"-"`
}

// Validate enforces the schema the analysis prompt asks the model to follow.
func (a AnalysisResult) Validate() error {
	var errs []error
	if n := utf8.RuneCountInString(a.Title); n < 1 || n > MaxTitleLength {
		errs = append(errs, fmt.Errorf("title length %d outside 1..%d", n, MaxTitleLength))
	}
	if n := utf8.RuneCountInString(a.Summary); n < MinSummaryLength {
		errs = append(errs, fmt.Errorf("summary length %d below %d", n, MinSummaryLength))
	}
	switch n := len(a.KeyPoints); {
	case n == 0:
		errs = append(errs, errors.New("at least one key point is required"))
	case n > MaxKeyPoints:
		errs = append(errs, fmt.Errorf("%d key points exceeds %d", n, MaxKeyPoints))
	default:
		nonEmpty := false
		for _, kp := range a.KeyPoints {
			if strings.TrimSpace(kp) != "" {
				nonEmpty = true
				break
			}
		}
		if !nonEmpty {
			errs = append(errs, errors.New("key points are all empty"))
		}
	}
	return errors.Join(errs...)
}

// Normalized returns a copy with a non-nil action item list.
func (a AnalysisResult) Normalized() AnalysisResult {
	if a.ActionItems == nil {
		a.ActionItems = []string{}
	}
	return a
}

// FallbackAnalysis is stored when the model never produced a valid result.
func FallbackAnalysis() AnalysisResult {
	return AnalysisResult{
		Title:       "Untitled Memory",
		Summary:     "Summary could not be generated. Please review the transcript.",
		KeyPoints:   []string{"Processing failed - review transcript manually"},
		ActionItems: []string{},
		Fallback:    true,
	}
}
