package analysis

import (
	"encoding/json"
	"errors"
	"fmt"

	"voice-memories-go/internal/extractor"
	"voice-memories-go/internal/types"
)

// OutcomeKind tags the result of one analysis attempt.
type OutcomeKind int

const (
	// OutcomeSuccess carries a schema-valid result.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeEmpty means the provider answered with no content. Never retried.
	OutcomeEmpty
	// OutcomeTransient covers provider, parse and schema failures. Retried.
	OutcomeTransient
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeTransient:
		return "transient"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the classified result of one attempt.
type Outcome struct {
	Kind   OutcomeKind
	Result types.AnalysisResult
	Err    error
}

var errEmptyContent = errors.New("provider returned empty content")

// Classify turns one provider response into an Outcome. It does no I/O.
func Classify(content string, callErr error) Outcome {
	if callErr != nil {
		return Outcome{Kind: OutcomeTransient, Err: fmt.Errorf("provider: %w", callErr)}
	}
	if content == "" {
		return Outcome{Kind: OutcomeEmpty, Err: errEmptyContent}
	}

	// The content must be one JSON object, optionally wrapped in a single
	// markdown fence. Anything else is a parse failure and gets retried.
	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		inner, fenced := extractor.StripFence(content)
		if !fenced {
			return Outcome{Kind: OutcomeTransient, Err: fmt.Errorf("parse: %w", err)}
		}
		result = types.AnalysisResult{}
		if err := json.Unmarshal([]byte(inner), &result); err != nil {
			return Outcome{Kind: OutcomeTransient, Err: fmt.Errorf("parse fenced: %w", err)}
		}
	}
	if err := result.Validate(); err != nil {
		return Outcome{Kind: OutcomeTransient, Err: fmt.Errorf("schema: %w", err)}
	}
	return Outcome{Kind: OutcomeSuccess, Result: result.Normalized()}
}
