package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// Assessment categories.
const (
	AssessmentNoResults      = "no_results"
	AssessmentPartialResults = "partial_results"
	AssessmentGoodResults    = "good_results"
)

// Assessor inspects the result set and writes the loop feedback signal: the
// raw count always reflects what the store returned, while the effective
// count is forced to zero for empty or partial result sets so a surrounding
// retry loop runs again. Purely derived from Results, so re-assessing an
// already assessed message changes nothing.
type Assessor struct {
	StepID string
}

// ID implements step.Handler.
func (a *Assessor) ID() string {
	if a.StepID == "" {
		return "result_assessor"
	}
	return a.StepID
}

// Thinking implements step.Thinker.
func (a *Assessor) Thinking() string {
	return "Assessing the quality of the query results..."
}

// Execute implements step.Handler.
func (a *Assessor) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	var results []records.Record
	if msg.Metadata != nil {
		results = msg.Metadata.Results
	}

	raw := len(results)
	withNulls := records.CountWithNulls(results)

	var category, explanation string
	effective := raw
	switch {
	case raw == 0:
		category = AssessmentNoResults
		explanation = "The query returned no results."
		effective = 0
	case withNulls > 0:
		category = AssessmentPartialResults
		explanation = fmt.Sprintf("%d of %d results have missing values.", withNulls, raw)
		effective = 0
	default:
		category = AssessmentGoodResults
		explanation = fmt.Sprintf("The query returned %d complete results.", raw)
	}

	summary, _ := json.Marshal(map[string]any{
		"assessment":       category,
		"explanation":      explanation,
		"result_count":     effective,
		"raw_result_count": raw,
	})

	out := msg.Reply(string(summary))
	md := out.Meta()
	md.Assessment = category
	md.AssessmentExplanation = explanation
	md.ResultCount = envelope.IntPtr(effective)
	md.RawResultCount = envelope.IntPtr(raw)
	return step.Result{Message: out, Next: step.Continue()}, nil
}
