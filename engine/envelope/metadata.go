package envelope

import (
	"github.com/graphrag-collective/pipeline-engine/engine/citations"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

// Metadata is the typed record accumulated across the pipeline. Well-known
// fields are named; anything a custom step wants to carry goes in Extra.
// Counts use pointers so "unset" and "zero" stay distinct: ResultCount is the
// effective count (what loop conditions and downstream steps consume) while
// RawResultCount always reflects what the store returned. Assessment may force
// the effective count to zero without touching the raw count.
type Metadata struct {
	Query                    string               `json:"query,omitempty"`
	OriginalQuery            string               `json:"original_query,omitempty"`
	QueryType                string               `json:"query_type,omitempty"`
	PatternName              string               `json:"pattern_name,omitempty"`
	RewrittenQuery           string               `json:"rewritten_query,omitempty"`
	Results                  []records.Record     `json:"results,omitempty"`
	ResultCount              *int                 `json:"result_count,omitempty"`
	RawResultCount           *int                 `json:"raw_result_count,omitempty"`
	Assessment               string               `json:"assessment,omitempty"`
	AssessmentExplanation    string               `json:"assessment_explanation,omitempty"`
	Error                    string               `json:"error,omitempty"`
	Approach                 string               `json:"approach,omitempty"`
	Attempts                 *int                 `json:"attempts,omitempty"`
	Citations                []citations.Citation `json:"citations,omitempty"`
	CitationCount            *int                 `json:"citation_count,omitempty"`
	HasCitations             bool                 `json:"has_citations,omitempty"`
	RouteCategory            string               `json:"route_category,omitempty"`
	ClassificationConfidence float64              `json:"classification_confidence,omitempty"`
	SafetyCheckPassed        *bool                `json:"safety_check_passed,omitempty"`
	Blocked                  bool                 `json:"blocked,omitempty"`
	BlockReason              string               `json:"block_reason,omitempty"`
	Timestamp                string               `json:"timestamp,omitempty"`
	Extra                    map[string]any       `json:"extra,omitempty"`
}

// Well-known metadata keys, used for loop conditions and extension lookups.
const (
	KeyQuery             = "query"
	KeyOriginalQuery     = "original_query"
	KeyResults           = "results"
	KeyResultCount       = "result_count"
	KeyRawResultCount    = "raw_result_count"
	KeyAssessment        = "assessment"
	KeyError             = "error"
	KeyApproach          = "approach"
	KeyAttempts          = "attempts"
	KeyCitationCount     = "citation_count"
	KeyHasCitations      = "has_citations"
	KeyRouteCategory     = "route_category"
	KeySafetyCheckPassed = "safety_check_passed"
	KeyBlocked           = "blocked"
)

// IntPtr returns a pointer to v, for setting count fields inline.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// Clone returns a deep copy of the metadata record.
func (md *Metadata) Clone() *Metadata {
	if md == nil {
		return nil
	}
	out := *md
	out.Results = records.CloneSlice(md.Results)
	out.ResultCount = copyIntPtr(md.ResultCount)
	out.RawResultCount = copyIntPtr(md.RawResultCount)
	out.Attempts = copyIntPtr(md.Attempts)
	out.CitationCount = copyIntPtr(md.CitationCount)
	if md.SafetyCheckPassed != nil {
		v := *md.SafetyCheckPassed
		out.SafetyCheckPassed = &v
	}
	if md.Citations != nil {
		out.Citations = make([]citations.Citation, len(md.Citations))
		copy(out.Citations, md.Citations)
	}
	if md.Extra != nil {
		out.Extra = make(map[string]any, len(md.Extra))
		for k, v := range md.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// Merge folds other into md: set fields of other win, unset fields keep md's
// value, Extra keys merge with other's entries taking precedence. Plain bool
// fields only propagate when other set them true; their pointer companions
// carry the authoritative signal.
func (md *Metadata) Merge(other *Metadata) {
	if other == nil {
		return
	}
	mergeString(&md.Query, other.Query)
	mergeString(&md.OriginalQuery, other.OriginalQuery)
	mergeString(&md.QueryType, other.QueryType)
	mergeString(&md.PatternName, other.PatternName)
	mergeString(&md.RewrittenQuery, other.RewrittenQuery)
	mergeString(&md.Assessment, other.Assessment)
	mergeString(&md.AssessmentExplanation, other.AssessmentExplanation)
	mergeString(&md.Error, other.Error)
	mergeString(&md.Approach, other.Approach)
	mergeString(&md.RouteCategory, other.RouteCategory)
	mergeString(&md.BlockReason, other.BlockReason)
	mergeString(&md.Timestamp, other.Timestamp)
	if other.Results != nil {
		md.Results = records.CloneSlice(other.Results)
	}
	if other.ResultCount != nil {
		md.ResultCount = copyIntPtr(other.ResultCount)
	}
	if other.RawResultCount != nil {
		md.RawResultCount = copyIntPtr(other.RawResultCount)
	}
	if other.Attempts != nil {
		md.Attempts = copyIntPtr(other.Attempts)
	}
	if other.CitationCount != nil {
		md.CitationCount = copyIntPtr(other.CitationCount)
		md.HasCitations = other.HasCitations
	}
	if other.Citations != nil {
		md.Citations = make([]citations.Citation, len(other.Citations))
		copy(md.Citations, other.Citations)
	}
	if other.ClassificationConfidence != 0 {
		md.ClassificationConfidence = other.ClassificationConfidence
	}
	if other.SafetyCheckPassed != nil {
		v := *other.SafetyCheckPassed
		md.SafetyCheckPassed = &v
	}
	if other.Blocked {
		md.Blocked = true
	}
	for k, v := range other.Extra {
		md.Set(k, v)
	}
}

// Set stores an extension value.
func (md *Metadata) Set(key string, value any) {
	if md.Extra == nil {
		md.Extra = make(map[string]any)
	}
	md.Extra[key] = value
}

// Get retrieves an extension value.
func (md *Metadata) Get(key string) (any, bool) {
	v, ok := md.Extra[key]
	return v, ok
}

// ConditionValue resolves a loop condition key against the well-known fields
// first, then the extension map. Unset fields resolve to (nil, false).
func (md *Metadata) ConditionValue(key string) (any, bool) {
	if md == nil {
		return nil, false
	}
	switch key {
	case KeyResultCount:
		return derefInt(md.ResultCount)
	case KeyRawResultCount:
		return derefInt(md.RawResultCount)
	case KeyCitationCount:
		return derefInt(md.CitationCount)
	case KeyAttempts:
		return derefInt(md.Attempts)
	case KeyAssessment:
		return nonEmpty(md.Assessment)
	case KeyError:
		return nonEmpty(md.Error)
	case KeyApproach:
		return nonEmpty(md.Approach)
	case KeyRouteCategory:
		return nonEmpty(md.RouteCategory)
	case KeyHasCitations:
		return md.HasCitations, true
	case KeyBlocked:
		return md.Blocked, true
	case KeySafetyCheckPassed:
		if md.SafetyCheckPassed == nil {
			return nil, false
		}
		return *md.SafetyCheckPassed, true
	default:
		v, ok := md.Extra[key]
		return v, ok
	}
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func derefInt(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func nonEmpty(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}
