package steps

import (
	"context"
	"regexp"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// UnknownCategory is recorded when no category can be extracted.
const UnknownCategory = "UNKNOWN"

var categoryPattern = regexp.MustCompile(`"category"\s*:\s*"([^"]+)"`)

// Router classifies the request and jumps to the step mapped for its
// category. Unmapped or unextractable categories fall through sequentially.
type Router struct {
	StepID    string
	Generator backends.TextGenerator
	Prompt    string
	Routes    map[string]string
	Logger    logging.Logger
}

// ID implements step.Handler.
func (r *Router) ID() string { return r.StepID }

// Thinking implements step.Thinker.
func (r *Router) Thinking() string {
	return "Classifying the request to pick a route..."
}

// Execute implements step.Handler.
func (r *Router) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	reply, err := generate(ctx, r.Generator, r.StepID, r.Prompt, msg.Content, backends.GenOptions{})
	if err != nil {
		return step.Result{}, err
	}

	category := extractCategory(reply)
	out := msg.Reply(reply)
	md := out.Meta()
	md.RouteCategory = category
	md.ClassificationConfidence = 0.9

	if target, ok := r.Routes[category]; ok {
		return step.Result{Message: out, Next: step.JumpTo(target)}, nil
	}
	if r.Logger != nil {
		r.Logger.Warn("no route for category, continuing in order", "step", r.StepID, "category", category)
	}
	return step.Result{Message: out, Next: step.Continue()}, nil
}

// extractCategory pulls the category from model output: JSON first, then a
// regex over the raw text.
func extractCategory(reply string) string {
	if obj, err := records.ExtractJSON(reply); err == nil {
		if c, ok := obj["category"].(string); ok && c != "" {
			return c
		}
	}
	if m := categoryPattern.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return UnknownCategory
}
