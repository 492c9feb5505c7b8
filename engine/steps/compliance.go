package steps

import (
	"context"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// RemediatedKey marks answers whose content was replaced after review.
const RemediatedKey = "was_remediated"

// DefaultSafeMessage replaces non-compliant answers.
const DefaultSafeMessage = "I'm sorry, I can't share that answer. Please rephrase your question."

// ComplianceCheck reviews the generated answer before it leaves the pipeline.
// A flagged answer is replaced with a safe message rather than blocking the
// run: by this point the user deserves some response.
type ComplianceCheck struct {
	StepID      string
	Generator   backends.TextGenerator
	Prompt      string
	Marker      string
	SafeMessage string
}

// ID implements step.Handler.
func (c *ComplianceCheck) ID() string {
	if c.StepID == "" {
		return "compliance_check"
	}
	return c.StepID
}

// Thinking implements step.Thinker.
func (c *ComplianceCheck) Thinking() string {
	return "Reviewing the answer for compliance..."
}

// Execute implements step.Handler.
func (c *ComplianceCheck) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	marker := c.Marker
	if marker == "" {
		marker = "POLICY_VIOLATION"
	}

	reply, err := generate(ctx, c.Generator, c.ID(), c.Prompt, msg.Content, backends.GenOptions{})
	if err != nil {
		return step.Result{}, err
	}

	if strings.Contains(strings.ToUpper(reply), marker) {
		safe := c.SafeMessage
		if safe == "" {
			safe = DefaultSafeMessage
		}
		out := msg.Reply(safe)
		out.Meta().Set(RemediatedKey, true)
		return step.Result{Message: out, Next: step.Continue()}, nil
	}

	out := msg.Reply(msg.Content)
	return step.Result{Message: out, Next: step.Continue()}, nil
}
