package steps

import (
	"context"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// BlockedMessage is what the user sees when a safety check stops the run.
const BlockedMessage = "I'm sorry, I can't help with that request."

// SafetyCheck screens the user message with a guardian prompt. The model
// replies with a marker token when the content should be blocked; anything
// else passes. A blocked message stops the whole run.
type SafetyCheck struct {
	StepID    string
	Generator backends.TextGenerator
	Prompt    string
	Marker    string
	MaxTokens int
}

// NewInjectionCheck screens for prompt injection attempts.
func NewInjectionCheck(gen backends.TextGenerator, prompt string) *SafetyCheck {
	return &SafetyCheck{
		StepID:    "injection_check",
		Generator: gen,
		Prompt:    prompt,
		Marker:    "INJECTION_DETECTED",
	}
}

// NewPolicyCheck screens for content policy violations.
func NewPolicyCheck(gen backends.TextGenerator, prompt string) *SafetyCheck {
	return &SafetyCheck{
		StepID:    "policy_check",
		Generator: gen,
		Prompt:    prompt,
		Marker:    "POLICY_VIOLATION",
	}
}

// ID implements step.Handler.
func (c *SafetyCheck) ID() string { return c.StepID }

// Thinking implements step.Thinker.
func (c *SafetyCheck) Thinking() string {
	return "Checking the request against safety rules..."
}

// Execute implements step.Handler.
func (c *SafetyCheck) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	reply, err := generate(ctx, c.Generator, c.StepID, c.Prompt, msg.Content, backends.GenOptions{MaxTokens: c.MaxTokens})
	if err != nil {
		return step.Result{}, err
	}

	upper := strings.ToUpper(reply)
	if strings.Contains(upper, c.Marker) {
		reason := strings.TrimSpace(strings.ReplaceAll(upper, c.Marker, ""))
		if reason == "" {
			reason = "attempt to manipulate the system"
		}
		out := msg.Reply(BlockedMessage)
		md := out.Meta()
		md.SafetyCheckPassed = envelope.BoolPtr(false)
		md.Blocked = true
		md.BlockReason = reason
		return step.Result{Message: out, Next: step.Stop()}, nil
	}

	out := msg.Reply(msg.Content)
	out.Meta().SafetyCheckPassed = envelope.BoolPtr(true)
	return step.Result{Message: out, Next: step.Continue()}, nil
}
