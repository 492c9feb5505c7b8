// Package steps provides the built-in pipeline steps of the knowledge-graph
// question answering workflows: safety checks, routing, query writing, query
// execution, result assessment, answer generation and compliance review.
// Every step implements the step.Handler contract against injected backends.
package steps

import (
	"context"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/observability"
)

// generate calls the model backend and wraps failures as backend faults, so
// the step runner converts them to user-safe error envelopes.
func generate(ctx context.Context, gen backends.TextGenerator, stepID, systemPrompt, userContent string, opts backends.GenOptions) (string, error) {
	if gen == nil {
		return "", faults.Internalf("step %q has no text generator", stepID)
	}
	msgs := []backends.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent},
	}
	text, latency, err := gen.Generate(ctx, msgs, opts)
	if err != nil {
		observability.RecordGenerationCall(stepID, "error", latency.Milliseconds())
		if faults.KindOf(err) == faults.KindCancelled {
			return "", err
		}
		return "", faults.Wrap(faults.KindBackend, err, "generation failed in step %q", stepID)
	}
	observability.RecordGenerationCall(stepID, "success", latency.Milliseconds())
	return strings.TrimSpace(text), nil
}

// truncate caps a string for prompts and logs.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
