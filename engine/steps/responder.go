package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/citations"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// NoResultsMessage is returned when there is nothing to answer from.
const NoResultsMessage = "I couldn't find any information in the knowledge graph for that question."

// Responder synthesizes the final answer from the accumulated results and
// appends the collected sources.
type Responder struct {
	StepID     string
	Generator  backends.TextGenerator
	Prompt     string
	MaxResults int
}

// ID implements step.Handler.
func (r *Responder) ID() string {
	if r.StepID == "" {
		return "response_generator"
	}
	return r.StepID
}

// Thinking implements step.Thinker.
func (r *Responder) Thinking() string {
	return "Composing the answer from the retrieved results..."
}

// Execute implements step.Handler.
func (r *Responder) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	md := msg.Meta()
	if len(md.Results) == 0 {
		out := msg.Reply(NoResultsMessage)
		return step.Result{Message: out, Next: step.Continue()}, nil
	}

	maxResults := r.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	shown := md.Results
	if len(shown) > maxResults {
		shown = shown[:maxResults]
	}
	resultsJSON, _ := json.Marshal(shown)

	question := md.OriginalQuery
	if question == "" {
		question = msg.Content
	}
	user := "Question: " + question + "\n\nQuery results:\n" + truncate(string(resultsJSON), 8000)

	answer, err := generate(ctx, r.Generator, r.ID(), r.Prompt, user, backends.GenOptions{})
	if err != nil {
		return step.Result{}, err
	}

	if len(md.Citations) > 0 {
		var b strings.Builder
		b.WriteString(answer)
		b.WriteString("\n\nSources:\n")
		for _, c := range md.Citations {
			b.WriteString("- ")
			b.WriteString(citations.Format(c))
			b.WriteString("\n")
		}
		answer = strings.TrimRight(b.String(), "\n")
	}

	out := msg.Reply(answer)
	return step.Result{Message: out, Next: step.Continue()}, nil
}
