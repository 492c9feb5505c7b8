package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/config"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/fallback"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// QueryWriter turns the user question into a graph query through the
// fallback selector: an in-context-learning strategy with schema validation,
// backed by a deterministic template when the model keeps missing the schema.
type QueryWriter struct {
	StepID   string
	Selector *fallback.Selector
}

// QueryWriterConfig wires a QueryWriter. Engine, when set, supplies the
// attempt budget and strict-validation toggle for fields left unset here.
type QueryWriterConfig struct {
	StepID             string
	Generator          backends.TextGenerator
	Schema             *backends.Schema
	SystemPrompt       string
	Examples           string
	FallbackTemplate   string
	MaxPrimaryAttempts int
	Strict             bool
	Engine             *config.EngineConfig
	Logger             logging.Logger
}

// NewQueryWriter builds the step with its selector.
func NewQueryWriter(cfg QueryWriterConfig) *QueryWriter {
	stepID := cfg.StepID
	if stepID == "" {
		stepID = "query_writer"
	}
	maxAttempts := cfg.MaxPrimaryAttempts
	strict := cfg.Strict
	if cfg.Engine != nil {
		if maxAttempts == 0 {
			maxAttempts = cfg.Engine.MaxPrimaryAttempts
		}
		if cfg.Engine.StrictQueryValidation {
			strict = true
		}
	}
	if maxAttempts == 0 {
		maxAttempts = fallback.DefaultMaxPrimaryAttempts
	}
	return &QueryWriter{
		StepID: stepID,
		Selector: &fallback.Selector{
			Name: stepID,
			Primary: &ICLStrategy{
				Generator:    cfg.Generator,
				SystemPrompt: cfg.SystemPrompt,
				Examples:     cfg.Examples,
				StepID:       stepID,
			},
			Fallback:           &TemplateStrategy{Template: cfg.FallbackTemplate},
			Validate:           SchemaValidator(cfg.Schema),
			MaxPrimaryAttempts: maxAttempts,
			Strict:             strict,
			Logger:             cfg.Logger,
		},
	}
}

// ID implements step.Handler.
func (w *QueryWriter) ID() string { return w.StepID }

// Thinking implements step.Thinker.
func (w *QueryWriter) Thinking() string {
	return "Writing a graph query for the question..."
}

// Execute implements step.Handler.
func (w *QueryWriter) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	// On loop retries the message content holds the previous step's output,
	// so the first-seen question is pinned in metadata and reused.
	question := msg.Content
	original := msg.Content
	if md := msg.Metadata; md != nil {
		if md.OriginalQuery != "" {
			question = md.OriginalQuery
			original = md.OriginalQuery
		}
		if md.RewrittenQuery != "" {
			question = md.RewrittenQuery
		}
	}

	sel, err := w.Selector.Select(ctx, question)
	if err != nil {
		return step.Result{}, err
	}

	out := msg.Reply(sel.Output)
	md := out.Meta()
	md.Query = sel.Output
	md.OriginalQuery = original
	md.Approach = sel.Approach
	md.Attempts = envelope.IntPtr(sel.Attempts)
	return step.Result{Message: out, Next: step.Continue()}, nil
}

// =============================================================================
// STRATEGIES
// =============================================================================

var fencedQuery = regexp.MustCompile("(?s)```(?:cypher)?\\s*(.*?)```")

// ICLStrategy asks the model for a query using in-context examples. Rejected
// attempts are fed back as negative examples so the model steers away from
// them.
type ICLStrategy struct {
	Generator    backends.TextGenerator
	SystemPrompt string
	Examples     string
	StepID       string
}

// Name implements fallback.Strategy.
func (s *ICLStrategy) Name() string { return "icl" }

// Attempt implements fallback.Strategy.
func (s *ICLStrategy) Attempt(ctx context.Context, input string, feedback []fallback.Rejection) (string, error) {
	var b strings.Builder
	b.WriteString(input)
	for _, rej := range feedback {
		b.WriteString("\n\nA previous attempt produced this query:\n")
		b.WriteString(rej.Output)
		b.WriteString("\nIt was rejected because: ")
		b.WriteString(rej.Reason)
		b.WriteString("\nWrite a corrected query.")
	}

	system := s.SystemPrompt
	if s.Examples != "" {
		system = system + "\n\nExamples:\n" + s.Examples
	}
	reply, err := generate(ctx, s.Generator, s.StepID, system, b.String(), backends.GenOptions{})
	if err != nil {
		return "", err
	}
	return ExtractQuery(reply), nil
}

// TemplateStrategy produces a deterministic catch-all query. It never calls
// the model, so it cannot fail for backend reasons.
type TemplateStrategy struct {
	Template string
}

// DefaultFallbackTemplate matches nodes whose name mentions the question
// terms. Deliberately broad: a fallback answer beats no answer.
const DefaultFallbackTemplate = "MATCH (n) WHERE toLower(n.name) CONTAINS toLower('%s') RETURN n.name AS name, n.id AS id LIMIT 25"

// Name implements fallback.Strategy.
func (s *TemplateStrategy) Name() string { return "template" }

// Attempt implements fallback.Strategy.
func (s *TemplateStrategy) Attempt(ctx context.Context, input string, feedback []fallback.Rejection) (string, error) {
	tmpl := s.Template
	if tmpl == "" {
		tmpl = DefaultFallbackTemplate
	}
	term := strings.ReplaceAll(strings.TrimSpace(input), "'", "")
	return fmt.Sprintf(tmpl, truncate(term, 120)), nil
}

// ExtractQuery strips code fences and surrounding prose from model output.
func ExtractQuery(reply string) string {
	if m := fencedQuery.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

var (
	labelPattern = regexp.MustCompile(`\(\s*\w*\s*:\s*` + "`?" + `(\w+)` + "`?")
	relPattern   = regexp.MustCompile(`\[\s*\w*\s*:\s*` + "`?" + `(\w+)` + "`?")
)

// SchemaValidator judges a generated query against the store schema. A query
// referencing only known labels and relationship types is valid; one with no
// recognizable schema reference at all is hard-invalid, so even relaxed mode
// rejects it. Mixed queries are soft-invalid: relaxed mode lets them through
// when at least one reference is known.
func SchemaValidator(schema *backends.Schema) fallback.Validator {
	return func(output string) fallback.Verdict {
		if strings.TrimSpace(output) == "" {
			return fallback.Verdict{HardInvalid: true, Reason: "empty query"}
		}
		if schema == nil {
			return fallback.Verdict{Valid: true}
		}

		var unknown []string
		known := 0
		for _, m := range labelPattern.FindAllStringSubmatch(output, -1) {
			if schema.HasLabel(m[1]) {
				known++
			} else {
				unknown = append(unknown, "label "+m[1])
			}
		}
		for _, m := range relPattern.FindAllStringSubmatch(output, -1) {
			if schema.HasRelationship(m[1]) {
				known++
			} else {
				unknown = append(unknown, "relationship "+m[1])
			}
		}

		switch {
		case known == 0 && len(unknown) == 0:
			return fallback.Verdict{HardInvalid: true, Reason: "query references no schema elements"}
		case known == 0:
			return fallback.Verdict{HardInvalid: true, Reason: "unknown schema elements: " + strings.Join(unknown, ", ")}
		case len(unknown) > 0:
			return fallback.Verdict{Reason: "unknown schema elements: " + strings.Join(unknown, ", ")}
		default:
			return fallback.Verdict{Valid: true}
		}
	}
}
