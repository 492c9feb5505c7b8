package steps

import (
	"context"
	"fmt"

	"github.com/graphrag-collective/pipeline-engine/engine/backends"
	"github.com/graphrag-collective/pipeline-engine/engine/citations"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
	"github.com/graphrag-collective/pipeline-engine/engine/tools"
)

// GraphQueryTool is the tool name the query executor invokes.
const GraphQueryTool = "graph_query"

// RegisterGraphQueryTool exposes a knowledge store as a permission-gated
// read-only tool. Only the listed steps may invoke it.
func RegisterGraphQueryTool(reg tools.Registry, store backends.KnowledgeStore, allowedSteps []string) error {
	return reg.Register(&tools.Definition{
		Name:         GraphQueryTool,
		Description:  "Execute a read statement against the knowledge graph",
		Category:     "retrieval",
		RiskLevel:    "read_only",
		Active:       true,
		AllowedSteps: allowedSteps,
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			statement, _ := params["statement"].(string)
			if statement == "" {
				return nil, faults.Validationf("graph_query needs a statement")
			}
			results, err := store.Query(ctx, statement)
			if err != nil {
				if faults.KindOf(err) == faults.KindCancelled {
					return nil, err
				}
				return nil, faults.Wrap(faults.KindBackend, err, "graph query failed")
			}
			return map[string]any{"results": results}, nil
		},
	})
}

// QueryExec runs the prepared query through the tool gate and attaches the
// evidence bundle for whatever the store returned.
type QueryExec struct {
	StepID    string
	Tools     tools.Registry
	Citations citations.Source
	Logger    logging.Logger
}

// ID implements step.Handler.
func (q *QueryExec) ID() string {
	if q.StepID == "" {
		return "query_exec"
	}
	return q.StepID
}

// Thinking implements step.Thinker.
func (q *QueryExec) Thinking() string {
	return "Running the query against the knowledge graph..."
}

// Execute implements step.Handler.
func (q *QueryExec) Execute(ctx context.Context, msg *envelope.Message, sessionID string) (step.Result, error) {
	logger := q.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	statement := ""
	if msg.Metadata != nil {
		statement = msg.Metadata.Query
	}
	if statement == "" {
		return step.Result{}, faults.Validationf("no query to execute")
	}

	out, err := q.Tools.Execute(ctx, q.ID(), GraphQueryTool, map[string]any{"statement": statement})
	if err != nil {
		return step.Result{}, err
	}
	results, _ := out["results"].([]records.Record)

	reply := msg.Reply(fmt.Sprintf("Found %d results.", len(results)))
	md := reply.Meta()
	md.Results = records.CloneSlice(results)
	md.RawResultCount = envelope.IntPtr(len(results))
	md.ResultCount = envelope.IntPtr(len(results))

	bundle := citations.Merge(ctx, q.Citations, results, logger)
	md.Citations = bundle.Citations
	md.CitationCount = envelope.IntPtr(bundle.Count)
	md.HasCitations = bundle.Has()

	return step.Result{Message: reply, Next: step.Continue()}, nil
}
