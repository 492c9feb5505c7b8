// Package executor runs workflows: it walks a definition's directives in
// order, executes steps through the step runner, inlines sub-workflows,
// repeats loop blocks until their condition is met, and applies each step's
// dispatch decision. Registries are injected; the executor holds no globals.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/graphrag-collective/pipeline-engine/engine/config"
	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/observability"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
	"github.com/graphrag-collective/pipeline-engine/engine/workflow"
)

var tracer = otel.Tracer("pipeline-engine/executor")

// maxJumpTransitions bounds jump routing within one run, so two steps that
// jump to each other cannot cycle forever outside any loop ceiling.
const maxJumpTransitions = 64

// =============================================================================
// RUN STATE
// =============================================================================

// RunState is the lifecycle state of a workflow run.
type RunState string

const (
	// StateReady means the run has not started.
	StateReady RunState = "ready"
	// StateRunning means directives are being executed.
	StateRunning RunState = "running"
	// StateCompleted means the directive list was exhausted.
	StateCompleted RunState = "completed"
	// StateTerminatedEarly means a step issued a Stop dispatch.
	StateTerminatedEarly RunState = "terminated_early"
	// StateFailed means the run aborted (cancellation, unresolvable ids).
	StateFailed RunState = "failed"
)

// Run termination reasons.
const (
	ReasonAllStepsDone   = "all_steps_done"
	ReasonStepRequested  = "stop_requested_by_step"
	ReasonStepError      = "step_error"
	ReasonCancelled      = "cancelled"
	ReasonUnknownStep    = "unknown_step"
	ReasonUnknownFlow    = "unknown_workflow"
	ReasonNestingTooDeep = "sub_workflow_nesting_too_deep"
	ReasonJumpLimit      = "jump_transition_limit_exceeded"
)

// RunResult summarizes one workflow run.
type RunResult struct {
	RunID         string            `json:"run_id"`
	WorkflowID    string            `json:"workflow_id"`
	State         RunState          `json:"state"`
	Reason        string            `json:"reason"`
	Final         *envelope.Message `json:"final,omitempty"`
	StepsExecuted int               `json:"steps_executed"`
	DurationMS    int64             `json:"duration_ms"`
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs registered workflows over registered steps.
type Executor struct {
	steps     workflow.StepRegistry
	workflows workflow.WorkflowRegistry
	cfg       *config.EngineConfig
	logger    logging.Logger
	stream    step.StreamFunc
}

// New creates an executor with default limits over the given registries. The
// stream may be nil.
func New(steps workflow.StepRegistry, workflows workflow.WorkflowRegistry, logger logging.Logger, stream step.StreamFunc) *Executor {
	return NewWithConfig(steps, workflows, nil, logger, stream)
}

// NewWithConfig creates an executor whose loop default, nesting depth and
// timeouts come from the given config. A nil config uses the defaults.
func NewWithConfig(steps workflow.StepRegistry, workflows workflow.WorkflowRegistry, cfg *config.EngineConfig, logger logging.Logger, stream step.StreamFunc) *Executor {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		steps:     steps,
		workflows: workflows,
		cfg:       cfg,
		logger:    logger,
		stream:    stream,
	}
}

// runState carries the accumulated position of one run across nesting levels.
type runState struct {
	runID      string
	workflowID string
	sessionID  string
	current    *envelope.Message
	steps      int
	jumps      int
	stopped    bool
	errored    bool
	failReason string
}

// Run executes a workflow to completion. The input message is never mutated;
// the accumulated metadata starts from a deep copy of it. The returned error
// is non-nil exactly when the run failed (cancellation or unresolvable ids);
// early termination and step errors are successful runs with their state and
// reason set.
func (e *Executor) Run(ctx context.Context, workflowID string, input *envelope.Message, sessionID string) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "executor.run")
	span.SetAttributes(
		attribute.String("pipeline.workflow.id", workflowID),
		attribute.String("pipeline.session.id", sessionID),
	)
	defer span.End()

	if e.cfg.WorkflowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.WorkflowTimeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result := &RunResult{
		RunID:      "run_" + uuid.New().String()[:16],
		WorkflowID: workflowID,
		State:      StateRunning,
	}
	logger := e.logger.Bind("run_id", result.RunID, "workflow", workflowID)

	def, err := e.workflows.ResolveWorkflow(workflowID)
	if err != nil {
		return e.finish(span, logger, result, start, StateFailed, ReasonUnknownFlow, nil, err)
	}

	e.stream.Emit(step.Event{Type: step.EventWorkflowStart, Workflow: workflowID, SessionID: sessionID})
	logger.Info("workflow_started", "directives", len(def.Steps))

	st := &runState{
		runID:      result.RunID,
		workflowID: workflowID,
		sessionID:  sessionID,
		current:    input.Clone(),
	}
	runErr := e.runLevel(ctx, logger, st, def.Steps, 0)
	result.StepsExecuted = st.steps

	switch {
	case runErr != nil:
		reason := st.failReason
		if reason == "" {
			reason = ReasonUnknownStep
			if faults.KindOf(runErr) == faults.KindCancelled {
				reason = ReasonCancelled
			}
		}
		return e.finish(span, logger, result, start, StateFailed, reason, st.current, runErr)
	case st.stopped:
		return e.finish(span, logger, result, start, StateTerminatedEarly, ReasonStepRequested, st.current, nil)
	case st.errored:
		return e.finish(span, logger, result, start, StateCompleted, ReasonStepError, st.current, nil)
	default:
		return e.finish(span, logger, result, start, StateCompleted, ReasonAllStepsDone, st.current, nil)
	}
}

// runLevel walks one directive list. Jumps are scoped to this level; a Stop
// or a converted step error unwinds every level above it.
func (e *Executor) runLevel(ctx context.Context, logger logging.Logger, st *runState, directives []workflow.Directive, depth int) error {
	if depth > e.cfg.MaxSubWorkflowDepth {
		st.failReason = ReasonNestingTooDeep
		return faults.Validationf("sub-workflow nesting exceeds %d levels", e.cfg.MaxSubWorkflowDepth)
	}

	for i := 0; i < len(directives); i++ {
		select {
		case <-ctx.Done():
			return faults.Wrap(faults.KindCancelled, ctx.Err(), "run cancelled")
		default:
		}

		d := directives[i]
		switch d.Kind {
		case workflow.KindStep:
			next, err := e.runStep(ctx, logger, st, d.StepID)
			if err != nil {
				return err
			}
			if st.stopped || st.errored {
				return nil
			}
			if next.IsJump() {
				target := indexOfStep(directives, next.Target())
				if target < 0 {
					logger.Warn("jump target not found at this level, continuing in order",
						"from", d.StepID, "target", next.Target())
					continue
				}
				st.jumps++
				if st.jumps > maxJumpTransitions {
					st.failReason = ReasonJumpLimit
					return faults.Validationf("run exceeded %d jump transitions", maxJumpTransitions)
				}
				i = target - 1
			}

		case workflow.KindSubWorkflow:
			sub, err := e.workflows.ResolveWorkflow(d.SubWorkflow)
			if err != nil {
				return err
			}
			logger.Debug("entering sub-workflow", "sub_workflow", d.SubWorkflow)
			if err := e.runLevel(ctx, logger, st, sub.Steps, depth+1); err != nil {
				return err
			}
			if st.stopped || st.errored {
				return nil
			}

		case workflow.KindLoop:
			if err := e.runLoop(ctx, logger, st, d.Loop, depth); err != nil {
				return err
			}
			if st.stopped || st.errored {
				return nil
			}
		}
	}
	return nil
}

// runLoop executes a loop block. The block always runs at least once; after
// each pass the condition key is read from the accumulated metadata and a
// stop value ends the loop. The iteration ceiling is absolute.
func (e *Executor) runLoop(ctx context.Context, logger logging.Logger, st *runState, spec *workflow.LoopSpec, depth int) error {
	maxIterations := spec.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxLoopIterations
	}

	iterations := 0
	for iterations < maxIterations {
		iterations++
		logger.Debug("loop_iteration", "condition_key", spec.ConditionKey, "iteration", iterations, "max", maxIterations)
		if err := e.runLevel(ctx, logger, st, spec.Steps, depth+1); err != nil {
			return err
		}
		if st.stopped || st.errored {
			break
		}
		value, ok := st.current.Meta().ConditionValue(spec.ConditionKey)
		if stopSatisfied(value, ok) {
			logger.Debug("loop_condition_met", "condition_key", spec.ConditionKey, "value", value, "iterations", iterations)
			break
		}
	}
	observability.RecordLoopIterations(st.workflowID, iterations)
	return nil
}

// runStep resolves and executes a single step, folding its output metadata
// into the accumulated record.
func (e *Executor) runStep(ctx context.Context, logger logging.Logger, st *runState, stepID string) (step.Dispatch, error) {
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.StepTimeout)*time.Second)
		defer cancel()
	}
	handler, err := e.steps.ResolveStep(stepID)
	if err != nil {
		return step.Dispatch{}, err
	}
	runner := step.NewRunner(handler, logger, e.stream)
	res, err := runner.Process(ctx, st.current, st.sessionID)
	if err != nil {
		return step.Dispatch{}, err
	}
	st.steps++
	st.current = e.accumulate(st.current, res.Message)
	if res.Failed {
		st.errored = true
		return res.Next, nil
	}
	if res.Next.IsStop() {
		st.stopped = true
	}
	return res.Next, nil
}

// accumulate folds a step's output into the run's rolling message: the output
// content becomes current, its metadata is merged over what every earlier
// step wrote.
func (e *Executor) accumulate(current, output *envelope.Message) *envelope.Message {
	if output == nil {
		return current
	}
	merged := current.Meta().Clone()
	merged.Merge(output.Metadata)
	out := output.Clone()
	out.Metadata = merged
	return out
}

func (e *Executor) finish(span trace.Span, logger logging.Logger, result *RunResult, start time.Time, state RunState, reason string, final *envelope.Message, err error) (*RunResult, error) {
	result.State = state
	result.Reason = reason
	result.Final = final
	result.DurationMS = time.Since(start).Milliseconds()

	observability.RecordWorkflowRun(result.WorkflowID, string(state), result.DurationMS)
	span.SetAttributes(
		attribute.String("pipeline.run.state", string(state)),
		attribute.String("pipeline.run.reason", reason),
		attribute.Int("pipeline.run.steps", result.StepsExecuted),
	)
	e.stream.Emit(step.Event{Type: step.EventWorkflowEnd, Workflow: result.WorkflowID, Content: string(state), ElapsedMS: result.DurationMS})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("workflow_failed", "reason", reason, "error", err.Error(), "duration_ms", result.DurationMS)
		return result, err
	}
	span.SetStatus(codes.Ok, string(state))
	logger.Info("workflow_finished", "state", string(state), "reason", reason, "steps", result.StepsExecuted, "duration_ms", result.DurationMS)
	return result, nil
}

// indexOfStep finds the position of a step directive by id at one level.
func indexOfStep(directives []workflow.Directive, stepID string) int {
	for i, d := range directives {
		if d.Kind == workflow.KindStep && d.StepID == stepID {
			return i
		}
	}
	return -1
}

// stopSatisfied interprets a loop condition value. Absent keys and
// non-positive counts keep the loop going; positive counts, true, and
// explicit stop markers end it.
func stopSatisfied(value any, ok bool) bool {
	if !ok || value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "stop" || v == "done"
	default:
		if n, isInt := records.AnyToInt(value); isInt {
			return n > 0
		}
	}
	return false
}
