// Package step defines the contract between the executor and individual
// pipeline steps: the handler interface, the tagged dispatch variant, the
// lifecycle event stream, and the runner that wraps every execution with
// logging, tracing, metrics and error classification.
package step

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/observability"
)

var tracer = otel.Tracer("pipeline-engine/step")

// InternalErrorMessage is the user-safe content substituted when a step fails
// recoverably. Raw error detail goes to metadata and logs, never to the user.
const InternalErrorMessage = "I'm sorry, an internal error occurred while processing your request."

// PermissionDeniedMessage is the user-safe content for permission failures.
const PermissionDeniedMessage = "I'm sorry, this request requires an operation that is not permitted."

// Handler is the unit of work the executor schedules. Implementations must be
// safe for reuse across runs and must not retain the input message.
type Handler interface {
	ID() string
	Execute(ctx context.Context, msg *envelope.Message, sessionID string) (Result, error)
}

// Thinker is optionally implemented by handlers that announce what they are
// about to do. The line is streamed before execution.
type Thinker interface {
	Thinking() string
}

// Result is a step's output message plus its routing decision. Failed is set
// by the runner when the message is a converted error envelope rather than
// real handler output; handlers themselves never set it.
type Result struct {
	Message *envelope.Message
	Next    Dispatch
	Failed  bool
}

// Runner executes a handler with the full step lifecycle. One runner per
// handler; the executor builds them from its registry at run start.
type Runner struct {
	handler Handler
	logger  logging.Logger
	stream  StreamFunc
}

// NewRunner wraps a handler with lifecycle instrumentation.
func NewRunner(handler Handler, logger logging.Logger, stream StreamFunc) *Runner {
	return &Runner{
		handler: handler,
		logger:  logger.Bind("step", handler.ID()),
		stream:  stream,
	}
}

// ID returns the wrapped handler's id.
func (r *Runner) ID() string { return r.handler.ID() }

// Process runs the handler and classifies failures. Validation, backend and
// parse failures come back as a normal Result carrying a user-safe error
// envelope; permission failures come back as a terminal Stop result;
// cancellation is returned as an error for the executor to abort on.
func (r *Runner) Process(ctx context.Context, msg *envelope.Message, sessionID string) (Result, error) {
	ctx, span := tracer.Start(ctx, "step.process")
	span.SetAttributes(
		attribute.String("pipeline.step.id", r.handler.ID()),
		attribute.String("pipeline.session.id", sessionID),
	)
	defer span.End()

	start := time.Now()
	r.stream.Emit(Event{Type: EventStepStart, StepID: r.handler.ID(), SessionID: sessionID})
	r.logger.Info(fmt.Sprintf("%s_started", r.handler.ID()))

	if t, ok := r.handler.(Thinker); ok {
		if line := t.Thinking(); line != "" {
			r.stream.Emit(Event{Type: EventThinking, StepID: r.handler.ID(), SessionID: sessionID, Content: line})
		}
	}

	res, err := r.handler.Execute(ctx, msg, sessionID)
	durationMS := time.Since(start).Milliseconds()
	span.SetAttributes(attribute.Int64("duration_ms", durationMS))

	if err != nil {
		kind := faults.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		switch {
		case kind == faults.KindCancelled:
			observability.RecordStepExecution(r.handler.ID(), "error", durationMS)
			r.logger.Warn(fmt.Sprintf("%s_cancelled", r.handler.ID()), "duration_ms", durationMS)
			return Result{}, err
		case kind == faults.KindPermission:
			observability.RecordStepExecution(r.handler.ID(), "stopped", durationMS)
			r.logger.Error(fmt.Sprintf("%s_denied", r.handler.ID()), "error", err.Error())
			r.stream.Emit(Event{Type: EventStepError, StepID: r.handler.ID(), SessionID: sessionID, Content: err.Error(), ElapsedMS: durationMS})
			return r.denialResult(msg, err), nil
		default:
			// Recoverable and unclassified failures become error envelopes so
			// the workflow surfaces a user-safe message instead of crashing.
			observability.RecordStepExecution(r.handler.ID(), "error", durationMS)
			r.logger.Error(fmt.Sprintf("%s_error", r.handler.ID()), "kind", string(kind), "error", err.Error(), "duration_ms", durationMS)
			r.stream.Emit(Event{Type: EventStepError, StepID: r.handler.ID(), SessionID: sessionID, Content: err.Error(), ElapsedMS: durationMS})
			return r.errorResult(msg, err), nil
		}
	}

	if res.Message == nil {
		res.Message = msg.Reply("")
	}
	normalizeCounts(res.Message)

	observability.RecordStepExecution(r.handler.ID(), "success", durationMS)
	span.SetStatus(codes.Ok, "success")
	r.logger.Info(fmt.Sprintf("%s_completed", r.handler.ID()),
		"input_len", len(msg.Content),
		"output_len", len(res.Message.Content),
		"duration_ms", durationMS,
		"next", res.Next.String())
	r.stream.Emit(Event{Type: EventStepEnd, StepID: r.handler.ID(), SessionID: sessionID, ElapsedMS: durationMS})
	return res, nil
}

func (r *Runner) errorResult(msg *envelope.Message, err error) Result {
	out := msg.Reply(InternalErrorMessage)
	out.Meta().Error = err.Error()
	return Result{Message: out, Next: Continue(), Failed: true}
}

func (r *Runner) denialResult(msg *envelope.Message, err error) Result {
	out := msg.Reply(PermissionDeniedMessage)
	md := out.Meta()
	md.Error = err.Error()
	md.Blocked = true
	md.BlockReason = err.Error()
	return Result{Message: out, Next: Stop()}
}

// normalizeCounts fills the count fields from the result set when the handler
// produced results without setting them. RawResultCount always tracks the
// store's count; ResultCount is only defaulted, never overwritten, so an
// assessment that forced it to zero survives.
func normalizeCounts(msg *envelope.Message) {
	md := msg.Metadata
	if md == nil || md.Results == nil {
		return
	}
	n := len(md.Results)
	if md.RawResultCount == nil {
		md.RawResultCount = envelope.IntPtr(n)
	}
	if md.ResultCount == nil {
		md.ResultCount = envelope.IntPtr(n)
	}
}
