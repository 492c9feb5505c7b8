package executor

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
	"github.com/graphrag-collective/pipeline-engine/engine/testutil"
	"github.com/graphrag-collective/pipeline-engine/engine/workflow"
)

// Property: a loop body runs at least once and never more than its ceiling,
// and it stops the first time the condition key turns positive.
func TestLoopIterationBoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxIterations := rapid.IntRange(1, 6).Draw(t, "max_iterations")
		succeedAt := rapid.IntRange(0, 8).Draw(t, "succeed_at") // 0 = never

		reg := workflow.NewRegistry()
		runs := 0
		body := &testStep{id: "body", fn: func(msg *envelope.Message) (step.Result, error) {
			runs++
			out := msg.Reply("pass")
			if succeedAt > 0 && runs >= succeedAt {
				out.Meta().ResultCount = envelope.IntPtr(1)
			} else {
				out.Meta().ResultCount = envelope.IntPtr(0)
			}
			return step.Result{Message: out}, nil
		}}
		if err := reg.RegisterStep(body); err != nil {
			t.Fatal(err)
		}
		if err := reg.RegisterWorkflow(&workflow.Definition{
			ID: "wf",
			Steps: []workflow.Directive{workflow.LoopOf(workflow.LoopSpec{
				ConditionKey:  envelope.KeyResultCount,
				Steps:         []workflow.Directive{workflow.StepRef("body")},
				MaxIterations: maxIterations,
			})},
		}); err != nil {
			t.Fatal(err)
		}

		ex := New(reg, reg, &testutil.MockLogger{}, nil)
		result, err := ex.Run(context.Background(), "wf", envelope.NewMessage(envelope.RoleUser, "q"), "s")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.State != StateCompleted {
			t.Fatalf("unexpected state %s", result.State)
		}
		if runs < 1 {
			t.Fatalf("loop body never ran")
		}
		if runs > maxIterations {
			t.Fatalf("loop ran %d times with ceiling %d", runs, maxIterations)
		}
		if succeedAt > 0 && succeedAt <= maxIterations && runs != succeedAt {
			t.Fatalf("loop ran %d times, expected to stop at %d", runs, succeedAt)
		}
	})
}
