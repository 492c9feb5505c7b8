// Package workflow defines workflow documents: ordered directive lists that
// reference steps, include other workflows, or loop a block of directives
// until a metadata condition is met.
package workflow

import (
	"encoding/json"
	"fmt"
)

// DefaultLoopIterations bounds loops that specify no max_iterations.
const DefaultLoopIterations = 3

// DirectiveKind discriminates the directive variants.
type DirectiveKind string

const (
	// KindStep runs a registered step.
	KindStep DirectiveKind = "step"
	// KindSubWorkflow inlines another workflow's directives.
	KindSubWorkflow DirectiveKind = "sub_workflow"
	// KindLoop repeats a directive block until its condition is met.
	KindLoop DirectiveKind = "loop"
)

// Directive is one entry of a workflow. Exactly one variant is populated.
//
// JSON forms, matching the workflow documents:
//
//	"step_id"
//	{"sub_workflow": "workflow_id"}
//	{"loop": {"condition_key": "...", "steps": [...], "max_iterations": 3}}
type Directive struct {
	Kind        DirectiveKind
	StepID      string
	SubWorkflow string
	Loop        *LoopSpec
}

// LoopSpec repeats Steps until the condition key resolves to a stop value or
// MaxIterations passes complete. The block always runs at least once.
type LoopSpec struct {
	ConditionKey  string      `json:"condition_key"`
	Steps         []Directive `json:"steps"`
	MaxIterations int         `json:"max_iterations,omitempty"`
}

// StepRef creates a step directive.
func StepRef(id string) Directive { return Directive{Kind: KindStep, StepID: id} }

// SubWorkflowRef creates a sub-workflow directive.
func SubWorkflowRef(id string) Directive { return Directive{Kind: KindSubWorkflow, SubWorkflow: id} }

// LoopOf creates a loop directive.
func LoopOf(spec LoopSpec) Directive {
	return Directive{Kind: KindLoop, Loop: &spec}
}

// UnmarshalJSON accepts the three document forms.
func (d *Directive) UnmarshalJSON(data []byte) error {
	var stepID string
	if err := json.Unmarshal(data, &stepID); err == nil {
		if stepID == "" {
			return fmt.Errorf("empty step reference")
		}
		*d = StepRef(stepID)
		return nil
	}

	var obj struct {
		SubWorkflow string    `json:"sub_workflow"`
		Loop        *LoopSpec `json:"loop"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid directive: %w", err)
	}
	switch {
	case obj.SubWorkflow != "" && obj.Loop == nil:
		*d = SubWorkflowRef(obj.SubWorkflow)
		return nil
	case obj.Loop != nil && obj.SubWorkflow == "":
		*d = Directive{Kind: KindLoop, Loop: obj.Loop}
		return nil
	default:
		return fmt.Errorf("directive must be a step id, a sub_workflow, or a loop")
	}
}

// MarshalJSON emits the document form.
func (d Directive) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case KindStep:
		return json.Marshal(d.StepID)
	case KindSubWorkflow:
		return json.Marshal(map[string]string{"sub_workflow": d.SubWorkflow})
	case KindLoop:
		return json.Marshal(map[string]*LoopSpec{"loop": d.Loop})
	default:
		return nil, fmt.Errorf("unknown directive kind: %s", d.Kind)
	}
}

// Definition is a workflow document.
type Definition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Steps       []Directive `json:"steps"`
}

// ParseDefinition decodes and validates a workflow document.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural soundness of the definition.
func (def *Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("workflow '%s' has no directives", def.ID)
	}
	return validateDirectives(def.ID, def.Steps)
}

func validateDirectives(workflowID string, directives []Directive) error {
	for i, d := range directives {
		switch d.Kind {
		case KindStep:
			if d.StepID == "" {
				return fmt.Errorf("workflow '%s' directive %d: empty step id", workflowID, i)
			}
		case KindSubWorkflow:
			if d.SubWorkflow == "" {
				return fmt.Errorf("workflow '%s' directive %d: empty sub_workflow id", workflowID, i)
			}
		case KindLoop:
			if d.Loop == nil {
				return fmt.Errorf("workflow '%s' directive %d: missing loop spec", workflowID, i)
			}
			if d.Loop.ConditionKey == "" {
				return fmt.Errorf("workflow '%s' directive %d: loop needs a condition_key", workflowID, i)
			}
			if len(d.Loop.Steps) == 0 {
				return fmt.Errorf("workflow '%s' directive %d: loop has no steps", workflowID, i)
			}
			if d.Loop.MaxIterations < 0 {
				return fmt.Errorf("workflow '%s' directive %d: negative max_iterations", workflowID, i)
			}
			if err := validateDirectives(workflowID, d.Loop.Steps); err != nil {
				return err
			}
		default:
			return fmt.Errorf("workflow '%s' directive %d: unknown kind", workflowID, i)
		}
	}
	return nil
}

// Clone deep-copies the definition so runs can snapshot it.
func (def *Definition) Clone() *Definition {
	out := *def
	out.Steps = cloneDirectives(def.Steps)
	return &out
}

func cloneDirectives(directives []Directive) []Directive {
	out := make([]Directive, len(directives))
	for i, d := range directives {
		out[i] = d
		if d.Loop != nil {
			spec := *d.Loop
			spec.Steps = cloneDirectives(d.Loop.Steps)
			out[i].Loop = &spec
		}
	}
	return out
}
