package workflow

import (
	"sync"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
	"github.com/graphrag-collective/pipeline-engine/engine/step"
)

// StepRegistry resolves step handlers by id. Executors receive a registry at
// construction; there is no package-level default.
type StepRegistry interface {
	ResolveStep(id string) (step.Handler, error)
	HasStep(id string) bool
}

// Registry is the map-backed implementation of both registries. Registration
// happens at wiring time; runs only read.
type Registry struct {
	mu        sync.RWMutex
	steps     map[string]step.Handler
	workflows map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps:     make(map[string]step.Handler),
		workflows: make(map[string]*Definition),
	}
}

// RegisterStep adds a step handler. A duplicate id replaces the old handler.
func (r *Registry) RegisterStep(h step.Handler) error {
	if h == nil || h.ID() == "" {
		return faults.Validationf("step handler needs an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[h.ID()] = h
	return nil
}

// RegisterWorkflow adds a validated workflow definition.
func (r *Registry) RegisterWorkflow(def *Definition) error {
	if def == nil {
		return faults.Validationf("workflow definition is nil")
	}
	if err := def.Validate(); err != nil {
		return faults.Wrap(faults.KindValidation, err, "invalid workflow")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[def.ID] = def.Clone()
	return nil
}

// ResolveStep returns the handler registered under id.
func (r *Registry) ResolveStep(id string) (step.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.steps[id]
	if !ok {
		return nil, faults.Internalf("step not registered: %s", id)
	}
	return h, nil
}

// HasStep reports whether a step id is registered.
func (r *Registry) HasStep(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.steps[id]
	return ok
}

// ResolveWorkflow returns a deep copy of the definition registered under id,
// so a running pipeline never observes later re-registration.
func (r *Registry) ResolveWorkflow(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.workflows[id]
	if !ok {
		return nil, faults.Internalf("workflow not registered: %s", id)
	}
	return def.Clone(), nil
}

// HasWorkflow reports whether a workflow id is registered.
func (r *Registry) HasWorkflow(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workflows[id]
	return ok
}

// ListWorkflows returns the registered workflow ids.
func (r *Registry) ListWorkflows() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	return ids
}

// WorkflowRegistry resolves workflow definitions by id.
type WorkflowRegistry interface {
	ResolveWorkflow(id string) (*Definition, error)
	HasWorkflow(id string) bool
}

var (
	_ StepRegistry     = (*Registry)(nil)
	_ WorkflowRegistry = (*Registry)(nil)
)
