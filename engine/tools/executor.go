// Package tools provides permission-gated tool execution for pipeline steps.
// Every invocation names the calling step; a tool runs only when it is active
// and the step appears on its allow list (or the list carries the wildcard).
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
)

// Wildcard on an allow list admits every step.
const Wildcard = "*"

// Handler is a function that executes a tool.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Definition defines a tool's metadata, permissions and handler.
type Definition struct {
	Name         string
	Description  string
	Category     string
	RiskLevel    string // "read_only", "write", "destructive"
	Active       bool
	AllowedSteps []string
	Handler      Handler
}

// allows reports whether stepID may invoke this tool.
func (d *Definition) allows(stepID string) bool {
	for _, allowed := range d.AllowedSteps {
		if allowed == Wildcard || allowed == stepID {
			return true
		}
	}
	return false
}

// Executor executes tools by name on behalf of steps.
type Executor struct {
	tools map[string]*Definition
	mu    sync.RWMutex
}

// NewExecutor creates an empty tool executor.
func NewExecutor() *Executor {
	return &Executor{
		tools: make(map[string]*Definition),
	}
}

// Register registers a tool.
func (e *Executor) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler is required for '%s'", def.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tools[def.Name] = def
	return nil
}

// Execute runs a tool on behalf of a step. Unknown tools, inactive tools and
// steps missing from the allow list all fail with a permission error.
func (e *Executor) Execute(ctx context.Context, stepID, toolName string, params map[string]any) (map[string]any, error) {
	e.mu.RLock()
	def, exists := e.tools[toolName]
	e.mu.RUnlock()

	if !exists {
		return nil, faults.Permissionf("tool not found: %s", toolName)
	}
	if !def.Active {
		return nil, faults.Permissionf("tool %q is not active", toolName)
	}
	if !def.allows(stepID) {
		return nil, faults.Permissionf("step %q is not allowed to use tool %q", stepID, toolName)
	}

	return def.Handler(ctx, params)
}

// CanUse reports whether a step may invoke a tool right now.
func (e *Executor) CanUse(stepID, toolName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	def, exists := e.tools[toolName]
	return exists && def.Active && def.allows(stepID)
}

// Has checks if a tool is registered.
func (e *Executor) Has(toolName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.tools[toolName]
	return exists
}

// List returns all registered tool names.
func (e *Executor) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// AllowedFor returns the names of active tools a step may use.
func (e *Executor) AllowedFor(stepID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0)
	for name, def := range e.tools {
		if def.Active && def.allows(stepID) {
			names = append(names, name)
		}
	}
	return names
}

// Registry is the interface steps depend on for tool access.
type Registry interface {
	Register(def *Definition) error
	Execute(ctx context.Context, stepID, toolName string, params map[string]any) (map[string]any, error)
	CanUse(stepID, toolName string) bool
	Has(toolName string) bool
	List() []string
}

// Ensure Executor implements Registry
var _ Registry = (*Executor)(nil)
