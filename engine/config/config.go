// Package config provides engine configuration: limits, timeouts and
// behavior toggles. Infrastructure settings (store URLs, model endpoints)
// belong to the embedding service, not here. The executor and step
// constructors consume the config explicitly; there is no package-level
// instance.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/graphrag-collective/pipeline-engine/engine/fallback"
	"github.com/graphrag-collective/pipeline-engine/engine/workflow"
)

// EngineConfig holds orchestration configuration.
type EngineConfig struct {
	// Execution limits
	MaxLoopIterations   int `json:"max_loop_iterations"`
	MaxPrimaryAttempts  int `json:"max_primary_attempts"`
	MaxSubWorkflowDepth int `json:"max_sub_workflow_depth"`

	// Timeouts (seconds)
	StepTimeout     int `json:"step_timeout"`
	WorkflowTimeout int `json:"workflow_timeout"`

	// Behavior toggles
	StrictQueryValidation bool `json:"strict_query_validation"`
	CitationsEnabled      bool `json:"citations_enabled"`

	// Logging
	LogLevel string `json:"log_level"`
}

// Default returns an EngineConfig with default values.
func Default() *EngineConfig {
	return &EngineConfig{
		MaxLoopIterations:     workflow.DefaultLoopIterations,
		MaxPrimaryAttempts:    fallback.DefaultMaxPrimaryAttempts,
		MaxSubWorkflowDepth:   8,
		StepTimeout:           60,
		WorkflowTimeout:       300,
		StrictQueryValidation: false,
		CitationsEnabled:      true,
		LogLevel:              "info",
	}
}

// Validate checks value ranges.
func (c *EngineConfig) Validate() error {
	if c.MaxLoopIterations < 1 {
		return fmt.Errorf("max_loop_iterations must be at least 1")
	}
	if c.MaxPrimaryAttempts < 0 {
		return fmt.Errorf("max_primary_attempts must not be negative")
	}
	if c.MaxSubWorkflowDepth < 1 {
		return fmt.Errorf("max_sub_workflow_depth must be at least 1")
	}
	if c.StepTimeout < 0 || c.WorkflowTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// FromMap builds a config from a plain map, layered over defaults. JSON
// decoding handles the int/float64 duality of dynamic maps.
func FromMap(m map[string]any) (*EngineConfig, error) {
	cfg := Default()
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("invalid config map: %w", err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid config values: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToMap converts the config to a plain map for process boundaries.
func (c *EngineConfig) ToMap() map[string]any {
	raw, _ := json.Marshal(c)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
