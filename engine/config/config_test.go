package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MaxLoopIterations)
	assert.True(t, cfg.CitationsEnabled)
}

func TestValidateRanges(t *testing.T) {
	cfg := Default()
	cfg.MaxLoopIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxPrimaryAttempts = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.StepTimeout = -5
	assert.Error(t, cfg.Validate())
}

func TestFromMapLayersOverDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"max_loop_iterations": 5.0, // JSON numbers arrive as float64
		"strict_query_validation": true,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxLoopIterations)
	assert.True(t, cfg.StrictQueryValidation)
	assert.Equal(t, 60, cfg.StepTimeout) // untouched default
}

func TestFromMapRejectsInvalid(t *testing.T) {
	_, err := FromMap(map[string]any{"max_loop_iterations": 0})
	assert.Error(t, err)
}

func TestToMapRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"

	back, err := FromMap(cfg.ToMap())
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
