package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
)

func echoTool(name string, active bool, allowed ...string) *Definition {
	return &Definition{
		Name:         name,
		Description:  "echoes its params",
		Category:     "test",
		RiskLevel:    "read_only",
		Active:       active,
		AllowedSteps: allowed,
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return params, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	e := NewExecutor()
	assert.Error(t, e.Register(&Definition{Handler: func(ctx context.Context, p map[string]any) (map[string]any, error) { return nil, nil }}))
	assert.Error(t, e.Register(&Definition{Name: "no_handler"}))
	assert.NoError(t, e.Register(echoTool("ok", true, Wildcard)))
}

func TestExecuteAllowedStep(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("echo", true, "query_exec")))

	out, err := e.Execute(context.Background(), "query_exec", "echo", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", out["k"])
}

func TestExecuteDeniedStep(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("echo", true, "query_exec")))

	_, err := e.Execute(context.Background(), "other_step", "echo", nil)
	require.Error(t, err)
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
}

func TestExecuteInactiveTool(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("echo", false, Wildcard)))

	_, err := e.Execute(context.Background(), "any", "echo", nil)
	require.Error(t, err)
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
}

func TestExecuteUnknownTool(t *testing.T) {
	e := NewExecutor()
	_, err := e.Execute(context.Background(), "any", "ghost", nil)
	require.Error(t, err)
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
}

func TestWildcardAdmitsAnyStep(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("echo", true, Wildcard)))

	assert.True(t, e.CanUse("anything", "echo"))
	_, err := e.Execute(context.Background(), "anything", "echo", nil)
	assert.NoError(t, err)
}

func TestCanUse(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("gated", true, "a", "b")))
	require.NoError(t, e.Register(echoTool("inactive", false, Wildcard)))

	assert.True(t, e.CanUse("a", "gated"))
	assert.True(t, e.CanUse("b", "gated"))
	assert.False(t, e.CanUse("c", "gated"))
	assert.False(t, e.CanUse("a", "inactive"))
	assert.False(t, e.CanUse("a", "missing"))
}

func TestAllowedFor(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("one", true, "a")))
	require.NoError(t, e.Register(echoTool("two", true, Wildcard)))
	require.NoError(t, e.Register(echoTool("three", false, "a")))

	allowed := e.AllowedFor("a")
	assert.ElementsMatch(t, []string{"one", "two"}, allowed)
}

func TestHasAndList(t *testing.T) {
	e := NewExecutor()
	require.NoError(t, e.Register(echoTool("echo", true, Wildcard)))

	assert.True(t, e.Has("echo"))
	assert.False(t, e.Has("ghost"))
	assert.Equal(t, []string{"echo"}, e.List())
}
