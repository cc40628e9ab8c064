package react

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() tool.Tool {
	return tool.NewFunctionTool("echo", "Return the input text unchanged",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, _ *core.ExecutionContext, args map[string]any) (any, error) {
			return args["text"], nil
		})
}

func TestExecutor_FinishOnFirstRound(t *testing.T) {
	m := model.NewScriptedModel("Thought: t\nAction: FINISH\nAction Input: {\"x\":1}")
	e := NewExecutor(m, tool.NewRegistry())

	result, err := e.Run(context.Background(), "produce x", core.NewExecutionContext())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, map[string]any{"x": float64(1)}, result.Output)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, core.ActionFinish, result.Steps[0].Action)
}

func TestExecutor_ToolRoundThenFinish(t *testing.T) {
	m := model.NewScriptedModel(
		"Thought: use the tool\nAction: echo\nAction Input: {\"text\":\"hello\"}",
		"Thought: done\nAction: FINISH\nAction Input: hello",
	)
	e := NewExecutor(m, tool.NewRegistry(echoTool()))

	execCtx := core.NewExecutionContext()
	result, err := e.Run(context.Background(), "say hello", execCtx)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Output)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "hello", result.Steps[0].Observation)
	assert.Len(t, execCtx.Steps, 2, "steps recorded on the context")

	// The observation was fed back into the conversation.
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1][len(reqs[1])-1].Content, "Observation: hello")
}

func TestExecutor_MaxIterationsIsNonFatal(t *testing.T) {
	m := model.NewScriptedModel()
	m.SetFallback("Thought: still thinking\nAction: echo\nAction Input: {\"text\":\"again\"}")
	e := NewExecutor(m, tool.NewRegistry(echoTool()), func(o *Options) { o.MaxIterations = 3 })

	result, err := e.Run(context.Background(), "never finishes", core.NewExecutionContext())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Len(t, result.Steps, 3)
	assert.Len(t, m.Requests(), 3, "exactly three rounds")
}

func TestExecutor_UnknownToolConsumesIteration(t *testing.T) {
	m := model.NewScriptedModel(
		"Thought: try something\nAction: teleport\nAction Input: {}",
		"Thought: ok then\nAction: FINISH\nAction Input: gave up on teleporting",
	)
	e := NewExecutor(m, tool.NewRegistry(echoTool()))

	result, err := e.Run(context.Background(), "task", core.NewExecutionContext())
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Steps, 2)
	assert.Contains(t, result.Steps[0].Observation, `tool "teleport" is not available`)
	assert.Contains(t, result.Steps[0].Observation, "echo")
}

func TestExecutor_ModelFailureIsFatal(t *testing.T) {
	m := model.NewScriptedModel()
	m.FailWith(errors.New("provider down"))
	e := NewExecutor(m, tool.NewRegistry())

	_, err := e.Run(context.Background(), "task", core.NewExecutionContext())
	assert.ErrorIs(t, err, core.ErrModelFailure)
}

func TestExecutor_ToolFailureBecomesObservation(t *testing.T) {
	failing := tool.NewFunctionTool("flaky", "Fails", map[string]any{"type": "object"},
		func(_ context.Context, _ *core.ExecutionContext, _ map[string]any) (any, error) {
			return nil, errors.New("disk full")
		})
	m := model.NewScriptedModel(
		"Thought: write\nAction: flaky\nAction Input: {}",
		"Thought: report\nAction: FINISH\nAction Input: could not write",
	)
	e := NewExecutor(m, tool.NewRegistry(failing))

	result, err := e.Run(context.Background(), "task", core.NewExecutionContext())
	require.NoError(t, err)
	assert.Contains(t, result.Steps[0].Observation, "disk full")
}

func TestExecutor_ReportsProgress(t *testing.T) {
	m := model.NewScriptedModel(
		"Thought: use the tool\nAction: echo\nAction Input: {\"text\":\"x\"}",
		"Thought: done\nAction: FINISH\nAction Input: x",
	)

	var reported []core.ReActStep
	e := NewExecutor(m, tool.NewRegistry(echoTool()), func(o *Options) {
		o.OnProgress = func(step core.ReActStep) { reported = append(reported, step) }
	})

	_, err := e.Run(context.Background(), "task", core.NewExecutionContext())
	require.NoError(t, err)

	require.Len(t, reported, 2, "every step including the terminal FINISH")
	assert.Equal(t, "echo", reported[0].Action)
	assert.Equal(t, core.ActionFinish, reported[1].Action)
}

func TestExecutor_SystemPromptListsTools(t *testing.T) {
	m := model.NewScriptedModel("Action: FINISH\nAction Input: done")
	e := NewExecutor(m, tool.NewRegistry(echoTool()), func(o *Options) {
		o.SystemPrompt = "You are the level designer."
	})

	_, err := e.Run(context.Background(), "task", core.NewExecutionContext())
	require.NoError(t, err)

	sys := m.Requests()[0][0]
	assert.Equal(t, model.RoleSystem, sys.Role)
	assert.Contains(t, sys.Content, "You are the level designer.")
	assert.Contains(t, sys.Content, "echo: Return the input text unchanged")
	assert.Contains(t, sys.Content, "Action Input:")
}
