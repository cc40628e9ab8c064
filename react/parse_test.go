package react

import (
	"testing"

	"github.com/hupe1980/agentforge/core"
	"github.com/stretchr/testify/assert"
)

func TestParseStep_FullProtocol(t *testing.T) {
	step := parseStep("Thought: I should look up the theme\nAction: read_artifact\nAction Input: {\"source\": \"gdd/main\"}")

	assert.Equal(t, "I should look up the theme", step.Thought)
	assert.Equal(t, "read_artifact", step.Action)
	assert.Equal(t, map[string]any{"source": "gdd/main"}, step.ActionInput)
}

func TestParseStep_Finish(t *testing.T) {
	step := parseStep("Thought: t\nAction: FINISH\nAction Input: {\"x\":1}")

	assert.Equal(t, core.ActionFinish, step.Action)
	assert.Equal(t, map[string]any{"x": float64(1)}, step.ActionInput)
}

func TestParseStep_RawStringInput(t *testing.T) {
	step := parseStep("Thought: done\nAction: FINISH\nAction Input: the final document text")

	assert.Equal(t, "the final document text", step.ActionInput)
}

func TestParseStep_ScalarJSONInput(t *testing.T) {
	step := parseStep("Action: FINISH\nAction Input: 42")
	assert.Equal(t, float64(42), step.ActionInput)
}

func TestParseStep_MissingActionDefaultsToFinish(t *testing.T) {
	step := parseStep("I could not follow the format, here is my answer anyway.")

	assert.Equal(t, core.ActionFinish, step.Action)
	assert.Equal(t, "I could not follow the format, here is my answer anyway.", step.ActionInput)
}

func TestParseStep_LabelsOutOfOrder(t *testing.T) {
	step := parseStep("Action: echo\nAction Input: {\"text\":\"hi\"}\nThought: after the fact")

	assert.Equal(t, "echo", step.Action)
	assert.Equal(t, "after the fact", step.Thought)
	assert.Equal(t, map[string]any{"text": "hi"}, step.ActionInput)
}

func TestAsArgs(t *testing.T) {
	assert.Equal(t, map[string]any{}, asArgs(nil))
	assert.Equal(t, map[string]any{"a": 1.0}, asArgs(map[string]any{"a": 1.0}))
	assert.Equal(t, map[string]any{"input": "plain"}, asArgs("plain"))
}
