package config

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `
name: game-studio
agents:
  - id: designer
    scenario: Design a small puzzle game.
    suggested_questions:
      - What genre should the game be?
  - id: coder
    scenario: Implement the design.
    system_prompt: You write clean Go code.
    collection: code
connections:
  - from: designer
    to: coder
`

func TestParse_Defaults(t *testing.T) {
	p, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, "game-studio", p.Name)
	assert.Equal(t, core.ModeAutomatic, p.Mode, "mode defaults to automatic")
	require.Len(t, p.Agents, 2)
	assert.Equal(t, core.AgentID("designer"), p.Agents[0].ID)
	assert.Equal(t, "code", p.Agents[1].Collection)
	require.Len(t, p.Connections, 1)
}

func TestParse_WorkflowNodeIDsFromKeys(t *testing.T) {
	p, err := Parse([]byte(`
agents:
  - id: builder
    scenario: Build it.
workflows:
  - id: build
    agent: builder
    start_node: fetch
    nodes:
      fetch:
        kind: data_access
        config:
          source: "variable:input"
`))
	require.NoError(t, err)
	require.Len(t, p.Workflows, 1)
	assert.Equal(t, "fetch", p.Workflows[0].Nodes["fetch"].ID)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no agents", `name: empty`},
		{"bad mode", "mode: turbo\nagents:\n  - id: a\n    scenario: x"},
		{"duplicate id", "agents:\n  - id: a\n    scenario: x\n  - id: a\n    scenario: y"},
		{"reserved id", "agents:\n  - id: all\n    scenario: x"},
		{"missing scenario", "agents:\n  - id: a"},
		{"unknown collection", "agents:\n  - id: a\n    scenario: x\n    collection: blobs"},
		{"dangling connection", "agents:\n  - id: a\n    scenario: x\nconnections:\n  - from: a\n    to: ghost"},
		{"workflow for unknown agent", "agents:\n  - id: a\n    scenario: x\nworkflows:\n  - id: w\n    agent: ghost\n    start_node: n\n    nodes:\n      n:\n        kind: react"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, core.IsConfigurationError(err), "got %v", err)
		})
	}
}

func TestApply_RunsOnEngine(t *testing.T) {
	p, err := Parse([]byte(pipelineYAML))
	require.NoError(t, err)

	m := model.NewScriptedModel()
	m.SetFallback("Thought: done\nAction: FINISH\nAction Input: artifact")
	e := engine.New(m)

	require.NoError(t, p.Apply(e))
	assert.Equal(t, []core.AgentID{"coder", "designer"}, e.AgentIDs())

	require.NoError(t, e.StartPipeline(context.Background(), p.Mode))
	require.Eventually(t, func() bool {
		for _, id := range e.AgentIDs() {
			rec, err := e.GetStatus(id)
			if err != nil || rec.Status != core.StatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	code, err := e.Store().List(store.CollectionCode)
	require.NoError(t, err)
	assert.Len(t, code, 1, "coder artifacts land in the code collection")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
}
