package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/runtime"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishReply(result string) string {
	return "Thought: done\nAction: FINISH\nAction Input: " + result
}

func waitRecordStatus(t *testing.T, e *Engine, id core.AgentID, want core.AgentStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := e.GetStatus(id)
		return err == nil && rec.Status == want
	}, 2*time.Second, 5*time.Millisecond, "agent %s never reached %s", id, want)
}

func TestRegisterAgent_PersistsConfig(t *testing.T) {
	e := New(model.NewScriptedModel())

	cfg := core.AgentConfig{Scenario: "Design a puzzle game."}
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "designer"}, cfg))

	assert.Equal(t, []core.AgentID{"designer"}, e.AgentIDs())

	data, err := e.Store().Get(store.CollectionConfigs, "designer")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Design a puzzle game.")
}

func TestRegisterAgent_RejectsReservedIdentity(t *testing.T) {
	e := New(model.NewScriptedModel())
	err := e.RegisterAgent(&runtime.StaticProfile{ID: core.Broadcast}, core.AgentConfig{Scenario: "x"})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestRegisterAgent_RejectsWhileActive(t *testing.T) {
	e := New(model.NewScriptedModel())
	profile := &runtime.StaticProfile{ID: "writer"}
	cfg := core.AgentConfig{Scenario: "Write."}
	require.NoError(t, e.RegisterAgent(profile, cfg))

	// Park the agent mid-run so the first runtime stays active.
	require.NoError(t, e.StartAgent(context.Background(), "writer", nil, core.ModeInteractive))
	waitRecordStatus(t, e, "writer", core.StatusWaitingForUser)

	err := e.RegisterAgent(profile, cfg)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	// Still exactly one runtime, still parked where it was.
	rec, err := e.GetStatus("writer")
	require.NoError(t, err)
	assert.Equal(t, core.StatusWaitingForUser, rec.Status)

	// Once stopped and unwound, re-registration succeeds again.
	require.NoError(t, e.StopAgent("writer"))
	require.Eventually(t, func() bool {
		return e.RegisterAgent(profile, cfg) == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLifecycle_UnknownAgent(t *testing.T) {
	e := New(model.NewScriptedModel())

	assert.ErrorIs(t, e.StartAgent(context.Background(), "ghost", nil, core.ModeAutomatic), core.ErrAgentNotFound)
	assert.ErrorIs(t, e.StopAgent("ghost"), core.ErrAgentNotFound)
	assert.ErrorIs(t, e.PauseAgent("ghost"), core.ErrAgentNotFound)
	assert.ErrorIs(t, e.ResumeAgent("ghost"), core.ErrAgentNotFound)
	assert.ErrorIs(t, e.SendUserMessage("ghost", "hi"), core.ErrAgentNotFound)
	assert.ErrorIs(t, e.ApproveArtifact("ghost", true), core.ErrAgentNotFound)
	_, err := e.GetStatus("ghost")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestStartAgent_CompletesAndRestarts(t *testing.T) {
	m := model.NewScriptedModel(finishReply("first run"), finishReply("second run"))
	e := New(m)
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "writer"}, core.AgentConfig{Scenario: "Write."}))

	require.NoError(t, e.StartAgent(context.Background(), "writer", nil, core.ModeAutomatic))
	waitRecordStatus(t, e, "writer", core.StatusCompleted)

	// A terminal agent restarts via a fresh runtime.
	require.NoError(t, e.StartAgent(context.Background(), "writer", nil, core.ModeAutomatic))
	waitRecordStatus(t, e, "writer", core.StatusCompleted)

	keys, err := e.Store().List(store.CollectionGDD)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestPipeline_DependencyOrder(t *testing.T) {
	m := model.NewScriptedModel()
	m.SetFallback(finishReply("artifact"))
	e := New(m)

	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "designer"}, core.AgentConfig{Scenario: "Design."}))
	require.NoError(t, e.RegisterAgent(
		&runtime.StaticProfile{ID: "coder", StoreCollection: store.CollectionCode},
		core.AgentConfig{Scenario: "Code."}))
	require.NoError(t, e.SetConnections([]core.Connection{{From: "designer", To: "coder"}}))

	require.NoError(t, e.StartPipeline(context.Background(), core.ModeAutomatic))

	waitRecordStatus(t, e, "designer", core.StatusCompleted)
	waitRecordStatus(t, e, "coder", core.StatusCompleted)

	gdd, err := e.Store().List(store.CollectionGDD)
	require.NoError(t, err)
	assert.Len(t, gdd, 1)
	code, err := e.Store().List(store.CollectionCode)
	require.NoError(t, err)
	assert.Len(t, code, 1)
}

func TestSetConnections_CycleRejected(t *testing.T) {
	e := New(model.NewScriptedModel())
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "a"}, core.AgentConfig{Scenario: "x"}))
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "b"}, core.AgentConfig{Scenario: "x"}))

	err := e.SetConnections([]core.Connection{
		{From: "a", To: "b"},
		{From: "b", To: "a"},
	})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestSendUserMessage_BuffersBeforeStart(t *testing.T) {
	m := model.NewScriptedModel(finishReply("spooky draft"))
	e := New(m)
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "writer"}, core.AgentConfig{Scenario: "Write."}))

	// Sent before the agent starts: buffered on the bus, replayed at start,
	// so the interactive gate is satisfied without further input.
	require.NoError(t, e.SendUserMessage("writer", "make it spooky"))
	require.NoError(t, e.StartAgent(context.Background(), "writer", nil, core.ModeInteractive))

	waitRecordStatus(t, e, "writer", core.StatusWaitingForApproval)
	require.NoError(t, e.ApproveArtifact("writer", true))
	waitRecordStatus(t, e, "writer", core.StatusCompleted)
}

func TestApproveArtifact_WrongState(t *testing.T) {
	e := New(model.NewScriptedModel())
	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "writer"}, core.AgentConfig{Scenario: "Write."}))

	err := e.ApproveArtifact("writer", true)
	assert.ErrorIs(t, err, core.ErrNotAwaitingApproval)
}

func TestSetWorkflow_PersistsAndRuns(t *testing.T) {
	echo := tool.NewFunctionTool("echo", "Return the input text unchanged",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(_ context.Context, _ *core.ExecutionContext, args map[string]any) (any, error) {
			return args["text"], nil
		})

	e := New(model.NewScriptedModel())
	require.NoError(t, e.RegisterAgent(
		&runtime.StaticProfile{ID: "builder", Toolset: []tool.Tool{echo}},
		core.AgentConfig{Scenario: "Run the build workflow."}))

	wf := &workflow.Workflow{
		ID:        "build",
		Agent:     "builder",
		StartNode: "A",
		Nodes: map[string]*workflow.Node{
			"A": {ID: "A", Kind: workflow.NodeToolCall, Config: workflow.NodeConfig{
				ToolName:   "echo",
				ToolParams: map[string]any{"text": "built artifact"},
			}},
		},
	}
	require.NoError(t, e.SetWorkflow(wf))

	stored, err := e.Store().Get(store.CollectionWorkflows, "build")
	require.NoError(t, err)
	assert.Contains(t, string(stored), "tool_call")

	require.NoError(t, e.StartAgent(context.Background(), "builder", nil, core.ModeAutomatic))
	waitRecordStatus(t, e, "builder", core.StatusCompleted)

	keys, err := e.Store().List(store.CollectionGDD)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	artifact, err := e.Store().Get(store.CollectionGDD, keys[0])
	require.NoError(t, err)
	assert.Equal(t, "built artifact", string(artifact))
}

func TestSetWorkflow_Invalid(t *testing.T) {
	e := New(model.NewScriptedModel())

	err := e.SetWorkflow(&workflow.Workflow{ID: "broken", Agent: "x", StartNode: "missing", Nodes: map[string]*workflow.Node{}})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestHooks_ObserveLifecycle(t *testing.T) {
	m := model.NewScriptedModel(finishReply("done"))
	e := New(m)

	var mu sync.Mutex
	var seen []HookType
	record := func(ht HookType) {
		e.Use(NewFunctionHook(ht, func(_ context.Context, _ *HookContext) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ht)
			return nil
		}))
	}
	record(HookAgentStart)
	record(HookAgentComplete)

	require.NoError(t, e.RegisterAgent(&runtime.StaticProfile{ID: "writer"}, core.AgentConfig{Scenario: "Write."}))
	require.NoError(t, e.StartAgent(context.Background(), "writer", nil, core.ModeAutomatic))
	waitRecordStatus(t, e, "writer", core.StatusCompleted)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, HookType(HookAgentStart), seen[0])
	assert.Contains(t, seen, HookAgentComplete)
}

func TestHookManager_Order(t *testing.T) {
	m := NewHookManager()
	var order []int
	m.Register(NewFunctionHook(HookAgentStart, func(context.Context, *HookContext) error {
		order = append(order, 1)
		return nil
	}))
	m.Register(NewFunctionHook(HookAgentStart, func(context.Context, *HookContext) error {
		order = append(order, 2)
		return nil
	}))

	require.NoError(t, m.Run(context.Background(), HookAgentStart, &HookContext{}))
	assert.Equal(t, []int{1, 2}, order)
}
