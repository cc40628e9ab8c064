package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentforge/bus"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/runtime"
	"github.com/hupe1980/agentforge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent is a minimal AgentControl tracking starts and predecessor
// artifacts.
type fakeAgent struct {
	mu     sync.Mutex
	id     core.AgentID
	status core.AgentStatus
	starts int
	preds  map[core.AgentID]string
}

func newFakeAgent(id core.AgentID) *fakeAgent {
	return &fakeAgent{id: id, status: core.StatusIdle, preds: make(map[core.AgentID]string)}
}

func (f *fakeAgent) Identity() core.AgentID { return f.id }

func (f *fakeAgent) Status() core.AgentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeAgent) Start(_ context.Context, _ map[string]any, _ core.RunMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.status = core.StatusRunning
	return nil
}

func (f *fakeAgent) SetPredecessorArtifact(agent core.AgentID, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preds[agent] = key
}

func (f *fakeAgent) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// complete marks the agent completed and announces it on the bus, the same
// order a real runtime uses.
func (f *fakeAgent) complete(b *bus.Bus, artifactKey string) {
	f.mu.Lock()
	f.status = core.StatusCompleted
	f.mu.Unlock()
	b.Publish(core.NewCompletionMessage(f.id, "output", artifactKey))
}

func TestStartPipeline_RootsStart(t *testing.T) {
	b := bus.New()
	s := New(b)
	p, q := newFakeAgent("P"), newFakeAgent("Q")
	s.Register(p)
	s.Register(q)
	require.NoError(t, s.SetConnections([]core.Connection{{From: "P", To: "Q"}}))

	require.NoError(t, s.StartPipeline(context.Background(), core.ModeAutomatic))

	assert.Equal(t, 1, p.startCount())
	assert.Equal(t, 0, q.startCount(), "successor must wait for its predecessor")
}

func TestCascade_DuplicateCompletionStartsOnce(t *testing.T) {
	b := bus.New()
	s := New(b)
	p, q := newFakeAgent("P"), newFakeAgent("Q")
	s.Register(p)
	s.Register(q)
	require.NoError(t, s.SetConnections([]core.Connection{{From: "P", To: "Q"}}))
	require.NoError(t, s.StartPipeline(context.Background(), core.ModeAutomatic))

	p.complete(b, "gdd/p-1")
	// A replayed completion must not double-start the successor.
	b.Publish(core.NewCompletionMessage("P", "output", "gdd/p-1"))

	assert.Equal(t, 1, q.startCount())
	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, "gdd/p-1", q.preds["P"])
}

func TestCascade_WaitsForAllPredecessors(t *testing.T) {
	b := bus.New()
	s := New(b)
	p, r, q := newFakeAgent("P"), newFakeAgent("R"), newFakeAgent("Q")
	s.Register(p)
	s.Register(r)
	s.Register(q)
	require.NoError(t, s.SetConnections([]core.Connection{
		{From: "P", To: "Q"},
		{From: "R", To: "Q"},
	}))
	require.NoError(t, s.StartPipeline(context.Background(), core.ModeAutomatic))

	p.complete(b, "gdd/p-1")
	assert.Equal(t, 0, q.startCount(), "one of two predecessors is not enough")

	r.complete(b, "assets/r-1")
	assert.Equal(t, 1, q.startCount())

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Equal(t, "gdd/p-1", q.preds["P"])
	assert.Equal(t, "assets/r-1", q.preds["R"])
}

func TestSetConnections_Rejections(t *testing.T) {
	b := bus.New()
	s := New(b)
	s.Register(newFakeAgent("P"))
	s.Register(newFakeAgent("Q"))

	err := s.SetConnections([]core.Connection{{From: "P", To: "ghost"}})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	err = s.SetConnections([]core.Connection{{From: "P", To: "P"}})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	err = s.SetConnections([]core.Connection{
		{From: "P", To: "Q"},
		{From: "Q", To: "P"},
	})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestStartPipeline_NoAgents(t *testing.T) {
	s := New(bus.New())
	err := s.StartPipeline(context.Background(), core.ModeAutomatic)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestStartPipeline_NoRoots(t *testing.T) {
	s := New(bus.New())
	s.Register(newFakeAgent("P"))
	s.Register(newFakeAgent("Q"))
	// A cycle slips past SetConnections only by writing the field directly;
	// the start-set check still refuses to run it.
	s.connections = []core.Connection{
		{From: "P", To: "Q"},
		{From: "Q", To: "P"},
	}

	err := s.StartPipeline(context.Background(), core.ModeAutomatic)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestTopologicalOrder_Diamond(t *testing.T) {
	s := New(bus.New())
	for _, id := range []core.AgentID{"A", "B", "C", "D"} {
		s.Register(newFakeAgent(id))
	}
	require.NoError(t, s.SetConnections([]core.Connection{
		{From: "A", To: "B"},
		{From: "A", To: "C"},
		{From: "B", To: "D"},
		{From: "C", To: "D"},
	}))

	order, err := s.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []core.AgentID{"A", "B", "C", "D"}, order)
}

func TestSuccessors(t *testing.T) {
	s := New(bus.New())
	for _, id := range []core.AgentID{"A", "B", "C"} {
		s.Register(newFakeAgent(id))
	}
	require.NoError(t, s.SetConnections([]core.Connection{
		{From: "A", To: "C"},
		{From: "A", To: "B"},
	}))

	assert.Equal(t, []core.AgentID{"B", "C"}, s.Successors("A"))
	assert.Empty(t, s.Successors("B"))
}

func TestNextAfter_FollowsCanonicalOrder(t *testing.T) {
	s := New(bus.New())
	for _, id := range []core.AgentID{"A", "B", "C"} {
		s.Register(newFakeAgent(id))
	}
	require.NoError(t, s.SetConnections([]core.Connection{
		{From: "A", To: "C"},
		{From: "A", To: "B"},
	}))

	// Canonical order is A, B, C.
	next, ok := s.NextAfter("A")
	require.True(t, ok)
	assert.Equal(t, core.AgentID("B"), next)

	next, ok = s.NextAfter("B")
	require.True(t, ok)
	assert.Equal(t, core.AgentID("C"), next)

	_, ok = s.NextAfter("C")
	assert.False(t, ok, "the last agent has no successor")

	_, ok = s.NextAfter("ghost")
	assert.False(t, ok)
}

func TestStopPipeline_DetachesFromBus(t *testing.T) {
	b := bus.New()
	s := New(b)
	p, q := newFakeAgent("P"), newFakeAgent("Q")
	s.Register(p)
	s.Register(q)
	require.NoError(t, s.SetConnections([]core.Connection{{From: "P", To: "Q"}}))
	require.NoError(t, s.StartPipeline(context.Background(), core.ModeAutomatic))

	s.StopPipeline()
	p.complete(b, "gdd/p-1")

	assert.Equal(t, 0, q.startCount())
}

func TestPipelineWithRuntimes(t *testing.T) {
	b := bus.New()
	st := store.NewInMemoryStore()

	designerModel := model.NewScriptedModel("Thought: done\nAction: FINISH\nAction Input: the concept")
	coderModel := model.NewScriptedModel("Thought: done\nAction: FINISH\nAction Input: the code")

	designer := runtime.New(
		&runtime.StaticProfile{ID: "designer", Scenario: "Design the game."},
		core.AgentConfig{Scenario: "Design the game."}, b, st, designerModel)
	coder := runtime.New(
		&runtime.StaticProfile{ID: "coder", Scenario: "Implement the game.", StoreCollection: store.CollectionCode},
		core.AgentConfig{Scenario: "Implement the game."}, b, st, coderModel)

	s := New(b)
	s.Register(designer)
	s.Register(coder)
	require.NoError(t, s.SetConnections([]core.Connection{{From: "designer", To: "coder"}}))
	require.NoError(t, s.StartPipeline(context.Background(), core.ModeAutomatic))

	require.Eventually(t, func() bool {
		return designer.Status() == core.StatusCompleted && coder.Status() == core.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	// The coder saw the designer's artifact reference in its prompt.
	var sawArtifact bool
	for _, req := range coderModel.Requests() {
		for _, msg := range req {
			if strings.Contains(msg.Content, "designer: designer/") {
				sawArtifact = true
			}
		}
	}
	assert.True(t, sawArtifact)
}
