package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentforge/bus"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// AgentControl is the slice of an agent runtime the scheduler drives.
type AgentControl interface {
	Identity() core.AgentID
	Status() core.AgentStatus
	Start(ctx context.Context, initialVariables map[string]any, mode core.RunMode) error
	SetPredecessorArtifact(agent core.AgentID, key string)
}

// Options configures a Scheduler.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Scheduler wires agent completions to successor starts. All methods are
// safe for concurrent use.
type Scheduler struct {
	bus    *bus.Bus
	logger logging.Logger

	mu          sync.Mutex
	agents      map[core.AgentID]AgentControl
	connections []core.Connection
	started     map[core.AgentID]bool
	mode        core.RunMode
	ctx         context.Context
	sub         bus.Subscription
	active      bool
}

// New constructs a Scheduler over the given bus.
func New(b *bus.Bus, optFns ...func(o *Options)) *Scheduler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{
		bus:     b,
		logger:  opts.Logger,
		agents:  make(map[core.AgentID]AgentControl),
		started: make(map[core.AgentID]bool),
	}
}

// Register adds an agent to the scheduling universe, replacing any previous
// registration for the same identity.
func (s *Scheduler) Register(a AgentControl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.Identity()] = a
}

// SetConnections replaces the dependency edges. Edges naming unregistered
// agents or forming a cycle are rejected with a ConfigurationError.
func (s *Scheduler) SetConnections(conns []core.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range conns {
		if _, ok := s.agents[c.From]; !ok {
			return &core.ConfigurationError{Reason: fmt.Sprintf("connection references unknown agent %q", c.From)}
		}
		if _, ok := s.agents[c.To]; !ok {
			return &core.ConfigurationError{Reason: fmt.Sprintf("connection references unknown agent %q", c.To)}
		}
		if c.From == c.To {
			return &core.ConfigurationError{Reason: fmt.Sprintf("agent %q cannot depend on itself", c.From)}
		}
	}

	if _, err := topologicalOrder(s.agents, conns); err != nil {
		return err
	}

	s.connections = conns
	return nil
}

// Connections returns a snapshot of the current dependency edges.
func (s *Scheduler) Connections() []core.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

// TopologicalOrder returns the registered identities in dependency order.
// Ties are broken alphabetically for determinism.
func (s *Scheduler) TopologicalOrder() ([]core.AgentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topologicalOrder(s.agents, s.connections)
}

// Successors returns the direct successors of an agent, sorted.
func (s *Scheduler) Successors(agent core.AgentID) []core.AgentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return successorsOf(agent, s.connections)
}

// NextAfter returns the agent following the given one in the canonical
// dependency order, or false when the agent is last, unknown or the graph is
// cyclic.
func (s *Scheduler) NextAfter(agent core.AgentID) (core.AgentID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := topologicalOrder(s.agents, s.connections)
	if err != nil {
		return "", false
	}
	for i, id := range order {
		if id == agent && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// StartPipeline starts every agent without predecessors and subscribes to
// the bus so later completions cascade. A graph where every agent has a
// predecessor can never make progress and is rejected with a
// ConfigurationError before anything starts.
func (s *Scheduler) StartPipeline(ctx context.Context, mode core.RunMode) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	if len(s.agents) == 0 {
		s.mu.Unlock()
		return &core.ConfigurationError{Reason: "no agents registered"}
	}

	roots := s.rootsLocked()
	if len(roots) == 0 {
		s.mu.Unlock()
		return &core.ConfigurationError{Reason: "every agent has a predecessor; nothing can start"}
	}

	s.ctx = ctx
	s.mode = mode
	s.active = true
	s.started = make(map[core.AgentID]bool)
	for _, id := range roots {
		s.started[id] = true
	}
	starts := make([]AgentControl, 0, len(roots))
	for _, id := range roots {
		starts = append(starts, s.agents[id])
	}
	s.sub = s.bus.Subscribe(s.onMessage)
	s.mu.Unlock()

	for _, a := range starts {
		if err := a.Start(ctx, nil, mode); err != nil {
			return fmt.Errorf("starting agent %q: %w", a.Identity(), err)
		}
		s.logger.Info("scheduler.root_started", "agent", a.Identity())
	}
	return nil
}

// StopPipeline detaches the scheduler from the bus. Running agents are not
// touched.
func (s *Scheduler) StopPipeline() {
	s.mu.Lock()
	active := s.active
	s.active = false
	sub := s.sub
	s.mu.Unlock()

	if active {
		s.bus.Unsubscribe(sub)
	}
}

// onMessage reacts to agent completions: successors whose predecessors have
// all completed are started exactly once, even when the same completion is
// delivered more than once.
func (s *Scheduler) onMessage(msg core.Message) {
	if msg.Type != core.MessageAgentComplete {
		return
	}
	completed := core.AgentID(msg.From)

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}

	var starts []AgentControl
	for _, succ := range successorsOf(completed, s.connections) {
		a, ok := s.agents[succ]
		if !ok || s.started[succ] {
			continue
		}
		a.SetPredecessorArtifact(completed, msg.Payload.ArtifactKey)
		if !s.predecessorsCompleteLocked(succ) {
			continue
		}
		if a.Status() != core.StatusIdle {
			continue
		}
		s.started[succ] = true
		starts = append(starts, a)
	}
	ctx := s.ctx
	mode := s.mode
	s.mu.Unlock()

	for _, a := range starts {
		if err := a.Start(ctx, nil, mode); err != nil {
			s.logger.Error("scheduler.start_failed", "agent", a.Identity(), "error", err.Error())
			continue
		}
		s.logger.Info("scheduler.successor_started", "agent", a.Identity(), "after", completed)
	}
}

// rootsLocked returns the identities with no incoming connection, sorted.
func (s *Scheduler) rootsLocked() []core.AgentID {
	incoming := make(map[core.AgentID]bool)
	for _, c := range s.connections {
		incoming[c.To] = true
	}
	var roots []core.AgentID
	for id := range s.agents {
		if !incoming[id] {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// predecessorsCompleteLocked reports whether every predecessor of the agent
// has reached completed.
func (s *Scheduler) predecessorsCompleteLocked(agent core.AgentID) bool {
	for _, c := range s.connections {
		if c.To != agent {
			continue
		}
		pred, ok := s.agents[c.From]
		if !ok || pred.Status() != core.StatusCompleted {
			return false
		}
	}
	return true
}

// successorsOf returns the direct successors of an agent, sorted.
func successorsOf(agent core.AgentID, conns []core.Connection) []core.AgentID {
	var out []core.AgentID
	for _, c := range conns {
		if c.From == agent {
			out = append(out, c.To)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// topologicalOrder runs Kahn's algorithm over the agents and edges. A cycle
// leaves unprocessed agents and is a ConfigurationError.
func topologicalOrder(agents map[core.AgentID]AgentControl, conns []core.Connection) ([]core.AgentID, error) {
	indegree := make(map[core.AgentID]int, len(agents))
	for id := range agents {
		indegree[id] = 0
	}
	for _, c := range conns {
		indegree[c.To]++
	}

	var frontier []core.AgentID
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

	order := make([]core.AgentID, 0, len(agents))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var next []core.AgentID
		for _, succ := range successorsOf(id, conns) {
			indegree[succ]--
			if indegree[succ] == 0 {
				next = append(next, succ)
			}
		}
		frontier = append(frontier, next...)
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })
	}

	if len(order) != len(agents) {
		return nil, &core.ConfigurationError{Reason: "connection graph contains a cycle"}
	}
	return order, nil
}
