package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentforge/bus"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/runtime"
	"github.com/hupe1980/agentforge/scheduler"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/workflow"
)

// Options configures an Engine instance using the functional options pattern.
//
// All infrastructure has in-memory defaults so an Engine is usable with just
// a model:
//
//	eng := engine.New(myModel)
//
// Production embeddings typically supply their own bus observers, a durable
// store and a structured logger:
//
//	eng := engine.New(myModel,
//	    engine.WithStore(durableStore),
//	    engine.WithLogger(logger),
//	)
type Options struct {
	// Bus carries every message between agents, observers and the
	// scheduler. Defaults to a fresh in-process bus.
	Bus *bus.Bus

	// Store persists agent configurations, workflow definitions and
	// produced artifacts. Defaults to the in-memory store.
	Store store.Store

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// managedAgent bundles everything needed to (re-)create one agent runtime.
type managedAgent struct {
	profile runtime.Profile
	config  core.AgentConfig
	rt      *runtime.Runtime
}

// Engine orchestrates a pipeline of agents over shared infrastructure. See
// the package documentation for the architectural overview.
type Engine struct {
	bus       *bus.Bus
	store     store.Store
	scheduler *scheduler.Scheduler
	model     model.Model
	logger    logging.Logger
	hooks     *HookManager

	mu        sync.RWMutex
	agents    map[core.AgentID]*managedAgent
	workflows map[core.AgentID]*workflow.Workflow
}

// New creates an Engine. The model is shared by every agent that does not
// bring its own; infrastructure defaults are in-memory.
func New(m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Bus == nil {
		opts.Bus = bus.New(func(o *bus.Options) { o.Logger = opts.Logger })
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}

	e := &Engine{
		bus:       opts.Bus,
		store:     opts.Store,
		model:     m,
		logger:    opts.Logger,
		hooks:     NewHookManager(),
		agents:    make(map[core.AgentID]*managedAgent),
		workflows: make(map[core.AgentID]*workflow.Workflow),
	}
	e.scheduler = scheduler.New(e.bus, func(o *scheduler.Options) { o.Logger = opts.Logger })

	e.bus.Subscribe(e.dispatchHooks)

	return e
}

// Bus exposes the message bus, e.g. for registering transport bindings.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Store exposes the persistence backend.
func (e *Engine) Store() store.Store { return e.store }

// RegisterAgent adds an agent to the engine. The configuration is persisted
// to the configs collection and a runtime is created immediately so the
// agent can receive buffered messages and scheduling decisions.
// Re-registering an identity replaces its profile and configuration, but only
// while the identity has no active runtime: at most one runtime per identity
// may be active, so re-registration over a running agent is rejected with a
// ConfigurationError. Stop the agent first.
func (e *Engine) RegisterAgent(profile runtime.Profile, cfg core.AgentConfig) error {
	id := profile.Identity()
	if id == "" || id == core.Broadcast {
		return &core.ConfigurationError{Reason: fmt.Sprintf("invalid agent identity %q", id)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.agents[id]; ok && prev.rt.Active() {
		return &core.ConfigurationError{Reason: fmt.Sprintf("agent %q is still active and must be stopped before re-registration", id)}
	}

	if data, err := json.Marshal(cfg); err == nil {
		if err := e.store.Put(store.CollectionConfigs, string(id), data); err != nil {
			e.logger.Warn("engine.config_unpersisted", "agent", id, "error", err.Error())
		}
	}

	ma := &managedAgent{profile: profile, config: cfg}
	ma.rt = e.newRuntimeLocked(ma)
	e.agents[id] = ma
	e.scheduler.Register(ma.rt)

	e.logger.Info("engine.agent_registered", "agent", id)
	return nil
}

// newRuntimeLocked builds a fresh runtime for the agent, attaching its
// workflow when one is set. Caller holds e.mu.
func (e *Engine) newRuntimeLocked(ma *managedAgent) *runtime.Runtime {
	wf := e.workflows[ma.profile.Identity()]
	return runtime.New(ma.profile, ma.config, e.bus, e.store, e.model, func(o *runtime.Options) {
		o.Workflow = wf
		o.Logger = e.logger
	})
}

// AgentIDs returns the registered identities, sorted.
func (e *Engine) AgentIDs() []core.AgentID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]core.AgentID, 0, len(e.agents))
	for id := range e.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// runtimeFor returns the current runtime for an identity or
// ErrAgentNotFound.
func (e *Engine) runtimeFor(id core.AgentID) (*runtime.Runtime, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ma, ok := e.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrAgentNotFound, id)
	}
	return ma.rt, nil
}

// StartAgent starts one agent. A terminal runtime is transparently
// re-created first, so a completed or failed agent can be run again with the
// same registration.
func (e *Engine) StartAgent(ctx context.Context, id core.AgentID, initialVariables map[string]any, mode core.RunMode) error {
	e.mu.Lock()
	ma, ok := e.agents[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", core.ErrAgentNotFound, id)
	}
	if ma.rt.Status().Terminal() {
		ma.rt = e.newRuntimeLocked(ma)
		e.scheduler.Register(ma.rt)
	}
	rt := ma.rt
	e.mu.Unlock()

	return rt.Start(ctx, initialVariables, mode)
}

// StopAgent forces an agent back to idle. No completion is announced.
func (e *Engine) StopAgent(id core.AgentID) error {
	rt, err := e.runtimeFor(id)
	if err != nil {
		return err
	}
	rt.Stop()
	return nil
}

// PauseAgent suspends a running agent at its next checkpoint.
func (e *Engine) PauseAgent(id core.AgentID) error {
	rt, err := e.runtimeFor(id)
	if err != nil {
		return err
	}
	rt.Pause()
	return nil
}

// ResumeAgent continues a paused agent.
func (e *Engine) ResumeAgent(id core.AgentID) error {
	rt, err := e.runtimeFor(id)
	if err != nil {
		return err
	}
	rt.Resume()
	return nil
}

// SendUserMessage routes user input to an agent over the bus. Input for an
// agent that is not connected yet is buffered and replayed when it starts.
func (e *Engine) SendUserMessage(id core.AgentID, text string) error {
	if _, err := e.runtimeFor(id); err != nil {
		return err
	}
	e.bus.Publish(core.NewUserMessage(id, text))
	return nil
}

// ApproveArtifact resolves a pending artifact approval synchronously. The
// agent must currently be waiting for approval.
func (e *Engine) ApproveArtifact(id core.AgentID, approved bool) error {
	rt, err := e.runtimeFor(id)
	if err != nil {
		return err
	}
	return rt.ApproveArtifact(approved)
}

// GetStatus returns a snapshot of one agent's externally visible state.
func (e *Engine) GetStatus(id core.AgentID) (core.LifecycleRecord, error) {
	rt, err := e.runtimeFor(id)
	if err != nil {
		return core.LifecycleRecord{}, err
	}
	return rt.Record(), nil
}

// SetWorkflow validates a workflow, persists it to the workflows collection
// and attaches it to its agent. The workflow takes effect the next time a
// runtime for that agent is created; an idle agent is re-created
// immediately.
func (e *Engine) SetWorkflow(wf *workflow.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	if wf.Agent == "" {
		return &core.ConfigurationError{Reason: fmt.Sprintf("workflow %q names no agent", wf.ID)}
	}

	if data, err := json.Marshal(wf); err == nil {
		if err := e.store.Put(store.CollectionWorkflows, wf.ID, data); err != nil {
			e.logger.Warn("engine.workflow_unpersisted", "workflow", wf.ID, "error", err.Error())
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.workflows[wf.Agent] = wf
	if ma, ok := e.agents[wf.Agent]; ok && ma.rt.Status() == core.StatusIdle && !ma.rt.Active() {
		ma.rt = e.newRuntimeLocked(ma)
		e.scheduler.Register(ma.rt)
	}

	e.logger.Info("engine.workflow_set", "workflow", wf.ID, "agent", wf.Agent)
	return nil
}

// SetConnections replaces the dependency edges between agents. Edges naming
// unregistered agents or forming a cycle are rejected.
func (e *Engine) SetConnections(conns []core.Connection) error {
	return e.scheduler.SetConnections(conns)
}

// StartPipeline starts every agent without predecessors; the rest start as
// their predecessors complete.
func (e *Engine) StartPipeline(ctx context.Context, mode core.RunMode) error {
	return e.scheduler.StartPipeline(ctx, mode)
}

// StopPipeline detaches the scheduler; running agents are not touched.
func (e *Engine) StopPipeline() {
	e.scheduler.StopPipeline()
}

// Subscribe registers a process-local observer for every bus message.
func (e *Engine) Subscribe(fn bus.SubscriberFunc) bus.Subscription {
	return e.bus.Subscribe(fn)
}

// RegisterObserver binds a named observer connection receiving broadcasts.
func (e *Engine) RegisterObserver(name core.AgentID) *bus.Handle {
	return e.bus.RegisterObserver(name)
}

// Use registers a lifecycle hook.
func (e *Engine) Use(h Hook) {
	e.hooks.Register(h)
}

// dispatchHooks forwards bus messages to the matching lifecycle hooks. Hook
// failures are logged, never propagated.
func (e *Engine) dispatchHooks(msg core.Message) {
	hookType, ok := hookTypeFor(msg.Type)
	if !ok {
		return
	}
	if err := e.hooks.Run(context.Background(), hookType, &HookContext{Message: msg, Agent: core.AgentID(msg.From)}); err != nil {
		e.logger.Warn("engine.hook_failed", "type", hookType, "error", err.Error())
	}
}
