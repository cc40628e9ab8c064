// Package agentforge provides a high-level façade over the orchestration
// engine, enabling rapid construction of multi-agent pipelines. Most
// applications interact with this package by:
//  1. Creating an AgentForge via New() with a language model (optionally
//     overriding the default in-memory infrastructure)
//  2. Registering agent profiles, workflows and connections, or applying a
//     declarative pipeline definition
//  3. Starting agents individually or running the whole pipeline in
//     dependency order
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable store and a
// structured logger.
package agentforge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentforge/bus"
	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/runtime"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/workflow"
)

// Options configures the AgentForge instance.
type Options struct {
	// Store persists configurations, workflows and artifacts. Defaults to
	// the in-memory store.
	Store store.Store

	// Bus carries every message. Defaults to a fresh in-process bus.
	Bus *bus.Bus

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// AgentForge is the high-level façade aggregating the underlying engine and
// infrastructure.
type AgentForge struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AgentForge instance over the given language model. Any
// unset infrastructure is initialized with an in-memory implementation.
func New(m model.Model, optFns ...func(o *Options)) *AgentForge {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(m, func(o *engine.Options) {
		o.Bus = opts.Bus
		o.Store = opts.Store
		o.Logger = opts.Logger
	})

	return &AgentForge{opts: opts, engine: e}
}

// Engine exposes the underlying orchestration engine for advanced use.
func (f *AgentForge) Engine() *engine.Engine { return f.engine }

// RegisterAgent adds an agent profile and configuration.
func (f *AgentForge) RegisterAgent(profile runtime.Profile, cfg core.AgentConfig) error {
	return f.engine.RegisterAgent(profile, cfg)
}

// SetWorkflow attaches a validated workflow graph to its agent.
func (f *AgentForge) SetWorkflow(wf *workflow.Workflow) error {
	return f.engine.SetWorkflow(wf)
}

// SetConnections replaces the dependency edges between agents.
func (f *AgentForge) SetConnections(conns []core.Connection) error {
	return f.engine.SetConnections(conns)
}

// ApplyPipeline materializes a declarative pipeline definition.
func (f *AgentForge) ApplyPipeline(p *config.Pipeline) error {
	return p.Apply(f.engine)
}

// StartAgent starts one agent.
func (f *AgentForge) StartAgent(ctx context.Context, id core.AgentID, initialVariables map[string]any, mode core.RunMode) error {
	return f.engine.StartAgent(ctx, id, initialVariables, mode)
}

// StopAgent forces an agent back to idle.
func (f *AgentForge) StopAgent(id core.AgentID) error { return f.engine.StopAgent(id) }

// PauseAgent suspends a running agent at its next checkpoint.
func (f *AgentForge) PauseAgent(id core.AgentID) error { return f.engine.PauseAgent(id) }

// ResumeAgent continues a paused agent.
func (f *AgentForge) ResumeAgent(id core.AgentID) error { return f.engine.ResumeAgent(id) }

// SendUserMessage routes user input to an agent, buffering when the agent is
// not connected yet.
func (f *AgentForge) SendUserMessage(id core.AgentID, text string) error {
	return f.engine.SendUserMessage(id, text)
}

// ApproveArtifact resolves a pending artifact approval.
func (f *AgentForge) ApproveArtifact(id core.AgentID, approved bool) error {
	return f.engine.ApproveArtifact(id, approved)
}

// GetStatus returns a snapshot of one agent's externally visible state.
func (f *AgentForge) GetStatus(id core.AgentID) (core.LifecycleRecord, error) {
	return f.engine.GetStatus(id)
}

// StartPipeline starts all agents without predecessors; the rest follow as
// their predecessors complete.
func (f *AgentForge) StartPipeline(ctx context.Context, mode core.RunMode) error {
	return f.engine.StartPipeline(ctx, mode)
}

// StopPipeline detaches the scheduler; running agents are not touched.
func (f *AgentForge) StopPipeline() { f.engine.StopPipeline() }

// Subscribe registers a process-local observer for every bus message.
func (f *AgentForge) Subscribe(fn bus.SubscriberFunc) bus.Subscription {
	return f.engine.Subscribe(fn)
}

// RegisterObserver binds a named observer connection receiving broadcasts.
func (f *AgentForge) RegisterObserver(name core.AgentID) *bus.Handle {
	return f.engine.RegisterObserver(name)
}

// Use registers a lifecycle hook.
func (f *AgentForge) Use(h engine.Hook) { f.engine.Use(h) }

// RunPipeline is a synchronous helper: it starts the pipeline and blocks
// until every registered agent reaches a terminal status or the context is
// cancelled. Agents that end in error are reported together.
func (f *AgentForge) RunPipeline(ctx context.Context, mode core.RunMode) error {
	if err := f.engine.StartPipeline(ctx, mode); err != nil {
		return err
	}
	defer f.engine.StopPipeline()

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var failed []string
		settled := true
		for _, id := range f.engine.AgentIDs() {
			rec, err := f.engine.GetStatus(id)
			if err != nil {
				return err
			}
			switch rec.Status {
			case core.StatusError:
				failed = append(failed, string(id))
			case core.StatusCompleted:
			default:
				settled = false
			}
		}
		if !settled {
			continue
		}
		if len(failed) > 0 {
			return fmt.Errorf("pipeline finished with failed agents: %s", strings.Join(failed, ", "))
		}
		return nil
	}
}
