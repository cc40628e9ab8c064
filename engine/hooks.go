package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// HookType names the lifecycle points where hooks run.
//
// Hooks observe the pipeline without modifying orchestration logic. Each
// type corresponds to one bus message type:
//   - HookAgentStart: an agent entered its run loop
//   - HookAgentProgress: an agent reported intermediate progress
//   - HookAgentComplete: an agent produced its final artifact
//   - HookAgentError: an agent failed terminally
//
// Hooks run synchronously on the publisher's goroutine, so implementations
// must return quickly.
type HookType string

const (
	HookAgentStart    HookType = "agent_start"
	HookAgentProgress HookType = "agent_progress"
	HookAgentComplete HookType = "agent_complete"
	HookAgentError    HookType = "agent_error"
)

// hookTypeFor maps a bus message type onto its hook type. Message types
// without a lifecycle hook report ok=false.
func hookTypeFor(t core.MessageType) (HookType, bool) {
	switch t {
	case core.MessageAgentStart:
		return HookAgentStart, true
	case core.MessageAgentProgress:
		return HookAgentProgress, true
	case core.MessageAgentComplete:
		return HookAgentComplete, true
	case core.MessageAgentError:
		return HookAgentError, true
	default:
		return "", false
	}
}

// HookContext carries the information available at a lifecycle point.
type HookContext struct {
	// Message is the bus message that triggered the hook.
	Message core.Message

	// Agent is the identity the message originated from.
	Agent core.AgentID
}

// Hook is an observer of agent lifecycle events.
//
// Implementations should be fast, stateless and safe for concurrent use. A
// returned error is logged by the engine; it never influences the pipeline,
// because the observed event has already happened.
type Hook interface {
	// Type returns the lifecycle point this hook handles.
	Type() HookType

	// Execute performs the hook logic.
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook wraps a plain function as a Hook.
//
// Example:
//
//	eng.Use(engine.NewFunctionHook(engine.HookAgentComplete,
//	    func(_ context.Context, hc *engine.HookContext) error {
//	        fmt.Printf("%s finished: %s\n", hc.Agent, hc.Message.Payload.ArtifactKey)
//	        return nil
//	    }))
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a function-based hook for the given lifecycle
// point.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type implements Hook.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute implements Hook.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error {
	return h.fn(ctx, hc)
}

// LoggingHook logs one lifecycle point through a structured logger.
type LoggingHook struct {
	hookType HookType
	logger   logging.Logger
}

// NewLoggingHook creates a hook that logs every event of the given type.
func NewLoggingHook(hookType HookType, logger logging.Logger) *LoggingHook {
	return &LoggingHook{hookType: hookType, logger: logger}
}

// Type implements Hook.
func (h *LoggingHook) Type() HookType { return h.hookType }

// Execute implements Hook.
func (h *LoggingHook) Execute(_ context.Context, hc *HookContext) error {
	h.logger.Info("engine.hook",
		"type", h.hookType,
		"agent", hc.Agent,
		"content", hc.Message.Payload.Content,
		"artifact_key", hc.Message.Payload.ArtifactKey,
		"error", hc.Message.Payload.Error,
	)
	return nil
}

// HookManager routes lifecycle events to registered hooks in registration
// order. Safe for concurrent use.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds a hook. Multiple hooks per type run in registration order.
func (m *HookManager) Register(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// Run executes all hooks for the lifecycle point, stopping at the first
// error.
func (m *HookManager) Run(ctx context.Context, hookType HookType, hc *HookContext) error {
	m.mu.RLock()
	hooks := m.hooks[hookType]
	m.mu.RUnlock()

	for _, h := range hooks {
		if err := h.Execute(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}
