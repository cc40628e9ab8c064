// Package engine implements the orchestration layer of AgentForge.
//
// The Engine is the single entry point the outer surfaces (CLI, examples,
// embedding applications) talk to. It owns the shared infrastructure and
// coordinates every agent runtime:
//
// Core Responsibilities:
//   - Agent Registry: registration of agent profiles and their configurations
//   - Lifecycle Control: start, stop, pause, resume and status inspection per
//     agent, with terminal runtimes transparently re-created on restart
//   - Pipeline Scheduling: dependency-ordered startup of connected agents via
//     the scheduler, driven by completion messages on the bus
//   - Messaging: user input and approval decisions routed over the bus, so
//     they buffer for agents that have not started yet
//   - Persistence: agent configurations and workflow definitions filed in the
//     store, produced artifacts persisted by the runtimes
//
// # Architecture
//
// The engine composes the lower layers without duplicating their logic: the
// bus carries every event, the store persists every artifact, each runtime
// drives exactly one agent, and the scheduler turns completions into
// successor starts. The engine itself holds only the registry and the wiring.
//
// # Concurrency Model
//
// All exported methods are safe for concurrent use. Lifecycle methods
// delegate to the addressed runtime, which serializes its own transitions;
// the engine's mutex only guards the registry maps.
//
// # Extensibility
//
// Lifecycle hooks observe bus traffic at well-defined points (agent start,
// progress, completion, error) without modifying orchestration logic. See
// Hook and HookManager.
package engine
