// Package core defines the shared vocabulary of the AgentForge orchestration
// engine: agent identities, bus messages, the per-agent execution context,
// lifecycle status values and the error taxonomy. Higher level packages (bus,
// runtime, workflow, react, scheduler) depend on core; core depends on nothing
// but the standard library and uuid.
package core
