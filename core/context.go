package core

import "strings"

// OutputVariable is the context variable conventionally holding an agent's
// produced artifact. The default goal for agents without a workflow is
// "OutputVariable is non-empty".
const OutputVariable = "output"

// ActionFinish is the reserved reasoning-loop action that terminates a run.
const ActionFinish = "FINISH"

// ReActStep records one plan-act-observe round of the reasoning loop.
// Steps are append-only within a run.
type ReActStep struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput any    `json:"action_input"`
	Observation string `json:"observation"`
}

// StepRecord records the execution of one workflow node.
type StepRecord struct {
	NodeID string `json:"node_id"`
	Result any    `json:"result"`
}

// ExecutionContext is the working state of a single agent run. It is owned
// exclusively by one agent runtime: the runtime's loop is the only writer,
// and external input (user messages, approvals) reaches it only through that
// runtime at loop checkpoints. No internal locking is therefore required.
type ExecutionContext struct {
	Variables            map[string]any     `json:"variables"`
	Iteration            int                `json:"iteration"`
	History              []StepRecord       `json:"history"`
	Steps                []ReActStep        `json:"steps"`
	PendingUserMessages  []string           `json:"pending_user_messages"`
	PredecessorArtifacts map[AgentID]string `json:"predecessor_artifacts"`
}

// NewExecutionContext returns an empty context ready for a first iteration.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Variables:            make(map[string]any),
		PredecessorArtifacts: make(map[AgentID]string),
	}
}

// SetVariable stores a named value.
func (c *ExecutionContext) SetVariable(name string, value any) {
	c.Variables[name] = value
}

// Variable returns a named value and whether it exists.
func (c *ExecutionContext) Variable(name string) (any, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

// Output returns the conventional output variable as a string, or "" when
// absent or not a string.
func (c *ExecutionContext) Output() string {
	if v, ok := c.Variables[OutputVariable]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// HasOutput reports whether a non-empty output value has been produced.
func (c *ExecutionContext) HasOutput() bool { return c.Output() != "" }

// EnqueueUserMessage appends user input for consumption at the next loop
// checkpoint. Callers must serialize access (the owning runtime does).
func (c *ExecutionContext) EnqueueUserMessage(text string) {
	c.PendingUserMessages = append(c.PendingUserMessages, text)
}

// DrainUserMessages removes and returns all queued user messages in arrival
// order.
func (c *ExecutionContext) DrainUserMessages() []string {
	msgs := c.PendingUserMessages
	c.PendingUserMessages = nil
	return msgs
}

// Lookup resolves a dotted path into the context, as used by goal
// expressions and placeholder substitution. Supported roots:
//
//	iteration            current iteration count
//	output               the conventional output variable
//	variables.<name>     a named variable
//	artifacts.<agent>    a predecessor artifact reference
//	<name>               shorthand for variables.<name>
//
// A missing path yields (nil, false), never an error.
func (c *ExecutionContext) Lookup(path string) (any, bool) {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case "iteration":
		return c.Iteration, true
	case "output":
		return c.Output(), true
	case "variables":
		if rest == "" {
			return nil, false
		}
		return lookupNested(c.Variables, rest)
	case "artifacts":
		if rest == "" {
			return nil, false
		}
		v, ok := c.PredecessorArtifacts[AgentID(rest)]
		return v, ok
	default:
		return lookupNested(c.Variables, path)
	}
}

// lookupNested walks dotted segments through nested string-keyed maps.
func lookupNested(m map[string]any, path string) (any, bool) {
	head, rest, more := strings.Cut(path, ".")
	v, ok := m[head]
	if !ok {
		return nil, false
	}
	if !more {
		return v, true
	}
	child, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return lookupNested(child, rest)
}
