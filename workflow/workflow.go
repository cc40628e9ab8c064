package workflow

import (
	"fmt"

	"github.com/hupe1980/agentforge/core"
)

// NodeKind selects the behavior of a workflow node.
type NodeKind string

const (
	// NodeToolCall invokes a registered tool with substituted parameters.
	NodeToolCall NodeKind = "tool_call"
	// NodeDataAccess reads a predecessor artifact or a context variable.
	NodeDataAccess NodeKind = "data_access"
	// NodeReact runs the reasoning loop with a configured prompt.
	NodeReact NodeKind = "react"
	// NodeCondition evaluates a boolean expression selecting a branch.
	NodeCondition NodeKind = "condition"
	// NodeLoop repeats a reasoning pass with a bounded iteration budget.
	NodeLoop NodeKind = "loop"
)

// Data source prefixes understood by data_access nodes.
const (
	SourceArtifactPrefix = "artifact:"
	SourceVariablePrefix = "variable:"
)

// NodeConfig carries the kind-specific fields of a node. Only the fields
// relevant to the node's kind are read.
type NodeConfig struct {
	// tool_call
	ToolName   string         `json:"tool_name,omitempty" yaml:"tool_name"`
	ToolParams map[string]any `json:"tool_params,omitempty" yaml:"tool_params"`

	// data_access: "artifact:<agent>" or "variable:<name>"
	Source string `json:"source,omitempty" yaml:"source"`

	// react and loop
	ReactPrompt string `json:"react_prompt,omitempty" yaml:"react_prompt"`

	// condition
	Condition string `json:"condition,omitempty" yaml:"condition"`

	// loop
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations"`

	// StoreAs names the context variable receiving the node result, in
	// addition to the conventional output variable. Optional.
	StoreAs string `json:"store_as,omitempty" yaml:"store_as"`
}

// Node is one typed step of a workflow graph.
type Node struct {
	ID     string     `json:"id" yaml:"id"`
	Kind   NodeKind   `json:"kind" yaml:"kind"`
	Name   string     `json:"name,omitempty" yaml:"name"`
	Config NodeConfig `json:"config" yaml:"config"`

	// Next is the single successor. Condition nodes use NextTrue/NextFalse
	// instead. All empty means the workflow stops after this node.
	Next      string `json:"next,omitempty" yaml:"next"`
	NextTrue  string `json:"next_true,omitempty" yaml:"next_true"`
	NextFalse string `json:"next_false,omitempty" yaml:"next_false"`
}

// Workflow is a directed graph of typed steps attached to exactly one agent.
type Workflow struct {
	ID            string           `json:"id" yaml:"id"`
	Agent         core.AgentID     `json:"agent" yaml:"agent"`
	Nodes         map[string]*Node `json:"nodes" yaml:"nodes"`
	StartNode     string           `json:"start_node" yaml:"start_node"`
	GoalCondition string           `json:"goal_condition" yaml:"goal_condition"`
}

// Validate checks the structural invariants: the start node and every node
// referenced as a successor must exist in the workflow's own node set.
func (w *Workflow) Validate() error {
	if w.StartNode == "" {
		return &core.ConfigurationError{Reason: fmt.Sprintf("workflow %q has no start node", w.ID)}
	}
	if _, ok := w.Nodes[w.StartNode]; !ok {
		return &core.ConfigurationError{Reason: fmt.Sprintf("workflow %q start node %q does not exist", w.ID, w.StartNode)}
	}
	for id, node := range w.Nodes {
		for _, next := range []string{node.Next, node.NextTrue, node.NextFalse} {
			if next == "" {
				continue
			}
			if _, ok := w.Nodes[next]; !ok {
				return &core.ConfigurationError{Reason: fmt.Sprintf("workflow %q node %q references missing node %q", w.ID, id, next)}
			}
		}
	}
	return nil
}
