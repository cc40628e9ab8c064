// Package workflow implements the optional per-agent node graph that
// overrides the default reasoning loop. A workflow is a set of typed nodes
// (tool_call, data_access, react, condition, loop) executed one at a time
// from the start node, with the goal condition re-evaluated after every node
// and {{...}} placeholders substituted from the execution context.
package workflow
