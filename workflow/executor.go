package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/internal/expr"
	"github.com/hupe1980/agentforge/internal/placeholder"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/react"
	"github.com/hupe1980/agentforge/tool"
)

// DefaultMaxSteps bounds one workflow run. A graph whose goal never becomes
// true may legitimately cycle, but an unbounded run would hang the owning
// agent forever; exceeding the budget is surfaced as a run failure.
const DefaultMaxSteps = 1000

// Options configures an Executor.
type Options struct {
	// MaxSteps bounds the number of node executions per run.
	MaxSteps int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Executor drives one agent's workflow graph deterministically, node by
// node, until the goal condition is met or the graph is exhausted. It holds
// no per-run state and is safe for concurrent runs.
type Executor struct {
	tools   *tool.Registry
	reactor *react.Executor
	opts    Options
}

// NewExecutor constructs an Executor over a tool registry and a reasoning
// loop (used by react and loop nodes).
func NewExecutor(tools *tool.Registry, reactor *react.Executor, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &Executor{tools: tools, reactor: reactor, opts: opts}
}

// Run executes the workflow against the context and returns the final
// output. Any node failure aborts the whole run; the owning agent runtime
// treats that as a fatal iteration error.
func (e *Executor) Run(ctx context.Context, wf *Workflow, execCtx *core.ExecutionContext) (string, error) {
	current := wf.StartNode

	for steps := 0; steps < e.opts.MaxSteps; steps++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		node, ok := wf.Nodes[current]
		if !ok {
			return "", fmt.Errorf("%w: %q in workflow %q", core.ErrNodeNotFound, current, wf.ID)
		}

		result, err := e.executeNode(ctx, wf, node, execCtx)
		if err != nil {
			return "", fmt.Errorf("node %q: %w", node.ID, err)
		}

		execCtx.History = append(execCtx.History, core.StepRecord{NodeID: node.ID, Result: result})
		e.recordResult(node, result, execCtx)

		e.opts.Logger.Debug("workflow.node_done", "workflow", wf.ID, "node", node.ID, "kind", node.Kind)

		if e.goalMet(wf, execCtx) {
			return execCtx.Output(), nil
		}

		next := nextNode(node, result)
		if next == "" {
			return execCtx.Output(), nil
		}
		current = next
	}

	return "", fmt.Errorf("workflow %q exceeded %d steps without reaching its goal", wf.ID, e.opts.MaxSteps)
}

// executeNode dispatches on the node kind.
func (e *Executor) executeNode(ctx context.Context, wf *Workflow, node *Node, execCtx *core.ExecutionContext) (any, error) {
	switch node.Kind {
	case NodeToolCall:
		return e.executeToolCall(ctx, node, execCtx)
	case NodeDataAccess:
		return executeDataAccess(node, execCtx)
	case NodeReact:
		return e.executeReact(ctx, node, execCtx)
	case NodeCondition:
		return e.executeCondition(node, execCtx)
	case NodeLoop:
		return e.executeLoop(ctx, wf, node, execCtx)
	default:
		return nil, fmt.Errorf("unknown node kind %q", node.Kind)
	}
}

func (e *Executor) executeToolCall(ctx context.Context, node *Node, execCtx *core.ExecutionContext) (any, error) {
	t, err := e.tools.Resolve(node.Config.ToolName)
	if err != nil {
		return nil, err
	}
	params := placeholder.SubstituteParams(node.Config.ToolParams, execCtx)
	return t.Call(ctx, execCtx, params)
}

// executeDataAccess reads a predecessor artifact reference or a context
// variable. Any other source prefix is an UnknownDataSource failure.
func executeDataAccess(node *Node, execCtx *core.ExecutionContext) (any, error) {
	source := node.Config.Source
	switch {
	case strings.HasPrefix(source, SourceArtifactPrefix):
		agent := core.AgentID(strings.TrimPrefix(source, SourceArtifactPrefix))
		return execCtx.PredecessorArtifacts[agent], nil
	case strings.HasPrefix(source, SourceVariablePrefix):
		v, _ := execCtx.Variable(strings.TrimPrefix(source, SourceVariablePrefix))
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDataSource, source)
	}
}

// executeReact runs the reasoning loop with the substituted prompt. An
// unsuccessful loop (budget exhausted) fails the node: the workflow has no
// output to carry forward.
func (e *Executor) executeReact(ctx context.Context, node *Node, execCtx *core.ExecutionContext) (any, error) {
	prompt := placeholder.Substitute(node.Config.ReactPrompt, execCtx)
	result, err := e.reactor.Run(ctx, prompt, execCtx)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: react node gave up after %d steps", core.ErrMaxIterations, len(result.Steps))
	}
	return result.Output, nil
}

// executeCondition evaluates the branch expression. Unlike goal conditions,
// a malformed branch expression fails the node.
func (e *Executor) executeCondition(node *Node, execCtx *core.ExecutionContext) (any, error) {
	condition := placeholder.Substitute(node.Config.Condition, execCtx)
	value, err := expr.Evaluate(condition, execCtx)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %v", node.Config.Condition, err)
	}
	return value, nil
}

// executeLoop repeats a bounded reasoning pass, re-evaluating the workflow
// goal before each pass as an early-exit check. Without a configured prompt
// the loop degenerates to a bounded goal re-check.
func (e *Executor) executeLoop(ctx context.Context, wf *Workflow, node *Node, execCtx *core.ExecutionContext) (any, error) {
	maxIters := node.Config.MaxIterations
	if maxIters <= 0 {
		maxIters = 1
	}

	var last any
	for i := 0; i < maxIters; i++ {
		if e.goalMet(wf, execCtx) {
			break
		}
		if node.Config.ReactPrompt == "" {
			continue
		}
		result, err := e.executeReact(ctx, node, execCtx)
		if err != nil {
			return nil, err
		}
		last = result
		e.recordResult(node, result, execCtx)
	}
	return last, nil
}

// recordResult stores a node result into the context: the conventional
// output variable plus an optional named variable. Condition results only
// steer branching and are not treated as output.
func (e *Executor) recordResult(node *Node, result any, execCtx *core.ExecutionContext) {
	if node.Config.StoreAs != "" {
		execCtx.SetVariable(node.Config.StoreAs, result)
	}
	if node.Kind == NodeCondition || result == nil {
		return
	}
	execCtx.SetVariable(core.OutputVariable, stringify(result))
}

// goalMet evaluates the workflow goal condition. A malformed goal expression
// counts as "not yet met", never as a run failure.
func (e *Executor) goalMet(wf *Workflow, execCtx *core.ExecutionContext) bool {
	if wf.GoalCondition == "" {
		return false
	}
	met, err := expr.Evaluate(wf.GoalCondition, execCtx)
	if err != nil {
		e.opts.Logger.Warn("workflow.goal_unparseable", "workflow", wf.ID, "error", err.Error())
		return false
	}
	return met
}

// nextNode computes the successor: condition nodes pick a branch by their
// boolean result, everything else follows Next.
func nextNode(node *Node, result any) string {
	if node.Kind == NodeCondition {
		if b, ok := result.(bool); ok && b {
			return node.NextTrue
		}
		return node.NextFalse
	}
	return node.Next
}

// stringify renders a node result for the output variable.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
