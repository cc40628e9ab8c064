package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/tool"
)

// DefaultMaxIterations bounds a reasoning run when no explicit budget is
// configured.
const DefaultMaxIterations = 10

// ProgressFunc is invoked after every completed step, including the terminal
// FINISH, so external observers can follow a run in flight.
type ProgressFunc func(step core.ReActStep)

// Result is the outcome of one reasoning run. Success is false when the
// iteration budget was exhausted without FINISH; that is a non-fatal
// condition the caller may choose to escalate.
type Result struct {
	Success bool
	Output  any
	Steps   []core.ReActStep
}

// Options configures an Executor.
type Options struct {
	// MaxIterations bounds the number of plan-act-observe rounds.
	MaxIterations int

	// SystemPrompt is prepended to the protocol instructions, typically the
	// agent's role description plus any configured extra.
	SystemPrompt string

	// OnProgress, when set, observes every completed step.
	OnProgress ProgressFunc

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Executor drives the bounded reasoning loop over a model and a tool
// registry. It holds no per-run state and is safe for concurrent runs.
type Executor struct {
	model model.Model
	tools *tool.Registry
	opts  Options
}

// NewExecutor constructs an Executor.
func NewExecutor(m model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Executor{model: m, tools: tools, opts: opts}
}

// Run executes up to MaxIterations reasoning rounds for the given task.
//
// A model failure is fatal and returned as an error wrapping
// core.ErrModelFailure. A missing tool is not fatal: the loop synthesizes an
// observation naming the available tools and continues, consuming the
// iteration. Exhausting the budget returns Result{Success: false} with the
// accumulated steps and a nil error.
func (e *Executor) Run(ctx context.Context, task string, execCtx *core.ExecutionContext) (*Result, error) {
	messages := []model.ChatMessage{
		{Role: model.RoleSystem, Content: e.buildSystemPrompt()},
		{Role: model.RoleUser, Content: e.buildTaskPrompt(task, execCtx)},
	}

	result := &Result{}

	for round := 0; round < e.opts.MaxIterations; round++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := e.model.Chat(ctx, messages)
		if err != nil {
			if !errors.Is(err, core.ErrModelFailure) {
				err = fmt.Errorf("%w: %v", core.ErrModelFailure, err)
			}
			return nil, err
		}

		step := parseStep(resp.Text)

		if step.Action == core.ActionFinish {
			step.Observation = "finished"
			result.Steps = append(result.Steps, step)
			execCtx.Steps = append(execCtx.Steps, step)
			e.reportProgress(step)

			result.Success = true
			result.Output = step.ActionInput

			e.opts.Logger.Debug("react.finish", "rounds", round+1)

			return result, nil
		}

		step.Observation = e.executeAction(ctx, execCtx, step)
		result.Steps = append(result.Steps, step)
		execCtx.Steps = append(execCtx.Steps, step)
		e.reportProgress(step)

		messages = append(messages,
			model.ChatMessage{Role: model.RoleAssistant, Content: resp.Text},
			model.ChatMessage{Role: model.RoleUser, Content: fmt.Sprintf("Observation: %s\n\nContinue. Reply with the next Thought / Action / Action Input, or Action: FINISH when done.", step.Observation)},
		)
	}

	e.opts.Logger.Warn("react.max_iterations", "max", e.opts.MaxIterations)

	// Not fatal here: the caller decides whether to escalate.
	return result, nil
}

// executeAction resolves and invokes the named tool, returning the
// serialized observation. Missing tools and tool failures become
// observations rather than run failures; only the model channel is fatal.
func (e *Executor) executeAction(ctx context.Context, execCtx *core.ExecutionContext, step core.ReActStep) string {
	t, ok := e.tools.Get(step.Action)
	if !ok {
		e.opts.Logger.Warn("react.unknown_tool", "action", step.Action)
		return fmt.Sprintf("tool %q is not available; available tools: %s", step.Action, strings.Join(e.tools.Names(), ", "))
	}

	result, err := t.Call(ctx, execCtx, asArgs(step.ActionInput))
	if err != nil {
		return fmt.Sprintf("tool %q failed: %v", step.Action, err)
	}
	return serialize(result)
}

func (e *Executor) reportProgress(step core.ReActStep) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(step)
	}
}

// buildSystemPrompt composes the protocol instructions plus the available
// tool descriptions.
func (e *Executor) buildSystemPrompt() string {
	var b strings.Builder
	if e.opts.SystemPrompt != "" {
		b.WriteString(e.opts.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Work in steps. Reply with exactly this format:\n")
	b.WriteString("Thought: your reasoning about the next step\n")
	b.WriteString("Action: the tool to use, or FINISH when the task is complete\n")
	b.WriteString("Action Input: JSON arguments for the tool, or the final result when finishing\n")

	defs := e.tools.Definitions()
	if len(defs) > 0 {
		b.WriteString("\nAvailable tools:\n")
		for _, def := range defs {
			b.WriteString(fmt.Sprintf("- %s: %s (parameters: %s)\n", def.Name, def.Description, serialize(def.Parameters)))
		}
	}
	return b.String()
}

// buildTaskPrompt frames the task together with the relevant context state.
func (e *Executor) buildTaskPrompt(task string, execCtx *core.ExecutionContext) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)

	if execCtx != nil {
		if len(execCtx.PredecessorArtifacts) > 0 {
			b.WriteString("\n\nArtifacts from preceding agents:")
			for agent, key := range execCtx.PredecessorArtifacts {
				b.WriteString(fmt.Sprintf("\n- %s: %s", agent, key))
			}
		}
		if len(execCtx.Variables) > 0 {
			b.WriteString("\n\nCurrent variables: ")
			b.WriteString(serialize(execCtx.Variables))
		}
	}
	return b.String()
}

// serialize renders a tool result or value for inclusion in a prompt.
func serialize(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
