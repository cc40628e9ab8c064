package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentforge/bus"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/internal/expr"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/react"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/workflow"
)

// DefaultMaxLoopIterations bounds the outer agent loop. An agent whose goal
// never becomes true must not iterate forever; exceeding the budget is a
// terminal error.
const DefaultMaxLoopIterations = 25

// Options configures a Runtime.
type Options struct {
	// Workflow, when set, replaces the default reasoning pass with a
	// deterministic graph execution per iteration.
	Workflow *workflow.Workflow

	// MaxLoopIterations bounds the outer agent loop.
	MaxLoopIterations int

	// ReactMaxIterations bounds each reasoning pass.
	ReactMaxIterations int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Runtime drives the lifecycle of one agent: a loop of iterations through
// the attached workflow or the default reasoning pass, gated by the run mode
// and steered by user input, approvals, pause/resume and stop. All exported
// methods are safe for concurrent use.
//
// A Runtime runs at most once. After it reaches a terminal status it must be
// re-created, not restarted.
type Runtime struct {
	profile Profile
	config  core.AgentConfig
	bus     *bus.Bus
	store   store.Store
	tools   *tool.Registry
	reactor *react.Executor
	wfExec  *workflow.Executor
	opts    Options
	logger  logging.Logger

	mu               sync.Mutex
	cond             *sync.Cond
	status           core.AgentStatus
	mode             core.RunMode
	execCtx          *core.ExecutionContext
	predecessors     map[core.AgentID]string
	currentQuestion  string
	pendingArtifact  string
	approvedArtifact string
	goalAchieved     bool
	hasUserInput     bool
	stopRequested    bool
	active           bool
	handle           *bus.Handle
	done             chan struct{}
}

// New constructs a Runtime from a profile, its configuration and the shared
// infrastructure. The runtime starts in idle; call Start to begin iterating.
func New(profile Profile, cfg core.AgentConfig, b *bus.Bus, st store.Store, m model.Model, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		MaxLoopIterations:  DefaultMaxLoopIterations,
		ReactMaxIterations: react.DefaultMaxIterations,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxLoopIterations <= 0 {
		opts.MaxLoopIterations = DefaultMaxLoopIterations
	}

	r := &Runtime{
		profile:      profile,
		config:       cfg,
		bus:          b,
		store:        st,
		opts:         opts,
		logger:       opts.Logger,
		status:       core.StatusIdle,
		predecessors: make(map[core.AgentID]string),
	}
	r.cond = sync.NewCond(&r.mu)

	r.tools = tool.NewRegistry(profile.Tools()...)
	r.reactor = react.NewExecutor(m, r.tools, func(o *react.Options) {
		o.SystemPrompt = r.systemPrompt()
		o.MaxIterations = opts.ReactMaxIterations
		o.Logger = opts.Logger
		o.OnProgress = func(step core.ReActStep) {
			r.publishProgress(step.Thought, map[string]any{
				"action":      step.Action,
				"observation": step.Observation,
			})
		}
	})
	r.wfExec = workflow.NewExecutor(r.tools, r.reactor, func(o *workflow.Options) {
		o.Logger = opts.Logger
	})

	return r
}

// Identity returns the agent identity this runtime drives.
func (r *Runtime) Identity() core.AgentID { return r.profile.Identity() }

// Status returns the current lifecycle status.
func (r *Runtime) Status() core.AgentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Active reports whether the run loop is currently executing. A stopped
// runtime stays active until its loop has unwound past the next checkpoint.
func (r *Runtime) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Record returns a read-only snapshot of the externally visible state.
func (r *Runtime) Record() core.LifecycleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.LifecycleRecord{
		Status:          r.status,
		CurrentQuestion: r.currentQuestion,
		PendingArtifact: r.pendingArtifact,
		Config:          r.config,
	}
}

// Done returns a channel closed when the run loop has exited. Nil before
// Start.
func (r *Runtime) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// SetPredecessorArtifact records the artifact key produced by a preceding
// agent, made available to the run as artifacts.<agent>. Must be called
// before Start.
func (r *Runtime) SetPredecessorArtifact(agent core.AgentID, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predecessors[agent] = key
}

// Start validates the configuration and launches the run loop. Starting an
// already active runtime is a no-op; a terminal runtime cannot be restarted.
// An empty scenario (after the profile's default) fails with a
// ConfigurationError.
func (r *Runtime) Start(ctx context.Context, initialVariables map[string]any, mode core.RunMode) error {
	r.mu.Lock()

	if r.status.Terminal() {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("agent %q is %s and must be re-created", r.profile.Identity(), status)
	}
	if r.active {
		r.mu.Unlock()
		return nil
	}

	if r.config.Scenario == "" {
		r.config.Scenario = r.profile.DefaultScenario()
	}
	if err := r.config.Validate(); err != nil {
		r.mu.Unlock()
		return err
	}

	r.execCtx = core.NewExecutionContext()
	for name, value := range initialVariables {
		r.execCtx.SetVariable(name, value)
	}
	for agent, key := range r.predecessors {
		r.execCtx.PredecessorArtifacts[agent] = key
	}

	r.mode = mode
	r.status = core.StatusRunning
	r.goalAchieved = false
	r.approvedArtifact = ""
	r.hasUserInput = false
	r.stopRequested = false
	r.active = true
	r.handle = r.bus.Register(r.profile.Identity())
	done := make(chan struct{})
	r.done = done
	handle := r.handle
	r.mu.Unlock()

	r.bus.Publish(core.NewStartMessage(r.profile.Identity()))
	r.logger.Info("agent.start", "agent", r.profile.Identity(), "mode", mode)

	go r.consume(handle)
	go func() {
		defer func() {
			r.mu.Lock()
			r.active = false
			r.mu.Unlock()
			close(done)
		}()
		defer r.unbind()
		r.loop(ctx)
	}()

	return nil
}

// Pause suspends the loop at its next checkpoint. In-flight model or tool
// calls are not interrupted. No-op unless running.
func (r *Runtime) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == core.StatusRunning {
		r.status = core.StatusPaused
		r.logger.Info("agent.pause", "agent", r.profile.Identity())
	}
}

// Resume continues a paused loop. No-op unless paused.
func (r *Runtime) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == core.StatusPaused {
		r.status = core.StatusRunning
		r.cond.Broadcast()
		r.logger.Info("agent.resume", "agent", r.profile.Identity())
	}
}

// Stop forces the runtime back to idle without emitting a completion. The
// loop exits at its next checkpoint; in-flight calls finish but their
// results are discarded. No-op when already idle or terminal.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == core.StatusIdle || r.status.Terminal() {
		return
	}
	r.stopRequested = true
	r.status = core.StatusIdle
	r.currentQuestion = ""
	r.pendingArtifact = ""
	r.cond.Broadcast()
	r.logger.Info("agent.stop", "agent", r.profile.Identity())
}

// ReceiveUserMessage queues user input for the next loop checkpoint. When
// the runtime is waiting for user input, it resumes.
func (r *Runtime) ReceiveUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.execCtx == nil || r.status.Terminal() {
		return
	}
	r.execCtx.EnqueueUserMessage(text)
	r.hasUserInput = true
	if r.status == core.StatusWaitingForUser {
		r.status = core.StatusRunning
		r.currentQuestion = ""
		r.cond.Broadcast()
	}
}

// ApproveArtifact resolves a pending approval. Approving marks the goal
// achieved; the loop completes on its next pass. Rejecting clears the
// pending artifact and the output so the loop keeps iterating. Calling this
// while the runtime is not awaiting approval fails with
// ErrNotAwaitingApproval.
func (r *Runtime) ApproveArtifact(approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != core.StatusWaitingForApproval {
		return fmt.Errorf("%w: agent %q is %s", core.ErrNotAwaitingApproval, r.profile.Identity(), r.status)
	}
	if approved {
		r.goalAchieved = true
		r.approvedArtifact = r.pendingArtifact
	} else {
		r.pendingArtifact = ""
		r.execCtx.SetVariable(core.OutputVariable, "")
	}
	r.status = core.StatusRunning
	r.cond.Broadcast()
	r.logger.Info("agent.approval", "agent", r.profile.Identity(), "approved", approved)
	return nil
}

// loop is the agent's main run loop. It holds the mutex only at checkpoints;
// workflow and reasoning passes run unlocked, so external control methods
// stay responsive.
func (r *Runtime) loop(ctx context.Context) {
	if !r.interactiveGate() {
		return
	}

	for {
		r.mu.Lock()
		for r.status == core.StatusPaused && !r.stopRequested {
			r.cond.Wait()
		}
		if r.stopRequested {
			r.mu.Unlock()
			return
		}
		if r.goalAchieved {
			r.mu.Unlock()
			r.complete()
			return
		}

		r.execCtx.Iteration++
		iteration := r.execCtx.Iteration
		pending := r.execCtx.DrainUserMessages()
		r.mu.Unlock()

		if iteration > r.opts.MaxLoopIterations {
			r.fail(fmt.Errorf("%w: agent loop exceeded %d iterations", core.ErrMaxIterations, r.opts.MaxLoopIterations))
			return
		}

		r.foldUserMessages(pending)
		r.publishProgress(fmt.Sprintf("iteration %d", iteration), map[string]any{"iteration": iteration})

		if err := r.iterate(ctx); err != nil {
			r.fail(err)
			return
		}

		r.mu.Lock()
		if r.stopRequested {
			r.mu.Unlock()
			return
		}
		if !r.goalMet() {
			r.mu.Unlock()
			continue
		}

		if r.mode == core.ModeInteractive && !r.goalAchieved {
			r.status = core.StatusWaitingForApproval
			r.pendingArtifact = r.profile.FinalizeArtifact(r.execCtx.Output())
			artifact := r.pendingArtifact
			r.mu.Unlock()

			r.publishProgress("artifact ready for approval", map[string]any{
				"status":   string(core.StatusWaitingForApproval),
				"artifact": artifact,
			})

			r.mu.Lock()
			for r.status == core.StatusWaitingForApproval && !r.stopRequested {
				r.cond.Wait()
			}
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()

		r.complete()
		return
	}
}

// interactiveGate holds the loop in waiting_for_user before the first
// iteration of an interactive run until input arrives. Returns false when
// the run was stopped while waiting.
func (r *Runtime) interactiveGate() bool {
	r.mu.Lock()
	if r.mode != core.ModeInteractive || r.hasUserInput {
		r.mu.Unlock()
		return true
	}

	r.status = core.StatusWaitingForUser
	r.currentQuestion = r.initialQuestion()
	question := r.currentQuestion
	r.mu.Unlock()

	r.publishProgress(question, map[string]any{
		"status":              string(core.StatusWaitingForUser),
		"suggested_questions": r.config.SuggestedQuestions,
	})

	r.mu.Lock()
	for r.status == core.StatusWaitingForUser && !r.stopRequested {
		r.cond.Wait()
	}
	stopped := r.stopRequested
	r.mu.Unlock()

	return !stopped
}

// iterate runs one pass: the attached workflow when present, otherwise a
// reasoning pass over the scenario. An exhausted reasoning budget is fatal
// at this level; there is no output to carry forward.
func (r *Runtime) iterate(ctx context.Context) error {
	if r.opts.Workflow != nil {
		_, err := r.wfExec.Run(ctx, r.opts.Workflow, r.execCtx)
		return err
	}

	result, err := r.reactor.Run(ctx, r.buildTask(), r.execCtx)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: reasoning pass gave up after %d steps", core.ErrMaxIterations, len(result.Steps))
	}

	r.execCtx.SetVariable(core.OutputVariable, outputString(result.Output))
	return nil
}

// goalMet evaluates the run's completion criterion under the mutex: the
// workflow's goal condition when one is configured, otherwise "an output has
// been produced". A malformed goal expression counts as not met.
func (r *Runtime) goalMet() bool {
	if wf := r.opts.Workflow; wf != nil && wf.GoalCondition != "" {
		met, err := expr.Evaluate(wf.GoalCondition, r.execCtx)
		if err != nil {
			r.logger.Warn("agent.goal_unparseable", "agent", r.profile.Identity(), "error", err.Error())
			return false
		}
		return met
	}
	return r.execCtx.HasOutput()
}

// complete persists the finalized artifact and announces terminal success.
// An approved artifact is persisted exactly as it was approved; finalization
// is not applied a second time.
func (r *Runtime) complete() {
	r.mu.Lock()
	artifact := r.approvedArtifact
	if !r.goalAchieved {
		artifact = r.profile.FinalizeArtifact(r.execCtx.Output())
	}
	key := fmt.Sprintf("%s/%s", r.profile.Identity(), core.NewID())
	r.status = core.StatusCompleted
	r.pendingArtifact = ""
	r.mu.Unlock()

	if err := r.store.Put(r.profile.Collection(), key, []byte(artifact)); err != nil {
		r.logger.Warn("agent.artifact_unpersisted", "agent", r.profile.Identity(), "error", err.Error())
		key = ""
	}

	r.bus.Publish(core.NewCompletionMessage(r.profile.Identity(), artifact, key))
	r.logger.Info("agent.complete", "agent", r.profile.Identity(), "artifact_key", key)
}

// fail announces terminal failure.
func (r *Runtime) fail(err error) {
	r.mu.Lock()
	r.status = core.StatusError
	r.currentQuestion = ""
	r.pendingArtifact = ""
	r.mu.Unlock()

	r.bus.Publish(core.NewErrorMessage(r.profile.Identity(), err))
	r.logger.Error("agent.error", "agent", r.profile.Identity(), "error", err.Error())
}

// consume routes bus deliveries for this identity into the lifecycle
// methods. It exits when the handle is unregistered.
func (r *Runtime) consume(h *bus.Handle) {
	for msg := range h.Messages() {
		switch msg.Type {
		case core.MessageUser, core.MessageSystem:
			r.ReceiveUserMessage(msg.Payload.Content)
		case core.MessageArtifactApproval:
			approved, _ := msg.Payload.Data["approved"].(bool)
			if err := r.ApproveArtifact(approved); err != nil {
				r.logger.Warn("agent.unexpected_approval", "agent", r.profile.Identity(), "error", err.Error())
			}
		}
	}
}

// unbind releases the bus binding, ending the consume goroutine.
func (r *Runtime) unbind() {
	r.mu.Lock()
	h := r.handle
	r.handle = nil
	r.mu.Unlock()
	if h != nil {
		r.bus.Unregister(h)
	}
}

// foldUserMessages appends drained user input to the user_messages context
// variable, visible to prompts and goal expressions.
func (r *Runtime) foldUserMessages(msgs []string) {
	if len(msgs) == 0 {
		return
	}
	existing, _ := r.execCtx.Variable("user_messages")
	list, _ := existing.([]string)
	r.execCtx.SetVariable("user_messages", append(list, msgs...))
}

// buildTask frames one reasoning pass from the scenario plus accumulated
// user guidance.
func (r *Runtime) buildTask() string {
	var b strings.Builder
	b.WriteString(r.config.Scenario)
	if v, ok := r.execCtx.Variable("user_messages"); ok {
		if list, ok := v.([]string); ok && len(list) > 0 {
			b.WriteString("\n\nUser guidance, most recent last:")
			for _, msg := range list {
				b.WriteString("\n- ")
				b.WriteString(msg)
			}
		}
	}
	return b.String()
}

func (r *Runtime) systemPrompt() string {
	prompt := r.profile.SystemPrompt()
	if r.config.SystemPromptExtra != "" {
		prompt += "\n\n" + r.config.SystemPromptExtra
	}
	return prompt
}

func (r *Runtime) initialQuestion() string {
	if len(r.config.SuggestedQuestions) > 0 {
		return r.config.SuggestedQuestions[0]
	}
	return fmt.Sprintf("What should %s focus on?", r.profile.Identity())
}

func (r *Runtime) publishProgress(content string, data map[string]any) {
	r.bus.Publish(core.NewProgressMessage(r.profile.Identity(), content, data))
}

// outputString renders a reasoning result for the output variable.
func outputString(v any) string {
	if v == nil {
		return ""
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
