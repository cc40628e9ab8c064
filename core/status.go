package core

// AgentStatus is the lifecycle state of one agent runtime.
//
// Transitions: idle -> running -> {completed, error}; running <-> paused;
// running -> waiting_for_user -> running; running -> waiting_for_approval
// -> running. completed and error are terminal: a terminal agent must be
// re-created, not restarted in place.
type AgentStatus string

const (
	// StatusIdle is the initial state; the run loop has not started.
	StatusIdle AgentStatus = "idle"
	// StatusRunning means the loop is actively iterating.
	StatusRunning AgentStatus = "running"
	// StatusPaused suspends the loop without losing state.
	StatusPaused AgentStatus = "paused"
	// StatusWaitingForUser blocks the loop until user input arrives.
	StatusWaitingForUser AgentStatus = "waiting_for_user"
	// StatusWaitingForApproval blocks the loop until the produced artifact
	// is approved or rejected.
	StatusWaitingForApproval AgentStatus = "waiting_for_approval"
	// StatusCompleted is terminal success.
	StatusCompleted AgentStatus = "completed"
	// StatusError is terminal failure.
	StatusError AgentStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// RunMode selects how an agent run interacts with a human operator.
type RunMode string

const (
	// ModeAutomatic completes as soon as the goal condition holds.
	ModeAutomatic RunMode = "automatic"
	// ModeInteractive gathers user input before the first iteration and
	// holds the finished artifact for explicit approval.
	ModeInteractive RunMode = "interactive"
)

// AgentConfig is the static configuration attached to one agent identity.
type AgentConfig struct {
	// Scenario is the free-text completion criterion. It is advisory
	// context for the reasoning prompt, not mechanically enforced, but it
	// is required: an empty scenario fails start with a ConfigurationError.
	Scenario string `json:"scenario" yaml:"scenario"`
	// SystemPromptExtra is appended to the agent's system prompt.
	SystemPromptExtra string `json:"system_prompt_extra,omitempty" yaml:"system_prompt_extra"`
	// SuggestedQuestions seed the interactive-mode prompt to the user.
	SuggestedQuestions []string `json:"suggested_questions,omitempty" yaml:"suggested_questions"`
}

// Validate reports a ConfigurationError for configs that cannot run.
func (c AgentConfig) Validate() error {
	if c.Scenario == "" {
		return &ConfigurationError{Reason: "agent scenario must not be empty"}
	}
	return nil
}

// LifecycleRecord is a read-only snapshot of one agent runtime's externally
// visible state, served to the control plane by GetStatus.
type LifecycleRecord struct {
	Status          AgentStatus `json:"status"`
	CurrentQuestion string      `json:"current_question,omitempty"`
	PendingArtifact string      `json:"pending_artifact,omitempty"`
	Config          AgentConfig `json:"config"`
}

// Connection is a directed scheduling edge: To may start only after From has
// completed. The full set of connections must be acyclic.
type Connection struct {
	From AgentID `json:"from" yaml:"from"`
	To   AgentID `json:"to" yaml:"to"`
}
