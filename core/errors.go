package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the orchestration engine. Callers match them with
// errors.Is after unwrapping.
var (
	// ErrToolNotFound: a workflow node or reasoning step named a tool the
	// registry does not hold. Fatal to the current run.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNodeNotFound: a workflow referenced a node id outside its own node
	// set. Fatal to the current run.
	ErrNodeNotFound = errors.New("workflow node not found")

	// ErrUnknownDataSource: a data_access node used a source prefix other
	// than "artifact:" or "variable:". Fatal to the current run.
	ErrUnknownDataSource = errors.New("unknown data source")

	// ErrMaxIterations: the reasoning loop exhausted its iteration budget
	// without FINISH. Non-fatal; reported as an unsuccessful result the
	// caller may escalate.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrModelFailure wraps a language-model call failure. Fatal to the
	// current reasoning round; no local retry.
	ErrModelFailure = errors.New("language model failure")

	// ErrNotAwaitingApproval: approve/reject was called while the agent was
	// not in waiting_for_approval. Rejected synchronously, caller error.
	ErrNotAwaitingApproval = errors.New("agent is not awaiting approval")

	// ErrAgentNotFound: an operation named an identity with no registered
	// runtime.
	ErrAgentNotFound = errors.New("agent not found")
)

// ConfigurationError reports a configuration that can never run: a missing
// scenario, or a connection graph with no valid start set. It is surfaced
// before any agent starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
