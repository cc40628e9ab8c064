package runtime

import (
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/tool"
)

// Profile is the per-identity capability bundle composed into a Runtime via
// constructor injection: the tools the agent may call, its system prompt,
// the fallback scenario and how produced artifacts are finalized and filed.
// One implementation exists per agent identity.
type Profile interface {
	// Identity returns the agent identity this profile belongs to.
	Identity() core.AgentID

	// SystemPrompt returns the role framing for the reasoning loop.
	SystemPrompt() string

	// Tools returns the capabilities available to this agent.
	Tools() []tool.Tool

	// DefaultScenario is used when the agent config carries no scenario.
	DefaultScenario() string

	// FinalizeArtifact post-processes the produced artifact before it is
	// persisted and announced.
	FinalizeArtifact(artifact string) string

	// Collection selects the store namespace for this agent's artifacts.
	Collection() store.Collection
}

// StaticProfile is a Profile defined by plain data, sufficient for most
// agents. Zero values fall back to sensible defaults.
type StaticProfile struct {
	ID              core.AgentID
	Prompt          string
	Toolset         []tool.Tool
	Scenario        string
	StoreCollection store.Collection
}

// Identity implements Profile.
func (p *StaticProfile) Identity() core.AgentID { return p.ID }

// SystemPrompt implements Profile.
func (p *StaticProfile) SystemPrompt() string { return p.Prompt }

// Tools implements Profile.
func (p *StaticProfile) Tools() []tool.Tool { return p.Toolset }

// DefaultScenario implements Profile.
func (p *StaticProfile) DefaultScenario() string { return p.Scenario }

// FinalizeArtifact implements Profile as the identity transform.
func (p *StaticProfile) FinalizeArtifact(artifact string) string { return artifact }

// Collection implements Profile, defaulting to the GDD collection.
func (p *StaticProfile) Collection() store.Collection {
	if p.StoreCollection == "" {
		return store.CollectionGDD
	}
	return p.StoreCollection
}
