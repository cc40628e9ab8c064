package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/runtime"
	"github.com/hupe1980/agentforge/store"
	"github.com/hupe1980/agentforge/workflow"
)

// AgentDef declares one agent of a pipeline.
type AgentDef struct {
	ID                 core.AgentID `yaml:"id"`
	Scenario           string       `yaml:"scenario"`
	SystemPrompt       string       `yaml:"system_prompt"`
	SystemPromptExtra  string       `yaml:"system_prompt_extra"`
	SuggestedQuestions []string     `yaml:"suggested_questions"`

	// Collection selects the store namespace for the agent's artifacts.
	// Defaults to gdd.
	Collection string `yaml:"collection"`
}

// Pipeline is a declarative multi-agent setup.
type Pipeline struct {
	Name        string               `yaml:"name"`
	Mode        core.RunMode         `yaml:"mode"`
	Agents      []AgentDef           `yaml:"agents"`
	Connections []core.Connection    `yaml:"connections"`
	Workflows   []*workflow.Workflow `yaml:"workflows"`
}

// knownCollections is the closed set accepted in agent definitions.
var knownCollections = map[string]store.Collection{
	"gdd":       store.CollectionGDD,
	"assets":    store.CollectionAssets,
	"code":      store.CollectionCode,
	"workflows": store.CollectionWorkflows,
	"configs":   store.CollectionConfigs,
}

// Parse decodes a pipeline definition and applies defaults. The result is
// validated.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition: %w", err)
	}

	if p.Mode == "" {
		p.Mode = core.ModeAutomatic
	}
	for _, wf := range p.Workflows {
		for id, node := range wf.Nodes {
			if node.ID == "" {
				node.ID = id
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and parses a pipeline definition file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition: %w", err)
	}
	return Parse(data)
}

// Validate checks the definition's internal consistency: unique agent ids,
// a known run mode and collections, connections and workflows referring only
// to declared agents, and structurally valid workflow graphs.
func (p *Pipeline) Validate() error {
	if len(p.Agents) == 0 {
		return &core.ConfigurationError{Reason: "pipeline declares no agents"}
	}
	if p.Mode != core.ModeAutomatic && p.Mode != core.ModeInteractive {
		return &core.ConfigurationError{Reason: fmt.Sprintf("unknown run mode %q", p.Mode)}
	}

	ids := make(map[core.AgentID]bool, len(p.Agents))
	for _, a := range p.Agents {
		if a.ID == "" || a.ID == core.Broadcast {
			return &core.ConfigurationError{Reason: fmt.Sprintf("invalid agent id %q", a.ID)}
		}
		if ids[a.ID] {
			return &core.ConfigurationError{Reason: fmt.Sprintf("duplicate agent id %q", a.ID)}
		}
		ids[a.ID] = true

		if a.Scenario == "" {
			return &core.ConfigurationError{Reason: fmt.Sprintf("agent %q has no scenario", a.ID)}
		}
		if a.Collection != "" {
			if _, ok := knownCollections[a.Collection]; !ok {
				return &core.ConfigurationError{Reason: fmt.Sprintf("agent %q uses unknown collection %q", a.ID, a.Collection)}
			}
		}
	}

	for _, c := range p.Connections {
		if !ids[c.From] || !ids[c.To] {
			return &core.ConfigurationError{Reason: fmt.Sprintf("connection %s -> %s references an undeclared agent", c.From, c.To)}
		}
	}

	seenWorkflows := make(map[string]bool, len(p.Workflows))
	for _, wf := range p.Workflows {
		if seenWorkflows[wf.ID] {
			return &core.ConfigurationError{Reason: fmt.Sprintf("duplicate workflow id %q", wf.ID)}
		}
		seenWorkflows[wf.ID] = true

		if !ids[wf.Agent] {
			return &core.ConfigurationError{Reason: fmt.Sprintf("workflow %q names undeclared agent %q", wf.ID, wf.Agent)}
		}
		if err := wf.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Apply registers the pipeline's agents, workflows and connections on the
// engine.
func (p *Pipeline) Apply(e *engine.Engine) error {
	for _, a := range p.Agents {
		profile := &runtime.StaticProfile{
			ID:              a.ID,
			Prompt:          a.SystemPrompt,
			Scenario:        a.Scenario,
			StoreCollection: knownCollections[a.Collection],
		}
		cfg := core.AgentConfig{
			Scenario:           a.Scenario,
			SystemPromptExtra:  a.SystemPromptExtra,
			SuggestedQuestions: a.SuggestedQuestions,
		}
		if err := e.RegisterAgent(profile, cfg); err != nil {
			return err
		}
	}

	for _, wf := range p.Workflows {
		if err := e.SetWorkflow(wf); err != nil {
			return err
		}
	}

	return e.SetConnections(p.Connections)
}
