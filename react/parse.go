package react

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/agentforge/core"
)

// Protocol labels. Sections are extracted by locating each label and taking
// the text up to the next label or end of input.
const (
	labelThought     = "Thought:"
	labelAction      = "Action:"
	labelActionInput = "Action Input:"
)

// parseStep extracts a reasoning step from the model's free-text reply.
//
// A reply with no Action label defaults to FINISH with the whole reply as
// result, so unparseable output terminates the loop instead of spinning it.
func parseStep(text string) core.ReActStep {
	step := core.ReActStep{
		Thought: section(text, labelThought),
		Action:  section(text, labelAction),
	}

	rawInput := section(text, labelActionInput)
	step.ActionInput = parseActionInput(rawInput)

	if step.Action == "" {
		step.Action = core.ActionFinish
		if rawInput == "" {
			step.ActionInput = strings.TrimSpace(text)
		}
	}

	return step
}

// section returns the trimmed text between label and the next label (or end
// of text), or "" when the label is absent.
func section(text, label string) string {
	start := strings.Index(text, label)
	if start < 0 {
		return ""
	}
	rest := text[start+len(label):]

	end := len(rest)
	for _, next := range []string{labelThought, labelAction, labelActionInput} {
		if next == label {
			continue
		}
		if idx := strings.Index(rest, next); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(rest[:end])
}

// parseActionInput decodes the input as JSON when it looks well-formed,
// otherwise keeps the raw string.
func parseActionInput(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// asArgs coerces an action input into the argument map tools expect. Scalar
// inputs are wrapped under "input" so simple tools still receive them.
func asArgs(input any) map[string]any {
	switch t := input.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return t
	default:
		return map[string]any{"input": t}
	}
}
