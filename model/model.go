package model

import (
	"context"
	"fmt"
	"sync"
)

// Chat message roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of an ordered conversation sent to a model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the model's reply to a chat exchange.
type ChatResponse struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", ...
}

// Model is the minimal interface the reasoning loop requires. A failed Chat
// call is fatal to the current reasoning round; no retry happens at this
// layer.
type Model interface {
	Chat(ctx context.Context, messages []ChatMessage) (*ChatResponse, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ScriptedModel is a deterministic in-memory Model for tests and examples.
// Replies are returned in enqueue order; when the script is exhausted the
// fallback reply (or an error, if none is set) is returned. It records every
// request for later inspection.
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []string
	fallback string
	err      error
	requests [][]ChatMessage
}

// NewScriptedModel constructs a ScriptedModel with the given ordered replies.
func NewScriptedModel(replies ...string) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Enqueue appends a reply to the script.
func (m *ScriptedModel) Enqueue(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply)
}

// SetFallback sets the reply returned once the script is exhausted.
func (m *ScriptedModel) SetFallback(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = reply
}

// FailWith makes every subsequent Chat call return err.
func (m *ScriptedModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Chat implements Model.
func (m *ScriptedModel) Chat(_ context.Context, messages []ChatMessage) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, messages)

	if m.err != nil {
		return nil, m.err
	}

	var text string
	switch {
	case len(m.replies) > 0:
		text = m.replies[0]
		m.replies = m.replies[1:]
	case m.fallback != "":
		text = m.fallback
	default:
		return nil, fmt.Errorf("scripted model: no reply for request %d", len(m.requests))
	}

	return &ChatResponse{
		Text:  text,
		Usage: TokenUsage{PromptTokens: len(messages), CompletionTokens: 1, TotalTokens: len(messages) + 1},
	}, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return Info{Name: "scripted", Provider: "scripted"} }

// Requests returns a snapshot of all recorded chat requests.
func (m *ScriptedModel) Requests() [][]ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]ChatMessage, len(m.requests))
	copy(out, m.requests)
	return out
}
