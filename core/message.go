package core

import (
	"time"

	"github.com/google/uuid"
)

// AgentID names one agent in the pipeline. The set of valid identities is
// closed and known at configuration time; "all" is reserved for broadcast.
type AgentID string

// Broadcast is the reserved recipient meaning "every connected client".
const Broadcast AgentID = "all"

// Well-known non-agent senders.
const (
	SenderUser   = "user"
	SenderSystem = "system"
)

// MessageType categorizes bus messages. The enum is closed; routing and
// scheduling logic switch over it exhaustively.
type MessageType string

const (
	// MessageAgentStart announces that an agent entered its run loop.
	MessageAgentStart MessageType = "agent_start"
	// MessageAgentComplete carries an agent's final artifact reference.
	MessageAgentComplete MessageType = "agent_complete"
	// MessageAgentError announces a terminal agent failure.
	MessageAgentError MessageType = "agent_error"
	// MessageAgentProgress carries intermediate status for observers.
	MessageAgentProgress MessageType = "agent_progress"
	// MessageUser is free-form user input routed to one agent.
	MessageUser MessageType = "user_message"
	// MessageSystem is control-plane input routed to one agent.
	MessageSystem MessageType = "system_message"
	// MessageArtifactApproval carries an approve/reject decision.
	MessageArtifactApproval MessageType = "artifact_approval"
)

// Payload is the variant body of a Message. Which fields are populated
// depends on the message type; unused fields stay zero.
type Payload struct {
	Content     string         `json:"content,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	ArtifactKey string         `json:"artifact_key,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Message is the unit of communication on the bus. Messages are immutable
// once published; ID is unique across the bus's lifetime.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	From      string      `json:"from"` // AgentID, "user" or "system"
	To        AgentID     `json:"to"`   // concrete identity or Broadcast
	Timestamp time.Time   `json:"timestamp"`
	Payload   Payload     `json:"payload"`
}

// NewID returns a unique identifier for messages and invocations.
func NewID() string { return uuid.NewString() }

// NewMessage creates a message with a fresh ID and UTC timestamp.
func NewMessage(t MessageType, from string, to AgentID, p Payload) Message {
	return Message{
		ID:        NewID(),
		Type:      t,
		From:      from,
		To:        to,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
}

// NewStartMessage announces agent activation to all observers.
func NewStartMessage(from AgentID) Message {
	return NewMessage(MessageAgentStart, string(from), Broadcast, Payload{})
}

// NewProgressMessage carries a human-readable progress note plus optional
// structured data to all observers.
func NewProgressMessage(from AgentID, content string, data map[string]any) Message {
	return NewMessage(MessageAgentProgress, string(from), Broadcast, Payload{Content: content, Data: data})
}

// NewCompletionMessage carries the agent's final output and, when the
// artifact was persisted, its storage key.
func NewCompletionMessage(from AgentID, content, artifactKey string) Message {
	return NewMessage(MessageAgentComplete, string(from), Broadcast, Payload{Content: content, ArtifactKey: artifactKey})
}

// NewErrorMessage announces a terminal agent failure to all observers.
func NewErrorMessage(from AgentID, err error) Message {
	return NewMessage(MessageAgentError, string(from), Broadcast, Payload{Error: err.Error()})
}

// NewUserMessage routes user input to a specific agent.
func NewUserMessage(to AgentID, text string) Message {
	return NewMessage(MessageUser, SenderUser, to, Payload{Content: text})
}

// NewApprovalMessage routes an artifact approval decision to a specific agent.
func NewApprovalMessage(to AgentID, approved bool) Message {
	return NewMessage(MessageArtifactApproval, SenderUser, to, Payload{Data: map[string]any{"approved": approved}})
}

// IsBroadcast reports whether the message targets every connected client.
func (m Message) IsBroadcast() bool { return m.To == Broadcast }
