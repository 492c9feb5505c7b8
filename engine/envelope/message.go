// Package envelope provides the typed message envelope exchanged between
// pipeline steps: a role, text content, and a structured metadata record that
// accumulates as the workflow progresses.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/graphrag-collective/pipeline-engine/engine/faults"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is instruction content supplied by the pipeline.
	RoleSystem Role = "system"
	// RoleUser is end-user content.
	RoleUser Role = "user"
	// RoleAssistant is model or step output.
	RoleAssistant Role = "assistant"
	// RoleTool is output produced by a tool invocation.
	RoleTool Role = "tool"
)

// RoleFromString parses a role, defaulting unknown values to RoleUser.
func RoleFromString(s string) Role {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return Role(s)
	default:
		return RoleUser
	}
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is the envelope passed through the pipeline. Steps receive a message
// carrying the accumulated metadata of all prior steps and return a new one.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh id and an empty metadata record.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        "msg_" + uuid.New().String()[:16],
		Role:      role,
		Content:   content,
		Metadata:  &Metadata{},
		CreatedAt: time.Now().UTC(),
	}
}

// Meta returns the metadata record, allocating it on first use.
func (m *Message) Meta() *Metadata {
	if m.Metadata == nil {
		m.Metadata = &Metadata{}
	}
	return m.Metadata
}

// Clone returns a deep copy sharing no mutable state with the original.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Metadata = m.Metadata.Clone()
	return &out
}

// Reply creates an assistant message carrying forward a deep copy of this
// message's metadata.
func (m *Message) Reply(content string) *Message {
	out := NewMessage(RoleAssistant, content)
	out.Metadata = m.Metadata.Clone()
	if out.Metadata == nil {
		out.Metadata = &Metadata{}
	}
	return out
}

// =============================================================================
// STATE DICT CONVERSION
// =============================================================================

// ToStateDict converts the message to a plain map for process boundaries.
func (m *Message) ToStateDict() (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, faults.Wrap(faults.KindInternal, err, "marshal message")
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, faults.Wrap(faults.KindInternal, err, "remap message")
	}
	return out, nil
}

// MessageFromStateDict reconstructs a message from a plain map.
func MessageFromStateDict(state map[string]any) (*Message, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, err, "marshal state")
	}
	var out Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, faults.Wrap(faults.KindValidation, err, "invalid message state")
	}
	if out.ID == "" {
		out.ID = "msg_" + uuid.New().String()[:16]
	}
	if out.Role == "" {
		out.Role = RoleUser
	}
	return &out, nil
}
