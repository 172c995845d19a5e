package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus is tracked client-side only; transcripts fetched from the
// backend are always StatusSent.
type MessageStatus string

const (
	StatusSent    MessageStatus = "sent"
	StatusPending MessageStatus = "pending"
	StatusFailed  MessageStatus = "failed"
)

// Derived message kinds stored under Metadata["type"].
const (
	KindQA          = "qa"
	KindResearch    = "research"
	KindTranslation = "translation"
)

// Message is one entry of a session transcript.
type Message struct {
	// ID is a client-local identity used to reconcile optimistic entries.
	ID        string         `json:"id,omitempty"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    MessageStatus  `json:"status,omitempty"`
}

// Kind returns the derived artifact type, or "" for ordinary turns.
func (m Message) Kind() string {
	if m.Metadata == nil {
		return ""
	}
	kind, _ := m.Metadata["type"].(string)
	return kind
}
