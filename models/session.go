package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SessionMode distinguishes open-domain chats from document-grounded chats.
type SessionMode string

const (
	ModeGeneral  SessionMode = "general"
	ModeDocument SessionMode = "document"
)

// wireDocumentMode is the value the backend stores for document sessions.
const wireDocumentMode = "pdf"

// ParseSessionMode accepts both the client and the backend spelling.
func ParseSessionMode(s string) SessionMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeDocument), wireDocumentMode:
		return ModeDocument
	default:
		return ModeGeneral
	}
}

// Wire returns the backend representation of the mode.
func (m SessionMode) Wire() string {
	if m == ModeDocument {
		return wireDocumentMode
	}
	return string(ModeGeneral)
}

func (m *SessionMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*m = ParseSessionMode(s)
	return nil
}

// DefaultTitle is the title given to a freshly created session.
func (m SessionMode) DefaultTitle() string {
	if m == ModeDocument {
		return "Document Chat"
	}
	return "New Chat"
}

// Session is a single conversation thread known to the backend.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Mode      SessionMode `json:"mode"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (s Session) IsDocument() bool {
	return s.Mode == ModeDocument
}
