package state

import (
	"maps"

	"github.com/google/uuid"

	"chatdesk/models"
)

// Timeline is the ordered transcript of the current session.
// Fetched transcripts are kept exactly as the backend returned them. Locally
// built entries are appended with their timestamp clamped so it never goes
// behind the last entry.
type Timeline struct {
	sessionID string
	messages  []models.Message
}

// Load replaces the whole timeline with a fetched transcript.
func (t *Timeline) Load(sessionID string, msgs []models.Message) {
	t.sessionID = sessionID
	t.messages = make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Status == "" {
			m.Status = models.StatusSent
		}
		t.messages = append(t.messages, m)
	}
}

// Reset empties the timeline for a freshly created session.
func (t *Timeline) Reset(sessionID string) {
	t.sessionID = sessionID
	t.messages = nil
}

func (t *Timeline) SessionID() string {
	return t.sessionID
}

// AppendOptimistic appends the user's own turn before the backend confirms it.
// The returned message carries the identity used by Reconcile and MarkFailed.
func (t *Timeline) AppendOptimistic(m models.Message) models.Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Role = models.RoleUser
	m.Status = models.StatusPending
	return t.append(m)
}

// Reconcile replaces the optimistic entry identified by localID with the
// confirmed user turn and appends the assistant reply.
//
// If the optimistic entry is gone the timeline was reloaded after the send
// was issued and may already hold the persisted pair. Nothing is changed and
// false is returned; the caller reloads the transcript instead.
func (t *Timeline) Reconcile(localID string, user, assistant models.Message) bool {
	i := t.index(localID)
	if i < 0 {
		return false
	}
	user.ID = localID
	user.Status = models.StatusSent
	user.Timestamp = t.messages[i].Timestamp
	t.messages[i] = user

	if assistant.ID == "" {
		assistant.ID = uuid.NewString()
	}
	assistant.Status = models.StatusSent
	t.append(assistant)
	return true
}

// MarkFailed flags an optimistic entry whose send did not go through.
func (t *Timeline) MarkFailed(localID string) bool {
	i := t.index(localID)
	if i < 0 {
		return false
	}
	t.messages[i].Status = models.StatusFailed
	return true
}

// AppendDerived appends a generated artifact tagged with kind.
func (t *Timeline) AppendDerived(m models.Message, kind string) models.Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	meta := maps.Clone(m.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["type"] = kind
	m.Metadata = meta
	m.Status = models.StatusSent
	return t.append(m)
}

func (t *Timeline) Messages() []models.Message {
	return append([]models.Message(nil), t.messages...)
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) append(m models.Message) models.Message {
	if n := len(t.messages); n > 0 {
		if last := t.messages[n-1].Timestamp; m.Timestamp.Before(last) {
			m.Timestamp = last
		}
	}
	t.messages = append(t.messages, m)
	return m
}

func (t *Timeline) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}
