package coordinator

import (
	"context"
	"strings"

	"chatdesk/clients/backendclient"
	"chatdesk/internal/logger"
	"chatdesk/models"
	"chatdesk/state"
)

// SendMessage sends text in the current session, creating a general session
// first when none is current.
//
// The user's turn is shown immediately as a pending entry. On success that
// same entry is confirmed and the assistant reply appended after it; on
// failure it is marked failed and stays in the timeline. If the timeline was
// reloaded in the meantime the transcript is fetched again. The catalog is
// refreshed before SendMessage returns so the session's recency is current.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, c.fail(ctx, KindValidation, OpSendMessage, c.store.CurrentSessionID(), ErrEmptyMessage, "Message is empty")
	}

	end := c.store.Begin()
	defer end()

	sess, err := c.ensureSession(ctx, models.ModeGeneral)
	if err != nil {
		return models.Message{}, err
	}

	ctx, op := c.tag(ctx, OpSendMessage, sess.ID)
	model := c.selectedModel()

	var local models.Message
	if _, err := c.store.UpdateIfCurrent(sess.ID, func(tx *state.Tx) error {
		local = tx.Timeline.AppendOptimistic(models.Message{Content: text, Timestamp: c.now()})
		return nil
	}); err != nil {
		return models.Message{}, c.fail(ctx, KindTransport, OpSendMessage, sess.ID, err, "Failed to send message")
	}

	reply, err := c.backend.Chat(ctx, sess.ID, backendclient.ChatRequest{
		Message:     text,
		Model:       model,
		Temperature: c.chat.Temperature,
	})
	if err != nil {
		if applied, _ := c.store.UpdateIfCurrent(sess.ID, func(tx *state.Tx) error {
			tx.Timeline.MarkFailed(local.ID)
			return nil
		}); !applied {
			logDiscarded(op)
		}
		return models.Message{}, c.fail(ctx, KindTransport, OpSendMessage, sess.ID, err, "Failed to send message")
	}

	user := models.Message{Role: models.RoleUser, Content: text}
	assistant := models.Message{
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: c.now(),
		Metadata:  map[string]any{"model": model},
	}
	reconciled := false
	applied, _ := c.store.UpdateIfCurrent(sess.ID, func(tx *state.Tx) error {
		reconciled = tx.Timeline.Reconcile(local.ID, user, assistant)
		return nil
	})
	switch {
	case !applied:
		logDiscarded(op)
	case !reconciled:
		// the timeline was reloaded while the reply was in flight
		if err := c.LoadTranscript(ctx, sess.ID); err != nil {
			logger.WarnWithFields("transcript reload after send failed", logger.Fields{"session_id": sess.ID})
		}
	}

	if err := c.LoadSessions(ctx); err != nil {
		logger.WarnWithFields("catalog refresh after send failed", logger.Fields{"session_id": sess.ID})
	}
	return assistant, nil
}
