package coordinator

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"chatdesk/events"
	"chatdesk/internal/logger"
	"chatdesk/models"
	"chatdesk/state"
)

const maxListAttempts = 2

// Bootstrap loads models and sessions concurrently. Both are read-throughs:
// a failure leaves the previous state in place and is only logged.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadModels(ctx) })
	g.Go(func() error { return c.LoadSessions(ctx) })
	return g.Wait()
}

// LoadModels refreshes the model registry. The selection is kept.
func (c *Coordinator) LoadModels(ctx context.Context) error {
	ctx, op := c.tag(ctx, OpLoadModels, "")
	list, err := c.backend.ListModels(ctx)
	if err != nil {
		logger.ErrorWithFields("error loading models", logger.Fields{"op_id": op.ID, "error": err.Error()})
		return &Error{Kind: KindTransport, Op: OpLoadModels, Cause: err}
	}
	return c.store.Update(func(tx *state.Tx) error {
		tx.Registry.Replace(list)
		return nil
	})
}

// LoadSessions replaces the catalog with the backend's list. A list that was
// requested before a local catalog patch (a created session, an upload) is
// stale; it is dropped and the list is fetched once more.
func (c *Coordinator) LoadSessions(ctx context.Context) error {
	ctx, op := c.tag(ctx, OpLoadSessions, "")
	for attempt := 1; ; attempt++ {
		var gen uint64
		c.store.Read(func(tx *state.Tx) {
			gen = tx.Catalog.Generation()
		})

		list, err := c.backend.ListSessions(ctx)
		if err != nil {
			logger.ErrorWithFields("error loading sessions", logger.Fields{"op_id": op.ID, "error": err.Error()})
			return &Error{Kind: KindTransport, Op: OpLoadSessions, Cause: err}
		}

		fresh := true
		if err := c.store.Update(func(tx *state.Tx) error {
			fresh = tx.Catalog.ReplaceIfFresh(gen, list)
			return nil
		}); err != nil {
			return err
		}
		if fresh || attempt == maxListAttempts {
			if !fresh {
				logger.DebugWithFields("discarding stale session list", logger.Fields{"op_id": op.ID, "sessions": len(list)})
			}
			return nil
		}
	}
}

// CreateSession allocates a session on the backend, puts it at the head of
// the catalog and makes it current with an empty timeline.
func (c *Coordinator) CreateSession(ctx context.Context, mode models.SessionMode) (models.Session, error) {
	end := c.store.Begin()
	defer end()

	ctx, _ = c.tag(ctx, OpCreateSession, "")
	sess, err := c.backend.CreateSession(ctx, mode.DefaultTitle(), mode)
	if err != nil {
		return models.Session{}, c.fail(ctx, KindTransport, OpCreateSession, "", err, "Failed to create new chat")
	}
	if sess.Mode == "" {
		sess.Mode = mode
	}

	err = c.store.Update(func(tx *state.Tx) error {
		tx.Catalog.Prepend(sess)
		if err := tx.Catalog.Select(sess.ID); err != nil {
			return err
		}
		tx.Timeline.Reset(sess.ID)
		return nil
	})
	if err != nil {
		return models.Session{}, c.fail(ctx, KindTransport, OpCreateSession, sess.ID, err, "Failed to create new chat")
	}

	logger.InfoWithFields("session created", logger.Fields{"session_id": sess.ID, "mode": string(sess.Mode)})
	c.notify(ctx, events.LevelSuccess, OpCreateSession, sess.ID, "New chat created")
	return sess, nil
}

// SelectSession makes an existing catalog entry current and loads its
// transcript. The old timeline is cleared immediately so nothing of the
// previous session stays visible. Transcript failures are only logged.
func (c *Coordinator) SelectSession(ctx context.Context, sessionID string) error {
	err := c.store.Update(func(tx *state.Tx) error {
		if err := tx.Catalog.Select(sessionID); err != nil {
			return err
		}
		tx.Timeline.Reset(sessionID)
		return nil
	})
	if err != nil {
		return c.fail(ctx, KindValidation, OpSelectSession, sessionID, err, "Chat not found")
	}

	if err := c.LoadTranscript(ctx, sessionID); err != nil && !errors.Is(err, context.Canceled) {
		logger.WarnWithFields("transcript not loaded after select", logger.Fields{"session_id": sessionID})
	}
	return nil
}

// LoadTranscript replaces the timeline with the session's transcript if the
// session is still current when the response arrives.
func (c *Coordinator) LoadTranscript(ctx context.Context, sessionID string) error {
	ctx, op := c.tag(ctx, OpLoadTranscript, sessionID)
	msgs, err := c.backend.GetMessages(ctx, sessionID)
	if err != nil {
		logger.ErrorWithFields("error loading messages", logger.Fields{
			"op_id":      op.ID,
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return &Error{Kind: KindTransport, Op: OpLoadTranscript, Cause: err}
	}

	applied, err := c.store.UpdateIfCurrent(sessionID, func(tx *state.Tx) error {
		tx.Timeline.Load(sessionID, msgs)
		return nil
	})
	if !applied {
		logDiscarded(op)
	}
	return err
}

// ensureSession returns the current session, creating one of the given
// mode first when none is current.
func (c *Coordinator) ensureSession(ctx context.Context, mode models.SessionMode) (models.Session, error) {
	if sess, ok := c.current(); ok {
		return sess, nil
	}
	return c.CreateSession(ctx, mode)
}
