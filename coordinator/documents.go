package coordinator

import (
	"context"
	"maps"
	"strings"

	"chatdesk/clients/backendclient"
	"chatdesk/events"
	"chatdesk/models"
	"chatdesk/state"
)

// GenerateQA asks the backend for n question/answer pairs about the current
// document session. n <= 0 uses the configured default.
func (c *Coordinator) GenerateQA(ctx context.Context, n int) (models.Message, error) {
	if n <= 0 {
		n = c.chat.QAQuestions
	}
	return c.derive(ctx, derivation{
		op:      OpGenerateQA,
		kind:    models.KindQA,
		success: "Q&A generated successfully",
		failure: "Failed to generate Q&A",
		meta:    map[string]any{"num_questions": n},
		call: func(ctx context.Context, sessionID, model string) (string, error) {
			return c.backend.GenerateQA(ctx, sessionID, backendclient.GenerateQARequest{Model: model, NumQuestions: n})
		},
	})
}

// Research runs a research query over the current document session.
func (c *Coordinator) Research(ctx context.Context, query string) (models.Message, error) {
	if strings.TrimSpace(query) == "" {
		return models.Message{}, c.fail(ctx, KindValidation, OpResearch, c.store.CurrentSessionID(), ErrEmptyInput, "Query is empty")
	}
	return c.derive(ctx, derivation{
		op:      OpResearch,
		kind:    models.KindResearch,
		success: "Research completed",
		failure: "Failed to run research",
		meta:    map[string]any{"query": query},
		call: func(ctx context.Context, sessionID, model string) (string, error) {
			return c.backend.Research(ctx, backendclient.ResearchRequest{SessionID: sessionID, Query: query, Model: model})
		},
	})
}

// Translate translates the current session's document into lang.
func (c *Coordinator) Translate(ctx context.Context, lang string) (models.Message, error) {
	if strings.TrimSpace(lang) == "" {
		return models.Message{}, c.fail(ctx, KindValidation, OpTranslate, c.store.CurrentSessionID(), ErrEmptyInput, "Target language is empty")
	}
	return c.derive(ctx, derivation{
		op:      OpTranslate,
		kind:    models.KindTranslation,
		success: "Translation completed",
		failure: "Failed to translate document",
		meta:    map[string]any{"target_language": lang},
		call: func(ctx context.Context, sessionID, model string) (string, error) {
			return c.backend.Translate(ctx, backendclient.TranslateRequest{SessionID: sessionID, TargetLanguage: lang, Model: model})
		},
	})
}

type derivation struct {
	op      string
	kind    string
	success string
	failure string
	meta    map[string]any
	call    func(ctx context.Context, sessionID, model string) (string, error)
}

// derive runs a document-only generation and appends its result as a
// derived timeline entry.
func (c *Coordinator) derive(ctx context.Context, d derivation) (models.Message, error) {
	sess, ok := c.current()
	if !ok || !sess.IsDocument() {
		return models.Message{}, c.fail(ctx, KindPrecondition, d.op, sess.ID, ErrNoDocumentSession, "Please upload a document first")
	}

	end := c.store.Begin()
	defer end()

	ctx, op := c.tag(ctx, d.op, sess.ID)
	model := c.selectedModel()
	content, err := d.call(ctx, sess.ID, model)
	if err != nil {
		return models.Message{}, c.fail(ctx, KindTransport, d.op, sess.ID, err, d.failure)
	}

	meta := map[string]any{"model": model}
	maps.Copy(meta, d.meta)
	msg := models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: c.now(),
		Metadata:  meta,
	}
	applied, _ := c.store.UpdateIfCurrent(sess.ID, func(tx *state.Tx) error {
		msg = tx.Timeline.AppendDerived(msg, d.kind)
		return nil
	})
	if !applied {
		logDiscarded(op)
	}

	c.notify(ctx, events.LevelSuccess, d.op, sess.ID, d.success)
	return msg, nil
}

