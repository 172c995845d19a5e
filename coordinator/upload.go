package coordinator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chatdesk/clients/backendclient"
	"chatdesk/events"
	"chatdesk/internal/logger"
	"chatdesk/models"
	"chatdesk/state"
)

// Document is a file accepted for upload.
type Document struct {
	Filename string
	MIME     string
	Content  []byte
}

// ReadDocument reads r up to the configured limit and validates the content
// type. No session is created and no network call is made here.
func (c *Coordinator) ReadDocument(filename string, r io.Reader) (Document, error) {
	limit := c.upload.MaxBytes
	content, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Document{}, err
	}
	if len(content) == 0 {
		return Document{}, ErrEmptyDocument
	}
	if int64(len(content)) > limit {
		return Document{}, fmt.Errorf("%w: more than %d bytes", ErrDocumentTooLarge, limit)
	}

	mt := mimetype.Detect(content)
	if !allowed(mt, c.upload.AllowedTypes) {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mt.String())
	}

	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	if ext := mt.Extension(); ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return Document{Filename: name, MIME: mt.String(), Content: content}, nil
}

func allowed(mt *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// UploadDocument validates the file, ensures a document session exists and
// uploads the file into it.
func (c *Coordinator) UploadDocument(ctx context.Context, filename string, r io.Reader) (backendclient.UploadResponse, error) {
	doc, err := c.ReadDocument(filename, r)
	if err != nil {
		return backendclient.UploadResponse{}, c.fail(ctx, KindValidation, OpUploadDocument, c.store.CurrentSessionID(), err, "Unsupported document")
	}

	end := c.store.Begin()
	defer end()

	sess, err := c.ensureSession(ctx, models.ModeDocument)
	if err != nil {
		return backendclient.UploadResponse{}, err
	}

	ctx, op := c.tag(ctx, OpUploadDocument, sess.ID)
	resp, err := c.backend.UploadDocument(ctx, sess.ID, doc.Filename, doc.Content)
	if err != nil {
		return backendclient.UploadResponse{}, c.fail(ctx, KindTransport, OpUploadDocument, sess.ID, err, "Failed to upload document")
	}

	if err := c.LoadSessions(ctx); err != nil {
		logger.WarnWithFields("catalog refresh after upload failed", logger.Fields{"session_id": sess.ID})
	}
	// keyed by id, not guarded by the current session
	_ = c.store.Update(func(tx *state.Tx) error {
		if !tx.Catalog.MarkUploaded(sess.ID) {
			logger.DebugWithFields("uploaded session not in catalog", logger.Fields{"op_id": op.ID, "session_id": sess.ID})
		}
		return nil
	})

	logger.InfoWithFields("document uploaded", logger.Fields{
		"session_id": sess.ID,
		"filename":   doc.Filename,
		"mime":       doc.MIME,
		"bytes":      len(doc.Content),
	})
	c.notify(ctx, events.LevelSuccess, OpUploadDocument, sess.ID, "Document uploaded successfully")
	return resp, nil
}
