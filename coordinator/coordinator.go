package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatdesk/clients/backendclient"
	"chatdesk/config"
	"chatdesk/eventbus"
	"chatdesk/events"
	"chatdesk/internal/logger"
	"chatdesk/models"
	"chatdesk/state"
	"chatdesk/trace"
)

// Operation names, used for notifications, logs and trace tags.
const (
	OpLoadModels     = "load_models"
	OpLoadSessions   = "load_sessions"
	OpLoadTranscript = "load_transcript"
	OpCreateSession  = "create_session"
	OpSelectSession  = "select_session"
	OpSelectModel    = "select_model"
	OpSendMessage    = "send_message"
	OpUploadDocument = "upload_document"
	OpGenerateQA     = "generate_qa"
	OpResearch       = "research"
	OpTranslate      = "translate"
)

// Backend is the remote collaborator. *backendclient.Client implements it.
type Backend interface {
	Health(ctx context.Context) (backendclient.HealthResponse, error)
	ListModels(ctx context.Context) ([]models.Model, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	GetMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	CreateSession(ctx context.Context, title string, mode models.SessionMode) (models.Session, error)
	UploadDocument(ctx context.Context, sessionID, filename string, content []byte) (backendclient.UploadResponse, error)
	Chat(ctx context.Context, sessionID string, in backendclient.ChatRequest) (string, error)
	GenerateQA(ctx context.Context, sessionID string, in backendclient.GenerateQARequest) (string, error)
	Research(ctx context.Context, in backendclient.ResearchRequest) (string, error)
	Translate(ctx context.Context, in backendclient.TranslateRequest) (string, error)
}

// Coordinator issues remote operations and reconciles their results into
// the state store.
//
// Every operation is tagged with the session that was current when it was
// issued. A completion whose session is no longer current is dropped without
// touching the store; the outcome notification is still published.
type Coordinator struct {
	backend Backend
	store   *state.Store
	bus     eventbus.EventBus
	chat    config.ChatConfig
	upload  config.UploadConfig
	now     func() time.Time
}

// New wires a coordinator. bus may be nil, in which case notifications are
// only logged.
func New(backend Backend, store *state.Store, bus eventbus.EventBus, cfg config.AppConfig) *Coordinator {
	return &Coordinator{
		backend: backend,
		store:   store,
		bus:     bus,
		chat:    cfg.Chat,
		upload:  cfg.Upload,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Store exposes the state container for read access by views.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

func (c *Coordinator) Snapshot() events.Snapshot {
	return c.store.Snapshot()
}

// Health passes the backend health check through.
func (c *Coordinator) Health(ctx context.Context) (backendclient.HealthResponse, error) {
	return c.backend.Health(ctx)
}

// tag attaches an operation tag to ctx.
func (c *Coordinator) tag(ctx context.Context, name, sessionID string) (context.Context, trace.Op) {
	op := trace.Op{ID: uuid.NewString(), Name: name, SessionID: sessionID}
	return trace.WithOp(ctx, op), op
}

func (c *Coordinator) current() (models.Session, bool) {
	var (
		sess models.Session
		ok   bool
	)
	c.store.Read(func(tx *state.Tx) {
		sess, ok = tx.Catalog.Current()
	})
	return sess, ok
}

func (c *Coordinator) selectedModel() string {
	var id string
	c.store.Read(func(tx *state.Tx) {
		id = tx.Registry.Selected()
	})
	return id
}

// fail publishes an error notification and returns the typed error.
func (c *Coordinator) fail(ctx context.Context, kind ErrorKind, op, sessionID string, cause error, message string) error {
	logger.WarnWithFields("operation failed", logger.Fields{
		"op":         op,
		"kind":       string(kind),
		"session_id": sessionID,
		"request_id": trace.RequestIDFromContext(ctx),
		"error":      cause.Error(),
	})
	c.notify(ctx, events.LevelError, op, sessionID, message)
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func (c *Coordinator) notify(ctx context.Context, level events.Level, op, sessionID, message string) {
	if c.bus == nil {
		return
	}
	n := events.NewNotification(level, op, sessionID, message)
	if err := eventbus.PublishDomainEvent(ctx, c.bus, n); err != nil {
		logger.DebugWithFields("notification not published", logger.Fields{"op": op, "error": err.Error()})
	}
}

func logDiscarded(op trace.Op) {
	logger.DebugWithFields("discarding completion for non-current session", logger.Fields{
		"op":         op.Name,
		"op_id":      op.ID,
		"session_id": op.SessionID,
	})
}
