package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/backendtest"
	"chatdesk/clients/backendclient"
	"chatdesk/cmd/gateway/router"
	"chatdesk/config"
	"chatdesk/coordinator"
	"chatdesk/eventbus"
	"chatdesk/events"
	"chatdesk/models"
	"chatdesk/state"
)

type gateway struct {
	fake    *backendtest.Server
	bus     *eventbus.MemoryEventBus
	handler http.Handler
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := backendtest.New()
	backend := httptest.NewServer(fake.Handler())
	t.Cleanup(backend.Close)

	cfg := config.Default()
	bus := eventbus.NewMemoryEventBus(0)
	t.Cleanup(bus.Close)
	store := state.NewStore(cfg.Chat.DefaultModel, bus)
	coord := coordinator.New(backendclient.NewWithClient(backend.Client(), backend.URL), store, bus, cfg)

	return &gateway{fake: fake, bus: bus, handler: router.New(coord, bus, cfg.Gateway)}
}

func (g *gateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSendMessageFlow(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodPost, "/api/v1/messages", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[models.Message](t, rec)
	assert.Equal(t, models.RoleAssistant, reply.Role)

	rec = g.do(t, http.MethodGet, "/api/v1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[[]models.Message](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)

	rec = g.do(t, http.MethodGet, "/api/v1/state", "")
	snap := decode[events.Snapshot](t, rec)
	assert.NotEmpty(t, snap.CurrentSessionID)
	assert.Len(t, snap.Sessions, 1)
	assert.False(t, snap.Busy)
}

func TestErrorMapping(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodPost, "/api/v1/messages", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"empty_message"}`, rec.Body.String())

	rec = g.do(t, http.MethodPost, "/api/v1/qa", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"no_document_session"}`, rec.Body.String())

	rec = g.do(t, http.MethodPost, "/api/v1/sessions/unknown/select", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"session_not_found"}`, rec.Body.String())

	rec = g.do(t, http.MethodPost, "/api/v1/sessions", `{"mode":"video"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_mode"}`, rec.Body.String())

	g.fake.FailNext(backendtest.OpCreateSession, http.StatusInternalServerError)
	rec = g.do(t, http.MethodPost, "/api/v1/sessions", `{"mode":"general"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"backend_unavailable"}`, rec.Body.String())
}

func TestModelsAndSelection(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Model](t, rec), len(backendtest.DefaultModels))

	rec = g.do(t, http.MethodPut, "/api/v1/models/selected", `{"model_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"model_not_found"}`, rec.Body.String())

	rec = g.do(t, http.MethodPut, "/api/v1/models/selected", `{"model_id":"xiaomi/mimo-v2-flash:free"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = g.do(t, http.MethodGet, "/api/v1/state", "")
	assert.Equal(t, "xiaomi/mimo-v2-flash:free", decode[events.Snapshot](t, rec).SelectedModel)
}

func TestDocumentFlow(t *testing.T) {
	g := newGateway(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "paper.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4\n%%EOF\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "paper.pdf")

	rec = g.do(t, http.MethodGet, "/api/v1/sessions", "")
	sessions := decode[[]models.Session](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.ModeDocument, sessions[0].Mode)

	rec = g.do(t, http.MethodPost, "/api/v1/qa", `{"num_questions":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.KindQA, decode[models.Message](t, rec).Kind())

	rec = g.do(t, http.MethodPost, "/api/v1/research", `{"query":"scope"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = g.do(t, http.MethodPost, "/api/v1/translate", `{"target_language":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"empty_input"}`, rec.Body.String())
}

func TestUploadRequiresFile(t *testing.T) {
	g := newGateway(t)

	rec := g.do(t, http.MethodPost, "/api/v1/documents", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"file_required"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	g := newGateway(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventStream(t *testing.T) {
	g := newGateway(t)
	srv := httptest.NewServer(g.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/events", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() eventbus.Event {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var evt eventbus.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	}

	first := read()
	assert.Equal(t, string(events.StateChanged), first.Topic)

	require.Eventually(t, func() bool { return g.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	rec := g.do(t, http.MethodPost, "/api/v1/sessions", `{"mode":"document"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var note events.NotificationEvent
	for note.Op == "" {
		evt := read()
		if evt.Topic == string(events.NotificationRaised) {
			require.NoError(t, json.Unmarshal(evt.Payload, &note))
		}
	}
	assert.Equal(t, coordinator.OpCreateSession, note.Op)
	assert.Equal(t, events.LevelSuccess, note.Level)
}
