// Package backendtest is an in-memory stand-in for the chat backend. It
// serves the same HTTP surface with canned model output so the client core
// can be exercised without a real model provider or database.
package backendtest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatdesk/models"
)

// Operation names used by Hold, FailNext and Calls.
const (
	OpHealth        = "health"
	OpListModels    = "list_models"
	OpListSessions  = "list_sessions"
	OpGetMessages   = "get_messages"
	OpCreateSession = "create_session"
	OpUpload        = "upload"
	OpChat          = "chat"
	OpGenerateQA    = "generate_qa"
	OpResearch      = "research"
	OpTranslate     = "translate"
)

const listLimit = 50

// DefaultModels mirrors the model list served by the real backend.
var DefaultModels = []models.Model{
	{ID: "allenai/molmo-2-8b:free", Name: "Molmo 2 8B", Provider: "AllenAI"},
	{ID: "xiaomi/mimo-v2-flash:free", Name: "Mimo V2 Flash", Provider: "Xiaomi"},
	{ID: "mistralai/devstral-2512:free", Name: "Devstral 2512", Provider: "Mistral AI"},
	{ID: "openai/gpt-oss-120b:free", Name: "GPT OSS 120B", Provider: "OpenAI"},
	{ID: "tngtech/deepseek-r1t2-chimera:free", Name: "DeepSeek R1T2 Chimera", Provider: "TNG Tech"},
}

type sessionRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seq      int64
	messages []wireMessage
	document *documentEntry
}

type wireMessage struct {
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

type documentEntry struct {
	Filename string
	Size     int
}

type failure struct {
	status int
	body   string
}

// Server is safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	seq      int64
	calls    map[string]int
	holds    map[string]chan struct{}
	failures map[string][]failure
	models   []models.Model
	now      func() time.Time

	engine *gin.Engine
}

func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		sessions: make(map[string]*sessionRecord),
		calls:    make(map[string]int),
		holds:    make(map[string]chan struct{}),
		failures: make(map[string][]failure),
		models:   append([]models.Model(nil), DefaultModels...),
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/health", s.track(OpHealth, s.health))
		api.GET("/models", s.track(OpListModels, s.listModels))
		api.GET("/sessions", s.track(OpListSessions, s.listSessions))
		api.POST("/sessions", s.track(OpCreateSession, s.createSession))
		api.GET("/sessions/:id/messages", s.track(OpGetMessages, s.getMessages))
		api.POST("/sessions/:id/upload", s.track(OpUpload, s.upload))
		api.POST("/sessions/:id/chat", s.track(OpChat, s.chat))
		api.POST("/sessions/:id/generate-qa", s.track(OpGenerateQA, s.generateQA))
		api.POST("/research", s.track(OpResearch, s.research))
		api.POST("/translate", s.track(OpTranslate, s.translate))
	}
	return r
}

// -------------------- hooks --------------------

// Calls reports how many requests op has received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls reports the number of requests received for all operations.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext makes the next request for op answer with status.
func (s *Server) FailNext(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: status, body: `{"detail":"injected failure"}`})
}

// Hold blocks requests for op on sessionID (use "" for endpoints without a
// session in the path) until the returned release func is called.
func (s *Server) Hold(op, sessionID string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[holdKey(op, sessionID)] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, holdKey(op, sessionID))
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SetModels replaces the served model list.
func (s *Server) SetModels(list []models.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = append([]models.Model(nil), list...)
}

// SessionMode returns the stored wire mode of a session.
func (s *Server) SessionMode(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	return rec.Mode, true
}

// MessageCount returns the number of persisted messages of a session.
func (s *Server) MessageCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[id]; ok {
		return len(rec.messages)
	}
	return 0
}

func holdKey(op, sessionID string) string {
	return op + "|" + sessionID
}

// track counts the call, applies an injected failure and waits on a hold.
func (s *Server) track(op string, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		s.mu.Lock()
		s.calls[op]++
		var fail *failure
		if q := s.failures[op]; len(q) > 0 {
			f := q[0]
			fail = &f
			s.failures[op] = q[1:]
		}
		hold := s.holds[holdKey(op, sessionID)]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-c.Request.Context().Done():
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
		}

		if fail != nil {
			c.Data(fail.status, "application/json", []byte(fail.body))
			return
		}
		next(c)
	}
}

// -------------------- handlers --------------------

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "ChatPDF"})
}

func (s *Server) listModels(c *gin.Context) {
	s.mu.Lock()
	list := append([]models.Model(nil), s.models...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"models": list})
}

func (s *Server) listSessions(c *gin.Context) {
	s.mu.Lock()
	list := make([]*sessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].seq > list[j].seq
	})
	if len(list) > listLimit {
		list = list[:listLimit]
	}
	out := make([]sessionRecord, 0, len(list))
	for _, rec := range list {
		out = append(out, *rec)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) createSession(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
		Mode  string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	if req.Title == "" {
		req.Title = "New Chat"
	}
	if req.Mode == "" {
		req.Mode = "general"
	}

	s.mu.Lock()
	now := s.now()
	s.seq++
	rec := &sessionRecord{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Mode:      req.Mode,
		CreatedAt: now,
		UpdatedAt: now,
		seq:       s.seq,
	}
	s.sessions[rec.ID] = rec
	out := *rec
	s.mu.Unlock()

	c.JSON(http.StatusOK, out)
}

func (s *Server) getMessages(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[c.Param("id")]
	if !ok {
		// 실제 백엔드와 동일하게 알 수 없는 세션은 빈 목록으로 응답한다.
		c.JSON(http.StatusOK, gin.H{"messages": []wireMessage{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": append([]wireMessage{}, rec.messages...)})
}

func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "file field required"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files are allowed"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	rec.document = &documentEntry{Filename: file.Filename, Size: int(file.Size)}
	rec.Mode = "pdf"
	s.touchLocked(rec)

	c.JSON(http.StatusOK, gin.H{
		"message": "PDF uploaded successfully",
		"document": gin.H{
			"filename": file.Filename,
			"pages":    1,
			"size":     file.Size,
		},
	})
}

func (s *Server) chat(c *gin.Context) {
	var req struct {
		Message     string  `json:"message"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}

	reply := fmt.Sprintf("[%s] %s", req.Model, req.Message)
	rec.messages = append(rec.messages,
		wireMessage{SessionID: rec.ID, Role: "user", Content: req.Message, Metadata: map[string]any{}, Timestamp: s.now()},
		wireMessage{SessionID: rec.ID, Role: "assistant", Content: reply, Metadata: map[string]any{}, Timestamp: s.now()},
	)
	s.touchLocked(rec)

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (s *Server) generateQA(c *gin.Context) {
	var req struct {
		Model        string `json:"model"`
		NumQuestions int    `json:"num_questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}

	rec, ok := s.documentSession(c, c.Param("id"))
	if !ok {
		return
	}

	var b strings.Builder
	for i := 1; i <= req.NumQuestions; i++ {
		fmt.Fprintf(&b, "Q: Question %d about %s\nA: Answer %d\n\n", i, rec.document.Filename, i)
	}
	c.JSON(http.StatusOK, gin.H{"qa_content": b.String()})
}

func (s *Server) research(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
		Model     string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	rec, ok := s.documentSession(c, req.SessionID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": fmt.Sprintf("Analysis of %s: %s", rec.document.Filename, req.Query)})
}

func (s *Server) translate(c *gin.Context) {
	var req struct {
		SessionID      string `json:"session_id"`
		TargetLanguage string `json:"target_language"`
		Model          string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body"})
		return
	}
	rec, ok := s.documentSession(c, req.SessionID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"translation": fmt.Sprintf("%s translated to %s", rec.document.Filename, req.TargetLanguage)})
}

// documentSession writes the error response itself when it returns false.
func (s *Server) documentSession(c *gin.Context, id string) (sessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return sessionRecord{}, false
	}
	if rec.document == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No document found for this session"})
		return sessionRecord{}, false
	}
	return *rec, true
}

func (s *Server) touchLocked(rec *sessionRecord) {
	s.seq++
	rec.seq = s.seq
	rec.UpdatedAt = s.now()
}
