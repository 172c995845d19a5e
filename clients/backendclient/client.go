package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"chatdesk/config"
	"chatdesk/httpclient"
	"chatdesk/models"
)

// Client는 원격 LLM 백엔드의 HTTP API 를 호출하는 얇은 클라이언트다.
//
// - 세션/메시지/문서의 실제 저장과 모델 호출은 모두 백엔드가 담당한다.
// - 응답 상태 코드를 해석하지 않고, 2xx 가 아니면 HTTPError 로 돌려준다.
type Client struct {
	base *httpclient.BaseClient
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend request failed: status=%d body=%s", e.StatusCode, e.Body)
}

const maxBodySize = 5 * 1024 * 1024

func New(cfg config.BackendConfig) *Client {
	httpClient := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, cfg.BaseURL)}
}

// NewWithClient는 테스트 등에서 이미 구성된 http.Client 를 사용할 때 쓴다.
func NewWithClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// -------------------- wire types --------------------

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type listModelsResponse struct {
	Models []models.Model `json:"models"`
}

type listSessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
}

type listMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type createSessionRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

type ChatRequest struct {
	Message     string  `json:"message"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type GenerateQARequest struct {
	Model        string `json:"model"`
	NumQuestions int    `json:"num_questions"`
}

type generateQAResponse struct {
	QAContent string `json:"qa_content"`
}

type ResearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Model     string `json:"model"`
}

type researchResponse struct {
	Analysis string `json:"analysis"`
}

type TranslateRequest struct {
	SessionID      string `json:"session_id"`
	TargetLanguage string `json:"target_language"`
	Model          string `json:"model"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

// UploadedDocument 는 업로드 응답에 포함된 문서 요약이다. 클라이언트는 참고용으로만 사용한다.
type UploadedDocument struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Size     int    `json:"size"`
}

type UploadResponse struct {
	Message  string           `json:"message"`
	Document UploadedDocument `json:"document"`
}

// -------------------- endpoints --------------------

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (c *Client) ListModels(ctx context.Context) ([]models.Model, error) {
	var out listModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	var out listSessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var out listMessagesResponse
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID, "messages"), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) CreateSession(ctx context.Context, title string, mode models.SessionMode) (models.Session, error) {
	var out models.Session
	in := createSessionRequest{Title: title, Mode: mode.Wire()}
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", in, &out); err != nil {
		return models.Session{}, err
	}
	return out, nil
}

// UploadDocument는 파일 하나를 multipart 필드 "file" 로 한 번에 전송한다.
// 청크 분할이나 재개 업로드는 지원하지 않는다.
func (c *Client) UploadDocument(ctx context.Context, sessionID, filename string, content []byte) (UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResponse{}, err
	}
	if _, err := part.Write(content); err != nil {
		return UploadResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return UploadResponse{}, err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, sessionPath(sessionID, "upload"), nil, &buf)
	if err != nil {
		return UploadResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

func (c *Client) Chat(ctx context.Context, sessionID string, in ChatRequest) (string, error) {
	var out chatResponse
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "chat"), in, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) GenerateQA(ctx context.Context, sessionID string, in GenerateQARequest) (string, error) {
	var out generateQAResponse
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "generate-qa"), in, &out); err != nil {
		return "", err
	}
	return out.QAContent, nil
}

func (c *Client) Research(ctx context.Context, in ResearchRequest) (string, error) {
	var out researchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/research", in, &out); err != nil {
		return "", err
	}
	return out.Analysis, nil
}

func (c *Client) Translate(ctx context.Context, in TranslateRequest) (string, error) {
	var out translateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/translate", in, &out); err != nil {
		return "", err
	}
	return out.Translation, nil
}

// -------------------- helpers --------------------

func sessionPath(sessionID, action string) string {
	return "/api/sessions/" + sessionID + "/" + action
}

func (c *Client) doJSON(ctx context.Context, method, relPath string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.base.NewRequest(ctx, method, relPath, nil, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return fmt.Errorf("backend response read failed: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend response decode failed: %w", err)
	}
	return nil
}
