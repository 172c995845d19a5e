package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"chatdesk/eventbus"
	"chatdesk/events"
	"chatdesk/internal/logger"
)

const writeTimeout = 5 * time.Second

// Handler는 웹소켓으로 상태 스냅샷과 알림을 View 에 푸시한다.
// 연결 직후 현재 스냅샷을 한 번 보내고, 이후 버스의 모든 이벤트를 그대로 전달한다.
// 프레임은 eventbus.Event 봉투({id, topic, payload}) JSON 이다.
type Handler struct {
	bus      eventbus.EventBus
	snapshot func() events.Snapshot
	origins  []string
}

func NewHandler(bus eventbus.EventBus, snapshot func() events.Snapshot, origins []string) *Handler {
	return &Handler{bus: bus, snapshot: snapshot, origins: origins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		logger.ErrorWithFields("failed to accept websocket", logger.Fields{"error": err.Error()})
		return
	}
	defer conn.CloseNow()

	// View 는 아무것도 보내지 않는다. 읽기는 닫힘 감지 용도로만 사용한다.
	ctx := conn.CloseRead(r.Context())

	initial, err := eventbus.NewJSONEvent("", string(events.StateChanged), events.NewStateChanged(h.snapshot()))
	if err != nil {
		logger.ErrorWithFields("failed to encode snapshot", logger.Fields{"error": err.Error()})
		return
	}
	if err := send(ctx, conn, initial); err != nil {
		return
	}

	logger.DebugWithFields("stream connected", logger.Fields{"remote": r.RemoteAddr})
	err = h.bus.Subscribe(ctx, eventbus.TopicAll, func(ctx context.Context, evt eventbus.Event) error {
		return send(ctx, conn, evt)
	})
	if err != nil {
		logger.DebugWithFields("stream closed", logger.Fields{"remote": r.RemoteAddr, "error": err.Error()})
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func send(ctx context.Context, conn *websocket.Conn, evt eventbus.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
