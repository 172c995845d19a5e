package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatdesk/models"
)

// EventType 이벤트 타입 정의
type EventType string

const (
	StateChanged       EventType = "state.changed"
	NotificationRaised EventType = "notification"
)

const (
	source  = "chatdesk"
	version = "1"
)

// BaseEvent 모든 이벤트의 기본 구조
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

func newBase(t EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Version:   version,
	}
}

// Level 알림 수준. View 는 이를 토스트 색상 등으로 표현한다.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// NotificationEvent 사용자에게 보여줄 일시적 알림 이벤트
type NotificationEvent struct {
	BaseEvent
	Level     Level  `json:"level"`
	Op        string `json:"op"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// NewNotification 알림 이벤트 생성
func NewNotification(level Level, op, sessionID, message string) NotificationEvent {
	return NotificationEvent{
		BaseEvent: newBase(NotificationRaised),
		Level:     level,
		Op:        op,
		Message:   message,
		SessionID: sessionID,
	}
}

// Snapshot 상태 컨테이너의 읽기 전용 복사본
type Snapshot struct {
	Revision         uint64           `json:"revision"`
	Sessions         []models.Session `json:"sessions"`
	CurrentSessionID string           `json:"current_session_id,omitempty"`
	Messages         []models.Message `json:"messages"`
	Models           []models.Model   `json:"models"`
	SelectedModel    string           `json:"selected_model"`
	Busy             bool             `json:"busy"`
}

// CurrentSession 스냅샷 안에서 현재 세션을 찾는다.
func (s Snapshot) CurrentSession() (models.Session, bool) {
	if s.CurrentSessionID == "" {
		return models.Session{}, false
	}
	for _, sess := range s.Sessions {
		if sess.ID == s.CurrentSessionID {
			return sess, true
		}
	}
	return models.Session{}, false
}

// StateChangedEvent 상태 변경 이벤트. 변경 후 전체 스냅샷을 담는다.
type StateChangedEvent struct {
	BaseEvent
	Snapshot Snapshot `json:"snapshot"`
}

// NewStateChanged 상태 변경 이벤트 생성
func NewStateChanged(s Snapshot) StateChangedEvent {
	return StateChangedEvent{BaseEvent: newBase(StateChanged), Snapshot: s}
}

// SerializeEvent 이벤트를 JSON으로 직렬화하고 타입 정보 반환
func SerializeEvent(event any) ([]byte, EventType, error) {
	var eventType EventType

	switch e := event.(type) {
	case NotificationEvent:
		eventType = e.Type
	case StateChangedEvent:
		eventType = e.Type
	default:
		return nil, "", fmt.Errorf("unknown event type: %T", event)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal event: %w", err)
	}

	return data, eventType, nil
}

// DeserializeEvent 이벤트 타입에 따라 적절한 구조체로 역직렬화
func DeserializeEvent(eventType EventType, data []byte) (any, error) {
	var event any

	switch eventType {
	case NotificationRaised:
		event = &NotificationEvent{}
	case StateChanged:
		event = &StateChangedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return event, nil
}
