package eventbus

import (
	"context"
	"encoding/json"
	"errors"
)

// Topic은 구독 단위를 나타냅니다. 이벤트 타입 문자열을 그대로 토픽으로 사용합니다.
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string {
	return t.base
}

// TopicAll은 모든 토픽의 이벤트를 받는 와일드카드 토픽입니다.
var TopicAll = NewTopic("*")

// Event는 버스를 통해 전달되는 봉투(envelope)입니다.
type Event struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandler는 이벤트 처리 함수의 시그니처입니다.
type EventHandler func(ctx context.Context, event Event) error

// EventBus 인터페이스는 이벤트 발행 및 구독의 추상화를 정의합니다.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe는 ctx 가 취소될 때까지 topic 의 이벤트를 handler 로 전달합니다.
	// 호출은 블로킹이며 ctx 취소 시 nil 을 반환합니다.
	Subscribe(ctx context.Context, topic Topic, handler EventHandler) error
	Close()
}

// ErrClosed는 닫힌 버스에 발행/구독할 때 반환되는 오류입니다.
var ErrClosed = errors.New("eventbus: closed")
