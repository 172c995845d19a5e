package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"chatdesk/events"
)

// NewJSONEvent 생성: payload를 JSON으로 인코딩하여 Event를 구성합니다.
func NewJSONEvent(id, topic string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("payload marshal 실패: %w", err)
	}
	return Event{ID: id, Topic: topic, Payload: b}, nil
}

// PublishDomainEvent는 events 패키지의 이벤트를 직렬화해 타입명을 토픽으로 발행합니다.
func PublishDomainEvent(ctx context.Context, bus EventBus, event any) error {
	data, typ, err := events.SerializeEvent(event)
	if err != nil {
		return err
	}
	var base events.BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("payload unmarshal 실패: %w", err)
	}
	return bus.Publish(ctx, string(typ), Event{ID: base.ID, Topic: string(typ), Payload: data})
}

// DecodeJSON은 Event.Payload를 제네릭 타입으로 언마샬합니다.
func DecodeJSON[T any](evt Event) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Payload, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("payload unmarshal 실패: %w", err)
	}
	return out, nil
}

// SubscribeJSON은 JSON 페이로드를 자동으로 디코딩해주는 Subscribe 헬퍼입니다.
func SubscribeJSON[T any](ctx context.Context, bus EventBus, topic Topic, handler func(ctx context.Context, payload T, meta Event) error) error {
	return bus.Subscribe(ctx, topic, func(ctx context.Context, evt Event) error {
		v, err := DecodeJSON[T](evt)
		if err != nil {
			return err
		}
		return handler(ctx, v, evt)
	})
}
