package eventbus

import (
	"context"
	"sync"

	"chatdesk/internal/logger"
)

const defaultBuffer = 64

type subscriber struct {
	topic string
	ch    chan Event
}

// MemoryEventBus는 프로세스 내부 구독자에게 이벤트를 전달하는 EventBus 구현입니다.
// 발행은 절대 블로킹하지 않으며, 버퍼가 가득 찬 느린 구독자에게는 이벤트를 버립니다.
// 상태 이벤트는 매번 전체 스냅샷을 담으므로 다음 이벤트로 복구됩니다.
type MemoryEventBus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
}

func NewMemoryEventBus(buffer int) *MemoryEventBus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryEventBus{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
	}
}

func (b *MemoryEventBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for s := range b.subs {
		if s.topic != TopicAll.Base() && s.topic != topic {
			continue
		}
		select {
		case s.ch <- event:
		default:
			logger.WarnWithFields("eventbus subscriber lagging, event dropped", logger.Fields{
				"topic":    topic,
				"event_id": event.ID,
			})
		}
	}
	return nil
}

func (b *MemoryEventBus) Subscribe(ctx context.Context, topic Topic, handler EventHandler) error {
	s := &subscriber{topic: topic.Base(), ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	defer b.remove(s)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-s.ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, evt); err != nil {
				return err
			}
		}
	}
}

func (b *MemoryEventBus) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Close는 모든 구독을 종료시킵니다.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Subscribers는 현재 구독자 수를 반환합니다.
func (b *MemoryEventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
