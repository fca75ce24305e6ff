package events

import (
	"context"
	"sync"

	"github.com/frahmantamala/course-marketplace/pkg/logger"
)

type Event interface {
	EventName() string
}

type Handler func(ctx context.Context, event Event)

type EventBus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event)
	Subscribe(eventName string, handler Handler)
}

type eventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewEventBus() EventBus {
	return &eventBus{
		handlers: make(map[string][]Handler),
	}
}

func (b *eventBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers the event to all subscribers asynchronously. Handler
// panics are contained so one bad subscriber cannot take down the publisher.
func (b *eventBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.EventName()]))
	copy(handlers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(handler Handler) {
			defer func() {
				if r := recover(); r != nil {
					logger.From(ctx).Error("event handler panic",
						"event", event.EventName(),
						"panic", r)
				}
			}()
			handler(ctx, event)
		}(h)
	}
}

// PublishSync delivers the event to all subscribers in order on the calling
// goroutine. Used in tests and wherever the caller needs completion.
func (b *eventBus) PublishSync(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.EventName()]))
	copy(handlers, b.handlers[event.EventName()])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
}
