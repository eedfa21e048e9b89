package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code-100-precent/LingChat/pkg/logger"
	"go.uber.org/zap"
)

// EventName identifies a kind of event on the bus
type EventName string

// EventAll subscribers receive every event published on the bus
const EventAll EventName = "*"

// Event is one published occurrence
type Event struct {
	Name      EventName
	Timestamp time.Time
	Source    string
	Payload   interface{}
}

// Handler processes events from the bus
type Handler func(ctx context.Context, event *Event) error

// SubscriptionID is returned by Subscribe and used to unsubscribe
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus fans events out to subscribers. A single worker dispatches events in
// publish order, so handlers never run concurrently with each other.
type Bus struct {
	subscribers map[EventName][]subscription
	mu          sync.RWMutex
	nextID      atomic.Uint64
	ctx         context.Context
	cancel      context.CancelFunc
	eventQueue  chan *Event
	closeOnce   sync.Once
	closed      atomic.Bool
	wg          sync.WaitGroup
}

// New creates a bus with the given queue capacity
func New(ctx context.Context, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	busCtx, cancel := context.WithCancel(ctx)
	bus := &Bus{
		subscribers: make(map[EventName][]subscription),
		ctx:         busCtx,
		cancel:      cancel,
		eventQueue:  make(chan *Event, queueSize),
	}

	bus.wg.Add(1)
	go bus.worker()

	return bus
}

// Subscribe registers a handler for name
func (b *Bus) Subscribe(name EventName, handler Handler) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, subs := range b.subscribers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			b.subscribers[name] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subscribers[name]) == 0 {
				delete(b.subscribers, name)
			}
			return
		}
	}
}

// Publish enqueues an event. It never blocks: a full queue drops the event.
func (b *Bus) Publish(event *Event) bool {
	if b.closed.Load() {
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return false
	}
	select {
	case b.eventQueue <- event:
		return true
	default:
		logger.Warn("event bus queue full, dropping event",
			zap.String("name", string(event.Name)),
			zap.String("source", event.Source))
		return false
	}
}

// Emit is a shorthand for publishing a payload under name
func (b *Bus) Emit(name EventName, source string, payload interface{}) bool {
	return b.Publish(&Event{Name: name, Source: source, Payload: payload})
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for event := range b.eventQueue {
		b.dispatch(event)
	}
}

func (b *Bus) dispatch(event *Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subscribers[event.Name])+len(b.subscribers[EventAll]))
	subs = append(subs, b.subscribers[event.Name]...)
	if event.Name != EventAll {
		subs = append(subs, b.subscribers[EventAll]...)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event handler panic",
						zap.String("name", string(event.Name)),
						zap.String("source", event.Source),
						zap.Any("error", r))
				}
			}()
			if err := h(b.ctx, event); err != nil {
				logger.Error("event handler error",
					zap.String("name", string(event.Name)),
					zap.String("source", event.Source),
					zap.Error(err))
			}
		}(s.handler)
	}
}

// Close stops accepting events, delivers what is already queued and waits
// for the worker to exit.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed.Store(true)
		close(b.eventQueue)
		b.mu.Unlock()
		b.wg.Wait()
		b.cancel()
	})
}
