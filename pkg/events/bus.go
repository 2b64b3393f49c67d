// Package events delivers domain events to the subscribers registered in the process.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/metrics"
	"github.com/oneconcern/pacbox/pkg/model"
)

const defaultBufferSize = 256

// ErrClosed is returned when publishing to a bus that is no longer running
var ErrClosed = errors.New("event bus closed")

// Handler handles domain events
type Handler interface {
	Handle(context.Context, model.Event) error
}

// HandlerFunc adapts a function to a Handler
type HandlerFunc func(context.Context, model.Event) error

// Handle the event
func (f HandlerFunc) Handle(ctx context.Context, event model.Event) error {
	return f(ctx, event)
}

// Bus dispatches published events to subscribers, in publication order.
//
// Events are queued by Publish and delivered by the Run loop, one at a time.
// Handler errors and panics are logged and do not stop the delivery.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]Handler
	order  []uint64
	nextID uint64

	queue chan model.Event
	done  chan struct{}
	close sync.Once
	l     *zap.Logger

	metrics.Enable
	m *metrics.EventMetrics
}

// Option for the bus
type Option func(*Bus)

// Logger for the bus
func Logger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.l = l
		}
	}
}

// BufferSize sets the number of events which may be queued before Publish blocks
func BufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan model.Event, n)
		}
	}
}

// WithMetrics toggles the collection of event metrics
func WithMetrics(enabled bool) Option {
	return func(b *Bus) {
		b.EnableMetrics(enabled)
	}
}

// New event bus
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:  make(map[uint64]Handler),
		queue: make(chan model.Event, defaultBufferSize),
		done:  make(chan struct{}),
		l:     dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(b)
	}
	if b.MetricsEnabled() {
		b.m = b.EnsureMetrics("events", &metrics.EventMetrics{}).(*metrics.EventMetrics)
	}
	return b
}

// Subscribe registers a handler for all events. The returned function unsubscribes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.subs, id)
			for i, sid := range b.order {
				if sid == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Listen subscribes a handler to the events of type T only
func Listen[T model.Event](b *Bus, fn func(context.Context, T) error) (unsubscribe func()) {
	return b.Subscribe(HandlerFunc(func(ctx context.Context, event model.Event) error {
		typed, ok := event.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}))
}

// Publish queues events for delivery. It blocks when the queue is full, until ctx is done.
func (b *Bus) Publish(ctx context.Context, events ...model.Event) error {
	for _, event := range events {
		select {
		case <-b.done:
			return ErrClosed
		default:
		}

		select {
		case b.queue <- event:
			if b.MetricsEnabled() {
				b.m.Publish(event.EventName())
			}
		case <-b.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run delivers queued events until ctx is done or the bus is closed
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return nil
		case event := <-b.queue:
			b.Dispatch(ctx, event)
		}
	}
}

// Close stops the Run loop and rejects further publications.
//
// Events still queued stay in the queue, for Flush to deliver them.
func (b *Bus) Close() {
	b.close.Do(func() {
		close(b.done)
	})
}

// Dispatch delivers events synchronously to all current subscribers, in subscription order
func (b *Bus) Dispatch(ctx context.Context, events ...model.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, event := range events {
		for _, h := range handlers {
			err := b.deliver(ctx, h, event)
			if b.MetricsEnabled() {
				b.m.Dispatch(event.EventName(), err)
			}
			if err != nil {
				b.l.Error("event handler failed",
					zap.String("event", event.EventName()),
					zap.String("chain", errors.Chain(err)),
				)
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, event model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, event)
}

// Flush delivers synchronously all events still queued.
//
// It is meant to be called once the bus is closed, so that no event published before closing is lost.
func (b *Bus) Flush(ctx context.Context) {
	for {
		select {
		case event := <-b.queue:
			b.Dispatch(ctx, event)
		default:
			return
		}
	}
}

// Pending is the number of events waiting for delivery
func (b *Bus) Pending() int {
	return len(b.queue)
}
