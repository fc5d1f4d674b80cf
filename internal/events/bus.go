package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus fans events out to named subscribers. Handlers run on their own
// goroutines; a panicking handler is logged and does not affect the others.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopCh   chan struct{}
	stopped  bool
	inflight sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers handler for eventType under name.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handlerEntry{name: name, handler: handler})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// SubscribeMany registers the same handler for several event types.
func (eb *EventBus) SubscribeMany(types []EventType, name string, handler HandlerFunc) {
	for _, t := range types {
		eb.Subscribe(t, name, handler)
	}
}

// Unsubscribe removes every handler called name from eventType.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	kept := eb.handlers[eventType][:0:0]
	for _, h := range eb.handlers[eventType] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	eb.handlers[eventType] = kept
}

// snapshot returns the current handlers for t, or nil once stopped.
func (eb *EventBus) snapshot(t EventType) []handlerEntry {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped || len(eb.handlers[t]) == 0 {
		return nil
	}
	out := make([]handlerEntry, len(eb.handlers[t]))
	copy(out, eb.handlers[t])
	return out
}

// Emit delivers event to its subscribers without waiting for them.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	eb.mu.RLock()
	if eb.stopped || len(eb.handlers[event.Type]) == 0 {
		eb.mu.RUnlock()
		return
	}
	// Copy handlers to release lock before executing
	handlers := make([]handlerEntry, len(eb.handlers[event.Type]))
	copy(handlers, eb.handlers[event.Type])
	// Registered under the read lock so Stop cannot start waiting first.
	eb.inflight.Add(len(handlers))
	eb.mu.RUnlock()

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	for _, h := range handlers {
		go func() {
			defer eb.inflight.Done()
			_ = run(ctx, h, event)
		}()
	}
}

// EmitSync delivers event and waits for every subscriber. It returns the
// first handler error.
func (eb *EventBus) EmitSync(ctx context.Context, event Event) error {
	var (
		firstErr error
		once     sync.Once
		wg       sync.WaitGroup
	)
	for _, h := range eb.snapshot(event.Type) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx, h, event); err != nil {
				once.Do(func() { firstErr = err })
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func run(ctx context.Context, h handlerEntry, event Event) (err error) {
	// Recover handler panics
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err = h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
	return err
}

// Wait blocks until every asynchronously emitted handler has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}

// Stop rejects further events and waits for in-flight handlers.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	if eb.stopped {
		eb.mu.Unlock()
		return
	}
	eb.stopped = true
	close(eb.stopCh)
	eb.mu.Unlock()

	// Wait for in-flight handlers to complete
	eb.inflight.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh is closed by Stop.
func (eb *EventBus) StopCh() <-chan struct{} {
	return eb.stopCh
}

// HandlerCount returns how many handlers listen for eventType.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}
