package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestEventBus_Emit(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	var calls atomic.Int32
	bus.Subscribe(EventGameWon, "counter", func(ctx context.Context, e Event) error {
		if e.Payload.(GameEndedPayload).PLID != 7 {
			t.Errorf("payload = %+v", e.Payload)
		}
		calls.Add(1)
		return nil
	})
	bus.Subscribe(EventGameWon, "panicker", func(ctx context.Context, e Event) error {
		panic("boom")
	})

	bus.Emit(context.Background(), Event{Type: EventGameWon, Payload: GameEndedPayload{PLID: 7}})
	bus.Emit(context.Background(), Event{Type: EventGameLost})
	bus.Wait()

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestEventBus_EmitSync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	want := errors.New("archive down")
	bus.Subscribe(EventGameQuit, "ok", func(context.Context, Event) error { return nil })
	bus.Subscribe(EventGameQuit, "failing", func(context.Context, Event) error { return want })

	if err := bus.EmitSync(context.Background(), Event{Type: EventGameQuit}); !errors.Is(err, want) {
		t.Errorf("EmitSync err = %v, want %v", err, want)
	}
}

func TestEventBus_SubscribeManyAndUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	noop := func(context.Context, Event) error { return nil }
	bus.SubscribeMany(GameEndEvents, "archive", noop)
	bus.Subscribe(EventGameWon, "metrics", noop)

	if n := bus.HandlerCount(EventGameWon); n != 2 {
		t.Fatalf("won handlers = %d, want 2", n)
	}
	bus.Unsubscribe(EventGameWon, "archive")
	if n := bus.HandlerCount(EventGameWon); n != 1 {
		t.Errorf("won handlers after unsubscribe = %d, want 1", n)
	}
	if n := bus.HandlerCount(EventGameTimedOut); n != 1 {
		t.Errorf("timed out handlers = %d, want 1", n)
	}
}

func TestEventBus_Stop(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventShutdown, "counter", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	bus.Stop()
	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("StopCh not closed")
	}

	bus.Emit(context.Background(), Event{Type: EventShutdown})
	bus.Wait()
	if calls.Load() != 0 {
		t.Error("handler ran after Stop")
	}
}

func TestEventBus_PanickingHandlerIsRecovered(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	bus.Subscribe(EventGameWon, "broken", func(context.Context, Event) error {
		panic("boom")
	})
	bus.Subscribe(EventGameWon, "counter", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})

	if err := bus.EmitSync(context.Background(), Event{Type: EventGameWon}); err != nil {
		t.Errorf("EmitSync = %v", err)
	}
	bus.Emit(context.Background(), Event{Type: EventGameWon})
	bus.Stop()
	if n := calls.Load(); n != 2 {
		t.Errorf("counter ran %d times, want 2", n)
	}
}
