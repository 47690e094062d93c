package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInMemoryBus_Subscribe_Unsubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	var received int32
	unsub := bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&received, 1)
		return nil
	})

	if err := bus.Publish(ctx, &Event{Topic: TopicTaskCreated, ClientID: "c1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want 1", received)
	}

	// Unsubscribe and verify no more events
	unsub()
	if err := bus.Publish(ctx, &Event{Topic: TopicTaskCreated}); err != nil {
		t.Fatalf("Publish after unsub: %v", err)
	}
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received after unsub = %d, want 1", received)
	}
}

func TestInMemoryBus_RoutesByTopic(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	var created, failed, all int32
	bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&created, 1)
		return nil
	})
	bus.Subscribe(TopicClientFailed, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&failed, 1)
		return nil
	})
	bus.Subscribe(TopicAll, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	})

	_ = bus.Publish(ctx, &Event{Topic: TopicTaskCreated})
	_ = bus.Publish(ctx, &Event{Topic: TopicTaskCreated})
	_ = bus.Publish(ctx, &Event{Topic: TopicClientFailed, Error: "boom"})

	if created != 2 || failed != 1 || all != 3 {
		t.Errorf("created/failed/all = %d/%d/%d, want 2/1/3", created, failed, all)
	}
}

func TestInMemoryBus_FillsIDAndTimestamp(t *testing.T) {
	bus := NewInMemoryBus()
	ev := &Event{Topic: TopicRunFinished, Run: &RunSummary{Created: 3}}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Errorf("event not stamped: %+v", ev)
	}
}

func TestInMemoryBus_HandlerErrors(t *testing.T) {
	bus := NewInMemoryBus()
	boom := errors.New("calendar down")

	var ran int32
	bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error { return boom })
	bus.Subscribe(TopicTaskCreated, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	err := bus.Publish(context.Background(), &Event{Topic: TopicTaskCreated})
	if !errors.Is(err, boom) {
		t.Fatalf("Publish err = %v, want %v", err, boom)
	}
	if ran != 1 {
		t.Error("later handlers should still run after an error")
	}
}

func TestInMemoryBus_History(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	for _, topic := range []Topic{TopicTaskCreated, TopicClientFailed, TopicTaskCreated, TopicRunFinished} {
		_ = bus.Publish(ctx, &Event{Topic: topic})
	}

	if got := len(bus.History(TopicTaskCreated, 100)); got != 2 {
		t.Errorf("History(task.created) len = %d, want 2", got)
	}
	all := bus.History(TopicAll, 0)
	if len(all) != 4 {
		t.Fatalf("History(*) len = %d, want 4", len(all))
	}
	if all[0].Topic != TopicTaskCreated || all[3].Topic != TopicRunFinished {
		t.Errorf("History not chronological: %s ... %s", all[0].Topic, all[3].Topic)
	}
}

func TestInMemoryBus_History_Limit(t *testing.T) {
	bus := NewInMemoryBus()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = bus.Publish(ctx, &Event{Topic: TopicTaskCreated, ClientID: string(rune('a' + i))})
	}

	hist := bus.History(TopicTaskCreated, 5)
	if len(hist) != 5 {
		t.Fatalf("History with limit 5 returned %d events", len(hist))
	}
	if hist[4].ClientID != "j" {
		t.Errorf("newest event = %q, want j", hist[4].ClientID)
	}
}

func TestInMemoryBus_ConcurrentPublish(t *testing.T) {
	bus := NewInMemoryBus()
	var count int32
	bus.Subscribe(TopicAll, func(_ context.Context, _ *Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), &Event{Topic: TopicTaskCreated})
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&count) != 20 {
		t.Errorf("count = %d, want 20", count)
	}
}
