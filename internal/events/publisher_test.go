package events

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vestibule/vestibule/internal/metrics"
)

func TestPublisher_EmitCountsDroppedEvents(t *testing.T) {
	t.Parallel()

	// Nothing listens on port 1, so every publish fails fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	recorder := metrics.NewInMemory()
	p := NewPublisher(client, nil, recorder)

	p.Emit(validEvent())
	p.Emit(validEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	snap := recorder.Snapshot()
	if snap.AuthEvents[metrics.EventDropped] != 2 {
		t.Errorf("dropped = %d, want 2", snap.AuthEvents[metrics.EventDropped])
	}
	if snap.AuthEvents[metrics.EventPublished] != 0 {
		t.Errorf("published = %d, want 0", snap.AuthEvents[metrics.EventPublished])
	}
}

func TestPublisher_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil, nil, nil)
	p.pending.Add(1)
	defer p.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}
