package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeConsumer struct {
	consume func(ctx context.Context) error
	closed  bool
}

func (f *fakeConsumer) ConsumeWithRetry(ctx context.Context, _ string, _ HandlerFunc, _ RetryPolicy, _ *zap.Logger) error {
	return f.consume(ctx)
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func TestConsumeForeverReconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dials := 0
	sessions := make([]*fakeConsumer, 0)
	dial := func() (Consumer, error) {
		dials++
		switch dials {
		case 1:
			return nil, errors.New("dial tcp: connection refused")
		case 2:
			c := &fakeConsumer{consume: func(context.Context) error { return errors.New("consumer closed") }}
			sessions = append(sessions, c)
			return c, nil
		default:
			c := &fakeConsumer{consume: func(ctx context.Context) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			}}
			sessions = append(sessions, c)
			return c, nil
		}
	}

	done := make(chan struct{})
	go func() {
		ConsumeForever(ctx, dial, ActivityQueue, nil, RetryPolicy{}, Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond}, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("consumer loop did not return after cancellation")
	}
	if dials != 3 {
		t.Fatalf("expected 3 dials, got %d", dials)
	}
	for i, s := range sessions {
		if !s.closed {
			t.Fatalf("session %d was not closed", i)
		}
	}
}

func TestConsumeForeverStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dials := 0
	ConsumeForever(ctx, func() (Consumer, error) {
		dials++
		return nil, errors.New("unreachable")
	}, ActivityQueue, nil, RetryPolicy{}, Backoff{}, nil)

	if dials != 0 {
		t.Fatalf("expected no dial after cancellation, got %d", dials)
	}
}
