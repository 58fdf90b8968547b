package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, nil, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestWithRetryHonorsLimit(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 1, time.Millisecond, nil, func(context.Context) error {
		calls++
		return errors.New("always")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, isRetryable, func(context.Context) error {
		calls++
		return ErrConnection
	})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, 3, time.Hour, nil, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
