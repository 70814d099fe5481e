package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockDLQPurger struct {
	calls     int
	retention time.Duration
	err       error
}

func (m *mockDLQPurger) PurgeOlderThan(_ context.Context, retention time.Duration) (int, error) {
	m.calls++
	m.retention = retention
	if m.err != nil {
		return 0, m.err
	}
	return 2, nil
}

func TestGarbageCollectorPurgesOnTick(t *testing.T) {
	t.Parallel()

	mock := &mockDLQPurger{}
	gc := NewGarbageCollector(mock, zap.NewNop(), 10*time.Millisecond, 24*time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := gc.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Start returned %v, expected deadline exceeded", err)
	}

	if mock.calls == 0 {
		t.Error("PurgeOlderThan was never called")
	}
	if mock.retention != 24*time.Hour {
		t.Errorf("retention = %v, expected 24h", mock.retention)
	}
}

func TestGarbageCollectorSurvivesPurgeErrors(t *testing.T) {
	t.Parallel()

	mock := &mockDLQPurger{err: errors.New("channel closed")}
	gc := NewGarbageCollector(mock, zap.NewNop(), 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = gc.Start(ctx)

	if mock.calls < 2 {
		t.Errorf("purge calls = %d, expected the loop to continue after errors", mock.calls)
	}
}

func TestGarbageCollectorNilPurgerIsNoOp(t *testing.T) {
	t.Parallel()

	gc := NewGarbageCollector(nil, zap.NewNop(), 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := gc.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Start returned %v", err)
	}
}
