package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T, maxConcurrent int64) *Loop {
	t.Helper()
	l := NewLoop(maxConcurrent, nil)
	l.Start(context.Background())
	t.Cleanup(l.Stop)
	return l
}

func TestLoopRunsInOrder(t *testing.T) {
	l := startLoop(t, 1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		if err := l.Submit("step", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatal(err)
		}
	}
	if !l.WaitIdle(2 * time.Second) {
		t.Fatal("loop did not drain")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestLoopDoReturnsError(t *testing.T) {
	l := startLoop(t, 1)
	want := errors.New("boom")
	if err := l.Do(context.Background(), "fail", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestAwaitResumesOnLoop(t *testing.T) {
	l := startLoop(t, 2)

	var inLoop atomic.Bool
	result := make(chan int, 1)
	l.Do(context.Background(), "start", func(ctx context.Context) error {
		Await(l, ctx, "double",
			func(context.Context) (int, error) { return 21 * 2, nil },
			func(_ context.Context, v int, err error) {
				inLoop.Store(true)
				result <- v
			})
		return nil
	})

	select {
	case v := <-result:
		if v != 42 || !inLoop.Load() {
			t.Errorf("unexpected continuation result %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("continuation did not run")
	}
}

func TestAwaitDropsCancelledScope(t *testing.T) {
	l := startLoop(t, 1)
	scope, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var ran atomic.Bool

	Await(l, scope, "slow",
		func(context.Context) (struct{}, error) {
			<-release
			return struct{}{}, nil
		},
		func(context.Context, struct{}, error) { ran.Store(true) })
	cancel()
	close(release)

	if !l.WaitIdle(2 * time.Second) {
		t.Fatal("loop did not drain")
	}
	if ran.Load() {
		t.Error("expected continuation of a cancelled scope to be dropped")
	}
}

func TestAwaitRespectsConcurrencyLimit(t *testing.T) {
	l := startLoop(t, 2)
	var running, maxSeen atomic.Int32

	for i := 0; i < 6; i++ {
		Await(l, context.Background(), "work",
			func(context.Context) (struct{}, error) {
				cur := running.Add(1)
				for {
					old := maxSeen.Load()
					if cur <= old || maxSeen.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			},
			func(context.Context, struct{}, error) {})
	}
	if !l.WaitIdle(2 * time.Second) {
		t.Fatal("loop did not drain")
	}
	if m := maxSeen.Load(); m > 2 {
		t.Errorf("expected at most 2 concurrent jobs, saw %d", m)
	}
}

func TestLoopStopped(t *testing.T) {
	l := NewLoop(1, nil)
	if err := l.Submit("early", func(context.Context) {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("expected ErrLoopStopped before Start, got %v", err)
	}
	l.Start(context.Background())
	l.Stop()
	if err := l.Do(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("expected ErrLoopStopped after Stop, got %v", err)
	}
}
