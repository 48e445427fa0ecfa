package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrLoopStopped is returned for work submitted to a loop that is not running.
var ErrLoopStopped = errors.New("loop stopped")

const loopBuffer = 256

// Loop runs every handler, signal callback and async continuation of a
// bridge on one goroutine, in submission order. Blocking work runs off the
// loop through Await, bounded by a semaphore, and resumes on the loop.
type Loop struct {
	tasks     chan *Task
	semaphore *semaphore.Weighted
	logger    *slog.Logger
	pending   atomic.Int64
	running   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	async  sync.WaitGroup
}

// NewLoop creates a Loop that allows up to maxConcurrent async jobs at once.
func NewLoop(maxConcurrent int64, logger *slog.Logger) *Loop {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:     make(chan *Task, loopBuffer),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}
}

// Start launches the loop goroutine. It must be called before Submit.
func (l *Loop) Start(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.process()
}

// Stop cancels the loop context, waits for the loop goroutine and for async
// jobs to return. Queued tasks are discarded.
func (l *Loop) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	l.cancel()
	l.wg.Wait()
	l.async.Wait()
}

// Context is cancelled when the loop stops.
func (l *Loop) Context() context.Context {
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

func (l *Loop) process() {
	defer l.wg.Done()
	for {
		select {
		case task := <-l.tasks:
			task.run(l.ctx)
			switch task.Status {
			case TaskFailed:
				l.logger.Debug("loop task failed", "task", task.Name, "error", task.Err)
			case TaskDropped:
				l.logger.Debug("loop task dropped", "task", task.Name, "reason", task.Err)
			}
			l.pending.Add(-1)
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Loop) enqueue(task *Task) error {
	if !l.running.Load() {
		return ErrLoopStopped
	}
	l.pending.Add(1)
	select {
	case l.tasks <- task:
		return nil
	default:
		l.pending.Add(-1)
		return fmt.Errorf("loop full, dropping %s", task.Name)
	}
}

// Submit queues fn to run on the loop and returns without waiting.
func (l *Loop) Submit(name string, fn func(ctx context.Context)) error {
	return l.enqueue(newTask(name, nil, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}))
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop goroutine.
func (l *Loop) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	task := newTask(name, nil, fn)
	if err := l.enqueue(task); err != nil {
		return err
	}
	select {
	case <-task.done:
		return task.Err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrLoopStopped
	}
}

// Await runs work off the loop and then runs then on the loop with its
// result. If scope is cancelled before then would run, then is dropped.
// work receives scope, so cancelling the scope also aborts it.
func Await[T any](l *Loop, scope context.Context, name string, work func(ctx context.Context) (T, error), then func(ctx context.Context, v T, err error)) {
	if !l.running.Load() {
		return
	}
	l.pending.Add(1)
	l.async.Add(1)
	go func() {
		defer l.async.Done()
		defer l.pending.Add(-1)
		if err := l.semaphore.Acquire(scope, 1); err != nil {
			l.logger.Debug("async job dropped", "task", name, "reason", err)
			return
		}
		v, err := work(scope)
		l.semaphore.Release(1)

		task := newTask(name, scope, func(ctx context.Context) error {
			then(ctx, v, err)
			return nil
		})
		l.pending.Add(1)
		select {
		case l.tasks <- task:
		case <-l.ctx.Done():
			l.pending.Add(-1)
		}
	}()
}

// WaitIdle blocks until no task is queued or running and no async job is in
// flight, or the timeout expires. Returns true if idle, false if timed out.
func (l *Loop) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if l.pending.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(5 * time.Millisecond):
		}
	}
}
