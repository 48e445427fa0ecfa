package bridge

import (
	"context"
	"time"
)

// TaskStatus represents the lifecycle state of a Task.
type TaskStatus string

const (
	TaskQueued   TaskStatus = "queued"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
	TaskDropped  TaskStatus = "dropped"
)

// Task is one unit of work run on the loop: a host message handler, a
// document API call or the continuation of an async lookup.
type Task struct {
	Name      string
	Status    TaskStatus
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	Err       error

	// scope, when set, must still be live for the task to run.
	scope context.Context
	fn    func(ctx context.Context) error
	done  chan struct{}
}

func newTask(name string, scope context.Context, fn func(ctx context.Context) error) *Task {
	return &Task{
		Name:      name,
		Status:    TaskQueued,
		CreatedAt: time.Now(),
		scope:     scope,
		fn:        fn,
		done:      make(chan struct{}),
	}
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)
	if t.scope != nil && t.scope.Err() != nil {
		t.Status = TaskDropped
		t.Err = t.scope.Err()
		return
	}
	t.Status = TaskRunning
	t.StartedAt = time.Now()
	t.Err = t.fn(ctx)
	t.EndedAt = time.Now()
	if t.Err != nil {
		t.Status = TaskFailed
		return
	}
	t.Status = TaskComplete
}
