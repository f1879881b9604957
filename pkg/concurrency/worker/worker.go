package worker

import (
	"context"
	"errors"
	"time"
)

var ErrManagerStopped = errors.New("worker manager stopped")

type TaskExecutor interface {
	Timeout() time.Duration
	Execute(ctx context.Context)
}

type Task[T any] struct {
	timeout  time.Duration
	executor func(ctx context.Context) (T, error)
	callback func(result T, err error)
}

// NewTask creates a new Task.
func NewTask[T any](executor func(ctx context.Context) (T, error)) *Task[T] {
	return &Task[T]{
		executor: executor,
	}
}

// Callback adds a callback function to the task.
func (t *Task[T]) Callback(callback func(result T, err error)) *Task[T] {
	t.callback = callback
	return t
}

// WithTimeout sets the deadline of the task. Zero runs the task without a deadline.
func (t *Task[T]) WithTimeout(timeout time.Duration) *Task[T] {
	t.timeout = timeout
	return t
}

// Timeout returns the timeout for the current task.
func (t *Task[T]) Timeout() time.Duration {
	return t.timeout
}

// Execute invokes the executor function of the task and passes the result to the callback function of the task.
func (t *Task[T]) Execute(ctx context.Context) {
	result, err := t.executor(ctx)
	if t.callback != nil {
		t.callback(result, err)
	}
}

type WorkerManager interface {
	Run(ctx context.Context) error
	Add(ctx context.Context, task TaskExecutor) error
}

type workerManager struct {
	workerCount int
	taskCh      chan TaskExecutor
	doneCh      chan struct{}
}

// NewWorkerManager create a new WorkerManager.
func NewWorkerManager(workerCount int) WorkerManager {
	if workerCount < 1 {
		workerCount = 1
	}
	return &workerManager{
		workerCount: workerCount,
		taskCh:      make(chan TaskExecutor),
		doneCh:      make(chan struct{}),
	}
}

// Run runs a specified number of workers.
func (w *workerManager) Run(ctx context.Context) error {
	for i := 0; i < w.workerCount; i++ {
		// run each worker in its own goroutine
		go w.worker(ctx)
	}

	// block until the context is cancelled
	<-ctx.Done()

	close(w.doneCh)
	return ctx.Err()
}

// Add hands the task to the next free worker. It blocks until a worker accepts the task,
// the context is done or the manager stops.
func (w *workerManager) Add(ctx context.Context, task TaskExecutor) error {
	select {
	case <-w.doneCh:
		return ErrManagerStopped
	default:
	}
	select {
	case w.taskCh <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.doneCh:
		return ErrManagerStopped
	}
}

func (w *workerManager) worker(parentCtx context.Context) {
	for {
		select {
		case <-parentCtx.Done():
			// exit the goroutine when the context is cancelled
			return
		case task := <-w.taskCh:
			ctx, cancel := parentCtx, context.CancelFunc(func() {})
			if task.Timeout() > 0 {
				ctx, cancel = context.WithTimeout(parentCtx, task.Timeout())
			}
			task.Execute(ctx)
			// cancel task after the task is done
			cancel()
		}
	}
}
