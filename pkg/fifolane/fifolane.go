// Package fifolane provides a single-writer serial task queue.
package fifolane

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
	"go.uber.org/zap"
)

// ErrStopped is returned for tasks still pending when the lane stops.
var ErrStopped = errors.New("lane stopped")

type task struct {
	name string
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Lane executes submitted tasks one at a time, in submission order. A task
// runs to completion, including all its awaited sub-operations, before the
// next begins.
type Lane struct {
	logger *zap.Logger

	mu      sync.Mutex
	pending *deque.Deque
	wake    chan struct{}
	stopped bool

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a Lane.
func New(logger *zap.Logger) *Lane {
	return &Lane{
		logger:  logger,
		pending: deque.New(),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Start begins the background execution loop.
func (l *Lane) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop stops the execution loop. Pending tasks fail with ErrStopped.
func (l *Lane) Stop() {
	close(l.stop)
	l.wg.Wait()
}

// Len returns the number of tasks waiting for their turn.
func (l *Lane) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Len()
}

// Do submits a task and waits for its completion. A task whose context is
// already canceled when its turn comes is skipped and fails with the
// context error.
func (l *Lane) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	t := &task{
		name: name,
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.pending.PushBack(t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lane) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			l.drain(ctx.Err())
			return
		case <-l.stop:
			l.drain(ErrStopped)
			return
		case <-l.wake:
		}

		for {
			t := l.next()
			if t == nil {
				break
			}
			l.execute(t)
		}
	}
}

func (l *Lane) next() *task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending.Len() == 0 {
		return nil
	}
	return l.pending.PopFront().(*task)
}

func (l *Lane) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}
	err := t.fn(t.ctx)
	if err != nil {
		l.logger.Debug("task failed", zap.String("task", t.name), zap.Error(err))
	}
	t.done <- err
}

func (l *Lane) drain(err error) {
	l.mu.Lock()
	l.stopped = true
	tasks := make([]*task, 0, l.pending.Len())
	for l.pending.Len() > 0 {
		tasks = append(tasks, l.pending.PopFront().(*task))
	}
	l.mu.Unlock()

	for _, t := range tasks {
		t.done <- err
	}
}
