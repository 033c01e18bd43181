package model

import "context"

// LoadTask is a reference to a load started with LoadAsync.
type LoadTask struct {
	done chan struct{}
	err  error
}

func newLoadTask() *LoadTask {
	return &LoadTask{done: make(chan struct{})}
}

// CompletedTask returns a task that has already finished with err.
func CompletedTask(err error) *LoadTask {
	t := newLoadTask()
	t.finish(err)
	return t
}

func (t *LoadTask) finish(err error) {
	t.err = err
	close(t.done)
}

// Done is closed when the load has finished, successfully or not.
func (t *LoadTask) Done() <-chan struct{} { return t.done }

// Pending reports whether the load is still running.
func (t *LoadTask) Pending() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Err returns the load result. It is nil until Done is closed.
func (t *LoadTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the load finishes or ctx is done.
func (t *LoadTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
