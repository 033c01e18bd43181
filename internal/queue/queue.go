// Package queue serializes transcription work: jobs are consumed in FIFO
// order by a single Worker.
package queue

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of jobs. Enqueue is safe from any goroutine;
// Dequeue expects a single consumer.
type Queue struct {
	mu     sync.Mutex
	jobs   []Job
	notify chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends job. It never blocks.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes the oldest job, waiting up to wait for one to arrive.
// It returns false on timeout or when ctx is done.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (Job, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = Job{}
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return Job{}, false
		case <-ctx.Done():
			return Job{}, false
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
