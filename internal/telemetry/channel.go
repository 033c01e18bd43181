// Package telemetry carries live audio levels from the capture goroutine to
// the visualizer. Delivery is best effort: a full channel drops the newest
// sample instead of blocking the producer.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
)

// Channel is a bounded single-producer/single-consumer conduit of
// normalized level samples.
type Channel struct {
	ch      chan float32
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// New creates a channel holding at most size undelivered samples.
func New(size int) *Channel {
	if size <= 0 {
		size = 1
	}
	return &Channel{ch: make(chan float32, size)}
}

// Offer enqueues level without blocking. It returns false when the sample
// was dropped because the channel is full or closed.
func (c *Channel) Offer(level float32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.ch <- level:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Samples returns the receive side. It is closed by Close.
func (c *Channel) Samples() <-chan float32 { return c.ch }

// Dropped reports how many samples were discarded.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Close stops accepting samples. Samples already queued stay readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Forward drains c into send until c is closed or ctx is done.
func Forward(ctx context.Context, c *Channel, send func(level float32)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case level, ok := <-c.Samples():
			if !ok {
				return nil
			}
			send(level)
		}
	}
}
