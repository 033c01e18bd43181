package main

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chaz8081/whisperclip/internal/queue"
)

// printSink writes each transcript on its own line.
type printSink struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

func (p *printSink) Deliver(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	_, err := fmt.Fprintln(p.w, text)
	return err
}

// Count reports how many transcripts were printed.
func (p *printSink) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// multiSink delivers to every sink, in order.
type multiSink []queue.Sink

func (m multiSink) Deliver(text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
