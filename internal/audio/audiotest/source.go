// Package audiotest provides a scripted audio.Source for tests.
package audiotest

import (
	"sync"
	"sync/atomic"

	"github.com/chaz8081/whisperclip/internal/audio"
)

var _ audio.Source = (*Source)(nil)

// Source replays scripted buffers instead of a microphone. Every stream
// it opens delivers all of Buffers as soon as it is started, then reports
// FailErr if set.
type Source struct {
	Buffers  [][]float32
	OpenErr  error
	StartErr error
	FailErr  error

	opened atomic.Int32
}

// NewSource returns a source that replays bufs on every recording.
func NewSource(bufs ...[]float32) *Source {
	return &Source{Buffers: bufs}
}

// Opened reports how many streams have been opened.
func (f *Source) Opened() int { return int(f.opened.Load()) }

func (f *Source) Open(cfg audio.StreamConfig) (audio.Stream, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.opened.Add(1)
	return &fakeStream{
		src:  f,
		bufs: make(chan []float32, len(f.Buffers)),
		errs: make(chan error, 1),
	}, nil
}

func (f *Source) Close() error { return nil }

type fakeStream struct {
	src  *Source
	bufs chan []float32
	errs chan error
	once sync.Once
}

func (s *fakeStream) Start() error {
	if s.src.StartErr != nil {
		return s.src.StartErr
	}
	for _, b := range s.src.Buffers {
		cp := make([]float32, len(b))
		copy(cp, b)
		s.bufs <- cp
	}
	if s.src.FailErr != nil {
		s.errs <- s.src.FailErr
	}
	return nil
}

func (s *fakeStream) Buffers() <-chan []float32 { return s.bufs }
func (s *fakeStream) Err() <-chan error         { return s.errs }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.bufs) })
	return nil
}

// ConstantBuffer returns n samples all equal to v, whose audio.Level is the
// normalization of 20*log10(|v|).
func ConstantBuffer(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}
