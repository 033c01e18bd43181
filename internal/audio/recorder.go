package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LevelSink receives one normalized loudness sample per captured buffer.
// Offer must never block.
type LevelSink interface {
	Offer(level float32) bool
}

// Recorder owns a single microphone recording at a time. Buffers are
// accumulated by a dedicated capture goroutine and only read after Stop has
// joined it.
type Recorder struct {
	src    Source
	cfg    StreamConfig
	levels LevelSink

	mu        sync.Mutex
	recording bool
	session   *session
}

// session is the state of one recording. bufs and err are written only by
// the capture goroutine and read only after done is closed.
type session struct {
	stream  Stream
	started time.Time
	stop    chan struct{}
	done    chan struct{}

	bufs [][]float32
	err  error
}

// NewRecorder creates a recorder on src. levels may be nil.
func NewRecorder(src Source, cfg StreamConfig, levels LevelSink) *Recorder {
	return &Recorder{src: src, cfg: cfg, levels: levels}
}

// Start opens an input stream and begins capturing. Device failures are
// returned wrapped in ErrDevice.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("audio: already recording")
	}

	stream, err := r.src.Open(r.cfg)
	if err != nil {
		return wrapDevice("opening input stream", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return wrapDevice("starting input stream", err)
	}

	s := &session{
		stream:  stream,
		started: time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.capture(s)

	r.session = s
	r.recording = true
	return nil
}

// Stop halts the stream, waits for the capture goroutine, and returns the
// recording as 16-bit PCM. It returns ErrEmptyRecording when nothing was
// captured. A mid-stream device failure is returned alongside whatever
// audio was collected before it.
func (r *Recorder) Stop() ([]int16, error) {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.recording = false
	r.mu.Unlock()

	if s == nil {
		return nil, fmt.Errorf("audio: not recording")
	}

	close(s.stop)
	<-s.done

	n := 0
	for _, b := range s.bufs {
		n += len(b)
	}
	slog.Debug("[audio] recording stopped",
		"buffers", len(s.bufs),
		"samples", n,
		"duration", time.Since(s.started).Round(time.Millisecond))

	var pcm []int16
	if n > 0 {
		flat := make([]float32, 0, n)
		for _, b := range s.bufs {
			flat = append(flat, b...)
		}
		pcm = ToPCM16(flat)
	}

	if s.err != nil {
		return pcm, s.err
	}
	if n == 0 {
		return nil, ErrEmptyRecording
	}
	return pcm, nil
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// capture drains the stream until Stop or a device failure. Either way the
// stream is closed and every buffer it already delivered is kept.
func (r *Recorder) capture(s *session) {
	defer close(s.done)

	bufs := s.stream.Buffers()
loop:
	for {
		select {
		case buf, ok := <-bufs:
			if !ok {
				break loop
			}
			r.accept(s, buf)
		case err := <-s.stream.Err():
			s.err = wrapDevice("capturing", err)
			slog.Error("[audio] input device failed", "error", err)
			break loop
		case <-s.stop:
			break loop
		}
	}

	// a failure reported before Stop must not be lost to the stop case
	if s.err == nil {
		select {
		case err := <-s.stream.Err():
			s.err = wrapDevice("capturing", err)
			slog.Error("[audio] input device failed", "error", err)
		default:
		}
	}

	_ = s.stream.Close()
	for buf := range bufs {
		r.accept(s, buf)
	}
}

func (r *Recorder) accept(s *session, buf []float32) {
	if len(buf) == 0 {
		return
	}
	s.bufs = append(s.bufs, buf)
	if r.levels != nil {
		r.levels.Offer(Level(buf))
	}
}

func wrapDevice(action string, err error) error {
	if errors.Is(err, ErrDevice) {
		return fmt.Errorf("audio: %s: %w", action, err)
	}
	return fmt.Errorf("audio: %s: %w: %v", action, ErrDevice, err)
}
