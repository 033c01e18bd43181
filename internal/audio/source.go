package audio

import "errors"

var (
	// ErrDevice wraps failures of the audio input device, both at open time
	// and mid-stream.
	ErrDevice = errors.New("audio device error")

	// ErrEmptyRecording is returned by Recorder.Stop when the input produced
	// no samples. It is a valid outcome, not a failure.
	ErrEmptyRecording = errors.New("recording captured no audio")
)

// StreamConfig describes the capture format requested from a Source.
type StreamConfig struct {
	SampleRate   uint32
	Channels     uint32
	BufferFrames uint32
}

// Source opens capture streams on an input device.
type Source interface {
	Open(cfg StreamConfig) (Stream, error)
	Close() error
}

// Stream delivers interleaved float32 sample buffers in [-1, 1].
//
// Buffers is closed once the stream has been closed and every delivered
// buffer has been handed over. A fatal device failure is reported once on
// Err; the stream stops delivering after that.
type Stream interface {
	Start() error
	Buffers() <-chan []float32
	Err() <-chan error
	Close() error
}
