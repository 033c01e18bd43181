package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// streamBacklog is how many device buffers may queue up between the audio
// thread and the capture goroutine before the device callback waits.
const streamBacklog = 512

// MalgoSource captures from the default microphone through miniaudio.
type MalgoSource struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoSource initializes the audio backend. Call Close() when done.
func NewMalgoSource() (*MalgoSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing audio context: %v", ErrDevice, err)
	}
	return &MalgoSource{ctx: ctx}, nil
}

// Open prepares a capture device with the requested format. The device does
// not deliver data until Start.
func (s *MalgoSource) Open(cfg StreamConfig) (Stream, error) {
	st := &malgoStream{
		channels: cfg.Channels,
		bufs:     make(chan []float32, streamBacklog),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = cfg.Channels
	deviceCfg.SampleRate = cfg.SampleRate
	if cfg.BufferFrames > 0 {
		deviceCfg.PeriodSizeInFrames = cfg.BufferFrames
	}

	callbacks := malgo.DeviceCallbacks{
		Data: st.onData,
		Stop: st.onStop,
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing capture device: %v", ErrDevice, err)
	}
	st.device = device
	return st, nil
}

// Close releases the audio context.
func (s *MalgoSource) Close() error {
	if s.ctx == nil {
		return nil
	}
	if err := s.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	s.ctx.Free()
	s.ctx = nil
	return nil
}

type malgoStream struct {
	device   *malgo.Device
	channels uint32

	bufs chan []float32
	errs chan error
	done chan struct{}
	once sync.Once
}

func (st *malgoStream) Start() error {
	if err := st.device.Start(); err != nil {
		return fmt.Errorf("%w: starting capture device: %v", ErrDevice, err)
	}
	return nil
}

func (st *malgoStream) Buffers() <-chan []float32 { return st.bufs }
func (st *malgoStream) Err() <-chan error         { return st.errs }

// Close stops the device. Uninit waits for the audio thread to leave the
// data callback, so closing bufs afterwards cannot race a send.
func (st *malgoStream) Close() error {
	st.once.Do(func() {
		close(st.done)
		st.device.Uninit()
		close(st.bufs)
	})
	return nil
}

// onData runs on the audio thread. pSample holds frameCount interleaved
// little-endian float32 frames.
func (st *malgoStream) onData(_, pSample []byte, frameCount uint32) {
	samples := bytesToFloat32(pSample, frameCount*st.channels)
	select {
	case st.bufs <- samples:
	case <-st.done:
	}
}

// onStop fires when the device stops, including after Close. Only an
// unrequested stop is a device failure.
func (st *malgoStream) onStop() {
	select {
	case <-st.done:
		return
	default:
	}
	select {
	case st.errs <- fmt.Errorf("%w: capture device stopped unexpectedly", ErrDevice):
	default:
	}
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
