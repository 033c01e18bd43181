package visualizer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	historySize    = 100
	frameInterval  = 33 * time.Millisecond
	successHold    = 1500 * time.Millisecond
	smoothing      = 0.5
	idleDecay      = 0.95
	variationFloor = 0.05
	fadeStep       = 0.1
)

type (
	commandMsg     Command
	streamEndedMsg struct{}
	frameMsg       struct{}
	hideSuccessMsg struct{ seq int }
)

// peerModel is the visualizer state machine. Loading, recording and
// transcribing are independent flags so a transcription can run while a new
// recording is live.
type peerModel struct {
	loading      bool
	recording    bool
	transcribing bool
	success      bool
	successSeq   int

	opacity       float64
	targetOpacity float64
	phase         float64

	target   []float64
	smoothed []float64
	width    int

	rnd func() float64
}

func newPeerModel(rnd func() float64) *peerModel {
	return &peerModel{
		target:   make([]float64, historySize),
		smoothed: make([]float64, historySize),
		width:    80,
		rnd:      rnd,
	}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m *peerModel) Init() tea.Cmd { return frame() }

func (m *peerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case commandMsg:
		return m, m.apply(Command(msg))
	case streamEndedMsg:
		return m, tea.Quit
	case frameMsg:
		m.animate()
		return m, frame()
	case hideSuccessMsg:
		if msg.seq == m.successSeq {
			m.hideSuccess()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m *peerModel) apply(c Command) tea.Cmd {
	switch c.Kind {
	case KindUpdateLevel:
		m.pushLevel(float64(c.Level))
	case KindStartLoading:
		m.loading = true
		m.recording = false
		m.opacity = 0
		m.targetOpacity = 1
	case KindStartRecording:
		m.loading = false
		m.recording = true
		m.targetOpacity = 1
	case KindStopRecording:
		// stay visible for the transcription that follows
		m.loading = false
		m.recording = false
	case KindStartTranscription:
		m.transcribing = true
		m.targetOpacity = 1
	case KindStopTranscription:
		m.transcribing = false
		m.success = true
		m.successSeq++
		seq := m.successSeq
		return tea.Tick(successHold, func(time.Time) tea.Msg { return hideSuccessMsg{seq: seq} })
	case KindQuit:
		return tea.Quit
	}
	return nil
}

func (m *peerModel) hideSuccess() {
	m.success = false
	if m.recording {
		m.targetOpacity = 1
	} else {
		m.targetOpacity = 0
	}
}

// pushLevel appends a sample, adding up to ±20% jitter to audible ones so
// the waveform does not look flat.
func (m *peerModel) pushLevel(level float64) {
	level = clamp01(level)
	if level > variationFloor {
		variation := (m.rnd()*0.4 - 0.2) * level
		level = clamp01(level + variation)
	}
	copy(m.target, m.target[1:])
	m.target[len(m.target)-1] = level
}

func (m *peerModel) animate() {
	switch {
	case m.opacity < m.targetOpacity:
		m.opacity = math.Min(m.targetOpacity, m.opacity+fadeStep)
	case m.opacity > m.targetOpacity:
		m.opacity = math.Max(m.targetOpacity, m.opacity-fadeStep)
	}
	if m.loading || m.transcribing {
		m.phase = math.Mod(m.phase+0.05, 2*math.Pi)
	}
	for i := range m.smoothed {
		m.smoothed[i] += (m.target[i] - m.smoothed[i]) * smoothing
	}
	if !m.recording {
		for i := range m.target {
			m.target[i] *= idleDecay
		}
	}
}

// hidden reports whether nothing should be drawn.
func (m *peerModel) hidden() bool {
	return m.opacity <= 0 && !m.recording && !m.loading && !m.transcribing
}

// mode names what the peer is showing, in draw priority order.
func (m *peerModel) mode() string {
	switch {
	case m.hidden():
		return "hidden"
	case m.loading:
		return "loading"
	case m.recording && m.transcribing:
		return "concurrent"
	case m.transcribing:
		return "transcribing"
	case m.recording:
		return "recording"
	case m.success:
		return "success"
	}
	return "fading"
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// RunPeer renders the visualizer to w, driven by the command stream on r,
// until a quit command or the end of the stream.
func RunPeer(r io.Reader, w io.Writer) error {
	m := newPeerModel(rand.Float64)
	p := tea.NewProgram(m,
		tea.WithInput(nil),
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	)

	go func() {
		dec := NewDecoder(r)
		for {
			c, err := dec.Decode()
			switch {
			case err == nil:
				p.Send(commandMsg(c))
				if c.Kind == KindQuit {
					return
				}
			case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrVersion):
				slog.Warn("[visualizer] skipping command", "error", err)
			default:
				if !errors.Is(err, io.EOF) {
					slog.Error("[visualizer] command stream", "error", err)
				}
				p.Send(streamEndedMsg{})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("visualizer: run peer: %w", err)
	}
	return nil
}
