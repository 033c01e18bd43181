package visualizer

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#9333EA")
	dim    = lipgloss.Color("#784F96")
	green  = lipgloss.Color("#22C55E")

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(0, 1)
	waveStyle   = lipgloss.NewStyle().Foreground(accent)
	labelStyle  = lipgloss.NewStyle().Foreground(dim)
	okStyle     = lipgloss.NewStyle().Foreground(green).Bold(true)
	bars        = []rune("▁▂▃▄▅▆▇█")
	spinnerDots = []string{"·  ", "·· ", "···", " ··", "  ·", "   "}
)

func (m *peerModel) View() string {
	var body string
	switch m.mode() {
	case "hidden":
		return ""
	case "loading":
		pulse := (math.Sin(m.phase) + 1) / 2
		mic := "◉"
		if pulse < 0.5 {
			mic = "○"
		}
		body = waveStyle.Render(mic) + labelStyle.Render(" loading model")
	case "concurrent":
		half := m.barWidth() / 2
		body = waveStyle.Render(m.waveform(half)) + "  " + labelStyle.Render("transcribing"+m.spinner())
	case "transcribing":
		body = labelStyle.Render("transcribing" + m.spinner())
	case "recording":
		body = waveStyle.Render(m.waveform(m.barWidth()))
	case "success":
		body = okStyle.Render("✓") + labelStyle.Render(" done")
	default:
		body = labelStyle.Render(m.waveform(m.barWidth()))
	}
	return frameStyle.Render(body)
}

func (m *peerModel) barWidth() int {
	w := m.width - 4
	if w > historySize {
		w = historySize
	}
	if w < 10 {
		w = 10
	}
	return w
}

// waveform draws the newest n smoothed levels as one row of bars.
func (m *peerModel) waveform(n int) string {
	if n > len(m.smoothed) {
		n = len(m.smoothed)
	}
	var sb strings.Builder
	for _, v := range m.smoothed[len(m.smoothed)-n:] {
		idx := int(math.Round(v * float64(len(bars)-1)))
		sb.WriteRune(bars[idx])
	}
	return sb.String()
}

func (m *peerModel) spinner() string {
	i := int(m.phase/(2*math.Pi)*float64(len(spinnerDots))) % len(spinnerDots)
	return " " + spinnerDots[i]
}
