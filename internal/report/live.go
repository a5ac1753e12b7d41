package report

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/linkage-sim/linkage/internal/driver"
)

const (
	liveChartWidth  = 60
	liveChartHeight = 10
	liveFrameRate   = 30
)

var (
	liveHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	liveHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	livePausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

type tickMsg time.Time

// LiveModel replays a recorded trajectory in the terminal, charting the
// first coordinate as the playhead advances.
type LiveModel struct {
	title   string
	frames  []driver.Frame
	head    int
	playing bool
}

func NewLive(title string, res *driver.Result) LiveModel {
	return LiveModel{title: title, frames: res.Frames, playing: true}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/liveFrameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m LiveModel) Init() tea.Cmd {
	return tick()
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.playing && m.head < len(m.frames)-1 {
			m.head++
		}
		return m, tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.playing = !m.playing
		case "r":
			m.head = 0
			m.playing = true
		}
	}
	return m, nil
}

func (m LiveModel) View() string {
	if len(m.frames) == 0 {
		return "no frames\n"
	}
	fr := m.frames[m.head]

	var b strings.Builder
	b.WriteString(liveHeaderStyle.Render(m.title) + "\n")

	series := make([]float64, m.head+1)
	for i := 0; i <= m.head; i++ {
		series[i] = m.frames[i].Q[0]
	}
	if m.head > 0 {
		b.WriteString(asciigraph.Plot(series,
			asciigraph.Width(liveChartWidth),
			asciigraph.Height(liveChartHeight),
			asciigraph.Caption("q0")) + "\n\n")
	}

	b.WriteString(labelStyle.Render("t") + valueStyle.Render(fmt.Sprintf("%8.4f s", fr.Time)) + "\n")
	for i, v := range fr.Q {
		b.WriteString(labelStyle.Render(fmt.Sprintf("q%d", i)) + valueStyle.Render(fmt.Sprintf("%10.6f", v)) + "\n")
	}
	for i, v := range fr.U {
		b.WriteString(labelStyle.Render(fmt.Sprintf("u%d", i)) + valueStyle.Render(fmt.Sprintf("%10.6f", v)) + "\n")
	}
	if !m.playing {
		b.WriteString(livePausedStyle.Render("paused") + "\n")
	}
	b.WriteString(liveHelpStyle.Render("space pause · r restart · q quit"))
	return b.String()
}

// RunLive replays the result until the user quits.
func RunLive(title string, res *driver.Result) error {
	p := tea.NewProgram(NewLive(title, res))
	_, err := p.Run()
	return err
}
