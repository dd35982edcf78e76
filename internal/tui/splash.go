// Package tui renders the launch splash and routing targets in a terminal. The splash model is
// a plain bubbletea model; Splash wraps a running program so the startup sequencer can push
// progress into it from another goroutine.
package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 80
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

type progressMsg int

type closeMsg struct{}

// splashModel renders a title and a progress bar.
type splashModel struct {
	title  string
	pct    int
	bar    progress.Model
	closed bool
	// interrupted is set when the user quits with ctrl+c before the splash is closed.
	interrupted bool
}

func newSplashModel(title string) splashModel {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth))
	return splashModel{title: title, bar: bar}
}

func (m splashModel) Init() tea.Cmd { return nil }

func (m splashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.pct = clamp(int(msg))
		return m, nil
	case closeMsg:
		m.closed = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m splashModel) View() string {
	if m.closed {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.pct) / 100))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render(fmt.Sprintf("loading %d%%", m.pct)))
	b.WriteString("\n")
	return b.String()
}

func clamp(pct int) int {
	return min(max(pct, 0), 100)
}

// Splash drives a splashModel program. The program starts on the first SetProgress (or Start),
// so nothing is drawn while the native splash is still up.
type Splash struct {
	program   *tea.Program
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	mu          sync.Mutex
	started     bool
	interrupted bool
	err         error
}

// NewSplash returns a splash titled title. Extra options are passed to tea.NewProgram
// (headless runs use tea.WithInput(nil) and tea.WithOutput).
func NewSplash(title string, opts ...tea.ProgramOption) *Splash {
	return &Splash{
		program: tea.NewProgram(newSplashModel(title), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background. Later calls do nothing.
func (s *Splash) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		go func() {
			defer close(s.done)
			final, err := s.program.Run()
			s.mu.Lock()
			defer s.mu.Unlock()
			s.err = err
			if m, ok := final.(splashModel); ok {
				s.interrupted = m.interrupted
			}
		}()
	})
}

// SetProgress updates the bar. Calls after Close are ignored.
func (s *Splash) SetProgress(pct int) {
	s.Start()
	select {
	case <-s.done:
		return
	default:
	}
	s.program.Send(progressMsg(pct))
}

// Close unmounts the splash and waits for the terminal to be restored. Safe to call twice,
// and a no-op when the splash never started.
func (s *Splash) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			return
		}
		s.program.Send(closeMsg{})
		<-s.done
	})
}

// Interrupted reports whether the user pressed ctrl+c while the splash was shown.
func (s *Splash) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Err returns the program error, if any, once the splash has closed.
func (s *Splash) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Banner stands in for the native launch screen in a terminal: a one-line banner printed
// before anything else renders.
type Banner struct {
	Out  io.Writer
	Text string
}

func (b Banner) PreventAutoHide() error {
	_, err := fmt.Fprintln(b.Out, titleStyle.Render(b.Text))
	return err
}

func (b Banner) Hide() error { return nil }
