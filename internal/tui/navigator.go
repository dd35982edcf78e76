package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"gig-marketplace/client/internal/navigation"
)

var (
	screenStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	mandatoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
)

// Printer is a navigation.Navigator that renders each target as a box on Out.
type Printer struct {
	Out io.Writer

	mu      sync.Mutex
	current navigation.Target
}

// Navigate renders target.
func (p *Printer) Navigate(_ context.Context, target navigation.Target, trigger navigation.Trigger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = target
	fmt.Fprintln(p.Out, Render(target, trigger))
}

// Current returns the last target shown.
func (p *Printer) Current() navigation.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Render formats target for the terminal.
func Render(target navigation.Target, trigger navigation.Trigger) string {
	lines := []string{fmt.Sprintf("screen: %s  (via %s)", target.Screen, trigger)}
	switch {
	case target.Rating != nil:
		lines = append(lines,
			mandatoryStyle.Render("Rate before continuing"),
			fmt.Sprintf("work %s: rate %s %s", target.Rating.WorkID, target.Rating.RatingSubjectRole, target.Rating.TargetUserID))
	case target.Resume != nil:
		lines = append(lines, fmt.Sprintf("%q is in progress. Resume?", target.Resume.WorkTitle))
	}
	return screenStyle.Render(strings.Join(lines, "\n"))
}
