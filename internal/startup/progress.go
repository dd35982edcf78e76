package startup

import (
	"context"
	"time"
)

// Progress drives the in-app splash indicator. It calls onStep for each value from 0 to 100
// and done once after 100. It returns early without calling done when ctx is cancelled.
type Progress interface {
	Run(ctx context.Context, onStep func(pct int), done func())
}

// ProgressDriver advances by Step percent every Interval.
type ProgressDriver struct {
	Interval time.Duration
	Step     int
}

// Run implements Progress.
func (p ProgressDriver) Run(ctx context.Context, onStep func(pct int), done func()) {
	step := p.Step
	if step <= 0 {
		step = 1
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pct := 0
	onStep(pct)
	for pct < 100 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pct = min(pct+step, 100)
		onStep(pct)
	}
	done()
}
