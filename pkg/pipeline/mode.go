package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mode selects how often frames are analyzed.
type Mode string

const (
	// ModeContinuous analyzes every frame.
	ModeContinuous Mode = "continuous"

	// ModeInterval analyzes at most once per interval and only displays
	// the frames in between.
	ModeInterval Mode = "interval"
)

// DefaultInterval is the analysis period of ModeInterval.
const DefaultInterval = 5 * time.Second

// ParseMode parses a mode name. The empty string means continuous.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeContinuous:
		return ModeContinuous, nil
	case ModeInterval:
		return ModeInterval, nil
	}
	return "", fmt.Errorf("pipeline: unknown mode %q (want continuous or interval)", s)
}

// Gate decides whether a frame should be analyzed.
// In interval mode the first frame passes, then one frame per interval.
type Gate struct {
	mode     Mode
	interval time.Duration

	mu     sync.Mutex
	last   time.Time
	primed bool
}

// NewGate creates a gate. A non-positive interval falls back to
// DefaultInterval.
func NewGate(mode Mode, interval time.Duration) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Gate{mode: mode, interval: interval}
}

// Allow reports whether the frame seen at now should be analyzed, and if so
// records now as the last analysis time.
func (g *Gate) Allow(now time.Time) bool {
	if g.mode != ModeInterval {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.primed && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	g.primed = true
	return true
}
