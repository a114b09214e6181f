package display

import (
	"sync"

	"github.com/nyxlab/boxd/pkg/hw"
)

// State names what a simulated screen currently shows.
type State string

const (
	StateClear       State = "clear"
	StateCue         State = "cue"
	StateTestPattern State = "test_pattern"
)

// Sim stands in for the OLED pair when no hardware is attached. It
// tracks the logical state of each screen so tests and the interactive
// console can observe what would be displayed.
type Sim struct {
	mu    sync.Mutex
	left  State
	right State
}

// NewSim returns a simulated pair with both screens blank.
func NewSim() *Sim {
	return &Sim{left: StateClear, right: StateClear}
}

// ShowCue marks one side as showing the cue and blanks the other.
func (s *Sim) ShowCue(side hw.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == hw.SideLeft {
		s.left = StateCue
		s.right = StateClear
	} else {
		s.left = StateClear
		s.right = StateCue
	}
}

// ShowTestPattern marks both sides as showing the test pattern.
func (s *Sim) ShowTestPattern() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = StateTestPattern
	s.right = StateTestPattern
}

// Clear blanks both sides.
func (s *Sim) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = StateClear
	s.right = StateClear
}

// States returns the current state of each screen.
func (s *Sim) States() (left, right State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

// Simulating reports true.
func (s *Sim) Simulating() bool { return true }

// Close blanks both screens.
func (s *Sim) Close() error {
	s.Clear()
	return nil
}
