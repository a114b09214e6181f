// Package display drives the pair of 128x64 OLED screens mounted above
// the levers. The screens show the visual cue during trials and an
// identification pattern during hardware tests.
package display

import "github.com/nyxlab/boxd/pkg/hw"

// Screen dimensions in pixels.
const (
	Width  = 128
	Height = 64
)

// Displays renders to both screens as a pair.
type Displays interface {
	// ShowCue draws the striped cue circle on the given side and blanks
	// the other side.
	ShowCue(side hw.Side)

	// ShowTestPattern draws the identification pattern on both screens.
	ShowTestPattern()

	// Clear blanks both screens.
	Clear()

	// Simulating reports whether the screens are simulated.
	Simulating() bool

	// Close blanks and releases the screens.
	Close() error
}
