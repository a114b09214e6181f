// Package hw abstracts the behavior box inputs and outputs: two levers
// with lights, a nose port with an IR beam and light, and a water valve.
package hw

// Side identifies the left or right position of levers, lever lights,
// and displays.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Snapshot is one reading of the box IO. JSON field names follow the
// input_state wire format consumed by the control panel.
//
// NoseIR carries the raw beam level: high (true) while the beam is
// intact, low (false) while the animal's nose breaks it.
type Snapshot struct {
	LeverLeft       bool `json:"input_lever_left"`
	LeverRight      bool `json:"input_lever_right"`
	NoseIR          bool `json:"input_ir"`
	WaterValve      bool `json:"input_port"`
	NoseLight       bool `json:"led_port"`
	LeverLightLeft  bool `json:"led_lever_left"`
	LeverLightRight bool `json:"led_lever_right"`
}

// NoseIn reports whether the nose is in the port (beam broken).
func (s Snapshot) NoseIn() bool {
	return !s.NoseIR
}

// Lever reports whether the lever on the given side is pressed.
func (s Snapshot) Lever(side Side) bool {
	if side == SideLeft {
		return s.LeverLeft
	}
	return s.LeverRight
}

// AnyLever reports whether either lever is pressed.
func (s Snapshot) AnyLever() bool {
	return s.LeverLeft || s.LeverRight
}

// IO drives the box hardware. Implementations must be safe for
// concurrent use; the session loop owns writes, but snapshots are read
// from other goroutines.
type IO interface {
	// Read returns the current IO snapshot.
	Read() Snapshot

	// SetWaterValve opens or closes the water valve.
	SetWaterValve(open bool)

	// SetNoseLight drives the nose port LED.
	SetNoseLight(on bool)

	// SetLeverLight drives the lever LED on the given side.
	SetLeverLight(side Side, on bool)

	// ResetOutputs turns the valve and all lights off.
	ResetOutputs()

	// Simulating reports whether this IO is simulated rather than real GPIO.
	Simulating() bool

	// Close releases the hardware and leaves all outputs off.
	Close() error
}
