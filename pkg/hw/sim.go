package hw

import "sync"

// Sim is an in-memory IO implementation driven by the console and tests.
type Sim struct {
	mu    sync.Mutex
	state Snapshot
}

// NewSim returns a simulated box in its idle state: levers released,
// IR beam intact (nose out of the port), and every output off.
func NewSim() *Sim {
	return &Sim{state: Snapshot{NoseIR: true}}
}

// Read returns the current simulated snapshot.
func (s *Sim) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetWaterValve opens or closes the simulated water valve.
func (s *Sim) SetWaterValve(open bool) {
	s.mu.Lock()
	s.state.WaterValve = open
	s.mu.Unlock()
}

// SetNoseLight drives the simulated nose port LED.
func (s *Sim) SetNoseLight(on bool) {
	s.mu.Lock()
	s.state.NoseLight = on
	s.mu.Unlock()
}

// SetLeverLight drives the simulated lever LED on the given side.
func (s *Sim) SetLeverLight(side Side, on bool) {
	s.mu.Lock()
	if side == SideLeft {
		s.state.LeverLightLeft = on
	} else {
		s.state.LeverLightRight = on
	}
	s.mu.Unlock()
}

// ResetOutputs turns the simulated valve and lights off.
func (s *Sim) ResetOutputs() {
	s.mu.Lock()
	s.state.WaterValve = false
	s.state.NoseLight = false
	s.state.LeverLightLeft = false
	s.state.LeverLightRight = false
	s.mu.Unlock()
}

// Simulating always returns true.
func (s *Sim) Simulating() bool {
	return true
}

// Close resets the simulated outputs.
func (s *Sim) Close() error {
	s.ResetOutputs()
	return nil
}

// SimulateLever presses or releases a lever.
func (s *Sim) SimulateLever(side Side, pressed bool) {
	s.mu.Lock()
	if side == SideLeft {
		s.state.LeverLeft = pressed
	} else {
		s.state.LeverRight = pressed
	}
	s.mu.Unlock()
}

// SimulateNose moves the nose into or out of the port. The raw IR level
// is the inverse: the beam reads low while the nose is in.
func (s *Sim) SimulateNose(in bool) {
	s.mu.Lock()
	s.state.NoseIR = !in
	s.mu.Unlock()
}
