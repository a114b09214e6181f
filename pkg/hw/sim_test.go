// Package hw tests for the simulated box and snapshot predicates.
package hw

import (
	"encoding/json"
	"testing"
)

func TestSnapshot_NoseIn(t *testing.T) {
	// The IR beam reads low while the nose is in the port.
	if (Snapshot{NoseIR: true}).NoseIn() {
		t.Error("intact beam should mean nose out")
	}
	if !(Snapshot{NoseIR: false}).NoseIn() {
		t.Error("broken beam should mean nose in")
	}
}

func TestSnapshot_Lever(t *testing.T) {
	snap := Snapshot{LeverLeft: true}

	if !snap.Lever(SideLeft) {
		t.Error("expected left lever pressed")
	}
	if snap.Lever(SideRight) {
		t.Error("expected right lever released")
	}
	if !snap.AnyLever() {
		t.Error("expected AnyLever with left pressed")
	}

	if (Snapshot{}).AnyLever() {
		t.Error("expected AnyLever false with both released")
	}
}

func TestSnapshot_WireFormat(t *testing.T) {
	snap := Snapshot{
		LeverLeft:  true,
		NoseIR:     true,
		WaterValve: true,
		NoseLight:  true,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]bool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	wireKeys := []string{
		"input_lever_left", "input_lever_right", "input_ir",
		"input_port", "led_port", "led_lever_left", "led_lever_right",
	}
	for _, key := range wireKeys {
		if _, ok := decoded[key]; !ok {
			t.Errorf("wire format missing key %q", key)
		}
	}
	if len(decoded) != len(wireKeys) {
		t.Errorf("expected %d wire keys, got %d", len(wireKeys), len(decoded))
	}

	if !decoded["input_lever_left"] || !decoded["input_ir"] || !decoded["input_port"] || !decoded["led_port"] {
		t.Error("wire values do not match snapshot")
	}
}

func TestSim_StartsIdle(t *testing.T) {
	s := NewSim()

	snap := s.Read()
	if snap != (Snapshot{NoseIR: true}) {
		t.Errorf("expected idle initial state, got %+v", snap)
	}
	if snap.NoseIn() {
		t.Error("fresh box must read nose out of the port")
	}
	if !s.Simulating() {
		t.Error("expected Simulating() to be true")
	}
}

func TestSim_Outputs(t *testing.T) {
	s := NewSim()

	s.SetWaterValve(true)
	s.SetNoseLight(true)
	s.SetLeverLight(SideLeft, true)
	s.SetLeverLight(SideRight, true)

	snap := s.Read()
	if !snap.WaterValve || !snap.NoseLight || !snap.LeverLightLeft || !snap.LeverLightRight {
		t.Errorf("expected all outputs on, got %+v", snap)
	}

	s.ResetOutputs()
	snap = s.Read()
	if snap.WaterValve || snap.NoseLight || snap.LeverLightLeft || snap.LeverLightRight {
		t.Errorf("expected all outputs off after reset, got %+v", snap)
	}
}

func TestSim_ResetLeavesInputsAlone(t *testing.T) {
	s := NewSim()
	s.SimulateLever(SideLeft, true)
	s.SetNoseLight(true)

	s.ResetOutputs()

	snap := s.Read()
	if !snap.LeverLeft {
		t.Error("reset must not release a simulated lever")
	}
	if snap.NoseLight {
		t.Error("reset must turn the nose light off")
	}
}

func TestSim_SimulateInputs(t *testing.T) {
	s := NewSim()

	s.SimulateLever(SideLeft, true)
	if !s.Read().LeverLeft {
		t.Error("expected left lever pressed")
	}

	s.SimulateLever(SideRight, true)
	if !s.Read().LeverRight {
		t.Error("expected right lever pressed")
	}

	s.SimulateLever(SideLeft, false)
	if s.Read().LeverLeft {
		t.Error("expected left lever released")
	}

	s.SimulateNose(true)
	if s.Read().NoseIR {
		t.Error("nose in should drive the raw IR level low")
	}
	if !s.Read().NoseIn() {
		t.Error("expected NoseIn after SimulateNose(true)")
	}

	s.SimulateNose(false)
	if !s.Read().NoseIR {
		t.Error("nose out should restore the raw IR level high")
	}
}

func TestSim_CloseResetsOutputs(t *testing.T) {
	s := NewSim()
	s.SetWaterValve(true)

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if s.Read().WaterValve {
		t.Error("expected valve closed after Close")
	}
}
