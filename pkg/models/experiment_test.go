// Package models tests for experiment schema validation and decoding.
package models

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	berrors "github.com/nyxlab/boxd/pkg/errors"
)

func validExperiment() *Experiment {
	return &Experiment{
		Name: "stage training",
		Trials: []TrialSpec{
			{Type: "interval", ID: "iti-1", Parameters: map[string]interface{}{"duration": float64(500)}},
			{Type: "stage1", ID: "s1-1"},
		},
		Config: DefaultExperimentConfig(),
	}
}

// -----------------------------------------------------------------------------
// Validation Tests
// -----------------------------------------------------------------------------

func TestValidate_ValidExperiment(t *testing.T) {
	if err := validExperiment().Validate(); err != nil {
		t.Errorf("expected valid experiment, got %v", err)
	}
}

func TestValidate_MissingName(t *testing.T) {
	exp := validExperiment()
	exp.Name = "  "

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("expected name error, got %v", err)
	}
}

func TestValidate_NoTrials(t *testing.T) {
	exp := validExperiment()
	exp.Trials = nil

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "at least one trial") {
		t.Errorf("expected trial count error, got %v", err)
	}
}

func TestValidate_TrialMissingType(t *testing.T) {
	exp := validExperiment()
	exp.Trials[1].Type = ""

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "trial 1: type is required") {
		t.Errorf("expected indexed type error, got %v", err)
	}
}

func TestValidate_TrialMissingID(t *testing.T) {
	exp := validExperiment()
	exp.Trials[0].ID = ""

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "trial 0: id is required") {
		t.Errorf("expected indexed id error, got %v", err)
	}
}

func TestValidate_DuplicateIDs(t *testing.T) {
	exp := validExperiment()
	exp.Trials[1].ID = exp.Trials[0].ID

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "duplicate trial id: iti-1") {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}

func TestValidate_GathersAllProblems(t *testing.T) {
	exp := &Experiment{
		Trials: []TrialSpec{
			{Type: "", ID: ""},
		},
	}

	err := exp.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"name is required", "type is required", "id is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected combined message to include %q, got %q", want, msg)
		}
	}

	if !berrors.IsCode(err, berrors.ErrExperimentInvalid) {
		t.Errorf("expected EXPERIMENT_INVALID code, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Decoding Tests
// -----------------------------------------------------------------------------

func TestParseExperiment_DefaultsApplied(t *testing.T) {
	doc := `{"name":"minimal","trials":[{"type":"stage1","id":"a"}]}`

	exp, err := ParseExperiment([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exp.Config != DefaultExperimentConfig() {
		t.Errorf("expected default config, got %+v", exp.Config)
	}
	if exp.Version != "1.0" {
		t.Errorf("expected default version '1.0', got %q", exp.Version)
	}
	if exp.Loop {
		t.Error("expected loop to default to false")
	}
}

func TestParseExperiment_PartialConfig(t *testing.T) {
	doc := `{
		"name": "partial",
		"trials": [{"type": "stage1", "id": "a"}],
		"config": {"iti_minimum": 50, "valve_open": 250}
	}`

	exp, err := ParseExperiment([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exp.Config.ITIMinimum != 50 {
		t.Errorf("expected overridden iti_minimum 50, got %d", exp.Config.ITIMinimum)
	}
	if exp.Config.ValveOpen != 250 {
		t.Errorf("expected overridden valve_open 250, got %d", exp.Config.ValveOpen)
	}
	if exp.Config.ITIMaximum != 1000 {
		t.Errorf("expected default iti_maximum 1000, got %d", exp.Config.ITIMaximum)
	}
	if exp.Config.CueMinimum != 5000 {
		t.Errorf("expected default cue_minimum 5000, got %d", exp.Config.CueMinimum)
	}
}

func TestParseExperiment_BadJSON(t *testing.T) {
	_, err := ParseExperiment([]byte(`{"name": `))
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if !berrors.IsCode(err, berrors.ErrExperimentInvalid) {
		t.Errorf("expected EXPERIMENT_INVALID code, got %v", err)
	}
}

func TestExperiment_JSONRoundTrip(t *testing.T) {
	original := &Experiment{
		Name: "roundtrip",
		Trials: []TrialSpec{
			{
				Type:        "interval",
				ID:          "iti-1",
				Parameters:  map[string]interface{}{"duration": float64(750)},
				Description: "fixed wait",
			},
			{Type: "stage3", ID: "s3-1"},
		},
		Config:      DefaultExperimentConfig(),
		Description: "round trip check",
		Version:     "1.0",
		Metadata:    map[string]interface{}{"cohort": "A"},
		CreatedAt:   "2025-06-01T10:00:00",
		ModifiedAt:  "2025-06-02T11:30:00",
		Loop:        true,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := ParseExperiment(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip changed the experiment:\n  in:  %+v\n  out: %+v", original, decoded)
	}
}

func TestExperiment_JSONRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(20260826))
	kinds := []string{"Interval", "Stage1", "Stage2", "Stage3", "Stage4"}

	for i := 0; i < 50; i++ {
		trials := make([]TrialSpec, 1+rng.Intn(8))
		for j := range trials {
			spec := TrialSpec{
				Type: kinds[rng.Intn(len(kinds))],
				ID:   fmt.Sprintf("t%d", j),
			}
			if rng.Intn(2) == 0 {
				spec.Parameters = map[string]interface{}{
					"duration": float64(rng.Intn(5000)),
				}
			}
			trials[j] = spec
		}

		cfg := DefaultExperimentConfig()
		cfg.ValveOpen = int64(1 + rng.Intn(500))
		cfg.CueMinimum = int64(rng.Intn(5000))
		cfg.CueMaximum = cfg.CueMinimum + int64(rng.Intn(5000))

		original := &Experiment{
			Name:    fmt.Sprintf("generated-%d", i),
			Trials:  trials,
			Config:  cfg,
			Version: "1.0",
			Loop:    rng.Intn(2) == 0,
		}

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		decoded, err := ParseExperiment(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !reflect.DeepEqual(original, decoded) {
			t.Fatalf("round trip changed experiment %d:\n  in:  %+v\n  out: %+v", i, original, decoded)
		}
	}
}

func TestDefaultExperimentConfig(t *testing.T) {
	cfg := DefaultExperimentConfig()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"iti_minimum", cfg.ITIMinimum, 100},
		{"iti_maximum", cfg.ITIMaximum, 1000},
		{"response_limit", cfg.ResponseLimit, 1000},
		{"cue_minimum", cfg.CueMinimum, 5000},
		{"cue_maximum", cfg.CueMaximum, 10000},
		{"hold_minimum", cfg.HoldMinimum, 100},
		{"hold_maximum", cfg.HoldMaximum, 1000},
		{"valve_open", cfg.ValveOpen, 100},
		{"punish_time", cfg.PunishTime, 1000},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("expected %s %d, got %d", c.name, c.want, c.got)
		}
	}
}
