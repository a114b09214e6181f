// Package models defines the experiment schema shared between the device
// and the control panel.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nyxlab/boxd/pkg/errors"
)

// TrialSpec describes one timeline entry of an experiment. Parameters are
// decoded per trial type by the trial registry.
type TrialSpec struct {
	Type        string                 `json:"type"`
	ID          string                 `json:"id"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// ExperimentConfig holds session-wide timing parameters. All durations are
// in milliseconds.
type ExperimentConfig struct {
	// ITIMinimum and ITIMaximum bound the inter-trial interval draw.
	ITIMinimum int64 `json:"iti_minimum"`
	ITIMaximum int64 `json:"iti_maximum"`

	// ResponseLimit bounds how long the animal has to respond.
	ResponseLimit int64 `json:"response_limit"`

	// CueMinimum and CueMaximum bound the visual cue window draw.
	CueMinimum int64 `json:"cue_minimum"`
	CueMaximum int64 `json:"cue_maximum"`

	// HoldMinimum and HoldMaximum bound required hold durations.
	HoldMinimum int64 `json:"hold_minimum"`
	HoldMaximum int64 `json:"hold_maximum"`

	// ValveOpen is how long the water valve stays open per reward.
	ValveOpen int64 `json:"valve_open"`

	// PunishTime extends the following inter-trial interval after a
	// failed trial.
	PunishTime int64 `json:"punish_time"`
}

// DefaultExperimentConfig returns the standard timing parameters.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		ITIMinimum:    100,
		ITIMaximum:    1000,
		ResponseLimit: 1000,
		CueMinimum:    5000,
		CueMaximum:    10000,
		HoldMinimum:   100,
		HoldMaximum:   1000,
		ValveOpen:     100,
		PunishTime:    1000,
	}
}

// Experiment is an uploaded experiment definition: a named trial timeline
// plus the timing configuration it runs under.
type Experiment struct {
	Name        string                 `json:"name"`
	Trials      []TrialSpec            `json:"trials"`
	Config      ExperimentConfig       `json:"config"`
	Description string                 `json:"description,omitempty"`
	Version     string                 `json:"version,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   string                 `json:"created_at,omitempty"`
	ModifiedAt  string                 `json:"modified_at,omitempty"`
	Loop        bool                   `json:"loop,omitempty"`
}

// ParseExperiment decodes an experiment document. Absent fields keep their
// defaults, so partial documents from older panel versions still load.
func ParseExperiment(data []byte) (*Experiment, error) {
	exp := &Experiment{
		Config:  DefaultExperimentConfig(),
		Version: "1.0",
	}
	if err := json.Unmarshal(data, exp); err != nil {
		return nil, errors.ValidationWrap(err, errors.ErrExperimentInvalid, "could not decode experiment")
	}
	return exp, nil
}

// Problems returns every schema violation in the experiment, empty when
// the experiment is well formed. Callers that also check runtime
// constraints (such as which trial types are registered) can append to
// the returned slice before reporting.
func (e *Experiment) Problems() []string {
	var problems []string

	if strings.TrimSpace(e.Name) == "" {
		problems = append(problems, "experiment name is required")
	}

	if len(e.Trials) == 0 {
		problems = append(problems, "experiment must have at least one trial")
	}

	seen := make(map[string]bool, len(e.Trials))
	for i, spec := range e.Trials {
		if strings.TrimSpace(spec.Type) == "" {
			problems = append(problems, fmt.Sprintf("trial %d: type is required", i))
		}
		if strings.TrimSpace(spec.ID) == "" {
			problems = append(problems, fmt.Sprintf("trial %d: id is required", i))
			continue
		}
		if seen[spec.ID] {
			problems = append(problems, "duplicate trial id: "+spec.ID)
		}
		seen[spec.ID] = true
	}

	return problems
}

// Validate checks the experiment against the schema rules. All problems
// are gathered into a single error so the panel can show them at once.
func (e *Experiment) Validate() error {
	if problems := e.Problems(); len(problems) > 0 {
		return errors.ExperimentInvalid(strings.Join(problems, "; "))
	}
	return nil
}
