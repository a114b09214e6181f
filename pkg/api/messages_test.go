package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nyxlab/boxd/pkg/hw"
)

func marshal(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestInputStateWireFormat(t *testing.T) {
	snap := hw.Snapshot{LeverLeft: true, NoseIR: true}
	got := marshal(t, newInputState(snap, "1.2.0"))

	for _, want := range []string{
		`"type":"input_state"`,
		`"input_lever_left":true`,
		`"input_ir":true`,
		`"led_port":false`,
		`"version":"1.2.0"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("input_state missing %s: %s", want, got)
		}
	}
}

func TestTestStateWireFormat(t *testing.T) {
	got := marshal(t, newTestState(map[string]int{
		"test_ir":             1,
		"test_water_delivery": -1,
	}))

	var decoded struct {
		Type string                    `json:"type"`
		Data map[string]map[string]int `json:"data"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "test_state" {
		t.Errorf("type = %q", decoded.Type)
	}
	if decoded.Data["test_ir"]["state"] != 1 {
		t.Errorf("test_ir state = %d, want 1", decoded.Data["test_ir"]["state"])
	}
	if decoded.Data["test_water_delivery"]["state"] != -1 {
		t.Errorf("test_water_delivery state = %d, want -1", decoded.Data["test_water_delivery"]["state"])
	}
}

func TestStatusMessages(t *testing.T) {
	msgs := newStatusMessages("started", "trial_iti")
	if len(msgs) != 2 {
		t.Fatalf("got %d status frames, want both families", len(msgs))
	}
	if msgs[0].Type != MsgExperimentStatus || msgs[1].Type != MsgTaskStatus {
		t.Errorf("families = %s, %s", msgs[0].Type, msgs[1].Type)
	}
	got := marshal(t, msgs[0])
	if !strings.Contains(got, `"status":"started"`) || !strings.Contains(got, `"trial":"trial_iti"`) {
		t.Errorf("status payload wrong: %s", got)
	}

	// No trial key when there is no active trial.
	got = marshal(t, newStatusMessages("completed", "")[0])
	if strings.Contains(got, `"trial"`) {
		t.Errorf("completed status should omit trial: %s", got)
	}
}

func TestTrialCompleteOmitsEmptyData(t *testing.T) {
	got := marshal(t, newTrialComplete("trial_iti", nil))
	if strings.Contains(got, `"data":{"`) {
		t.Errorf("empty trial data should be omitted: %s", got)
	}

	got = marshal(t, newTrialComplete("trial_stage_1", map[string]interface{}{"trial_outcome": "success"}))
	if !strings.Contains(got, `"trial":"trial_stage_1"`) || !strings.Contains(got, `"trial_outcome":"success"`) {
		t.Errorf("trial_complete payload wrong: %s", got)
	}
}

func TestDeviceLogWireFormat(t *testing.T) {
	got := marshal(t, newDeviceLog("Water delivery test passed", "Success"))
	if !strings.Contains(got, `"type":"device_log"`) ||
		!strings.Contains(got, `"message":"Water delivery test passed"`) ||
		!strings.Contains(got, `"state":"Success"`) {
		t.Errorf("device_log payload wrong: %s", got)
	}
}

func TestValidationAndErrorMessages(t *testing.T) {
	got := marshal(t, validationMessage{Type: MsgTimelineValidation, Success: false, Message: "bad"})
	if !strings.Contains(got, `"type":"timeline_validation"`) || !strings.Contains(got, `"success":false`) {
		t.Errorf("validation payload wrong: %s", got)
	}

	got = marshal(t, newExperimentError("Animal ID is required"))
	if !strings.Contains(got, `"type":"experiment_error"`) || !strings.Contains(got, `"message":"Animal ID is required"`) {
		t.Errorf("error payload wrong: %s", got)
	}
}

func TestDataFileContentChecksum(t *testing.T) {
	msg := newDataFileContent("run.json", []byte("hello world"))

	if msg.Data.Filename != "run.json" {
		t.Errorf("filename = %q", msg.Data.Filename)
	}
	if msg.Data.Content != "hello world" {
		t.Errorf("content = %q", msg.Data.Content)
	}
	if msg.Data.Checksum != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("checksum = %q", msg.Data.Checksum)
	}
}
