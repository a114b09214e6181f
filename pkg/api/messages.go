// Package api exposes the device over WebSocket: it upgrades panel
// connections, routes their commands to the runner, and broadcasts
// hardware state, statistics, and experiment progress.
package api

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/nyxlab/boxd/pkg/hw"
)

// Outbound message types.
const (
	MsgInputState           = "input_state"
	MsgTestState            = "test_state"
	MsgExperimentStatus     = "experiment_status"
	MsgTaskStatus           = "task_status"
	MsgTrialStart           = "trial_start"
	MsgTrialComplete        = "trial_complete"
	MsgDeviceLog            = "device_log"
	MsgExperimentValidation = "experiment_validation"
	MsgTimelineValidation   = "timeline_validation"
	MsgExperimentError      = "experiment_error"
	MsgTimelineError        = "timeline_error"
	MsgStatistics           = "statistics"
	MsgDataFileList         = "data_file_list"
	MsgDataFileContent      = "data_file_content"
)

// Inbound message types. The hardware test commands arrive as bare text
// rather than JSON and are matched in the dispatcher.
const (
	MsgExperimentUpload = "experiment_upload"
	MsgTimelineUpload   = "timeline_upload"
	MsgStartExperiment  = "start_experiment"
	MsgStartTimeline    = "start_timeline_experiment"
	MsgStopExperiment   = "stop_experiment"
	MsgRequestDataFiles = "request_data_files"
	MsgRequestDataFile  = "request_data_file"
)

type inputStateMessage struct {
	Type    string      `json:"type"`
	Data    hw.Snapshot `json:"data"`
	Version string      `json:"version"`
}

func newInputState(snap hw.Snapshot, version string) inputStateMessage {
	return inputStateMessage{Type: MsgInputState, Data: snap, Version: version}
}

type testStateMessage struct {
	Type string                    `json:"type"`
	Data map[string]map[string]int `json:"data"`
}

func newTestState(states map[string]int) testStateMessage {
	data := make(map[string]map[string]int, len(states))
	for name, state := range states {
		data[name] = map[string]int{"state": state}
	}
	return testStateMessage{Type: MsgTestState, Data: data}
}

type statusPayload struct {
	Status string `json:"status"`
	Trial  string `json:"trial,omitempty"`
}

type statusMessage struct {
	Type string        `json:"type"`
	Data statusPayload `json:"data"`
}

// newStatusMessages builds the status change frame in both families so
// older and newer panels see it.
func newStatusMessages(status, trial string) []statusMessage {
	payload := statusPayload{Status: status, Trial: trial}
	return []statusMessage{
		{Type: MsgExperimentStatus, Data: payload},
		{Type: MsgTaskStatus, Data: payload},
	}
}

type trialStartMessage struct {
	Type string `json:"type"`
	Data struct {
		Trial string `json:"trial"`
	} `json:"data"`
}

func newTrialStart(title string) trialStartMessage {
	msg := trialStartMessage{Type: MsgTrialStart}
	msg.Data.Trial = title
	return msg
}

type trialCompletePayload struct {
	Trial string                 `json:"trial"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type trialCompleteMessage struct {
	Type string               `json:"type"`
	Data trialCompletePayload `json:"data"`
}

func newTrialComplete(title string, data map[string]interface{}) trialCompleteMessage {
	return trialCompleteMessage{
		Type: MsgTrialComplete,
		Data: trialCompletePayload{Trial: title, Data: data},
	}
}

type deviceLogPayload struct {
	Message string `json:"message"`
	State   string `json:"state"`
}

type deviceLogMessage struct {
	Type string           `json:"type"`
	Data deviceLogPayload `json:"data"`
}

func newDeviceLog(message, state string) deviceLogMessage {
	return deviceLogMessage{
		Type: MsgDeviceLog,
		Data: deviceLogPayload{Message: message, State: state},
	}
}

type validationMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newExperimentError(message string) errorMessage {
	return errorMessage{Type: MsgExperimentError, Message: message}
}

func newTimelineError(message string) errorMessage {
	return errorMessage{Type: MsgTimelineError, Message: message}
}

type statisticsMessage struct {
	Type string           `json:"type"`
	Data map[string]int64 `json:"data"`
}

func newStatistics(counts map[string]int64) statisticsMessage {
	return statisticsMessage{Type: MsgStatistics, Data: counts}
}

// FileInfo describes one saved run file offered to panels for download.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

type dataFileListMessage struct {
	Type string `json:"type"`
	Data struct {
		Files []FileInfo `json:"files"`
	} `json:"data"`
}

func newDataFileList(files []FileInfo) dataFileListMessage {
	msg := dataFileListMessage{Type: MsgDataFileList}
	msg.Data.Files = files
	return msg
}

type dataFileContentPayload struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`
}

type dataFileContentMessage struct {
	Type string                 `json:"type"`
	Data dataFileContentPayload `json:"data"`
}

// newDataFileContent wraps a run file for transfer. The MD5 checksum
// lets the panel verify the content survived the trip.
func newDataFileContent(filename string, content []byte) dataFileContentMessage {
	sum := md5.Sum(content)
	return dataFileContentMessage{
		Type: MsgDataFileContent,
		Data: dataFileContentPayload{
			Filename: filename,
			Content:  string(content),
			Checksum: hex.EncodeToString(sum[:]),
		},
	}
}
