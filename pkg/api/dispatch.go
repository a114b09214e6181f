package api

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/logging"
	"github.com/nyxlab/boxd/pkg/runner"
)

// Device is the runner surface the transport layer drives.
type Device interface {
	Upload(raw []byte) (string, error)
	Start(animalID string, punishMS, waterMS int64) (string, error)
	Stop() (string, error)
	RunTest(name string, ms int64) error
	ResetTestStates()
	TestStates() map[string]int
	Snapshot() hw.Snapshot
	Statistics() map[string]int64
	Running() bool
	Version() string
}

var (
	_ Device           = (*runner.Runner)(nil)
	_ runner.Publisher = (*Hub)(nil)
)

// inboundMessage covers every JSON command panels send. Fields beyond
// type are populated per command.
type inboundMessage struct {
	Type               string          `json:"type"`
	Data               json.RawMessage `json:"data"`
	AnimalID           string          `json:"animal_id"`
	Filename           string          `json:"filename"`
	PunishmentDuration int64           `json:"punishment_duration"`
	WaterDuration      int64           `json:"water_delivery_duration"`
}

// dispatcher routes panel messages to the device. Replies that belong to
// the requesting panel go through its client; everything else is
// broadcast by the runner's notifications.
type dispatcher struct {
	dev     Device
	dataDir string
	log     zerolog.Logger
}

func newDispatcher(dev Device, dataDir string) *dispatcher {
	return &dispatcher{
		dev:     dev,
		dataDir: dataDir,
		log:     logging.Component("dispatch"),
	}
}

// handle processes one inbound frame. JSON objects carry the structured
// commands; anything else is treated as a bare text command.
func (d *dispatcher) handle(c *Client, raw []byte) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return
	}
	if trimmed[0] == '{' {
		d.handleJSON(c, trimmed)
		return
	}
	d.handleCommand(c, string(trimmed))
}

func (d *dispatcher) handleJSON(c *Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.log.Warn().Err(err).Msg("discarding malformed message")
		return
	}

	switch msg.Type {
	case MsgExperimentUpload:
		d.upload(c, MsgExperimentValidation, msg.Data)
	case MsgTimelineUpload:
		d.upload(c, MsgTimelineValidation, msg.Data)
	case MsgStartExperiment, MsgStartTimeline:
		// Errors echo in the family the panel spoke.
		fail := newExperimentError
		if msg.Type == MsgStartTimeline {
			fail = newTimelineError
		}
		if msg.AnimalID == "" {
			c.sendJSON(fail("Animal ID is required"))
			return
		}
		if reply, err := d.dev.Start(msg.AnimalID, msg.PunishmentDuration, msg.WaterDuration); err != nil {
			c.sendJSON(fail(reply))
		}
	case MsgStopExperiment:
		if reply, err := d.dev.Stop(); err != nil {
			c.sendJSON(newExperimentError(reply))
		}
	case MsgRequestDataFiles:
		d.sendFileList(c)
	case MsgRequestDataFile:
		d.sendFile(c, msg.Filename)
	default:
		d.log.Warn().Str("type", msg.Type).Msg("unknown message type")
	}
}

func (d *dispatcher) upload(c *Client, family string, doc json.RawMessage) {
	reply, err := d.dev.Upload(doc)
	c.sendJSON(validationMessage{Type: family, Success: err == nil, Message: reply})
}

// handleCommand parses the bare text commands: the hardware tests with an
// optional millisecond argument, and the start/stop shortcuts used from
// terminal clients. Arguments that fail to parse keep their defaults.
func (d *dispatcher) handleCommand(c *Client, cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case MsgStartExperiment:
		if len(fields) < 2 {
			c.sendJSON(newExperimentError("Animal ID is required"))
			return
		}
		punish := intArg(fields, 2)
		water := intArg(fields, 3)
		if reply, err := d.dev.Start(fields[1], punish, water); err != nil {
			c.sendJSON(newExperimentError(reply))
		}
	case MsgStopExperiment:
		if reply, err := d.dev.Stop(); err != nil {
			c.sendJSON(newExperimentError(reply))
		}
	default:
		if runner.IsTest(fields[0]) {
			if err := d.dev.RunTest(fields[0], intArg(fields, 1)); err != nil {
				d.log.Warn().Err(err).Msg("hardware test rejected")
			}
			return
		}
		d.log.Warn().Msg("Unknown command: " + fields[0])
	}
}

// intArg returns fields[i] as an integer, zero when absent or invalid.
func intArg(fields []string, i int) int64 {
	if i >= len(fields) {
		return 0
	}
	v, err := strconv.ParseInt(fields[i], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ---- run data transfer ----

// sendFileList offers every saved run file in the data directory.
func (d *dispatcher) sendFileList(c *Client) {
	entries, err := os.ReadDir(d.dataDir)
	if err != nil {
		d.log.Error().Err(err).Str("dir", d.dataDir).Msg("could not list data files")
		c.sendJSON(newDataFileList([]FileInfo{}))
		return
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename: e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	c.sendJSON(newDataFileList(files))
}

// sendFile transfers one saved run file. The name is reduced to its base
// so panels cannot reach outside the data directory.
func (d *dispatcher) sendFile(c *Client, filename string) {
	if filename == "" {
		c.sendJSON(newExperimentError("Filename is required"))
		return
	}
	name := filepath.Base(filename)
	raw, err := os.ReadFile(filepath.Join(d.dataDir, name))
	if err != nil {
		d.log.Error().Err(err).Str("file", name).Msg("could not read data file")
		c.sendJSON(newExperimentError("Could not read data file: " + name))
		return
	}
	c.sendJSON(newDataFileContent(name, raw))
}
