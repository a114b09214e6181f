// Package store persists experiment runs. Each run becomes one JSON
// document holding every harvested trial, the session configuration,
// and the final statistics, written to the data directory as
// <animal>_<YYYYMMDD_HHMMSS>.json. A CSV flattener turns saved
// documents into long-format event tables for analysis tooling.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/logging"
)

// TrialRef names one harvested trial in the document metadata, in
// completion order.
type TrialRef struct {
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// Metadata identifies one run of one animal.
type Metadata struct {
	RunID     string     `json:"run_id"`
	AnimalID  string     `json:"animal_id"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Trials    []TrialRef `json:"trials"`
}

// Document is the persisted shape of one run.
type Document struct {
	Metadata   Metadata                 `json:"metadata"`
	Trials     []map[string]interface{} `json:"trials"`
	Task       map[string]interface{}   `json:"task"`
	Statistics map[string]int64         `json:"statistics,omitempty"`
}

// Recorder accumulates one run's document and writes it to the data
// directory. Save may be called repeatedly (final, emergency, and
// stop-path saves all land on the same file); each call refreshes the
// document's end_time.
type Recorder struct {
	mu       sync.Mutex
	log      zerolog.Logger
	dataDir  string
	filename string
	doc      Document
}

// NewRecorder opens a document for one animal's run. The data directory
// is created if missing and the target filename is fixed from the
// animal id and the wall-clock start.
func NewRecorder(dataDir, animalID string) *Recorder {
	now := time.Now()
	r := &Recorder{
		log:     logging.Component("store"),
		dataDir: dataDir,
		doc: Document{
			Metadata: Metadata{
				RunID:     uuid.NewString(),
				AnimalID:  animalID,
				StartTime: now.Format(time.RFC3339Nano),
				Trials:    []TrialRef{},
			},
			Trials: []map[string]interface{}{},
			Task:   map[string]interface{}{},
		},
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		r.log.Error().Err(err).Str("dir", dataDir).Msg("could not create data directory")
	}

	r.filename = filepath.Join(dataDir, animalID+"_"+now.Format("20060102_150405")+".json")
	r.log.Info().Str("run_id", r.doc.Metadata.RunID).Str("file", r.filename).Msg("run document opened")
	return r
}

// Filename returns the path the document saves to.
func (r *Recorder) Filename() string {
	return r.filename
}

// RunID returns the document's run id.
func (r *Recorder) RunID() string {
	return r.doc.Metadata.RunID
}

// AddTrialData appends one harvested trial, stamping the wall-clock
// timestamp and the trial type onto the data.
func (r *Recorder) AddTrialData(trialType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data == nil {
		data = map[string]interface{}{}
	}
	ts := time.Now().Format(time.RFC3339Nano)
	data["timestamp"] = ts
	data["trial_type"] = trialType

	r.doc.Trials = append(r.doc.Trials, data)
	r.doc.Metadata.Trials = append(r.doc.Metadata.Trials, TrialRef{Name: trialType, Timestamp: ts})
}

// AddTaskData merges session-level data into the document's task
// section, stamping a timestamp.
func (r *Recorder) AddTaskData(data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Task["timestamp"] = time.Now().Format(time.RFC3339Nano)
	for k, v := range data {
		r.doc.Task[k] = v
	}
}

// AddStatistics attaches the run's counters.
func (r *Recorder) AddStatistics(stats map[string]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc.Statistics = stats
}

// TrialCount returns how many trials have been harvested so far.
func (r *Recorder) TrialCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.doc.Trials)
}

// Save writes the document. Success is reported as a boolean rather
// than an error: a failed save is a logged condition the session
// continues past, never a crash.
func (r *Recorder) Save() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Metadata.EndTime = time.Now().Format(time.RFC3339Nano)

	info, err := os.Stat(r.dataDir)
	if err != nil || !info.IsDir() {
		r.log.Error().Err(errors.DataDirNotFound(r.dataDir)).Msg("save skipped")
		return false
	}

	buf, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		r.log.Error().Err(errors.PersistenceWrap(err, errors.ErrDataMarshalFailed, "could not encode run document")).Msg("save failed")
		return false
	}

	if err := os.WriteFile(r.filename, buf, 0o644); err != nil {
		r.log.Error().Err(errors.DataWriteError(r.filename, err)).Msg("save failed")
		return false
	}

	r.log.Info().Str("file", r.filename).Int("trials", len(r.doc.Trials)).Msg("run document saved")
	return true
}

// Load reads a previously saved run document.
func Load(path string) (*Document, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.PersistenceWrap(err, errors.ErrExportReadFailed, "could not read run document").
			WithContext("path", path)
	}
	var doc Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, errors.PersistenceWrap(err, errors.ErrExportReadFailed, "could not decode run document").
			WithContext("path", path)
	}
	return &doc, nil
}
