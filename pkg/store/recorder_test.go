package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyxlab/boxd/pkg/errors"
)

func TestRecorderDocumentShape(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, "rat42")

	rec.AddTrialData("trial_stage_1", map[string]interface{}{"trial_outcome": "success"})
	rec.AddTrialData("trial_iti", nil)
	rec.AddTaskData(map[string]interface{}{"config": map[string]interface{}{"valve_open": 100}})
	rec.AddStatistics(map[string]int64{"nose_pokes": 3, "trial_count": 2})

	if !rec.Save() {
		t.Fatal("Save() failed")
	}

	doc, err := Load(rec.Filename())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if doc.Metadata.AnimalID != "rat42" {
		t.Errorf("animal_id = %q, want rat42", doc.Metadata.AnimalID)
	}
	if doc.Metadata.RunID == "" {
		t.Error("expected a run id")
	}
	if doc.Metadata.StartTime == "" || doc.Metadata.EndTime == "" {
		t.Error("expected start and end timestamps")
	}
	if len(doc.Metadata.Trials) != 2 || doc.Metadata.Trials[0].Name != "trial_stage_1" {
		t.Errorf("unexpected metadata trial refs: %+v", doc.Metadata.Trials)
	}

	if len(doc.Trials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(doc.Trials))
	}
	if doc.Trials[0]["trial_type"] != "trial_stage_1" {
		t.Errorf("trial_type = %v, want trial_stage_1", doc.Trials[0]["trial_type"])
	}
	if doc.Trials[0]["timestamp"] == nil {
		t.Error("expected a stamped trial timestamp")
	}
	if doc.Trials[1]["trial_type"] != "trial_iti" {
		t.Error("expected nil trial data to still be recorded")
	}

	if doc.Task["config"] == nil || doc.Task["timestamp"] == nil {
		t.Errorf("unexpected task section: %+v", doc.Task)
	}
	if doc.Statistics["nose_pokes"] != 3 {
		t.Errorf("statistics nose_pokes = %d, want 3", doc.Statistics["nose_pokes"])
	}
}

func TestRecorderFilename(t *testing.T) {
	rec := NewRecorder(t.TempDir(), "m7")

	name := filepath.Base(rec.Filename())
	if !strings.HasPrefix(name, "m7_") {
		t.Errorf("filename %q should start with the animal id", name)
	}
	if !strings.HasSuffix(name, ".json") {
		t.Errorf("filename %q should end in .json", name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, "m7_"), ".json")
	if len(stamp) != len("20060102_150405") {
		t.Errorf("timestamp %q has unexpected shape", stamp)
	}
}

func TestRecorderSaveMissingDir(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, "rat1")

	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("could not remove data dir: %v", err)
	}
	if rec.Save() {
		t.Error("expected Save() to fail with the data directory gone")
	}
}

func TestRecorderSaveUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, "rat1")
	rec.filename = filepath.Join(dir, "missing", "rat1.json")

	if rec.Save() {
		t.Error("expected Save() to fail for an unwritable path")
	}
}

func TestRecorderSaveIsRepeatable(t *testing.T) {
	rec := NewRecorder(t.TempDir(), "rat9")
	rec.AddTrialData("trial_iti", map[string]interface{}{"trial_outcome": "success"})

	if !rec.Save() {
		t.Fatal("first Save() failed")
	}
	rec.AddTrialData("trial_stage_2", map[string]interface{}{"trial_outcome": "success"})
	if !rec.Save() {
		t.Fatal("second Save() failed")
	}

	doc, err := Load(rec.Filename())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(doc.Trials) != 2 {
		t.Errorf("expected the later save to win, got %d trials", len(doc.Trials))
	}
}

func TestRecorderTrialCount(t *testing.T) {
	rec := NewRecorder(t.TempDir(), "rat3")
	if rec.TrialCount() != 0 {
		t.Errorf("TrialCount() = %d, want 0", rec.TrialCount())
	}
	rec.AddTrialData("trial_iti", nil)
	if rec.TrialCount() != 1 {
		t.Errorf("TrialCount() = %d, want 1", rec.TrialCount())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected Load() of a missing file to fail")
	}
	if !errors.IsCode(err, errors.ErrExportReadFailed) {
		t.Errorf("expected code %s, got %v", errors.ErrExportReadFailed, err)
	}
}
