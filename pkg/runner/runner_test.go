package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nyxlab/boxd/pkg/display"
	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/random"
	"github.com/nyxlab/boxd/pkg/store"
	"github.com/nyxlab/boxd/pkg/trial"
)

// recordingPublisher captures outbound notifications in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(e string) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPublisher) TrialStart(title string) {
	p.record("trial_start:" + title)
}

func (p *recordingPublisher) TrialComplete(title string, data map[string]interface{}) {
	p.record("trial_complete:" + title)
}

func (p *recordingPublisher) ExperimentStatus(status, trial string) {
	p.record(fmt.Sprintf("status:%s:%s", status, trial))
}

func (p *recordingPublisher) TestState(states map[string]int) {
	p.record("test_state")
}

func (p *recordingPublisher) sequence() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) count(event string) int {
	n := 0
	for _, e := range p.sequence() {
		if e == event {
			n++
		}
	}
	return n
}

func indexOf(seq []string, event string) int {
	for i, e := range seq {
		if e == event {
			return i
		}
	}
	return -1
}

func newTestRunner(t *testing.T) (*Runner, *hw.Sim, *display.Sim, *recordingPublisher) {
	t.Helper()
	io := hw.NewSim()
	disp := display.NewSim()
	pub := &recordingPublisher{}
	r := New(Options{
		IO:        io,
		Displays:  disp,
		Random:    random.New(11),
		Publisher: pub,
		DataDir:   t.TempDir(),
		Version:   "test",
	})
	return r, io, disp, pub
}

func mustUpload(t *testing.T, r *Runner, raw string) {
	t.Helper()
	if msg, err := r.handleUpload([]byte(raw)); err != nil {
		t.Fatalf("upload failed: %v (%s)", err, msg)
	}
}

func mustStart(t *testing.T, r *Runner, animal string, punish, water, now int64) {
	t.Helper()
	if msg, err := r.handleStart(animal, punish, water, now); err != nil {
		t.Fatalf("start failed: %v (%s)", err, msg)
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const singleInterval = `{"name":"iti only","trials":[{"type":"Interval","id":"t1","parameters":{"duration":100}}]}`

// ---- upload ----

func TestUploadStoresExperiment(t *testing.T) {
	r, _, _, _ := newTestRunner(t)

	msg, err := r.handleUpload([]byte(singleInterval))
	if err != nil {
		t.Fatalf("handleUpload: %v", err)
	}
	if msg != "Experiment validated and stored successfully" {
		t.Errorf("message = %q", msg)
	}
	if r.experiment == nil || r.experiment.Name != "iti only" {
		t.Errorf("experiment not stored: %+v", r.experiment)
	}
}

func TestUploadRejectsInvalid(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	mustUpload(t, r, singleInterval)

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "BadJSON",
			raw:  `{"name":`,
			want: "Experiment processing error: ",
		},
		{
			name: "NoTrials",
			raw:  `{"name":"empty"}`,
			want: "Experiment validation failed: experiment must have at least one trial",
		},
		{
			name: "UnknownType",
			raw:  `{"name":"x","trials":[{"type":"Stage9","id":"t1"}]}`,
			want: "unknown trial type: Stage9",
		},
		{
			name: "DuplicateID",
			raw:  `{"name":"x","trials":[{"type":"Interval","id":"t1"},{"type":"Interval","id":"t1"}]}`,
			want: "duplicate trial id: t1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := r.handleUpload([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(msg, tc.want) {
				t.Errorf("message = %q, want substring %q", msg, tc.want)
			}
		})
	}

	if r.experiment == nil || r.experiment.Name != "iti only" {
		t.Error("rejected upload should not disturb the stored experiment")
	}
}

func TestUploadRejectedWhileRunning(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	mustUpload(t, r, singleInterval)
	mustStart(t, r, "m7", 0, 0, 0)

	msg, err := r.handleUpload([]byte(`{"name":"other","trials":[{"type":"Stage1","id":"s1"}]}`))
	if !errors.IsCode(err, errors.ErrSessionRunning) {
		t.Fatalf("err = %v, want SESSION_ALREADY_RUNNING", err)
	}
	if msg != "Cannot upload while an experiment is running" {
		t.Errorf("message = %q", msg)
	}
	if r.experiment.Name != "iti only" {
		t.Errorf("running experiment replaced: %q", r.experiment.Name)
	}
}

// ---- start guards ----

func TestStartGuards(t *testing.T) {
	t.Run("NoExperiment", func(t *testing.T) {
		r, _, _, _ := newTestRunner(t)
		msg, err := r.handleStart("m1", 0, 0, 0)
		if !errors.IsCode(err, errors.ErrSessionNoExperiment) {
			t.Fatalf("err = %v, want SESSION_NO_EXPERIMENT", err)
		}
		if msg != "No experiment available for execution" {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("AlreadyRunning", func(t *testing.T) {
		r, _, _, _ := newTestRunner(t)
		mustUpload(t, r, singleInterval)
		mustStart(t, r, "m1", 0, 0, 0)

		msg, err := r.handleStart("m1", 0, 0, 16)
		if !errors.IsCode(err, errors.ErrSessionRunning) {
			t.Fatalf("err = %v, want SESSION_ALREADY_RUNNING", err)
		}
		if msg != "Experiment already running" {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("BadParams", func(t *testing.T) {
		r, _, _, _ := newTestRunner(t)
		mustUpload(t, r, `{"name":"x","trials":[{"type":"Interval","id":"t1","parameters":{"duration":"fast"}}]}`)

		msg, err := r.handleStart("m1", 0, 0, 0)
		if !errors.IsCode(err, errors.ErrTrialParamsInvalid) {
			t.Fatalf("err = %v, want TRIAL_PARAMS_INVALID", err)
		}
		if !strings.HasPrefix(msg, "Experiment execution error: ") {
			t.Errorf("message = %q", msg)
		}
		if r.Running() {
			t.Error("failed start left the runner running")
		}
		if r.recorder != nil {
			t.Error("failed start should not open a data file")
		}
	})
}

// ---- run lifecycle ----

func TestStartBeginsFirstTrial(t *testing.T) {
	r, _, _, pub := newTestRunner(t)
	mustUpload(t, r, singleInterval)
	mustStart(t, r, "m3", 0, 0, 0)

	if !r.Running() {
		t.Fatal("runner not running after start")
	}
	if got := pub.count("status:started:trial_iti"); got != 1 {
		t.Errorf("started status sent %d times, want 1", got)
	}
	if r.recorder == nil {
		t.Fatal("no data recorder opened")
	}
	if !strings.Contains(r.recorder.Filename(), "m3_") {
		t.Errorf("data file %q does not carry the animal id", r.recorder.Filename())
	}
	if got := r.Statistics()["trial_count"]; got != 0 {
		t.Errorf("trial_count = %d at start, want 0", got)
	}
}

func TestRunCompletesAndPersists(t *testing.T) {
	r, _, _, pub := newTestRunner(t)
	mustUpload(t, r, singleInterval)
	mustStart(t, r, "m1", 0, 0, 0)
	file := r.recorder.Filename()

	r.tick(16)
	r.tick(96)
	if !r.Running() {
		t.Fatal("interval finished early")
	}
	r.tick(112)

	if r.Running() {
		t.Fatal("run still active after the last trial")
	}
	seq := pub.sequence()
	complete := indexOf(seq, "trial_complete:trial_iti")
	done := indexOf(seq, "status:completed:")
	if complete == -1 || done == -1 || complete > done {
		t.Errorf("completion order wrong: %v", seq)
	}
	if got := r.Statistics()["trial_count"]; got != 1 {
		t.Errorf("trial_count = %d, want 1", got)
	}

	doc, err := store.Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Trials) != 1 {
		t.Fatalf("saved %d trials, want 1", len(doc.Trials))
	}
	if doc.Statistics["trial_count"] != 1 {
		t.Errorf("saved trial_count = %d", doc.Statistics["trial_count"])
	}
	if doc.Task["config"] == nil {
		t.Error("task config missing from saved document")
	}

	// Completion discards the timeline: starting again needs a fresh
	// upload, which also keeps a careless restart from reopening the
	// saved file.
	if _, err := r.handleStart("m1", 0, 0, 200); !errors.IsCode(err, errors.ErrSessionNoExperiment) {
		t.Fatalf("start after completion: err = %v, want SESSION_NO_EXPERIMENT", err)
	}
	mustUpload(t, r, singleInterval)
	mustStart(t, r, "m1", 0, 0, 200)
	if !r.Running() {
		t.Error("start after re-upload failed")
	}
}

func TestLoopRematerializesTimeline(t *testing.T) {
	r, _, _, pub := newTestRunner(t)
	mustUpload(t, r, `{"name":"looped","loop":true,"trials":[{"type":"Interval","id":"t1","parameters":{"duration":100}}]}`)
	mustStart(t, r, "m4", 0, 0, 0)

	first := r.current
	r.tick(112)

	if !r.Running() {
		t.Fatal("looped timeline stopped after one iteration")
	}
	if r.current == first {
		t.Error("loop reused the finished trial instance")
	}
	if got := pub.count("trial_start:trial_iti"); got != 1 {
		t.Errorf("trial_start sent %d times, want 1", got)
	}
	if got := r.Statistics()["trial_count"]; got != 1 {
		t.Errorf("trial_count = %d after first lap, want 1", got)
	}

	r.tick(224)
	if got := r.Statistics()["trial_count"]; got != 2 {
		t.Errorf("trial_count = %d after second lap, want 2", got)
	}
	if got := pub.count("status:completed:"); got != 0 {
		t.Errorf("looped run reported completion %d times", got)
	}

	if _, err := r.handleStop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopAbortsWithoutHarvest(t *testing.T) {
	r, _, _, pub := newTestRunner(t)
	mustUpload(t, r, `{"name":"two","trials":[{"type":"Interval","id":"t1","parameters":{"duration":100}},{"type":"Interval","id":"t2","parameters":{"duration":100}}]}`)
	mustStart(t, r, "m2", 0, 0, 0)
	file := r.recorder.Filename()

	r.tick(16)
	msg, err := r.handleStop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if msg != "Experiment stopped" {
		t.Errorf("message = %q", msg)
	}
	if r.Running() || r.current != nil || r.queue != nil {
		t.Error("stop left run state behind")
	}
	if got := pub.count("trial_complete:trial_iti"); got != 0 {
		t.Errorf("stop fabricated %d trial completions", got)
	}
	if got := pub.count("status:stopped:"); got != 1 {
		t.Errorf("stopped status sent %d times, want 1", got)
	}

	doc, err := store.Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Trials) != 0 {
		t.Errorf("aborted run saved %d trials, want 0", len(doc.Trials))
	}
	if doc.Statistics == nil {
		t.Error("aborted run saved no statistics")
	}

	if _, err := r.handleStop(); !errors.IsCode(err, errors.ErrSessionNotRunning) {
		t.Errorf("second stop err = %v, want SESSION_NOT_RUNNING", err)
	}
}

// ---- overrides and punishment ----

func TestPunishmentExtendsNextInterval(t *testing.T) {
	r, io, _, pub := newTestRunner(t)
	mustUpload(t, r, `{"name":"punish","trials":[{"type":"Stage3","id":"s3"},{"type":"Interval","id":"iti","parameters":{"duration":100}}]}`)
	mustStart(t, r, "m2", 300, 50, 0)

	if r.cfg.PunishTime != 300 {
		t.Fatalf("punish override not applied: %d", r.cfg.PunishTime)
	}
	if r.cfg.ValveOpen != 50 {
		t.Fatalf("water override not applied: %d", r.cfg.ValveOpen)
	}
	if r.experiment.Config.ValveOpen == 50 {
		t.Fatal("override leaked into the stored experiment")
	}

	// Poke in and withdraw before the cue window ends, failing stage 3.
	io.SimulateNose(true)
	r.tick(16)
	io.SimulateNose(false)
	r.tick(32)

	iv, ok := r.current.(*trial.Interval)
	if !ok {
		t.Fatalf("current trial = %T, want *trial.Interval", r.current)
	}
	if got := iv.Duration(); got != 400 {
		t.Errorf("interval duration = %d, want 100 + 300 punishment", got)
	}
	if got := pub.count("trial_complete:trial_stage_3"); got != 1 {
		t.Errorf("stage 3 completion sent %d times", got)
	}

	r.tick(432)
	if !r.Running() {
		t.Fatal("extended interval ended early")
	}
	r.tick(448)
	if r.Running() {
		t.Fatal("extended interval never ended")
	}
}

func TestStatisticsOnlyCountWhileRunning(t *testing.T) {
	r, io, _, _ := newTestRunner(t)

	r.tick(0)
	io.SimulateNose(true)
	r.tick(16)
	io.SimulateNose(false)
	r.tick(32)
	if got := r.Statistics()["nose_pokes"]; got != 0 {
		t.Fatalf("nose_pokes = %d before any experiment, want 0", got)
	}

	mustUpload(t, r, `{"name":"long","trials":[{"type":"Interval","id":"t1","parameters":{"duration":10000}}]}`)
	mustStart(t, r, "m6", 0, 0, 48)

	io.SimulateNose(true)
	r.tick(64)
	io.SimulateNose(false)
	r.tick(80)
	io.SimulateLever(hw.SideLeft, true)
	r.tick(96)

	stats := r.Statistics()
	if stats["nose_pokes"] != 1 {
		t.Errorf("nose_pokes = %d, want 1", stats["nose_pokes"])
	}
	if stats["left_lever_presses"] != 1 {
		t.Errorf("left_lever_presses = %d, want 1", stats["left_lever_presses"])
	}

	if _, err := r.handleStop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestTickPublishesSnapshot(t *testing.T) {
	r, io, _, _ := newTestRunner(t)

	io.SimulateLever(hw.SideLeft, true)
	r.tick(16)
	if !r.Snapshot().LeverLeft {
		t.Error("published snapshot missed the lever press")
	}
}

// ---- loop goroutine ----

func TestRunnerLifecycle(t *testing.T) {
	r, _, _, pub := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	msg, err := r.Upload([]byte(`{"name":"lifecycle","trials":[{"type":"Interval","id":"t1","parameters":{"duration":50}}]}`))
	if err != nil {
		t.Fatalf("Upload: %v (%s)", err, msg)
	}
	if _, err := r.Start("m9", 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, "run completion", func() bool { return !r.Running() })
	if got := pub.count("status:completed:"); got != 1 {
		t.Errorf("completed status sent %d times, want 1", got)
	}

	// The timeline is gone after completion; a second run needs a
	// fresh upload.
	if _, err := r.Start("m9", 0, 0); err == nil {
		t.Fatal("restart succeeded without a re-upload")
	}
	if msg, err := r.Upload([]byte(`{"name":"lifecycle","trials":[{"type":"Interval","id":"t1","parameters":{"duration":50}}]}`)); err != nil {
		t.Fatalf("re-upload: %v (%s)", err, msg)
	}
	if _, err := r.Start("m9", 0, 0); err != nil {
		t.Fatalf("restart after re-upload: %v", err)
	}
	waitFor(t, 2*time.Second, "second completion", func() bool { return !r.Running() })
}

func TestShutdownSavesRunData(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()

	if _, err := r.Upload([]byte(`{"name":"long","trials":[{"type":"Interval","id":"t1","parameters":{"duration":60000}}]}`)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := r.Start("m5", 0, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var file string
	r.call(func() { file = r.recorder.Filename() })
	cancel()
	waitFor(t, 2*time.Second, "loop exit", func() bool {
		select {
		case <-r.done:
			return true
		default:
			return false
		}
	})

	doc, err := store.Load(file)
	if err != nil {
		t.Fatalf("Load after shutdown: %v", err)
	}
	if doc.Metadata.AnimalID != "m5" {
		t.Errorf("animal id = %q", doc.Metadata.AnimalID)
	}
	if len(doc.Statistics) == 0 {
		t.Error("shutdown save wrote no statistics")
	}
}
