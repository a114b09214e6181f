// Package runner drives the behavior box: a 60Hz tick loop that reads
// the hardware, advances the active trial timeline, and persists run
// data. All experiment state is owned by the loop goroutine; control
// operations (upload, start, stop, hardware tests) are serialized onto
// it through a command channel.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/display"
	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/logging"
	"github.com/nyxlab/boxd/pkg/models"
	"github.com/nyxlab/boxd/pkg/random"
	"github.com/nyxlab/boxd/pkg/stats"
	"github.com/nyxlab/boxd/pkg/store"
	"github.com/nyxlab/boxd/pkg/trial"
)

const tickRate = time.Second / 60

// Publisher receives the runner's outbound notifications. The transport
// layer implements it; a nil publisher is replaced by a no-op so the
// runner can be driven without a server attached.
type Publisher interface {
	// TrialStart announces that the named trial began.
	TrialStart(title string)

	// TrialComplete announces a finished trial along with its data.
	TrialComplete(title string, data map[string]interface{})

	// ExperimentStatus announces a run state change (started, stopped,
	// completed). trial names the active trial where one applies.
	ExperimentStatus(status, trial string)

	// TestState broadcasts the state of every hardware test.
	TestState(states map[string]int)
}

type nopPublisher struct{}

func (nopPublisher) TrialStart(string)                            {}
func (nopPublisher) TrialComplete(string, map[string]interface{}) {}
func (nopPublisher) ExperimentStatus(string, string)              {}
func (nopPublisher) TestState(map[string]int)                     {}

// Options configures a Runner.
type Options struct {
	IO        hw.IO
	Displays  display.Displays
	Random    *random.Source
	Registry  *trial.Registry
	Publisher Publisher
	DataDir   string
	Version   string
}

// Runner owns the tick loop and the experiment lifecycle.
type Runner struct {
	log      zerolog.Logger
	io       hw.IO
	displays display.Displays
	rng      *random.Source
	registry *trial.Registry
	pub      Publisher
	dataDir  string
	version  string

	stats   *stats.Recorder
	tracker *stats.Tracker
	tests   *testManager

	commands chan func()
	done     chan struct{}
	start    time.Time

	// stateMu guards the fields read outside the loop goroutine: the
	// published snapshot and the running flag.
	stateMu  sync.RWMutex
	snapshot hw.Snapshot
	running  bool

	// Owned by the loop goroutine.
	experiment *models.Experiment
	cfg        models.ExperimentConfig
	loop       bool
	current    trial.Trial
	queue      []trial.Trial
	recorder   *store.Recorder
}

// New builds a Runner. Run must be called before the control operations
// are usable.
func New(opts Options) *Runner {
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = trial.Default()
	}

	rec := stats.NewRecorder()
	r := &Runner{
		log:      logging.Component("runner"),
		io:       opts.IO,
		displays: opts.Displays,
		rng:      opts.Random,
		registry: registry,
		pub:      pub,
		dataDir:  opts.DataDir,
		version:  opts.Version,
		stats:    rec,
		tracker:  stats.NewTracker(rec),
		tests:    newTestManager(),
		commands: make(chan func(), 32),
		done:     make(chan struct{}),
		snapshot: opts.IO.Read(),
		start:    time.Now(),
	}
	return r
}

// Run executes the tick loop until ctx is cancelled. Pending run data is
// saved before returning.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	r.start = time.Now()
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	r.log.Info().Str("version", r.version).Msg("device loop started")

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case fn := <-r.commands:
			fn()
		case <-ticker.C:
			r.tick(r.now())
		}
	}
}

// now is the monotonic millisecond clock all trial timing runs on.
func (r *Runner) now() int64 {
	return time.Since(r.start).Milliseconds()
}

// shutdown saves whatever run data exists so a power cut or service stop
// never loses a session.
func (r *Runner) shutdown() {
	if r.recorder != nil {
		r.log.Warn().Msg("shutting down with run data present, saving")
		r.persist()
	}
	r.setRunning(false)
	r.log.Info().Msg("device loop stopped")
}

// do schedules fn on the loop goroutine, dropping it when the loop has
// already exited.
func (r *Runner) do(fn func()) bool {
	select {
	case r.commands <- fn:
		return true
	case <-r.done:
		return false
	}
}

// call schedules fn and waits for it to finish.
func (r *Runner) call(fn func()) bool {
	ran := make(chan struct{})
	if !r.do(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-r.done:
		return false
	}
}

// ---- tick loop ----

func (r *Runner) tick(now int64) {
	snap := r.io.Read()

	r.stateMu.Lock()
	r.snapshot = snap
	running := r.running
	r.stateMu.Unlock()

	r.tracker.Observe(snap, running)

	if !running || r.current == nil {
		return
	}

	if r.current.Update(snap, now) {
		r.current.Render()
		return
	}

	r.advance(now)
	if r.current != nil {
		r.current.Render()
	}
}

// advance harvests the finished trial and enters the next one, looping
// or completing the run when the queue empties.
func (r *Runner) advance(now int64) {
	finished := r.current
	finished.OnExit()

	data := finished.Data()
	if r.recorder != nil {
		r.recorder.AddTrialData(finished.Title(), data)
	}
	r.log.Info().
		Str("outcome", string(finished.Outcome())).
		Msg("Finished trial: " + finished.Title())
	r.pub.TrialComplete(finished.Title(), data)

	punish := r.cfg.PunishTime > 0 && finished.Outcome().Failed()

	if len(r.queue) == 0 && r.loop {
		rebuilt, err := r.materialize()
		if err != nil {
			r.log.Error().Err(err).Msg("could not rebuild looped timeline")
			r.complete()
			return
		}
		r.queue = rebuilt
		r.log.Info().Msg("Timeline loop completed, starting next iteration")
	}

	if len(r.queue) == 0 {
		r.complete()
		return
	}

	r.current = r.queue[0]
	r.queue = r.queue[1:]
	if punish {
		if iv, ok := r.current.(*trial.Interval); ok {
			iv.ExtendDuration(r.cfg.PunishTime)
			r.log.Info().Int64("punish_ms", r.cfg.PunishTime).Msg("extended interval after failed trial")
		}
	}
	r.current.OnEnter(now)
	r.pub.TrialStart(r.current.Title())
}

// complete ends the run after the last trial. The stored experiment is
// discarded along with the live instances; the panel uploads a fresh
// timeline before the next start.
func (r *Runner) complete() {
	r.persist()
	r.current = nil
	r.queue = nil
	r.experiment = nil
	r.setRunning(false)
	r.log.Info().Msg("Experiment completed")
	r.pub.ExperimentStatus("completed", "")
}

func (r *Runner) persist() {
	if r.recorder == nil {
		return
	}
	r.recorder.AddStatistics(r.stats.Snapshot())
	if !r.recorder.Save() {
		r.log.Error().Str("file", r.recorder.Filename()).Msg("could not save run data")
	}
}

// ---- control operations ----

// Upload validates raw as an experiment document and stores it as the
// device's current experiment. The returned message is panel-facing; err
// is nil exactly when the upload was accepted. Uploads are rejected
// while an experiment is running, so a loop boundary never
// rematerializes from a definition swapped in mid-run.
func (r *Runner) Upload(raw []byte) (msg string, err error) {
	r.call(func() { msg, err = r.handleUpload(raw) })
	return
}

func (r *Runner) handleUpload(raw []byte) (string, error) {
	if r.isRunning() {
		r.log.Warn().Msg("Experiment upload rejected while running")
		return "Cannot upload while an experiment is running", errors.SessionRunning()
	}

	exp, err := models.ParseExperiment(raw)
	if err != nil {
		r.log.Error().Err(err).Msg("experiment upload rejected")
		return "Experiment processing error: " + err.Error(), err
	}

	problems := exp.Problems()
	for i, spec := range exp.Trials {
		if spec.Type != "" && !r.registry.Known(spec.Type) {
			problems = append(problems, fmt.Sprintf("trial %d: unknown trial type: %s", i, spec.Type))
		}
	}
	if len(problems) > 0 {
		joined := strings.Join(problems, "; ")
		r.log.Error().Str("experiment", exp.Name).Msg("experiment validation failed: " + joined)
		return "Experiment validation failed: " + joined, errors.ExperimentInvalid(joined)
	}

	r.experiment = exp
	r.log.Info().
		Str("experiment", exp.Name).
		Int("trials", len(exp.Trials)).
		Bool("loop", exp.Loop).
		Msg("experiment stored")
	return "Experiment validated and stored successfully", nil
}

// Start begins the stored experiment for the given animal. punishMS and
// waterMS override the experiment's punish_time and valve_open for this
// run when positive.
func (r *Runner) Start(animalID string, punishMS, waterMS int64) (msg string, err error) {
	r.call(func() { msg, err = r.handleStart(animalID, punishMS, waterMS, r.now()) })
	return
}

func (r *Runner) handleStart(animalID string, punishMS, waterMS, now int64) (string, error) {
	if r.isRunning() {
		r.log.Warn().Msg("Experiment already running")
		return "Experiment already running", errors.SessionRunning()
	}
	if r.experiment == nil {
		r.log.Error().Msg("No experiment available for execution")
		return "No experiment available for execution", errors.SessionNoExperiment()
	}

	r.cfg = r.experiment.Config
	if punishMS > 0 {
		r.cfg.PunishTime = punishMS
	}
	if waterMS > 0 {
		r.cfg.ValveOpen = waterMS
	}

	trials, err := r.materialize()
	if err != nil {
		r.log.Error().Err(err).Msg("could not materialize timeline")
		return "Experiment execution error: " + err.Error(), err
	}

	r.stats.Reset()
	r.recorder = store.NewRecorder(r.dataDir, animalID)
	r.recorder.AddTaskData(map[string]interface{}{"config": r.cfg})

	r.loop = r.experiment.Loop
	r.current = trials[0]
	r.queue = trials[1:]
	r.current.OnEnter(now)
	r.setRunning(true)

	r.log.Info().
		Str("animal_id", animalID).
		Str("experiment", r.experiment.Name).
		Int("trials", len(trials)).
		Str("file", r.recorder.Filename()).
		Msg("Starting experiment for animal " + animalID)
	r.pub.ExperimentStatus("started", r.current.Title())

	return fmt.Sprintf("Experiment '%s' started successfully", r.experiment.Name), nil
}

// Stop aborts the run immediately. The active trial is dropped without
// its exit hook so no completion events are fabricated; collected data
// is saved.
func (r *Runner) Stop() (msg string, err error) {
	r.call(func() { msg, err = r.handleStop() })
	return
}

func (r *Runner) handleStop() (string, error) {
	if !r.isRunning() {
		r.log.Warn().Msg("No experiment running")
		return "No experiment running", errors.SessionNotRunning()
	}

	r.current = nil
	r.queue = nil
	r.loop = false
	r.setRunning(false)
	r.persist()

	r.log.Info().Msg("Experiment stopped")
	r.pub.ExperimentStatus("stopped", "")
	return "Experiment stopped", nil
}

// materialize builds fresh trial instances from the stored experiment.
// Every trial shares one context, so per-run config overrides reach all
// of them.
func (r *Runner) materialize() ([]trial.Trial, error) {
	ctx := &trial.Context{
		IO:       r.io,
		Displays: r.displays,
		Random:   r.rng,
		Stats:    r.stats,
		Config:   &r.cfg,
		Log:      logging.Component("trial"),
	}
	trials := make([]trial.Trial, 0, len(r.experiment.Trials))
	for _, spec := range r.experiment.Trials {
		t, err := r.registry.Create(spec.Type, spec.Parameters, ctx)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	return trials, nil
}

// ---- accessors ----

// Snapshot returns the most recent hardware reading.
func (r *Runner) Snapshot() hw.Snapshot {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.snapshot
}

// Running reports whether an experiment is active.
func (r *Runner) Running() bool {
	return r.isRunning()
}

// Statistics returns the current session counters.
func (r *Runner) Statistics() map[string]int64 {
	return r.stats.Snapshot()
}

// Version is the device software version announced to panels.
func (r *Runner) Version() string {
	return r.version
}

func (r *Runner) isRunning() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.running
}

func (r *Runner) setRunning(v bool) {
	r.stateMu.Lock()
	r.running = v
	r.stateMu.Unlock()
}
