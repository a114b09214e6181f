// Package stats counts session statistics: nose pokes, lever presses,
// water deliveries, and completed trials. Counts accumulate across an
// experiment and are broadcast to connected dashboards while it runs.
package stats

import (
	"sync"

	"github.com/nyxlab/boxd/pkg/hw"
)

// Statistic keys as they appear on the wire.
const (
	KeyNosePokes         = "nose_pokes"
	KeyLeftLeverPresses  = "left_lever_presses"
	KeyRightLeverPresses = "right_lever_presses"
	KeyTrialCount        = "trial_count"
	KeyWaterDeliveries   = "water_deliveries"
)

// Recorder accumulates session counters. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewRecorder returns a Recorder with all counters at zero.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.Reset()
	return r
}

// Reset zeroes every counter.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = map[string]int64{
		KeyNosePokes:         0,
		KeyLeftLeverPresses:  0,
		KeyRightLeverPresses: 0,
		KeyTrialCount:        0,
		KeyWaterDeliveries:   0,
	}
}

// Increment adds one to the named counter. Unknown names are ignored.
func (r *Recorder) Increment(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.counts[name]; ok {
		r.counts[name]++
	}
}

// TrialCompleted adds one to the trial counter.
func (r *Recorder) TrialCompleted() {
	r.Increment(KeyTrialCount)
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// Tracker turns hardware snapshots into statistic increments by watching
// signal edges. Levers and the water valve count on their rising edge; a
// nose poke counts when the nose withdraws and the beam is restored, so
// each completed poke is one count.
type Tracker struct {
	rec    *Recorder
	prev   hw.Snapshot
	primed bool
}

// NewTracker returns a Tracker feeding the given Recorder.
func NewTracker(rec *Recorder) *Tracker {
	return &Tracker{rec: rec}
}

// Observe compares snap against the previous snapshot and increments the
// matching counters. Edges are only counted while active; the previous
// snapshot is always updated so a held input does not count as a new
// edge when an experiment starts. The first snapshot only primes the
// comparison.
func (t *Tracker) Observe(snap hw.Snapshot, active bool) {
	if active && t.primed {
		if t.prev.NoseIn() && !snap.NoseIn() {
			t.rec.Increment(KeyNosePokes)
		}
		if !t.prev.LeverLeft && snap.LeverLeft {
			t.rec.Increment(KeyLeftLeverPresses)
		}
		if !t.prev.LeverRight && snap.LeverRight {
			t.rec.Increment(KeyRightLeverPresses)
		}
		if !t.prev.WaterValve && snap.WaterValve {
			t.rec.Increment(KeyWaterDeliveries)
		}
	}
	t.prev = snap
	t.primed = true
}
