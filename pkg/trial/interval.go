package trial

import "github.com/nyxlab/boxd/pkg/hw"

// Interval is the inter-trial interval separating consecutive trials.
// It clears every output on entry and simply waits out its duration.
type Interval struct {
	base
	duration  int64
	start     int64
	entered   bool
	cancelled bool
}

// NewInterval returns an interval of the given duration in milliseconds.
func NewInterval(ctx *Context, duration int64) *Interval {
	return &Interval{
		base:     newBase(ctx, "trial_iti"),
		duration: duration,
	}
}

// Duration returns the interval's current duration in milliseconds.
func (t *Interval) Duration() int64 { return t.duration }

// ExtendDuration lengthens the interval before it starts, used to append
// punishment time after a failed trial. Calls after OnEnter are ignored;
// the wait is fixed once the interval is underway.
func (t *Interval) ExtendDuration(ms int64) {
	if t.entered {
		t.ctx.Log.Warn().Msg("interval already started, ignoring duration extension")
		return
	}
	t.duration += ms
}

// OnEnter clears all outputs and blanks the displays.
func (t *Interval) OnEnter(now int64) {
	t.start = now
	t.entered = true
	t.enter()

	t.ctx.IO.SetWaterValve(false)
	t.ctx.IO.SetNoseLight(false)
	t.ctx.IO.SetLeverLight(hw.SideLeft, false)
	t.ctx.IO.SetLeverLight(hw.SideRight, false)
	t.ctx.Displays.Clear()
}

// Cancel aborts the wait. The next Update ends the interval with the
// Cancelled outcome instead of waiting out the remaining duration.
func (t *Interval) Cancel() {
	t.cancelled = true
}

// Update waits for the duration to elapse.
func (t *Interval) Update(snap hw.Snapshot, now int64) bool {
	if t.cancelled {
		t.setOutcome(OutcomeCancelled)
		return false
	}
	if now-t.start > t.duration {
		t.addData("trial_iti_completed", true)
		t.setOutcome(OutcomeSuccess)
		return false
	}
	return true
}

// Render has nothing to reflect; the interval holds all outputs off.
func (t *Interval) Render() {}

// OnExit records the end timestamp.
func (t *Interval) OnExit() {
	t.exit()
}
