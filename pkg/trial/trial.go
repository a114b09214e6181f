// Package trial implements the behavioral epochs a timeline is built
// from: the inter-trial interval and the staged conditioning protocols.
// Each variant is a small state machine driven by the runner at a fixed
// tick rate against hardware input snapshots.
package trial

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/display"
	"github.com/nyxlab/boxd/pkg/hw"
	"github.com/nyxlab/boxd/pkg/models"
	"github.com/nyxlab/boxd/pkg/random"
	"github.com/nyxlab/boxd/pkg/stats"
)

// Trial is one behavioral epoch in a timeline.
//
// The runner drives the lifecycle: OnEnter once, then Update and Render
// every tick until Update returns false, then OnExit. Update performs
// state transitions and valve timing; Render reflects the trial's
// current light and cue state onto the hardware and is safe to call
// every tick. The tick the terminal condition is reached, Update sets
// the outcome and returns false.
//
// All duration arithmetic uses the runner's monotonic millisecond clock
// passed as now; wall-clock time only appears in event timestamps.
type Trial interface {
	Title() string
	OnEnter(now int64)
	Update(snap hw.Snapshot, now int64) bool
	Render()
	OnExit()
	Data() map[string]interface{}
	Outcome() Outcome
}

// Context bundles the capabilities shared by every trial of a timeline.
// All trials materialized for one run hold the same Context, so the
// config (including any per-run overrides) is read through one pointer.
type Context struct {
	IO       hw.IO
	Displays display.Displays
	Random   *random.Source
	Stats    *stats.Recorder
	Config   *models.ExperimentConfig
	Log      zerolog.Logger
}

// randomSide picks the cue side uniformly.
func (c *Context) randomSide() hw.Side {
	if c.Random.Bool() {
		return hw.SideLeft
	}
	return hw.SideRight
}

// base carries the bookkeeping shared by every trial variant.
type base struct {
	ctx     *Context
	title   string
	data    map[string]interface{}
	events  []Event
	outcome Outcome
	started string
	ended   string
}

func newBase(ctx *Context, title string) base {
	return base{
		ctx:   ctx,
		title: title,
		data:  make(map[string]interface{}),
	}
}

func (b *base) Title() string { return b.title }

func (b *base) Data() map[string]interface{} { return b.data }

func (b *base) Outcome() Outcome { return b.outcome }

// enter records the wall-clock start timestamp.
func (b *base) enter() {
	b.started = isoNow()
}

// exit records the wall-clock end timestamp and counts the trial.
func (b *base) exit() {
	b.ended = isoNow()
	if b.ctx.Stats != nil {
		b.ctx.Stats.TrialCompleted()
	}
}

// setOutcome stores the outcome on the trial and in its harvested data.
func (b *base) setOutcome(o Outcome) {
	b.outcome = o
	b.data["trial_outcome"] = string(o)
}

func (b *base) addData(key string, value interface{}) {
	b.data[key] = value
}

// harvestEvents copies the event log into the harvested data.
func (b *base) harvestEvents() {
	b.data["events"] = b.events
}

func (b *base) addEvent(eventType string) {
	b.events = append(b.events, Event{Type: eventType, Timestamp: isoNow()})
}

func (b *base) addDurationEvent(eventType string, duration int64) {
	b.events = append(b.events, Event{Type: eventType, Timestamp: isoNow(), Duration: duration})
}

func isoNow() string {
	return time.Now().Format(time.RFC3339Nano)
}

// waterDelivery tracks the valve-open window shared by the staged trials.
// The valve opens when the trial's reward condition holds and closes
// once config.valve_open milliseconds have elapsed from openedAt.
type waterDelivery struct {
	started  bool
	complete bool
	armed    bool
	openedAt int64
}

// arm fixes the window's reference point ahead of the valve opening.
// Stage1 measures the window from trial entry, not from the tick the
// valve actually opens.
func (w *waterDelivery) arm(now int64) {
	w.armed = true
	w.openedAt = now
}

// updateWater opens the valve on the first tick trigger holds and closes
// it once the configured window has elapsed.
func (b *base) updateWater(w *waterDelivery, trigger bool, now int64) {
	switch {
	case trigger && !w.started:
		b.ctx.IO.SetWaterValve(true)
		w.started = true
		if !w.armed {
			w.arm(now)
		}
		b.ctx.Log.Info().Msg("water delivery started")
		b.addEvent(EventWaterDeliveryStart)
	case w.started && !w.complete:
		if now-w.openedAt >= b.ctx.Config.ValveOpen {
			b.ctx.IO.SetWaterValve(false)
			w.complete = true
			b.ctx.Log.Info().Msg("water delivery complete")
			b.addEvent(EventWaterDeliveryComplete)
		}
	}
}

// levers tracks the held state of both levers and logs press and release
// edges. Releases carry the held duration when withDurations is set.
type levers struct {
	left    bool
	right   bool
	leftAt  int64
	rightAt int64
}

func (b *base) trackLevers(l *levers, snap hw.Snapshot, now int64, withDurations bool) {
	if snap.LeverLeft && !l.left {
		l.left = true
		l.leftAt = now
		b.ctx.Log.Info().Msg("left lever pressed")
		b.addEvent(EventLeftLeverPress)
	} else if !snap.LeverLeft && l.left {
		l.left = false
		b.ctx.Log.Info().Msg("left lever released")
		if withDurations {
			b.addDurationEvent(EventLeftLeverRelease, now-l.leftAt)
		} else {
			b.addEvent(EventLeftLeverRelease)
		}
	}

	if snap.LeverRight && !l.right {
		l.right = true
		l.rightAt = now
		b.ctx.Log.Info().Msg("right lever pressed")
		b.addEvent(EventRightLeverPress)
	} else if !snap.LeverRight && l.right {
		l.right = false
		b.ctx.Log.Info().Msg("right lever released")
		if withDurations {
			b.addDurationEvent(EventRightLeverRelease, now-l.rightAt)
		} else {
			b.addEvent(EventRightLeverRelease)
		}
	}
}

// blocked reports whether a trial cannot begin because an input is
// already active: a lever held down or the nose already in the port.
func blocked(snap hw.Snapshot) bool {
	return snap.AnyLever() || snap.NoseIn()
}
