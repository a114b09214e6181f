package trial

import "github.com/nyxlab/boxd/pkg/hw"

// Stage1 habituates the animal to the nose port: the nose light comes on,
// water delivery starts immediately, and a visual cue appears on a random
// side. The trial completes after the animal enters the port, the valve
// window elapses, and the animal withdraws. Lever presses are recorded
// but never gate completion.
type Stage1 struct {
	base
	start int64
	water waterDelivery
	lv    levers

	noseLight bool
	visualCue bool
	cueSide   hw.Side

	noseEntered bool
	noseExited  bool
}

// NewStage1 returns a Stage1 trial with a randomly chosen cue side.
func NewStage1(ctx *Context) *Stage1 {
	return &Stage1{
		base:    newBase(ctx, "trial_stage_1"),
		cueSide: ctx.randomSide(),
	}
}

// OnEnter lights the nose port, shows the cue, and starts the valve
// timing window.
func (t *Stage1) OnEnter(now int64) {
	t.start = now
	t.water.arm(now)
	t.enter()

	t.noseLight = true
	t.visualCue = true
	t.addEvent(EventVisualCueStart)
	t.ctx.Log.Info().Str("side", string(t.cueSide)).Msg("visual cue displayed")
	t.ctx.Log.Info().Msg("trial started")
	t.Render()
}

func (t *Stage1) Update(snap hw.Snapshot, now int64) bool {
	// Water starts on the first tick and closes after the window.
	t.updateWater(&t.water, true, now)

	// Nose port entry turns off the cue; exit only counts after entry.
	if snap.NoseIn() && !t.noseEntered {
		t.noseEntered = true
		t.ctx.Log.Info().Msg("nose port entry")
		t.addEvent(EventNosePortEntry)

		t.visualCue = false
		t.addEvent(EventVisualCueEnd)
	} else if !snap.NoseIn() && t.noseEntered && !t.noseExited {
		t.noseExited = true
		t.ctx.Log.Info().Msg("nose port exit")
		t.addEvent(EventNosePortExit)
	}

	t.trackLevers(&t.lv, snap, now, false)

	if t.noseEntered && t.water.complete && t.noseExited {
		t.setOutcome(OutcomeSuccess)
		return false
	}

	if t.noseEntered {
		t.noseLight = false
	}
	return true
}

// Render reflects the light and cue state. Stage1 never lights the
// levers.
func (t *Stage1) Render() {
	t.ctx.IO.SetNoseLight(t.noseLight)
	t.ctx.IO.SetLeverLight(hw.SideLeft, false)
	t.ctx.IO.SetLeverLight(hw.SideRight, false)
	if t.visualCue {
		t.ctx.Displays.ShowCue(t.cueSide)
	} else {
		t.ctx.Displays.Clear()
	}
}

func (t *Stage1) OnExit() {
	t.exit()
	t.harvestEvents()
}
