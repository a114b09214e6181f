package trial

import "github.com/nyxlab/boxd/pkg/hw"

// Stage2 conditions lever pressing: a visual cue appears on a random
// side and either lever's press immediately triggers the water reward
// and cancels the cue. The trial completes once the reward was
// triggered, the valve window elapsed, and the animal has visited and
// left the nose port. If an input is already active when the trial
// would begin, it stalls until the box is clear.
type Stage2 struct {
	base
	start int64
	water waterDelivery
	lv    levers

	stalled         bool
	rewardTriggered bool
	leverHeld       bool

	noseLight  bool
	leverLight bool
	visualCue  bool
	cueArmed   bool
	cueSide    hw.Side

	noseEntered bool
	noseExited  bool
}

// NewStage2 returns a Stage2 trial with a randomly chosen cue side.
func NewStage2(ctx *Context) *Stage2 {
	return &Stage2{
		base:    newBase(ctx, "trial_stage_2"),
		cueSide: ctx.randomSide(),
	}
}

// OnEnter blanks the box and arms the cue, unless an input is already
// active, in which case the trial stalls without side effects.
func (t *Stage2) OnEnter(now int64) {
	t.start = now
	t.enter()

	if blocked(t.ctx.IO.Read()) {
		t.stalled = true
		t.ctx.Log.Warn().Msg("trial blocked by active nose poke or lever press")
	} else {
		t.visualCue = true
		t.cueArmed = true
		t.addEvent(EventVisualCueStart)
	}
	t.ctx.Log.Info().Msg("trial started")
	t.Render()
}

func (t *Stage2) Update(snap hw.Snapshot, now int64) bool {
	// Stall until the box is clear; the cue is armed exactly once after.
	if t.stalled && blocked(snap) {
		return true
	}
	t.stalled = false
	if !t.visualCue && !t.cueArmed {
		t.visualCue = true
		t.cueArmed = true
		t.addEvent(EventVisualCueStart)
	}

	if t.rewardTriggered && t.water.complete && t.noseExited {
		t.setOutcome(OutcomeSuccess)
		return false
	}

	// The port visit only counts toward completion after the reward.
	if t.rewardTriggered {
		if snap.NoseIn() && !t.noseEntered {
			t.noseEntered = true
			t.ctx.Log.Info().Msg("nose port entry")
			t.addEvent(EventNosePortEntry)
		} else if !snap.NoseIn() && t.noseEntered && !t.noseExited {
			t.noseExited = true
			t.ctx.Log.Info().Msg("nose port exit")
			t.addEvent(EventNosePortExit)
		}
	}

	t.trackLevers(&t.lv, snap, now, false)

	// Either lever's press edge triggers the reward and ends the cue.
	if snap.AnyLever() && !t.leverHeld && !t.rewardTriggered {
		t.leverHeld = true
		t.rewardTriggered = true
		t.ctx.Log.Info().Msg("lever press reward triggered")
		t.addEvent(EventRewardTriggered)

		t.visualCue = false
		t.addEvent(EventVisualCueEnd)
	} else if !snap.AnyLever() && t.leverHeld && t.rewardTriggered {
		t.leverHeld = false
	}

	// Lever lights invite a press until the reward; afterwards the nose
	// light guides the animal to the port.
	if !t.rewardTriggered && !t.stalled {
		t.leverLight = !snap.AnyLever()
	} else if t.rewardTriggered {
		t.leverLight = false
		if !t.noseEntered {
			t.noseLight = true
		}
	}

	t.updateWater(&t.water, t.rewardTriggered, now)
	if t.noseEntered {
		t.noseLight = false
	}
	return true
}

// Render reflects the light and cue state.
func (t *Stage2) Render() {
	t.ctx.IO.SetNoseLight(t.noseLight)
	t.ctx.IO.SetLeverLight(hw.SideLeft, t.leverLight)
	t.ctx.IO.SetLeverLight(hw.SideRight, t.leverLight)
	if t.visualCue {
		t.ctx.Displays.ShowCue(t.cueSide)
	} else {
		t.ctx.Displays.Clear()
	}
}

func (t *Stage2) OnExit() {
	t.exit()
	t.harvestEvents()
}
