package trial

import "github.com/nyxlab/boxd/pkg/hw"

// Stage3 requires a nose-port hold before the lever matters: entry
// starts a randomized cue window, a lever press inside the window
// triggers the reward, and withdrawing the nose before the water is
// delivered fails the trial immediately. Letting the window lapse
// without a press fails it too.
type Stage3 struct {
	base
	start int64
	water waterDelivery
	lv    levers

	stalled         bool
	rewardTriggered bool
	errorTrial      bool
	leverHeld       bool

	noseLight  bool
	leverLight bool
	visualCue  bool
	cueSide    hw.Side

	cueDuration int64
	cueStart    int64
	cueStarted  bool

	noseEntered bool
	noseExited  bool
}

// NewStage3 returns a Stage3 trial with a random cue side and a cue
// window drawn uniformly from the configured bounds.
func NewStage3(ctx *Context) *Stage3 {
	return &Stage3{
		base:        newBase(ctx, "trial_stage_3"),
		cueSide:     ctx.randomSide(),
		cueDuration: ctx.Random.IntBetween(ctx.Config.CueMinimum, ctx.Config.CueMaximum),
	}
}

// OnEnter lights the nose port, unless an input is already active, in
// which case the trial stalls until the box is clear.
func (t *Stage3) OnEnter(now int64) {
	t.start = now
	t.enter()

	if blocked(t.ctx.IO.Read()) {
		t.stalled = true
		t.ctx.Log.Warn().Msg("trial blocked by active nose poke or lever press")
	} else {
		t.noseLight = true
	}
	t.ctx.Log.Info().Msg("trial started")
	t.Render()
}

func (t *Stage3) Update(snap hw.Snapshot, now int64) bool {
	if t.stalled && blocked(snap) {
		return true
	}
	t.stalled = false
	t.noseLight = true

	// Premature withdrawal is checked before any other terminal
	// condition: failure paths win ties.
	if t.noseEntered && !t.noseExited && !snap.NoseIn() && !t.water.complete {
		t.ctx.Log.Error().Msg("premature nose withdrawal")
		t.noseLight = false
		t.leverLight = false
		t.visualCue = false
		t.addEvent(EventVisualCueEnd)

		t.errorTrial = true
		t.setOutcome(OutcomeFailureNoseport)
		return false
	}

	if t.water.complete && t.noseExited {
		t.noseLight = false
		t.leverLight = false
		t.visualCue = false
		t.addEvent(EventVisualCueEnd)
		t.setOutcome(OutcomeSuccess)
		return false
	}

	// Entry opens the cue window and hands the lights to the levers.
	if snap.NoseIn() && !t.noseEntered {
		t.noseEntered = true
		t.ctx.Log.Info().Msg("nose port entry")
		t.addEvent(EventNosePortEntry)

		t.ctx.Log.Info().Msg("cue display started")
		t.cueStart = now
		t.cueStarted = true
		t.visualCue = true
		t.addEvent(EventVisualCueStart)

		t.leverLight = true
		t.noseLight = false
	} else if !snap.NoseIn() && t.noseEntered && !t.noseExited {
		t.noseExited = true
		t.ctx.Log.Info().Msg("nose port exit")
		t.addEvent(EventNosePortExit)
	}

	t.trackLevers(&t.lv, snap, now, true)

	// A press edge while the nose is committed triggers the reward.
	if snap.AnyLever() && !t.leverHeld && t.noseEntered && !t.rewardTriggered {
		t.leverHeld = true
		t.rewardTriggered = true
		t.ctx.Log.Info().Msg("reward triggered")
		t.addEvent(EventRewardTriggered)

		t.visualCue = false
		t.addEvent(EventVisualCueEnd)
		t.leverLight = false
		t.noseLight = false
	} else if t.leverHeld && !snap.AnyLever() && !t.rewardTriggered {
		t.leverHeld = false
	}

	t.updateWater(&t.water, t.rewardTriggered, now)
	if t.noseEntered {
		t.noseLight = false
	}

	// The cue window closing without a press fails the trial.
	if t.noseEntered && !t.rewardTriggered && t.cueStarted {
		if now-t.cueStart >= t.cueDuration {
			t.visualCue = false
			t.ctx.Log.Info().Msg("cue window elapsed without lever press")
			t.addEvent(EventTrialCueTimeout)
			t.setOutcome(OutcomeFailureNoLever)
			return false
		}
	}
	return true
}

// Render reflects the light and cue state.
func (t *Stage3) Render() {
	t.ctx.IO.SetNoseLight(t.noseLight)
	t.ctx.IO.SetLeverLight(hw.SideLeft, t.leverLight)
	t.ctx.IO.SetLeverLight(hw.SideRight, t.leverLight)
	if t.visualCue {
		t.ctx.Displays.ShowCue(t.cueSide)
	} else {
		t.ctx.Displays.Clear()
	}
}

func (t *Stage3) OnExit() {
	t.exit()
	t.harvestEvents()
	if t.errorTrial {
		t.addData("error_trial", true)
		t.addData("error_type", "premature_withdrawal")
	}
}
