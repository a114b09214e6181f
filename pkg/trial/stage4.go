package trial

import "github.com/nyxlab/boxd/pkg/hw"

// Stage4 is the discrimination stage: like Stage3, a nose-port hold
// opens a randomized cue window, but only the lever on the cue side
// earns the reward. Pressing the opposite lever ends the trial
// immediately as a wrong-lever failure.
type Stage4 struct {
	base
	start int64
	water waterDelivery
	lv    levers

	stalled         bool
	rewardTriggered bool
	errorTrial      bool
	errorType       string
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

// NewStage4 returns a Stage4 trial with a random cue side and a cue
// window drawn uniformly from the configured bounds.
func NewStage4(ctx *Context) *Stage4 {
	return &Stage4{
		base:        newBase(ctx, "trial_stage_4"),
		cueSide:     ctx.randomSide(),
		cueDuration: ctx.Random.IntBetween(ctx.Config.CueMinimum, ctx.Config.CueMaximum),
	}
}

// OnEnter lights the nose port, unless an input is already active, in
// which case the trial stalls until the box is clear.
func (t *Stage4) OnEnter(now int64) {
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

func (t *Stage4) Update(snap hw.Snapshot, now int64) bool {
	if t.stalled && blocked(snap) {
		return true
	}
	t.stalled = false
	t.noseLight = true

	if t.noseEntered && !t.noseExited && !snap.NoseIn() && !t.water.complete {
		t.ctx.Log.Error().Msg("premature nose withdrawal")
		t.noseLight = false
		t.leverLight = false
		t.visualCue = false
		t.addEvent(EventVisualCueEnd)

		t.errorTrial = true
		t.errorType = "premature_withdrawal"
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

	// Only a press edge counts, and only while the nose is committed.
	// The wrong lever fails the trial on the spot; when both levers
	// land on the same tick the failure wins.
	if snap.AnyLever() && !t.leverHeld && t.noseEntered && !t.rewardTriggered {
		t.leverHeld = true

		if snap.Lever(t.cueSide.Other()) {
			t.ctx.Log.Error().Str("cue_side", string(t.cueSide)).Msg("wrong lever pressed")
			t.noseLight = false
			t.leverLight = false
			t.visualCue = false
			t.addEvent(EventVisualCueEnd)

			t.errorTrial = true
			t.errorType = "wrong_lever"
			t.setOutcome(OutcomeFailureWrongLever)
			return false
		}

		t.rewardTriggered = true
		t.ctx.Log.Info().Msg("correct lever reward triggered")
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
func (t *Stage4) Render() {
	t.ctx.IO.SetNoseLight(t.noseLight)
	t.ctx.IO.SetLeverLight(hw.SideLeft, t.leverLight)
	t.ctx.IO.SetLeverLight(hw.SideRight, t.leverLight)
	if t.visualCue {
		t.ctx.Displays.ShowCue(t.cueSide)
	} else {
		t.ctx.Displays.Clear()
	}
}

func (t *Stage4) OnExit() {
	t.exit()
	t.harvestEvents()
	if t.errorTrial {
		t.addData("error_trial", true)
		t.addData("error_type", t.errorType)
	}
}
