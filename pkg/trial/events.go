package trial

// Event types recorded in a trial's event log. The strings are part of
// the persisted data format and match what analysis pipelines expect.
const (
	EventLeftLeverPress        = "left_lever_press"
	EventLeftLeverRelease      = "left_lever_release"
	EventRightLeverPress       = "right_lever_press"
	EventRightLeverRelease     = "right_lever_release"
	EventNosePortEntry         = "nose_port_entry"
	EventNosePortExit          = "nose_port_exit"
	EventWaterDeliveryStart    = "water_delivery_start"
	EventWaterDeliveryComplete = "water_delivery_complete"
	EventRewardTriggered       = "reward_triggered"
	EventVisualCueStart        = "visual_cue_start"
	EventVisualCueEnd          = "visual_cue_end"
	EventTrialStart            = "trial_start"
	EventTrialEnd              = "trial_end"
	EventTrialCueTimeout       = "trial_cue_timeout"
)

// Event is one timestamped occurrence within a trial. Duration is only
// set on events that close a held input, such as a lever release.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Duration  int64  `json:"duration,omitempty"`
}
