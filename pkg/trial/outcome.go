package trial

// Outcome classifies how a trial ended. The string values appear in
// persisted run documents under the trial's "trial_outcome" key.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeFailureNoseport   Outcome = "failure_noseport"
	OutcomeFailureNoLever    Outcome = "failure_nolever"
	OutcomeFailureTimeout    Outcome = "failure_timeout"
	OutcomeFailureWrongLever Outcome = "failure_wronglever"
	OutcomeFailureOther      Outcome = "failure_other"
	OutcomeCancelled         Outcome = "cancelled"
)

// Failed reports whether the outcome is one of the failure modes.
// Cancellation is not a failure; it never triggers punishment time.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailureNoseport, OutcomeFailureNoLever, OutcomeFailureTimeout,
		OutcomeFailureWrongLever, OutcomeFailureOther:
		return true
	}
	return false
}
