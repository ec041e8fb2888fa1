package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"  // invoice handed to the gateway
	TriggerConfirm Trigger = "CONFIRM" // gateway returned a reference number
	TriggerFail    Trigger = "FAIL"    // gateway refused or could not be reached
	TriggerAccept  Trigger = "ACCEPT"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
