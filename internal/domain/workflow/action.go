package workflow

// Action is a KSeF operation a user can start for an invoice
type Action string

const (
	ActionSend        Action = "send"
	ActionCheckStatus Action = "check-status"
)

// actionTriggers maps each action to the trigger that must be permitted for it
var actionTriggers = []struct {
	action  Action
	trigger Trigger
}{
	{ActionSend, TriggerSubmit},
	{ActionCheckStatus, TriggerAccept},
}

// Actions returns the user actions available in the current state
func (m *Machine) Actions() []Action {
	actions := make([]Action, 0, len(actionTriggers))
	for _, at := range actionTriggers {
		if m.CanFire(at.trigger) {
			actions = append(actions, at.action)
		}
	}
	return actions
}
