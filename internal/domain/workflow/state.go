package workflow

import "github.com/garyjia/faktura/internal/models"

// State is a KSeF submission state of an invoice
type State string

// Submission states, spelled like the stored models.KSeFStatus values
const (
	StateNotSent  State = State(models.KSeFStatusNotSent)
	StatePending  State = State(models.KSeFStatusPending)
	StateSent     State = State(models.KSeFStatusSent)
	StateAccepted State = State(models.KSeFStatusAccepted)
	StateRejected State = State(models.KSeFStatusRejected)
	StateError    State = State(models.KSeFStatusError)
)

var validStates = map[State]bool{
	StateNotSent:  true,
	StatePending:  true,
	StateSent:     true,
	StateAccepted: true,
	StateRejected: true,
	StateError:    true,
}

var terminalStates = map[State]bool{
	StateAccepted: true,
	StateRejected: true,
}

// FromStatus converts a stored status into a state
func FromStatus(status models.KSeFStatus) State {
	return State(status)
}

// Status converts the state back into the stored status
func (s State) Status() models.KSeFStatus {
	return models.KSeFStatus(s)
}

// IsTerminal returns true if the gateway decision is final
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known submission state
func (s State) IsValid() bool {
	return validStates[s]
}
