package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the current state
var ErrInvalidTransition = errors.New("invalid state transition")

// transitions is the KSeF submission lifecycle:
//
//	not-sent --SUBMIT--> pending --CONFIRM--> sent --ACCEPT--> accepted
//	error    --SUBMIT--> pending --FAIL-----> error
//	                                          sent --REJECT--> rejected
//
// SUBMIT is also accepted from pending so a send cut off before its final write can be
// repeated.
var transitions = map[State]map[Trigger]State{
	StateNotSent: {TriggerSubmit: StatePending},
	StateError:   {TriggerSubmit: StatePending},
	StatePending: {
		TriggerSubmit:  StatePending,
		TriggerConfirm: StateSent,
		TriggerFail:    StateError,
	},
	StateSent: {
		TriggerAccept: StateAccepted,
		TriggerReject: StateRejected,
	},
}

// Machine tracks the submission state of one invoice
type Machine struct {
	state State
}

// NewSubmissionMachine returns a machine positioned at state. An unknown state is treated
// as not-sent.
func NewSubmissionMachine(state State) *Machine {
	if !state.IsValid() {
		state = StateNotSent
	}
	return &Machine{state: state}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire returns true if the trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := transitions[m.state][trigger]
	return ok
}

// Fire moves the machine along trigger. The state is unchanged on error.
func (m *Machine) Fire(trigger Trigger) error {
	next, ok := transitions[m.state][trigger]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.state)
	}
	m.state = next
	return nil
}
