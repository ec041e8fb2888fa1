package models

import "time"

// KSeFStatus is the gateway submission status of an invoice
type KSeFStatus string

// Submission status constants
const (
	KSeFStatusNotSent  KSeFStatus = "not-sent"
	KSeFStatusPending  KSeFStatus = "pending"
	KSeFStatusSent     KSeFStatus = "sent"
	KSeFStatusAccepted KSeFStatus = "accepted"
	KSeFStatusRejected KSeFStatus = "rejected"
	KSeFStatusError    KSeFStatus = "error"
)

// InFlight reports whether the gateway may still change the status
func (s KSeFStatus) InFlight() bool {
	return s == KSeFStatusPending || s == KSeFStatusSent
}

// KSeFState is the submission state embedded in an invoice
type KSeFState struct {
	Status          KSeFStatus `json:"status"`
	ReferenceNumber string     `json:"referenceNumber,omitempty"`
	KSeFNumber      string     `json:"ksefNumber,omitempty"`
	UPO             string     `json:"upo,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty"`
}

// KSeFStatePatch updates only the submission fields it names
type KSeFStatePatch struct {
	Status          *KSeFStatus
	ReferenceNumber *string
	KSeFNumber      *string
	UPO             *string
	ErrorMessage    *string
	SentAt          *time.Time
}

// Apply merges the patch into the invoice's submission state, creating it when absent
func (p KSeFStatePatch) Apply(inv *Invoice) {
	if inv.KSeF == nil {
		inv.KSeF = &KSeFState{Status: KSeFStatusNotSent}
	}
	state := inv.KSeF
	if p.Status != nil {
		state.Status = *p.Status
	}
	setString(&state.ReferenceNumber, p.ReferenceNumber)
	setString(&state.KSeFNumber, p.KSeFNumber)
	setString(&state.UPO, p.UPO)
	setString(&state.ErrorMessage, p.ErrorMessage)
	if p.SentAt != nil {
		sentAt := *p.SentAt
		state.SentAt = &sentAt
	}
}

// KSeFEnvironment selects the gateway endpoint
type KSeFEnvironment string

// Gateway environments
const (
	KSeFEnvironmentTest       KSeFEnvironment = "test"
	KSeFEnvironmentProduction KSeFEnvironment = "production"
)

// KSeFConfig holds the gateway credentials
type KSeFConfig struct {
	Environment KSeFEnvironment `json:"environment"`
	Token       string          `json:"token"`
}
