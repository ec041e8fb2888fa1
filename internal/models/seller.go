package models

import "time"

// SellerRecordID is the fixed id of the single stored seller
const SellerRecordID = "seller-1"

// SellerData is the stored seller profile used to prefill new invoices
type SellerData struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	City        string     `json:"city"`
	NIP         string     `json:"nip"`
	BankAccount string     `json:"bankAccount"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Website     string     `json:"website,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Snapshot returns the invoice-embedded copy of the seller
func (s SellerData) Snapshot() Seller {
	return Seller{
		Name:    s.Name,
		Address: s.Address,
		City:    s.City,
		NIP:     s.NIP,
	}
}
