package event

// Type identifies the type of domain event
type Type string

const (
	TypeSellerSaved       Type = "seller.saved"
	TypeBuyerCreated      Type = "buyer.created"
	TypeBuyerUpdated      Type = "buyer.updated"
	TypeBuyerDeleted      Type = "buyer.deleted"
	TypeInvoiceCreated    Type = "invoice.created"
	TypeInvoiceUpdated    Type = "invoice.updated"
	TypeInvoiceDeleted    Type = "invoice.deleted"
	TypeInvoicesImported  Type = "invoices.imported"
	TypeKSeFStatusChanged Type = "ksef.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSellerSaved,
		TypeBuyerCreated,
		TypeBuyerUpdated,
		TypeBuyerDeleted,
		TypeInvoiceCreated,
		TypeInvoiceUpdated,
		TypeInvoiceDeleted,
		TypeInvoicesImported,
		TypeKSeFStatusChanged:
		return true
	default:
		return false
	}
}
