package models

import "time"

// DocumentType distinguishes binding VAT invoices from proformas
type DocumentType string

// Document type constants
const (
	DocumentTypeVAT      DocumentType = "vat"
	DocumentTypeProforma DocumentType = "proforma"
)

// Valid reports whether t is a known document type
func (t DocumentType) Valid() bool {
	return t == DocumentTypeVAT || t == DocumentTypeProforma
}

// Seller is the seller snapshot embedded in an invoice. It carries no bank account; the
// account lives on the invoice itself.
type Seller struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"` // free text with an embedded NN-NNN postal code
	NIP     string `json:"nip"`
}

// Buyer is a stored buyer record, also embedded in invoices as a snapshot
type Buyer struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	NIP       string     `json:"nip"`
	Address   string     `json:"address"`
	City      string     `json:"city"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// InvoiceItem is a single invoice line; VAT is invoice-wide
type InvoiceItem struct {
	Name      string `json:"name"`
	Quantity  Amount `json:"quantity"`
	Unit      string `json:"unit"`
	UnitPrice Amount `json:"unitPrice"`
}

// Invoice is a VAT invoice or proforma. Dates are DD-MM-YYYY strings. Totals are always
// derived from items and vatRate and never stored.
type Invoice struct {
	ID                string        `json:"id,omitempty"`
	DocumentType      DocumentType  `json:"documentType"`
	InvoiceNumber     string        `json:"invoiceNumber"`
	IssueDate         string        `json:"issueDate"`
	SaleDate          string        `json:"saleDate"`
	PaymentDue        string        `json:"paymentDue"`
	IssuePlace        string        `json:"issuePlace"`
	PaymentMethod     string        `json:"paymentMethod"`
	VatRate           Amount        `json:"vatRate"`
	Seller            Seller        `json:"seller"`
	Buyer             Buyer         `json:"buyer"`
	Items             []InvoiceItem `json:"items"`
	PaidAmount        Amount        `json:"paidAmount"`
	BankAccount       string        `json:"bankAccount"`
	CreatedAt         *time.Time    `json:"createdAt,omitempty"`
	ProformaReference string        `json:"proformaReference,omitempty"`
	KSeF              *KSeFState    `json:"ksef,omitempty"`
}

// IsProforma reports whether the invoice is a proforma
func (i *Invoice) IsProforma() bool {
	return i.DocumentType == DocumentTypeProforma
}

// SubmissionStatus returns the gateway status, not-sent when the invoice was never submitted
func (i *Invoice) SubmissionStatus() KSeFStatus {
	if i.KSeF == nil || i.KSeF.Status == "" {
		return KSeFStatusNotSent
	}
	return i.KSeF.Status
}

// InvoicePatch is a partial invoice correction. Nil fields are left untouched.
type InvoicePatch struct {
	InvoiceNumber *string        `json:"invoiceNumber,omitempty"`
	IssueDate     *string        `json:"issueDate,omitempty"`
	SaleDate      *string        `json:"saleDate,omitempty"`
	PaymentDue    *string        `json:"paymentDue,omitempty"`
	IssuePlace    *string        `json:"issuePlace,omitempty"`
	PaymentMethod *string        `json:"paymentMethod,omitempty"`
	VatRate       *Amount        `json:"vatRate,omitempty"`
	Seller        *Seller        `json:"seller,omitempty"`
	Buyer         *Buyer         `json:"buyer,omitempty"`
	Items         *[]InvoiceItem `json:"items,omitempty"`
	PaidAmount    *Amount        `json:"paidAmount,omitempty"`
	BankAccount   *string        `json:"bankAccount,omitempty"`
}

// Apply merges the patch into inv
func (p InvoicePatch) Apply(inv *Invoice) {
	setString(&inv.InvoiceNumber, p.InvoiceNumber)
	setString(&inv.IssueDate, p.IssueDate)
	setString(&inv.SaleDate, p.SaleDate)
	setString(&inv.PaymentDue, p.PaymentDue)
	setString(&inv.IssuePlace, p.IssuePlace)
	setString(&inv.PaymentMethod, p.PaymentMethod)
	setString(&inv.BankAccount, p.BankAccount)
	if p.VatRate != nil {
		inv.VatRate = *p.VatRate
	}
	if p.Seller != nil {
		inv.Seller = *p.Seller
	}
	if p.Buyer != nil {
		inv.Buyer = *p.Buyer
	}
	if p.Items != nil {
		inv.Items = make([]InvoiceItem, len(*p.Items))
		copy(inv.Items, *p.Items)
	}
	if p.PaidAmount != nil {
		inv.PaidAmount = *p.PaidAmount
	}
}

// BuyerPatch is a partial buyer update. Nil fields are left untouched.
type BuyerPatch struct {
	Name    *string `json:"name,omitempty"`
	NIP     *string `json:"nip,omitempty"`
	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
}

// Apply merges the patch into b
func (p BuyerPatch) Apply(b *Buyer) {
	setString(&b.Name, p.Name)
	setString(&b.NIP, p.NIP)
	setString(&b.Address, p.Address)
	setString(&b.City, p.City)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
