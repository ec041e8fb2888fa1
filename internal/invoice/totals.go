// Package invoice computes invoice totals and assigns document numbers.
package invoice

import "github.com/garyjia/faktura/internal/models"

// Totals are the derived invoice amounts. They are never stored and are not rounded
// before display.
type Totals struct {
	TotalNet   float64 `json:"totalNet"`
	TotalVat   float64 `json:"totalVat"`
	TotalGross float64 `json:"totalGross"`
	Remaining  float64 `json:"remaining"` // may be negative for overpaid invoices
}

// Line holds the amounts of a single invoice line
type Line struct {
	Net   float64
	Vat   float64
	Gross float64
}

// CalculateTotals sums the invoice items into net, VAT, gross and the remaining balance
func CalculateTotals(inv *models.Invoice) Totals {
	var totalNet float64
	for _, item := range inv.Items {
		totalNet += item.Quantity.Float64() * item.UnitPrice.Float64()
	}

	totalVat := totalNet * (inv.VatRate.Float64() / 100)
	totalGross := totalNet + totalVat

	return Totals{
		TotalNet:   totalNet,
		TotalVat:   totalVat,
		TotalGross: totalGross,
		Remaining:  totalGross - inv.PaidAmount.Float64(),
	}
}

// LineTotals computes a single line at the invoice-wide VAT rate
func LineTotals(item models.InvoiceItem, vatRate models.Amount) Line {
	net := item.Quantity.Float64() * item.UnitPrice.Float64()
	vat := net * (vatRate.Float64() / 100)
	return Line{Net: net, Vat: vat, Gross: net + vat}
}
