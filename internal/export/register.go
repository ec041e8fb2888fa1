// Package export writes the invoice register as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/pkg/utils"
)

// SheetName is the worksheet holding the register
const SheetName = "Rejestr"

// Headers are the register columns in order
var Headers = []string{
	"Numer", "Typ", "Data wystawienia", "Nabywca", "NIP nabywcy",
	"Netto", "VAT", "Brutto", "Zapłacono", "Do zapłaty", "Rachunek", "Status KSeF",
}

// InvoiceRegister renders invoices as one XLSX row each
type InvoiceRegister struct {
	logger *zap.Logger
}

// NewInvoiceRegister creates a register writer
func NewInvoiceRegister(logger *zap.Logger) *InvoiceRegister {
	return &InvoiceRegister{logger: logger}
}

// Write encodes the register workbook into w
func (r *InvoiceRegister) Write(w io.Writer, invoices []models.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name register sheet: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write register header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style register header: %w", err)
	}

	for i := range invoices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := registerRow(&invoices[i])
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write register row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "L", 16); err != nil {
		r.logger.Warn("Failed to set register column width", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write register: %w", err)
	}

	r.logger.Info("Invoice register written", zap.Int("rows", len(invoices)))
	return nil
}

func registerRow(inv *models.Invoice) []interface{} {
	totals := invoice.CalculateTotals(inv)
	return []interface{}{
		inv.InvoiceNumber,
		documentLabel(inv.DocumentType),
		inv.IssueDate,
		inv.Buyer.Name,
		utils.FormatNIP(inv.Buyer.NIP),
		amount(totals.TotalNet),
		amount(totals.TotalVat),
		amount(totals.TotalGross),
		amount(inv.PaidAmount.Float64()),
		amount(totals.Remaining),
		utils.FormatBankAccount(inv.BankAccount),
		string(inv.SubmissionStatus()),
	}
}

func documentLabel(t models.DocumentType) string {
	if t == models.DocumentTypeProforma {
		return "Proforma"
	}
	return "Faktura VAT"
}

func amount(v float64) float64 {
	return format.Round2(v).InexactFloat64()
}
