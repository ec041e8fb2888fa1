package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/application/port"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/format"
	"github.com/garyjia/faktura/internal/invoice"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
)

const msgBuyerIncomplete = "Uzupełnij dane nabywcy"

// Filter selects invoices by document type
type Filter string

// Filter values
const (
	FilterAll      Filter = "all"
	FilterVAT      Filter = "vat"
	FilterProforma Filter = "proforma"
)

// InvoiceDefaults prefill new drafts
type InvoiceDefaults struct {
	IssuePlace    string
	PaymentMethod string
	VatRate       float64
	Item          models.InvoiceItem
}

// DefaultInvoiceDefaults returns the stock draft values
func DefaultInvoiceDefaults() InvoiceDefaults {
	return InvoiceDefaults{
		IssuePlace:    "Warszawa",
		PaymentMethod: "Przelew",
		VatRate:       23,
		Item: models.InvoiceItem{
			Name:      "Usługi informatyczne",
			Quantity:  1,
			Unit:      "godz.",
			UnitPrice: 160,
		},
	}
}

// XMLDocument is an invoice serialized for the gateway together with its download name
type XMLDocument struct {
	FileName string
	Content  []byte
}

// InvoiceService manages invoices and proformas
type InvoiceService interface {
	NewDraft(ctx context.Context, docType models.DocumentType) (*models.Invoice, error)
	NextNumber(ctx context.Context, docType models.DocumentType) (string, error)
	Save(ctx context.Context, inv models.Invoice) (*models.Invoice, error)
	List(ctx context.Context, filter Filter) ([]models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
	ConvertToVAT(ctx context.Context, proformaID string) (*models.Invoice, error)
	Totals(ctx context.Context, id string) (invoice.Totals, error)
	AmountInWords(ctx context.Context, id string) (string, error)
	ExportJSON(ctx context.Context) ([]byte, error)
	ImportJSON(ctx context.Context, data []byte) (int, error)
	ExportXML(ctx context.Context, id string) (*XMLDocument, error)
}

type invoiceServiceImpl struct {
	invoices  port.InvoiceRepository
	buyers    port.BuyerRepository
	sellers   port.SellerRepository
	sequencer *invoice.Sequencer
	defaults  InvoiceDefaults
	publisher
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoices port.InvoiceRepository,
	buyers port.BuyerRepository,
	sellers port.SellerRepository,
	sequencer *invoice.Sequencer,
	defaults InvoiceDefaults,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoices:  invoices,
		buyers:    buyers,
		sellers:   sellers,
		sequencer: sequencer,
		defaults:  defaults,
		publisher: publisher{dispatcher: d, logger: logger},
	}
}

// NewDraft returns an unsaved invoice prefilled with today's dates, the stored seller and
// a preview of the next number. The number is assigned again when the draft is saved.
func (s *invoiceServiceImpl) NewDraft(ctx context.Context, docType models.DocumentType) (*models.Invoice, error) {
	if !docType.Valid() {
		return nil, invalid("documentType", string(docType), "unknown document type")
	}

	number, err := s.NextNumber(ctx, docType)
	if err != nil {
		return nil, err
	}

	seller, err := s.sellers.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}

	today := format.CurrentDate(s.sequencer.Now())
	draft := &models.Invoice{
		DocumentType:  docType,
		InvoiceNumber: number,
		IssueDate:     today,
		SaleDate:      today,
		PaymentDue:    today,
		IssuePlace:    s.defaults.IssuePlace,
		PaymentMethod: s.defaults.PaymentMethod,
		VatRate:       models.Amount(s.defaults.VatRate),
		Items:         []models.InvoiceItem{s.defaults.Item},
	}
	if seller != nil {
		draft.Seller = seller.Snapshot()
		draft.BankAccount = seller.BankAccount
	}
	return draft, nil
}

func (s *invoiceServiceImpl) NextNumber(ctx context.Context, docType models.DocumentType) (string, error) {
	if !docType.Valid() {
		return "", invalid("documentType", string(docType), "unknown document type")
	}

	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list invoices: %w", err)
	}
	return s.sequencer.Next(docType, invoices), nil
}

// Save stores a new invoice. A blank number is assigned from the sequencer against the
// collection being written. A buyer with an unknown NIP is added to the address book.
func (s *invoiceServiceImpl) Save(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	if !inv.DocumentType.Valid() {
		return nil, invalid("documentType", string(inv.DocumentType), "unknown document type")
	}
	if strings.TrimSpace(inv.Buyer.Name) == "" {
		return nil, invalid("buyer.name", inv.Buyer.Name, msgBuyerIncomplete)
	}
	if strings.TrimSpace(inv.Buyer.NIP) == "" {
		return nil, invalid("buyer.nip", inv.Buyer.NIP, msgBuyerIncomplete)
	}

	inv.ID = ""
	inv.KSeF = nil
	saved, err := s.add(ctx, inv)
	if err != nil {
		return nil, err
	}

	buyer := saved.Buyer
	buyer.ID, buyer.CreatedAt, buyer.UpdatedAt = "", nil, nil
	if _, err := s.buyers.AddIfNotExists(ctx, buyer); err != nil {
		s.logger.Warn("Failed to remember buyer",
			zap.String("invoice_id", saved.ID),
			zap.String("nip", buyer.NIP),
			zap.Error(err))
	}

	return saved, nil
}

func (s *invoiceServiceImpl) add(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	var numberFor func([]models.Invoice) string
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		numberFor = func(existing []models.Invoice) string {
			return s.sequencer.Next(inv.DocumentType, existing)
		}
	}

	saved, err := s.invoices.AddNumbered(ctx, inv, numberFor)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.TypeInvoiceCreated, saved.ID, map[string]any{
		"invoice_number": saved.InvoiceNumber,
		"document_type":  string(saved.DocumentType),
	})
	return saved, nil
}

// List returns invoices matching filter, newest first
func (s *invoiceServiceImpl) List(ctx context.Context, filter Filter) ([]models.Invoice, error) {
	if filter == "" {
		filter = FilterAll
	}
	if filter != FilterAll && filter != FilterVAT && filter != FilterProforma {
		return nil, invalid("type", string(filter), "expected all, vat or proforma")
	}

	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	filtered := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if filter == FilterAll || string(inv.DocumentType) == string(filter) {
			filtered = append(filtered, inv)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i].CreatedAt, filtered[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return filtered, nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	return inv, nil
}

// Update applies a partial correction. Submission state is changed only through the
// gateway operations.
func (s *invoiceServiceImpl) Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error) {
	updated, err := s.invoices.Update(ctx, id, patch)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}

	s.publish(ctx, event.TypeInvoiceUpdated, id, nil)
	return updated, nil
}

func (s *invoiceServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.invoices.Delete(ctx, id); err != nil {
		return notFound(err, ErrInvoiceNotFound)
	}

	s.publish(ctx, event.TypeInvoiceDeleted, id, nil)
	return nil
}

// ConvertToVAT creates a new VAT invoice from a proforma. The proforma itself is left
// unchanged; the new invoice references it by number.
func (s *invoiceServiceImpl) ConvertToVAT(ctx context.Context, proformaID string) (*models.Invoice, error) {
	proforma, err := s.Get(ctx, proformaID)
	if err != nil {
		return nil, err
	}
	if !proforma.IsProforma() {
		return nil, invalid("documentType", string(proforma.DocumentType), "only a proforma can be converted")
	}

	vat := *proforma
	vat.ID = ""
	vat.CreatedAt = nil
	vat.KSeF = nil
	vat.DocumentType = models.DocumentTypeVAT
	vat.InvoiceNumber = ""
	vat.ProformaReference = proforma.InvoiceNumber
	vat.Items = append([]models.InvoiceItem(nil), proforma.Items...)

	converted, err := s.add(ctx, vat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert proforma %s: %w", proformaID, err)
	}

	s.logger.Info("Proforma converted",
		zap.String("proforma_number", proforma.InvoiceNumber),
		zap.String("invoice_number", converted.InvoiceNumber))
	return converted, nil
}

func (s *invoiceServiceImpl) Totals(ctx context.Context, id string) (invoice.Totals, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return invoice.Totals{}, err
	}
	return invoice.CalculateTotals(inv), nil
}

// AmountInWords spells the whole-złoty part of the gross total
func (s *invoiceServiceImpl) AmountInWords(ctx context.Context, id string) (string, error) {
	totals, err := s.Totals(ctx, id)
	if err != nil {
		return "", err
	}

	words, err := format.NumberToWords(int64(math.Floor(totals.TotalGross)))
	if err != nil {
		return "", fmt.Errorf("failed to spell amount %.2f: %w", totals.TotalGross, err)
	}
	return words, nil
}

func (s *invoiceServiceImpl) ExportJSON(ctx context.Context) ([]byte, error) {
	data, err := s.invoices.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export invoices: %w", err)
	}
	return data, nil
}

// ImportJSON replaces every stored invoice with the payload
func (s *invoiceServiceImpl) ImportJSON(ctx context.Context, data []byte) (int, error) {
	count, err := s.invoices.Import(ctx, data)
	if err != nil {
		return 0, err
	}

	s.publish(ctx, event.TypeInvoicesImported, "", map[string]any{"count": count})
	return count, nil
}

// ExportXML serializes a VAT invoice for the gateway. Proformas fail with
// ksef.ErrProformaNotAllowed.
func (s *invoiceServiceImpl) ExportXML(ctx context.Context, id string) (*XMLDocument, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := ksef.BuildXML(inv)
	if err != nil {
		if errors.Is(err, ksef.ErrProformaNotAllowed) {
			s.logger.Warn("Proforma XML export rejected", zap.String("invoice_id", id))
		}
		return nil, err
	}

	return &XMLDocument{FileName: ksef.XMLFileName(inv.InvoiceNumber), Content: content}, nil
}
