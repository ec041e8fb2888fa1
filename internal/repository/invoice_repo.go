package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// ErrInvalidImport is returned when an import payload is not an invoice list
var ErrInvalidImport = errors.New("import is not an invoice list")

// NumberFunc picks the number of a new invoice from the collection it is added to
type NumberFunc = func(existing []models.Invoice) string

// InvoiceRepository stores the invoice history
type InvoiceRepository struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(backend Backend, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// List returns every stored invoice in insertion order
func (r *InvoiceRepository) List(ctx context.Context) ([]models.Invoice, error) {
	invoices, _, err := load[[]models.Invoice](ctx, r.backend, KeyInvoices)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return invoices, nil
}

// Get returns the invoice with id
func (r *InvoiceRepository) Get(ctx context.Context, id string) (*models.Invoice, error) {
	invoices, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if invoices[i].ID == id {
			return &invoices[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

// Add stores inv with a generated id and createdAt
func (r *InvoiceRepository) Add(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	return r.AddNumbered(ctx, inv, nil)
}

// AddNumbered stores inv like Add. When number is not nil it assigns the invoice number
// from the same collection snapshot the write is checked against, so two concurrent saves
// cannot both take the same number.
func (r *InvoiceRepository) AddNumbered(ctx context.Context, inv models.Invoice, number NumberFunc) (*models.Invoice, error) {
	var added models.Invoice

	err := mutate(ctx, r.backend, r.logger, KeyInvoices, func(invoices *[]models.Invoice) error {
		added = inv
		if number != nil {
			added.InvoiceNumber = number(*invoices)
		}
		now := r.now().UTC()
		added.ID = r.newID()
		added.CreatedAt = &now
		*invoices = append(*invoices, added)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add invoice: %w", err)
	}

	r.logger.Info("Invoice added",
		zap.String("invoice_id", added.ID),
		zap.String("invoice_number", added.InvoiceNumber),
		zap.String("document_type", string(added.DocumentType)))
	return &added, nil
}

// Update merges a partial correction into the invoice with id
func (r *InvoiceRepository) Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error) {
	updated, err := r.modify(ctx, id, patch.Apply)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %s: %w", id, err)
	}
	return updated, nil
}

// UpdateKSeF merges gateway submission fields into the invoice with id, leaving every other
// invoice field untouched
func (r *InvoiceRepository) UpdateKSeF(ctx context.Context, id string, patch models.KSeFStatePatch) (*models.Invoice, error) {
	updated, err := r.modify(ctx, id, patch.Apply)
	if err != nil {
		return nil, fmt.Errorf("failed to update KSeF state of invoice %s: %w", id, err)
	}
	return updated, nil
}

func (r *InvoiceRepository) modify(ctx context.Context, id string, apply func(*models.Invoice)) (*models.Invoice, error) {
	var updated models.Invoice

	err := mutate(ctx, r.backend, r.logger, KeyInvoices, func(invoices *[]models.Invoice) error {
		for i := range *invoices {
			inv := &(*invoices)[i]
			if inv.ID != id {
				continue
			}
			apply(inv)
			updated = *inv
			return nil
		}
		return ErrRecordNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the invoice with id
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	err := mutate(ctx, r.backend, r.logger, KeyInvoices, func(invoices *[]models.Invoice) error {
		kept := make([]models.Invoice, 0, len(*invoices))
		for _, inv := range *invoices {
			if inv.ID != id {
				kept = append(kept, inv)
			}
		}
		if len(kept) == len(*invoices) {
			return ErrRecordNotFound
		}
		*invoices = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete invoice %s: %w", id, err)
	}

	r.logger.Info("Invoice deleted", zap.String("invoice_id", id))
	return nil
}

// Export returns the whole collection as JSON indented by two spaces
func (r *InvoiceRepository) Export(ctx context.Context) ([]byte, error) {
	invoices, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(invoices, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoices: %w", err)
	}
	return data, nil
}

// Import replaces the whole collection with data, even when the stored collection is
// corrupt. The payload must decode as an invoice list; nothing is written otherwise.
func (r *InvoiceRepository) Import(ctx context.Context, data []byte) (int, error) {
	var imported []models.Invoice
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if imported == nil {
		return 0, fmt.Errorf("%w: null payload", ErrInvalidImport)
	}

	if err := replace(ctx, r.backend, r.logger, KeyInvoices, imported); err != nil {
		return 0, fmt.Errorf("failed to import invoices: %w", err)
	}

	r.logger.Info("Invoices imported", zap.Int("count", len(imported)))
	return len(imported), nil
}
