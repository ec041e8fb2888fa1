package port

import (
	"context"

	"github.com/garyjia/faktura/internal/models"
)

// SellerRepository defines persistence operations for the single seller profile
type SellerRepository interface {
	Get(ctx context.Context) (*models.SellerData, error)
	Save(ctx context.Context, seller models.SellerData) (*models.SellerData, error)
	Exists(ctx context.Context) (bool, error)
}

// BuyerRepository defines persistence operations for the buyer address book
type BuyerRepository interface {
	List(ctx context.Context) ([]models.Buyer, error)
	Get(ctx context.Context, id string) (*models.Buyer, error)
	FindByNIP(ctx context.Context, nip string) (*models.Buyer, error)
	Search(ctx context.Context, query string) ([]models.Buyer, error)
	Add(ctx context.Context, buyer models.Buyer) (*models.Buyer, error)
	AddIfNotExists(ctx context.Context, buyer models.Buyer) (*models.Buyer, error)
	Update(ctx context.Context, id string, patch models.BuyerPatch) (*models.Buyer, error)
	Delete(ctx context.Context, id string) error
}

// InvoiceRepository defines persistence operations for the invoice history.
// AddNumbered assigns the number with numberFor from the collection being written.
type InvoiceRepository interface {
	List(ctx context.Context) ([]models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Add(ctx context.Context, inv models.Invoice) (*models.Invoice, error)
	AddNumbered(ctx context.Context, inv models.Invoice, numberFor func(existing []models.Invoice) string) (*models.Invoice, error)
	Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error)
	UpdateKSeF(ctx context.Context, id string, patch models.KSeFStatePatch) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (int, error)
}

// KSeFConfigRepository defines persistence operations for gateway credentials
type KSeFConfigRepository interface {
	Get(ctx context.Context) (*models.KSeFConfig, error)
	Set(ctx context.Context, cfg models.KSeFConfig) error
}
