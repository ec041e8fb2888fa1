package port

import (
	"context"

	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
)

// KSeFGateway defines the operations of the national e-invoicing gateway
type KSeFGateway interface {
	Configure(cfg models.KSeFConfig) error
	IsConfigured() bool
	SendInvoice(ctx context.Context, inv *models.Invoice) ksef.SendResult
	CheckStatus(ctx context.Context, referenceNumber string) (ksef.StatusResult, error)
	DownloadUPO(ctx context.Context, referenceNumber string) (string, error)
}
