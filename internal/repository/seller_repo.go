package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// SellerRepository stores the single seller profile
type SellerRepository struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// NewSellerRepository creates a new seller repository
func NewSellerRepository(backend Backend, logger *zap.Logger) *SellerRepository {
	return &SellerRepository{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the stored seller, or nil when none was saved
func (r *SellerRepository) Get(ctx context.Context) (*models.SellerData, error) {
	seller, version, err := load[*models.SellerData](ctx, r.backend, KeySeller)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, nil
	}
	return seller, nil
}

// Save overwrites the seller. The id defaults to seller-1, createdAt is kept from the first
// save and updatedAt is refreshed.
func (r *SellerRepository) Save(ctx context.Context, seller models.SellerData) (*models.SellerData, error) {
	var saved models.SellerData

	err := mutate(ctx, r.backend, r.logger, KeySeller, func(current **models.SellerData) error {
		now := r.now().UTC()
		saved = seller
		if saved.ID == "" {
			saved.ID = models.SellerRecordID
		}
		if saved.CreatedAt == nil {
			if *current != nil && (*current).CreatedAt != nil {
				saved.CreatedAt = (*current).CreatedAt
			} else {
				saved.CreatedAt = &now
			}
		}
		saved.UpdatedAt = &now
		*current = &saved
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save seller: %w", err)
	}

	r.logger.Info("Seller saved", zap.String("nip", saved.NIP))
	return &saved, nil
}

// Exists reports whether a seller was saved
func (r *SellerRepository) Exists(ctx context.Context) (bool, error) {
	_, version, err := r.backend.Get(ctx, KeySeller)
	if err != nil {
		return false, err
	}
	return version > 0, nil
}

// Clear removes the stored seller
func (r *SellerRepository) Clear(ctx context.Context) error {
	return r.backend.Delete(ctx, KeySeller)
}
