package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/pkg/utils"
)

// BuyerRepository stores the buyer address book
type BuyerRepository struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewBuyerRepository creates a new buyer repository
func NewBuyerRepository(backend Backend, logger *zap.Logger) *BuyerRepository {
	return &BuyerRepository{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// List returns every stored buyer in insertion order
func (r *BuyerRepository) List(ctx context.Context) ([]models.Buyer, error) {
	buyers, _, err := load[[]models.Buyer](ctx, r.backend, KeyBuyers)
	if err != nil {
		return nil, err
	}
	if buyers == nil {
		buyers = []models.Buyer{}
	}
	return buyers, nil
}

// Get returns the buyer with id
func (r *BuyerRepository) Get(ctx context.Context, id string) (*models.Buyer, error) {
	buyers, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range buyers {
		if buyers[i].ID == id {
			return &buyers[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

// FindByNIP returns the first buyer whose NIP has the same digits, or nil
func (r *BuyerRepository) FindByNIP(ctx context.Context, nip string) (*models.Buyer, error) {
	buyers, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return findByNIP(buyers, nip), nil
}

func findByNIP(buyers []models.Buyer, nip string) *models.Buyer {
	cleaned := utils.DigitsOnly(nip)
	for i := range buyers {
		if utils.DigitsOnly(buyers[i].NIP) == cleaned {
			return &buyers[i]
		}
	}
	return nil
}

// Search matches name and city case-insensitively and the raw NIP as typed.
// An empty query returns every buyer.
func (r *BuyerRepository) Search(ctx context.Context, query string) ([]models.Buyer, error) {
	buyers, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return buyers, nil
	}

	matches := make([]models.Buyer, 0)
	for _, b := range buyers {
		if strings.Contains(strings.ToLower(b.Name), q) ||
			strings.Contains(b.NIP, q) ||
			strings.Contains(strings.ToLower(b.City), q) {
			matches = append(matches, b)
		}
	}
	return matches, nil
}

// Add stores a new buyer with a generated id and fresh timestamps
func (r *BuyerRepository) Add(ctx context.Context, buyer models.Buyer) (*models.Buyer, error) {
	var added models.Buyer

	err := mutate(ctx, r.backend, r.logger, KeyBuyers, func(buyers *[]models.Buyer) error {
		added = r.stamp(buyer)
		*buyers = append(*buyers, added)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add buyer: %w", err)
	}

	r.logger.Info("Buyer added", zap.String("buyer_id", added.ID), zap.String("nip", added.NIP))
	return &added, nil
}

// AddIfNotExists stores buyer unless its NIP is blank or already known. It returns nil
// when nothing was added.
func (r *BuyerRepository) AddIfNotExists(ctx context.Context, buyer models.Buyer) (*models.Buyer, error) {
	if strings.TrimSpace(buyer.NIP) == "" {
		return nil, nil
	}

	var added *models.Buyer

	err := mutate(ctx, r.backend, r.logger, KeyBuyers, func(buyers *[]models.Buyer) error {
		added = nil
		if findByNIP(*buyers, buyer.NIP) != nil {
			return errSkipWrite
		}
		b := r.stamp(buyer)
		added = &b
		*buyers = append(*buyers, b)
		return nil
	})
	if errors.Is(err, errSkipWrite) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add buyer: %w", err)
	}

	r.logger.Info("Buyer auto-added", zap.String("buyer_id", added.ID), zap.String("nip", added.NIP))
	return added, nil
}

func (r *BuyerRepository) stamp(buyer models.Buyer) models.Buyer {
	now := r.now().UTC()
	buyer.ID = r.newID()
	buyer.CreatedAt = &now
	buyer.UpdatedAt = &now
	return buyer
}

// Update merges patch into the buyer with id and refreshes updatedAt
func (r *BuyerRepository) Update(ctx context.Context, id string, patch models.BuyerPatch) (*models.Buyer, error) {
	var updated models.Buyer

	err := mutate(ctx, r.backend, r.logger, KeyBuyers, func(buyers *[]models.Buyer) error {
		for i := range *buyers {
			b := &(*buyers)[i]
			if b.ID != id {
				continue
			}
			patch.Apply(b)
			now := r.now().UTC()
			b.UpdatedAt = &now
			updated = *b
			return nil
		}
		return ErrRecordNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update buyer %s: %w", id, err)
	}
	return &updated, nil
}

// Delete removes the buyer with id
func (r *BuyerRepository) Delete(ctx context.Context, id string) error {
	err := mutate(ctx, r.backend, r.logger, KeyBuyers, func(buyers *[]models.Buyer) error {
		kept := make([]models.Buyer, 0, len(*buyers))
		for _, b := range *buyers {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		if len(kept) == len(*buyers) {
			return ErrRecordNotFound
		}
		*buyers = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete buyer %s: %w", id, err)
	}
	return nil
}
