package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/application/port"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/models"
)

// BuyerService manages the buyer address book
type BuyerService interface {
	List(ctx context.Context) ([]models.Buyer, error)
	Search(ctx context.Context, query string) ([]models.Buyer, error)
	Get(ctx context.Context, id string) (*models.Buyer, error)
	FindByNIP(ctx context.Context, nip string) (*models.Buyer, error)
	Add(ctx context.Context, buyer models.Buyer) (*models.Buyer, error)
	Update(ctx context.Context, id string, patch models.BuyerPatch) (*models.Buyer, error)
	Delete(ctx context.Context, id string) error
}

type buyerServiceImpl struct {
	repo port.BuyerRepository
	publisher
}

// NewBuyerService creates a new BuyerService
func NewBuyerService(repo port.BuyerRepository, d dispatcher.Dispatcher, logger *zap.Logger) BuyerService {
	return &buyerServiceImpl{
		repo:      repo,
		publisher: publisher{dispatcher: d, logger: logger},
	}
}

func (s *buyerServiceImpl) List(ctx context.Context) ([]models.Buyer, error) {
	buyers, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyers: %w", err)
	}
	return buyers, nil
}

func (s *buyerServiceImpl) Search(ctx context.Context, query string) ([]models.Buyer, error) {
	buyers, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search buyers: %w", err)
	}
	return buyers, nil
}

func (s *buyerServiceImpl) Get(ctx context.Context, id string) (*models.Buyer, error) {
	buyer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrBuyerNotFound)
	}
	return buyer, nil
}

// FindByNIP returns the buyer with the same NIP digits, or nil
func (s *buyerServiceImpl) FindByNIP(ctx context.Context, nip string) (*models.Buyer, error) {
	buyer, err := s.repo.FindByNIP(ctx, nip)
	if err != nil {
		return nil, fmt.Errorf("failed to find buyer: %w", err)
	}
	return buyer, nil
}

func (s *buyerServiceImpl) Add(ctx context.Context, buyer models.Buyer) (*models.Buyer, error) {
	if err := validateParty(buyer.Name, buyer.Address, buyer.City, buyer.NIP); err != nil {
		return nil, err
	}

	added, err := s.repo.Add(ctx, buyer)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.TypeBuyerCreated, added.ID, map[string]any{"nip": added.NIP})
	return added, nil
}

// Update validates the buyer as it would look after the patch before storing it
func (s *buyerServiceImpl) Update(ctx context.Context, id string, patch models.BuyerPatch) (*models.Buyer, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	patch.Apply(&merged)
	if err := validateParty(merged.Name, merged.Address, merged.City, merged.NIP); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, notFound(err, ErrBuyerNotFound)
	}

	s.publish(ctx, event.TypeBuyerUpdated, id, nil)
	return updated, nil
}

func (s *buyerServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, ErrBuyerNotFound)
	}

	s.publish(ctx, event.TypeBuyerDeleted, id, nil)
	return nil
}
