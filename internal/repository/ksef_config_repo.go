package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// KSeFConfigRepository stores the gateway credentials
type KSeFConfigRepository struct {
	backend Backend
	logger  *zap.Logger
}

// NewKSeFConfigRepository creates a new gateway configuration repository
func NewKSeFConfigRepository(backend Backend, logger *zap.Logger) *KSeFConfigRepository {
	return &KSeFConfigRepository{
		backend: backend,
		logger:  logger,
	}
}

// Get returns the stored configuration, or nil when none was set
func (r *KSeFConfigRepository) Get(ctx context.Context) (*models.KSeFConfig, error) {
	cfg, version, err := load[*models.KSeFConfig](ctx, r.backend, KeyKSeFConfig)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, nil
	}
	return cfg, nil
}

// Set replaces the stored configuration
func (r *KSeFConfigRepository) Set(ctx context.Context, cfg models.KSeFConfig) error {
	err := mutate(ctx, r.backend, r.logger, KeyKSeFConfig, func(current **models.KSeFConfig) error {
		*current = &cfg
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save KSeF config: %w", err)
	}
	return nil
}

// Clear removes the stored configuration
func (r *KSeFConfigRepository) Clear(ctx context.Context) error {
	return r.backend.Delete(ctx, KeyKSeFConfig)
}
