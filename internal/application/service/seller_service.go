package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/application/port"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/pkg/utils"
)

// Field messages shared by seller and buyer validation
const (
	msgNameRequired       = "Nazwa firmy jest wymagana"
	msgAddressRequired    = "Adres jest wymagany"
	msgCityRequired       = "Miasto i kod pocztowy są wymagane"
	msgPostalCodeInvalid  = "Podaj kod pocztowy w formacie XX-XXX"
	msgNIPRequired        = "NIP jest wymagany"
	msgNIPInvalid         = "Nieprawidłowy NIP (wymagane 10 cyfr z poprawną sumą kontrolną)"
	msgBankAccountInvalid = "Nieprawidłowy numer konta (wymagany format PL + 26 cyfr)"
)

// SellerService manages the seller profile
type SellerService interface {
	Get(ctx context.Context) (*models.SellerData, error)
	Save(ctx context.Context, seller models.SellerData) (*models.SellerData, error)
	HasSeller(ctx context.Context) (bool, error)
}

type sellerServiceImpl struct {
	repo port.SellerRepository
	publisher
}

// NewSellerService creates a new SellerService
func NewSellerService(repo port.SellerRepository, d dispatcher.Dispatcher, logger *zap.Logger) SellerService {
	return &sellerServiceImpl{
		repo:      repo,
		publisher: publisher{dispatcher: d, logger: logger},
	}
}

// Get returns the stored seller, nil when setup has not happened yet
func (s *sellerServiceImpl) Get(ctx context.Context) (*models.SellerData, error) {
	seller, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return seller, nil
}

// Save validates and stores the seller profile. The bank account is optional but must
// be a valid Polish IBAN when given.
func (s *sellerServiceImpl) Save(ctx context.Context, seller models.SellerData) (*models.SellerData, error) {
	if err := validateParty(seller.Name, seller.Address, seller.City, seller.NIP); err != nil {
		return nil, err
	}
	if seller.BankAccount != "" && !utils.ValidateBankAccount(seller.BankAccount) {
		return nil, invalid("bankAccount", seller.BankAccount, msgBankAccountInvalid)
	}

	saved, err := s.repo.Save(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("failed to save seller: %w", err)
	}

	s.logger.Info("Seller saved", zap.String("nip", saved.NIP))
	s.publish(ctx, event.TypeSellerSaved, saved.ID, map[string]any{"nip": saved.NIP})
	return saved, nil
}

// HasSeller reports whether the seller setup has been completed
func (s *sellerServiceImpl) HasSeller(ctx context.Context) (bool, error) {
	exists, err := s.repo.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check seller: %w", err)
	}
	return exists, nil
}

// validateParty checks the fields every seller and buyer must carry, in form order
func validateParty(name, address, city, nip string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("name", name, msgNameRequired)
	case strings.TrimSpace(address) == "":
		return invalid("address", address, msgAddressRequired)
	case strings.TrimSpace(city) == "":
		return invalid("city", city, msgCityRequired)
	case !utils.ValidatePostalCode(city):
		return invalid("city", city, msgPostalCodeInvalid)
	case strings.TrimSpace(nip) == "":
		return invalid("nip", nip, msgNIPRequired)
	case !utils.ValidateNIP(nip):
		return invalid("nip", nip, msgNIPInvalid)
	}
	return nil
}
