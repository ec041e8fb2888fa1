package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/faktura/internal/repository"
)

// Lookup errors
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrBuyerNotFound   = errors.New("buyer not found")
	ErrNotSubmitted    = errors.New("invoice has not been submitted to KSeF")
)

// ValidationError reports a rejected input field with a user-facing message
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// notFound maps a repository miss onto the service's lookup error
func notFound(err, target error) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", target, err)
	}
	return err
}
