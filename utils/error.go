package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// Business-rule violations. Always rejected before any mutation is visible;
// wrap with fmt.Errorf("%w: ...") to attach detail and match with errors.Is.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverpayment       = errors.New("payment exceeds remaining debt")
	ErrReturnExceedsDebt = errors.New("return value exceeds remaining debt")
	ErrDebtAlreadyPaid   = errors.New("debt has already been settled")
	ErrWarehouseNotEmpty = errors.New("warehouse still holds stock")
	ErrDuplicateEntity   = errors.New("duplicate entity")
)

// ValidationError marks bad input shape (non-positive quantity, negative
// price, missing fields). Distinct from business-rule errors so callers can
// prompt instead of retrying.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
