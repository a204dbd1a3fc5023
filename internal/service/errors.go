package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrPersistence        = errors.New("persistence")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductNotInCart   = errors.New("product not in cart")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrMixedSupplierCart  = errors.New("mixed supplier cart")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAwaitingApproval   = errors.New("awaiting approval")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// MixedSupplierError reports the supplier already occupying the cart.
type MixedSupplierError struct {
	SupplierID   uint
	SupplierName string
}

func (e *MixedSupplierError) Error() string {
	return fmt.Sprintf("mixed supplier cart: cart holds products of %q", e.SupplierName)
}

func (e *MixedSupplierError) Unwrap() error { return ErrMixedSupplierCart }

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
