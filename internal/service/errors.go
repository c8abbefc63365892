package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrUnauthenticated     = errors.New("unauthenticated")      // 401
	ErrForbidden           = errors.New("forbidden")            // 403
	ErrValidation          = errors.New("validation")           // 400
	ErrEmptyCart           = errors.New("cart is empty")        // 400
	ErrNotFound            = errors.New("not found")            // 404
	ErrConflict            = errors.New("conflict")             // 400
	ErrOutOfStock          = errors.New("out of stock")         // 409
	ErrInvalidTransition   = errors.New("invalid transition")   // 409
	ErrPaymentProvider     = errors.New("payment provider")     // 500
	ErrDatabaseUnavailable = errors.New("database unavailable") // 500
)

// ValidationError carries per-field messages keyed by JSON path, e.g. "cartItems[0].price".
type ValidationError struct {
	Fields map[string]string
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Field + ": " + e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// OutOfStockError names the product that could not be reserved.
type OutOfStockError struct {
	ProductID uint
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %d, requested %d", e.ProductID, e.Requested)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// dbErr maps persistence failures onto the service taxonomy.
// Errors that already belong to the taxonomy pass through unchanged.
func dbErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case isDomain(err):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", ErrDatabaseUnavailable, what, err)
	}
}

func isDomain(err error) bool {
	for _, s := range []error{
		ErrUnauthenticated, ErrForbidden, ErrValidation, ErrEmptyCart, ErrNotFound,
		ErrConflict, ErrOutOfStock, ErrInvalidTransition, ErrPaymentProvider, ErrDatabaseUnavailable,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
