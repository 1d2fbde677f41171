package orders

import (
	"errors"

	"github.com/diewo77/foodcore/internal/validation"
)

var (
	ErrOrderNotFound    = errors.New("orders: order not found")
	ErrMenuItemNotFound = errors.New("orders: menu item not found")
	ErrDriverNotFound   = errors.New("orders: driver not found")
	ErrInvalidStatus    = errors.New("orders: unknown status")
	// ErrDriverRequired: OUT_FOR_DELIVERY needs an assigned driver.
	ErrDriverRequired = errors.New("orders: a driver must be assigned first")
	// ErrNotDelivery: only delivery orders go out for delivery.
	ErrNotDelivery = errors.New("orders: not a delivery order")
	// ErrTerminal: served orders are history.
	ErrTerminal          = errors.New("orders: order already served")
	ErrIllegalTransition = errors.New("orders: illegal status transition")
)

// ValidationError carries the field violations of a rejected draft.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return "orders: " + e.Violations.Error() }

func (e *ValidationError) Unwrap() error { return e.Violations }
