package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel error kinds. Structured errors below match them through errors.Is.
var (
	ErrNotFound          = errors.New("bakery: not found")
	ErrInvalidArgument   = errors.New("bakery: invalid argument")
	ErrInsufficientStock = errors.New("bakery: insufficient stock")
	ErrInvalidState      = errors.New("bakery: invalid state")
	ErrConflict          = errors.New("bakery: conflict")
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is allows errors.Is(err, ErrNotFound).
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidArgumentError reports a failed caller precondition.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidArgument).
func (e InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// InsufficientStockError reports a stock adjustment that would leave an
// ingredient below zero.
type InsufficientStockError struct {
	IngredientID int64
	Name         string
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %d (%s): available %s, adjustment %s",
		e.IngredientID, e.Name, e.Available.String(), e.Requested.String())
}

// Is allows errors.Is(err, ErrInsufficientStock).
func (e InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvalidStateError reports an operation attempted in the wrong lifecycle
// state: a terminal production run or unit-of-work misuse.
type InvalidStateError struct {
	Entity    EntityType
	ID        int64
	State     string
	Operation string
}

func (e InvalidStateError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("cannot %s: %s", e.Operation, e.State)
	}
	return fmt.Sprintf("cannot %s %s %d in state %s", e.Operation, e.Entity, e.ID, e.State)
}

// Is allows errors.Is(err, ErrInvalidState).
func (e InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// ConflictError reports a write rejected by a uniqueness or referential constraint.
type ConflictError struct {
	Entity EntityType
	ID     int64
	Reason string
}

func (e ConflictError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s %d conflict: %s", e.Entity, e.ID, e.Reason)
}

// Is allows errors.Is(err, ErrConflict).
func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// IsNotFound returns true if err is or wraps a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInsufficientStock returns true if err is or wraps an insufficient-stock error.
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }

// IsConflict returns true if err is or wraps a conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInvalidArgument returns true if err is or wraps an invalid-argument error.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsInvalidState returns true if err is or wraps an invalid-state error.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
