package models

import (
	"errors"
	"fmt"
)

// ErrEmptyCart is returned by checkout when the buyer's cart has no lines.
var ErrEmptyCart = errors.New("cart is empty")

// InsufficientStockError names the product whose live stock could not
// cover the requested quantity. Checkout surfaces it for the offending
// line and rolls the whole unit of work back.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// NotFoundError identifies a missing entity by kind and id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// UnauthorizedError is returned when the actor's role does not permit
// the attempted action. Role checks run before any mutation.
type UnauthorizedError struct {
	Actor  Actor
	Action string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s %d is not allowed to %s", e.Actor.Role, e.Actor.ID, e.Action)
}

// InvalidTransitionError names the rejected source/target pair.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// ConflictError means a precondition no longer held when the write ran
// (another actor got there first). Callers may re-fetch and retry.
type ConflictError struct {
	Entity string
	ID     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d changed state concurrently", e.Entity, e.ID)
}

// ValidationError rejects a single bad input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
