package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflictData   = errors.New("data conflicts with existing data")
	ErrDataNotFound   = errors.New("data not found")
	ErrAlreadySettled = errors.New("payment already settled")
	ErrInternalError  = errors.New("internal error")
)

// DeliveryExpiredError aborts placement when an order's delivery date is
// missing or already in the past.
type DeliveryExpiredError struct {
	OrderIdx    int
	DeliverDate string
}

func (e *DeliveryExpiredError) Error() string {
	return fmt.Sprintf("order %d: delivery date %q expired", e.OrderIdx, e.DeliverDate)
}

// ItemsEmptyError aborts placement when an order carries no line items.
type ItemsEmptyError struct {
	OrderIdx int
}

func (e *ItemsEmptyError) Error() string {
	return fmt.Sprintf("order %d: no items", e.OrderIdx)
}

// ProductNotFoundError aborts placement when a line item does not resolve to
// an active product.
type ProductNotFoundError struct {
	OrderIdx  int
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("order %d: product %s not found", e.OrderIdx, e.ProductID)
}

// OutOfStockError carries the offending product for the caller to report.
type OutOfStockError struct {
	OrderIdx    int
	ProductID   string
	ProductName string
	Quantity    int // current stock quantity
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("order %d: out of stock: %s (%d left)", e.OrderIdx, e.ProductName, e.Quantity)
}

// StatusTransitionError rejects a move the order state machine does not allow.
type StatusTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %q to %q", e.OrderID, e.From, e.To)
}

// CancelStateError rejects cancellation of an order that is not in a
// cancellable state.
type CancelStateError struct {
	OrderID string
	Status  string
}

func (e *CancelStateError) Error() string {
	return fmt.Sprintf("order %s: cannot cancel in status %q", e.OrderID, e.Status)
}
