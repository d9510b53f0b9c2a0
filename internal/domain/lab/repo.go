package lab

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows the worklist query.
type ListFilter struct {
	Status OrderStatus
}

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	ListOrders(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Order, error)

	CreateResult(ctx context.Context, res *Result) error
	GetResultByOrder(ctx context.Context, orderID uuid.UUID) (*Result, error)

	// Verify marks the result verified and moves the order to Verified in
	// one transaction.
	Verify(ctx context.Context, orderID, verifiedBy uuid.UUID) error
}
