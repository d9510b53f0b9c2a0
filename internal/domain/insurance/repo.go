package insurance

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	Update(ctx context.Context, c *Claim) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Claim, error)
	ListByStatus(ctx context.Context, status ClaimStatus, limit, offset int) ([]*Claim, int, error)
}
