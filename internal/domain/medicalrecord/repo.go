package medicalrecord

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)

	// ApplyUpdate atomically appends the snapshot and writes the new head
	// state, guarded by the expected version. Returns false without any
	// change when the head moved since the caller read it.
	ApplyUpdate(ctx context.Context, r *MedicalRecord, expectedVersion int, snap *Version) (bool, error)

	ListVersions(ctx context.Context, recordID uuid.UUID) ([]*Version, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
}
