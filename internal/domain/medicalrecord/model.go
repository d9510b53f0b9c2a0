package medicalrecord

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is the mutable head row. CurrentVersion starts at 1 and
// increases by exactly one per successful update; the pre-update state of
// each mutation lives in the append-only version table.
type MedicalRecord struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patientId"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctorId"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointmentId,omitempty"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	Symptoms       string     `db:"symptoms" json:"symptoms"`
	TreatmentPlan  string     `db:"treatment_plan" json:"treatmentPlan"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CurrentVersion int        `db:"current_version" json:"currentVersion"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Version is one historical snapshot: the state the record had BEFORE the
// update that produced the next version. Keyed (record_id, version); rows
// are only ever inserted.
type Version struct {
	RecordID      uuid.UUID `db:"record_id" json:"recordId"`
	Version       int       `db:"version" json:"version"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Symptoms      string    `db:"symptoms" json:"symptoms"`
	TreatmentPlan string    `db:"treatment_plan" json:"treatmentPlan"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	UpdatedBy     uuid.UUID `db:"updated_by" json:"updatedBy"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// snapshot captures the record's pre-update state as a Version row. The
// metadata mirrors the superseded head: the owning doctor and the timestamp
// that state was written at, not the actor or moment of the supersede.
func (r *MedicalRecord) snapshot() *Version {
	return &Version{
		RecordID:      r.ID,
		Version:       r.CurrentVersion,
		Diagnosis:     r.Diagnosis,
		Symptoms:      r.Symptoms,
		TreatmentPlan: r.TreatmentPlan,
		Notes:         r.Notes,
		UpdatedBy:     r.DoctorID,
		UpdatedAt:     r.UpdatedAt,
	}
}
