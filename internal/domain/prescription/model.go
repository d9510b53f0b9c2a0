package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
)

// Status is the prescription lifecycle state. Active is the only state a
// prescription is created in; Cancelled and Completed are terminal.
type Status string

const (
	StatusActive    Status = "Active"
	StatusCancelled Status = "Cancelled"
	StatusCompleted Status = "Completed"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusCancelled, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// Medication is one prescribed line item. Stored as a jsonb array on the
// prescription row; lines have no identity of their own.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
	Notes     string `json:"notes,omitempty"`
}

// ValidateMedications checks the document-level and line-level rules: at
// least one line, and every line fully specified.
func ValidateMedications(meds []Medication) error {
	if len(meds) == 0 {
		return apperr.Validation("at least one medication is required")
	}
	for i, m := range meds {
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" || m.Duration == "" {
			return apperr.Validation("medication %d must include name, dosage, frequency and duration", i+1)
		}
	}
	return nil
}

// Prescription maps to the prescription table. PatientID is denormalized
// from the medical record at creation; DoctorID never changes.
type Prescription struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	MedicalRecordID  uuid.UUID    `db:"medical_record_id" json:"medicalRecordId"`
	PatientID        uuid.UUID    `db:"patient_id" json:"patientId"`
	DoctorID         uuid.UUID    `db:"doctor_id" json:"doctorId"`
	Medications      []Medication `db:"medications" json:"medications"`
	DigitalSignature string       `db:"digital_signature" json:"digitalSignature"`
	DateSigned       time.Time    `db:"date_signed" json:"dateSigned"`
	Status           Status       `db:"status" json:"status"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
}

// DoctorInfo is the expansion embedded in read responses.
type DoctorInfo struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	DoctorDepartment string `json:"doctorDepartment"`
}

// View is a prescription with its doctor expanded.
type View struct {
	Prescription
	Doctor *DoctorInfo `json:"doctor,omitempty"`
}
