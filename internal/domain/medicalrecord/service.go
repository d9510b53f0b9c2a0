package medicalrecord

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

// PatientDirectory resolves patient rows without importing the patient
// package. The returned userID is nil for walk-in registrations.
type PatientDirectory interface {
	UserLink(ctx context.Context, patientID uuid.UUID) (userID *uuid.UUID, exists bool, err error)
}

type Service struct {
	records   Repository
	patients  PatientDirectory
	publisher events.Publisher
}

func NewService(records Repository, patients PatientDirectory, publisher events.Publisher) *Service {
	return &Service{records: records, patients: patients, publisher: publisher}
}

// CreateInput carries the fields accepted when opening a record.
type CreateInput struct {
	PatientID     uuid.UUID  `json:"patientId"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	Diagnosis     string     `json:"diagnosis"`
	Symptoms      string     `json:"symptoms"`
	TreatmentPlan string     `json:"treatmentPlan"`
	Notes         *string    `json:"notes,omitempty"`
}

// UpdateInput is a partial patch of the clinical fields. Nil fields are left
// unchanged. ExpectedVersion, when set, is the client's optimistic token; when
// absent the version read at the start of the update is used.
type UpdateInput struct {
	Diagnosis       *string `json:"diagnosis,omitempty"`
	Symptoms        *string `json:"symptoms,omitempty"`
	TreatmentPlan   *string `json:"treatmentPlan,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	ExpectedVersion *int    `json:"expectedVersion,omitempty"`
}

func (in UpdateInput) empty() bool {
	return in.Diagnosis == nil && in.Symptoms == nil && in.TreatmentPlan == nil && in.Notes == nil
}

// Create opens a medical record at version 1. The acting doctor becomes the
// record's owner; patient, doctor and appointment bindings are immutable
// afterwards.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*MedicalRecord, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	if in.Diagnosis == "" || in.Symptoms == "" || in.TreatmentPlan == "" {
		return nil, apperr.Validation("diagnosis, symptoms and treatmentPlan are required")
	}

	_, exists, err := s.patients.UserLink(ctx, in.PatientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", in.PatientID)
	}

	m := &MedicalRecord{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		DoctorID:       actor.ID,
		AppointmentID:  in.AppointmentID,
		Diagnosis:      in.Diagnosis,
		Symptoms:       in.Symptoms,
		TreatmentPlan:  in.TreatmentPlan,
		Notes:          in.Notes,
		CurrentVersion: 1,
	}
	if err := s.records.Create(ctx, m); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicMedicalRecords, m.ID))
	return m, nil
}

// Update applies a partial patch under optimistic concurrency. The pre-patch
// state is archived as a version snapshot and the head version increments by
// exactly one, atomically; a racing writer surfaces as Conflict with nothing
// written.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id uuid.UUID, in UpdateInput) (*MedicalRecord, error) {
	m, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if m == nil {
		return nil, apperr.NotFound("medical record %s not found", id)
	}
	if actor.Role != auth.RoleAdmin && !actor.Owns(m.DoctorID) {
		return nil, apperr.Forbidden("only the doctor who owns this record may modify it")
	}
	if in.empty() {
		return nil, apperr.Validation("at least one field must be provided")
	}
	if (in.Diagnosis != nil && *in.Diagnosis == "") ||
		(in.Symptoms != nil && *in.Symptoms == "") ||
		(in.TreatmentPlan != nil && *in.TreatmentPlan == "") {
		return nil, apperr.Validation("clinical fields cannot be cleared")
	}

	expected := m.CurrentVersion
	if in.ExpectedVersion != nil {
		expected = *in.ExpectedVersion
		if expected != m.CurrentVersion {
			return nil, apperr.Conflict("medical record was modified by another update; reload and retry")
		}
	}

	snap := m.snapshot()

	if in.Diagnosis != nil {
		m.Diagnosis = *in.Diagnosis
	}
	if in.Symptoms != nil {
		m.Symptoms = *in.Symptoms
	}
	if in.TreatmentPlan != nil {
		m.TreatmentPlan = *in.TreatmentPlan
	}
	if in.Notes != nil {
		m.Notes = in.Notes
	}

	applied, err := s.records.ApplyUpdate(ctx, m, expected, snap)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !applied {
		return nil, apperr.Conflict("medical record was modified by another update; reload and retry")
	}

	m.CurrentVersion = expected + 1
	m.UpdatedAt = time.Now().UTC()
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicMedicalRecords, m.ID))
	return m, nil
}

// Get loads a record with its version history. Staff read any record; a
// patient actor only records about themselves.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*MedicalRecord, []*Version, error) {
	m, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	if m == nil {
		return nil, nil, apperr.NotFound("medical record %s not found", id)
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, m.PatientID); err != nil {
			return nil, nil, err
		}
	}

	versions, err := s.records.ListVersions(ctx, id)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return m, versions, nil
}

// ListByPatient lists a patient's records; patient actors see only their own.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	_, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	if !exists {
		return nil, 0, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, patientID); err != nil {
			return nil, 0, err
		}
	}
	items, total, err := s.records.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

// ListByDoctor lists the acting doctor's records. Doctors see only their own.
func (s *Service) ListByDoctor(ctx context.Context, actor auth.Identity, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	if actor.Role == auth.RoleDoctor && !actor.Owns(doctorID) {
		return nil, 0, apperr.Forbidden("doctors may only list their own records")
	}
	items, total, err := s.records.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func (s *Service) requireOwnPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	userID, _, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if userID == nil || !actor.Owns(*userID) {
		return apperr.Forbidden("patients may only access their own medical records")
	}
	return nil
}
