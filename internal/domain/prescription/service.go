package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

// RecordDirectory resolves medical record ownership without importing the
// medicalrecord package.
type RecordDirectory interface {
	RecordBinding(ctx context.Context, recordID uuid.UUID) (doctorID, patientID uuid.UUID, exists bool, err error)
}

// DoctorDirectory resolves the doctor expansion for read responses.
type DoctorDirectory interface {
	Info(ctx context.Context, doctorID uuid.UUID) (*DoctorInfo, error)
}

// PatientDirectory resolves patient rows for the self-scope check.
type PatientDirectory interface {
	UserLink(ctx context.Context, patientID uuid.UUID) (userID *uuid.UUID, exists bool, err error)
}

type Service struct {
	prescriptions Repository
	records       RecordDirectory
	doctors       DoctorDirectory
	patients      PatientDirectory
	publisher     events.Publisher
}

func NewService(prescriptions Repository, records RecordDirectory, doctors DoctorDirectory,
	patients PatientDirectory, publisher events.Publisher) *Service {
	return &Service{
		prescriptions: prescriptions,
		records:       records,
		doctors:       doctors,
		patients:      patients,
		publisher:     publisher,
	}
}

// CreateInput carries the fields accepted when signing a prescription.
type CreateInput struct {
	MedicalRecordID  uuid.UUID    `json:"medicalRecordId"`
	Medications      []Medication `json:"medications"`
	DigitalSignature string       `json:"digitalSignature"`
	DateSigned       *time.Time   `json:"dateSigned,omitempty"`
}

// UpdateInput is a partial patch. Nil fields are left unchanged.
type UpdateInput struct {
	Medications []Medication `json:"medications,omitempty"`
	Status      *string      `json:"status,omitempty"`
}

// Create signs a new Active prescription against a medical record. Only the
// doctor who owns the record may prescribe from it; the patient binding is
// denormalized from the record.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*Prescription, error) {
	if in.MedicalRecordID == uuid.Nil {
		return nil, apperr.Validation("medicalRecordId is required")
	}

	doctorID, patientID, exists, err := s.records.RecordBinding(ctx, in.MedicalRecordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("medical record %s not found", in.MedicalRecordID)
	}
	if !actor.Owns(doctorID) {
		return nil, apperr.Forbidden("only the doctor who owns the medical record may prescribe from it")
	}

	if err := ValidateMedications(in.Medications); err != nil {
		return nil, err
	}
	if in.DigitalSignature == "" {
		return nil, apperr.Validation("digitalSignature is required")
	}

	signed := time.Now().UTC()
	if in.DateSigned != nil {
		signed = *in.DateSigned
	}

	p := &Prescription{
		ID:               uuid.New(),
		MedicalRecordID:  in.MedicalRecordID,
		PatientID:        patientID,
		DoctorID:         actor.ID,
		Medications:      in.Medications,
		DigitalSignature: in.DigitalSignature,
		DateSigned:       signed,
		Status:           StatusActive,
	}
	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicPrescriptions, p.ID))
	return p, nil
}

// ListByRecord returns the record's prescriptions newest-first with the
// doctor expanded.
func (s *Service) ListByRecord(ctx context.Context, actor auth.Identity, recordID uuid.UUID) ([]*View, error) {
	_, patientID, exists, err := s.records.RecordBinding(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("medical record %s not found", recordID)
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, patientID); err != nil {
			return nil, err
		}
	}

	items, err := s.prescriptions.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.expand(ctx, items)
}

// ListByPatient returns the patient's prescriptions newest-first with the
// doctor expanded. A patient actor may only list their own.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) ([]*View, error) {
	userID, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only access their own prescriptions")
		}
	}

	items, err := s.prescriptions.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.expand(ctx, items)
}

// Update patches medications and/or moves the lifecycle forward. Owning
// doctor only; Active is the only state that can change, and it may only
// move to Cancelled or Completed.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id uuid.UUID, in UpdateInput) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, apperr.NotFound("prescription %s not found", id)
	}
	if !actor.Owns(p.DoctorID) {
		return nil, apperr.Forbidden("only the prescribing doctor may modify this prescription")
	}
	if in.Medications == nil && in.Status == nil {
		return nil, apperr.Validation("at least one field must be provided")
	}

	if in.Status != nil {
		next, ok := ParseStatus(*in.Status)
		if !ok {
			return nil, apperr.Validation("invalid status: %s", *in.Status)
		}
		if next != p.Status {
			if p.Status != StatusActive {
				return nil, apperr.Validation("prescription in terminal state %s cannot change", p.Status)
			}
			if next == StatusActive {
				return nil, apperr.Validation("prescription cannot return to Active")
			}
			p.Status = next
		}
	}

	if in.Medications != nil {
		if err := ValidateMedications(in.Medications); err != nil {
			return nil, err
		}
		p.Medications = in.Medications
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicPrescriptions, p.ID))
	return p, nil
}

// Delete removes a prescription permanently. Owning doctor only.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if p == nil {
		return apperr.NotFound("prescription %s not found", id)
	}
	if !actor.Owns(p.DoctorID) {
		return apperr.Forbidden("only the prescribing doctor may delete this prescription")
	}
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("deleted", events.TopicPrescriptions, id))
	return nil
}

func (s *Service) expand(ctx context.Context, items []*Prescription) ([]*View, error) {
	// Doctor lookups are cached per call; listings are usually all from
	// the same doctor.
	cache := make(map[uuid.UUID]*DoctorInfo)
	views := make([]*View, 0, len(items))
	for _, p := range items {
		info, ok := cache[p.DoctorID]
		if !ok {
			var err error
			info, err = s.doctors.Info(ctx, p.DoctorID)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			cache[p.DoctorID] = info
		}
		views = append(views, &View{Prescription: *p, Doctor: info})
	}
	return views, nil
}

func (s *Service) requireOwnPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	userID, _, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if userID == nil || !actor.Owns(*userID) {
		return apperr.Forbidden("patients may only access their own prescriptions")
	}
	return nil
}
