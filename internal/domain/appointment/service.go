package appointment

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

// DoctorDirectory resolves doctor accounts and their departments.
type DoctorDirectory interface {
	Department(ctx context.Context, doctorID uuid.UUID) (string, bool, error)
}

type Service struct {
	appointments Repository
	patients     PatientDirectory
	doctors      DoctorDirectory
	publisher    events.Publisher
}

func NewService(appointments Repository, patients PatientDirectory, doctors DoctorDirectory, publisher events.Publisher) *Service {
	return &Service{appointments: appointments, patients: patients, doctors: doctors, publisher: publisher}
}

// BookInput carries the fields accepted when booking.
type BookInput struct {
	PatientID   uuid.UUID `json:"patientId"`
	DoctorID    uuid.UUID `json:"doctorId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Reason      *string   `json:"reason,omitempty"`
}

// Book creates a Pending appointment. Receptionists and admins book for any
// patient; a patient actor only for their own linked record.
func (s *Service) Book(ctx context.Context, actor auth.Identity, in BookInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil || in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("patientId and doctorId are required")
	}
	if in.ScheduledAt.IsZero() || in.ScheduledAt.Before(time.Now()) {
		return nil, apperr.Validation("scheduledAt must be a future time")
	}

	userID, exists, err := s.patients.UserLink(ctx, in.PatientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", in.PatientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only book appointments for themselves")
		}
	}

	department, ok, err := s.doctors.Department(ctx, in.DoctorID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.NotFound("doctor %s not found", in.DoctorID)
	}

	a := &Appointment{
		ID:          uuid.New(),
		PatientID:   in.PatientID,
		DoctorID:    in.DoctorID,
		Department:  department,
		ScheduledAt: in.ScheduledAt,
		Status:      StatusPending,
		Reason:      in.Reason,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicAppointments, a.ID))
	return a, nil
}

// Get loads one appointment. The assigned doctor, the booked patient, and
// admins/receptionists may read it.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if a == nil {
		return nil, apperr.NotFound("appointment %s not found", id)
	}
	if err := s.authorizeRead(ctx, actor, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) authorizeRead(ctx context.Context, actor auth.Identity, a *Appointment) error {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleReceptionist:
		return nil
	case auth.RoleDoctor:
		if actor.Owns(a.DoctorID) {
			return nil
		}
		return apperr.Forbidden("appointment is assigned to another doctor")
	case auth.RolePatient:
		userID, _, err := s.patients.UserLink(ctx, a.PatientID)
		if err != nil {
			return apperr.Internal(err)
		}
		if userID != nil && actor.Owns(*userID) {
			return nil
		}
		return apperr.Forbidden("patients may only access their own appointments")
	}
	return apperr.Forbidden("role not permitted")
}

// UpdateStatus applies one lifecycle transition. The assigned doctor (or an
// admin) accepts, rejects, and completes; the patient may cancel their own
// pending appointment.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, to Status, notes *string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if a == nil {
		return nil, apperr.NotFound("appointment %s not found", id)
	}

	switch actor.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		if !actor.Owns(a.DoctorID) {
			return nil, apperr.Forbidden("appointment is assigned to another doctor")
		}
	case auth.RolePatient:
		if to != StatusCancelled {
			return nil, apperr.Forbidden("patients may only cancel appointments")
		}
		userID, _, err := s.patients.UserLink(ctx, a.PatientID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only cancel their own appointments")
		}
	default:
		return nil, apperr.Forbidden("role not permitted")
	}

	if !CanTransition(a.Status, to) {
		return nil, apperr.Validation("cannot transition appointment from %s to %s", a.Status, to)
	}

	a.Status = to
	if notes != nil {
		a.Notes = notes
	}
	if to == StatusCompleted {
		a.HasVisited = true
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicAppointments, a.ID))
	return a, nil
}

// ListByPatient lists a patient's appointments; patient actors are limited
// to their own.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	userID, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	if !exists {
		return nil, 0, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, 0, apperr.Forbidden("patients may only access their own appointments")
		}
	}
	items, total, err := s.appointments.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

// ListByDoctor lists a doctor's schedule. Doctors see only their own.
func (s *Service) ListByDoctor(ctx context.Context, actor auth.Identity, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if actor.Role == auth.RoleDoctor && !actor.Owns(doctorID) {
		return nil, 0, apperr.Forbidden("doctors may only list their own schedule")
	}
	items, total, err := s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}
