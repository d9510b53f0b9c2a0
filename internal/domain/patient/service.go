package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

type Service struct {
	patients  Repository
	publisher events.Publisher
}

func NewService(patients Repository, publisher events.Publisher) *Service {
	return &Service{patients: patients, publisher: publisher}
}

// Input carries the writable demographic fields.
type Input struct {
	UserID           *uuid.UUID `json:"userId,omitempty"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	BirthDate        time.Time  `json:"birthDate"`
	Gender           string     `json:"gender"`
	Phone            string     `json:"phone"`
	Email            *string    `json:"email,omitempty"`
	Address          *string    `json:"address,omitempty"`
	BloodGroup       *string    `json:"bloodGroup,omitempty"`
	EmergencyContact *string    `json:"emergencyContact,omitempty"`
}

func (in Input) validate() error {
	if in.FirstName == "" || in.LastName == "" {
		return apperr.Validation("firstName and lastName are required")
	}
	if in.BirthDate.IsZero() || in.BirthDate.After(time.Now()) {
		return apperr.Validation("birthDate must be a past date")
	}
	if !validGenders[in.Gender] {
		return apperr.Validation("invalid gender: %s", in.Gender)
	}
	if in.Phone == "" {
		return apperr.Validation("phone is required")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Patient{
		ID:               uuid.New(),
		UserID:           in.UserID,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		BirthDate:        in.BirthDate,
		Gender:           in.Gender,
		Phone:            in.Phone,
		Email:            in.Email,
		Address:          in.Address,
		BloodGroup:       in.BloodGroup,
		EmergencyContact: in.EmergencyContact,
		Active:           true,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicPatients, p.ID))
	return p, nil
}

// Get loads one patient. Staff roles read any patient; a patient actor only
// reads their own linked row.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	if actor.Role == auth.RolePatient {
		if p.UserID == nil || !actor.Owns(*p.UserID) {
			return nil, apperr.Forbidden("patients may only access their own record")
		}
	}
	return p, nil
}

// GetSelf resolves the patient row linked to a patient actor's account.
func (s *Service) GetSelf(ctx context.Context, actor auth.Identity) (*Patient, error) {
	p, err := s.patients.GetByUserID(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, apperr.NotFound("no patient record linked to this account")
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, apperr.NotFound("patient %s not found", id)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	p.FirstName = in.FirstName
	p.LastName = in.LastName
	p.BirthDate = in.BirthDate
	p.Gender = in.Gender
	p.Phone = in.Phone
	p.Email = in.Email
	p.Address = in.Address
	p.BloodGroup = in.BloodGroup
	p.EmergencyContact = in.EmergencyContact

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicPatients, p.ID))
	return p, nil
}

// Deactivate soft-deletes a patient. Clinical records reference the row and
// must survive, so rows are never removed.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	if p == nil {
		return apperr.NotFound("patient %s not found", id)
	}
	if err := s.patients.Deactivate(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("deleted", events.TopicPatients, id))
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	if filter.Gender != "" && !validGenders[filter.Gender] {
		return nil, 0, apperr.Validation("invalid gender: %s", filter.Gender)
	}
	items, total, err := s.patients.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}
