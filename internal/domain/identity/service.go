package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
)

type Service struct {
	users    Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users Repository, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{users: users, secret: secret, tokenTTL: tokenTTL}
}

// RegisterInput carries the fields accepted by self-registration.
type RegisterInput struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     *string `json:"phone,omitempty"`
}

// StaffInput carries the fields accepted when an admin provisions a staff
// account.
type StaffInput struct {
	RegisterInput
	Role             string  `json:"role"`
	DoctorDepartment *string `json:"doctorDepartment,omitempty"`
}

// Register creates a patient account. Self-registration never grants any
// other role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	u, err := s.newUser(ctx, in, auth.RolePatient, nil)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// CreateStaff provisions an account with a staff role. Admin only; the
// handler enforces the role gate.
func (s *Service) CreateStaff(ctx context.Context, in StaffInput) (*User, error) {
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Validation("invalid role: %s", in.Role)
	}
	if role == auth.RolePatient {
		return nil, apperr.Validation("patient accounts are created via registration")
	}
	if role == auth.RoleDoctor && (in.DoctorDepartment == nil || *in.DoctorDepartment == "") {
		return nil, apperr.Validation("doctorDepartment is required for doctor accounts")
	}

	u, err := s.newUser(ctx, in.RegisterInput, role, in.DoctorDepartment)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

func (s *Service) newUser(ctx context.Context, in RegisterInput, role auth.Role, dept *string) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, apperr.Validation("firstName and lastName are required")
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return nil, apperr.Validation("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &User{
		ID:               uuid.New(),
		Email:            in.Email,
		PasswordHash:     string(hash),
		Role:             role,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Phone:            in.Phone,
		DoctorDepartment: dept,
		Active:           true,
	}, nil
}

// Login verifies credentials and returns the user plus a signed JWT scoped
// to the given tenant.
func (s *Service) Login(ctx context.Context, email, password, tenantID string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	// Same message for unknown email and bad password.
	if u == nil || !u.Active {
		return nil, "", apperr.Unauthenticated("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.Unauthenticated("invalid email or password")
	}

	token, err := auth.GenerateToken(s.secret, u.ID, u.Role, tenantID, s.tokenTTL)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return u, token, nil
}

// Me returns the account for the authenticated identity.
func (s *Service) Me(ctx context.Context, actor auth.Identity) (*User, error) {
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.NotFound("user %s not found", actor.ID)
	}
	return u, nil
}

// GetDoctor returns the doctor projection used by other domains when
// expanding a doctor reference.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil || u.Role != auth.RoleDoctor {
		return nil, apperr.NotFound("doctor %s not found", id)
	}
	d := &Doctor{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	if u.DoctorDepartment != nil {
		d.DoctorDepartment = *u.DoctorDepartment
	}
	return d, nil
}

// ListDoctors returns active doctor accounts for appointment booking.
func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*User, int, error) {
	items, total, err := s.users.ListByRole(ctx, auth.RoleDoctor, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}
