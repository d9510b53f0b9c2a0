package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
)

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	return m.users[id], nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockRepo) ListByRole(_ context.Context, role auth.Role, limit, offset int) ([]*User, int, error) {
	var items []*User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			items = append(items, u)
		}
	}
	return items, len(items), nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, []byte("test-secret-key-at-least-32-byte"), time.Hour)
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "jane@example.com",
		Password:  "correct-horse",
		FirstName: "Jane",
		LastName:  "Doe",
	}
}

func TestRegister_CreatesPatientAccount(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	u, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("role = %s, want patient", u.Role)
	}
	if u.PasswordHash == "correct-horse" {
		t.Error("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")); err != nil {
		t.Error("stored hash does not match password")
	}
}

func TestRegister_RejectsDuplicateEmail(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegistration())
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := validRegistration()
	in.Password = "short"
	_, err := svc.Register(context.Background(), in)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateStaff_RequiresDepartmentForDoctors(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := StaffInput{RegisterInput: validRegistration(), Role: "doctor"}
	_, err := svc.CreateStaff(context.Background(), in)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	dept := "Cardiology"
	in.DoctorDepartment = &dept
	u, err := svc.CreateStaff(context.Background(), in)
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if u.Role != auth.RoleDoctor {
		t.Errorf("role = %s, want doctor", u.Role)
	}
}

func TestCreateStaff_RejectsPatientRole(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := StaffInput{RegisterInput: validRegistration(), Role: "patient"}
	if _, err := svc.CreateStaff(context.Background(), in); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLogin_ReturnsTokenForValidCredentials(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, token, err := svc.Login(context.Background(), "jane@example.com", "correct-horse", "acme")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	id, tenant, err := auth.ParseToken([]byte("test-secret-key-at-least-32-byte"), token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if id.ID != u.ID || id.Role != auth.RolePatient {
		t.Errorf("token identity = %+v", id)
	}
	if tenant != "acme" {
		t.Errorf("tenant = %q, want acme", tenant)
	}
}

func TestLogin_SameErrorForUnknownUserAndWrongPassword(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, errUnknown := svc.Login(context.Background(), "nobody@example.com", "whatever", "acme")
	_, _, errWrong := svc.Login(context.Background(), "jane@example.com", "wrong-password", "acme")

	for _, err := range []error{errUnknown, errWrong} {
		if !apperr.IsKind(err, apperr.KindUnauthenticated) {
			t.Errorf("expected unauthenticated, got %v", err)
		}
	}
	if apperr.From(errUnknown).Message != apperr.From(errWrong).Message {
		t.Error("error messages should not reveal which credential was wrong")
	}
}

func TestGetDoctor_NotFoundForPatientAccount(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	u, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.GetDoctor(context.Background(), u.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found for non-doctor account, got %v", err)
	}
}
