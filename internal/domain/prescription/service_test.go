package prescription

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

type mockRepo struct {
	items map[uuid.UUID]*Prescription
	seq   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	cp := *p
	// Stamp creation time as the database default would; the offset keeps
	// rapid inserts strictly ordered.
	m.seq++
	cp.CreatedAt = time.Now().UTC().Add(time.Duration(m.seq) * time.Millisecond)
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ListByRecord(_ context.Context, recordID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.items {
		if p.MedicalRecordID == recordID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	var out []*Prescription
	for _, p := range m.items {
		if p.PatientID == patientID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(items []*Prescription) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

type recordBinding struct {
	doctorID  uuid.UUID
	patientID uuid.UUID
}

type mockRecords struct {
	bindings map[uuid.UUID]recordBinding
}

func (m *mockRecords) RecordBinding(_ context.Context, recordID uuid.UUID) (uuid.UUID, uuid.UUID, bool, error) {
	b, ok := m.bindings[recordID]
	if !ok {
		return uuid.Nil, uuid.Nil, false, nil
	}
	return b.doctorID, b.patientID, true, nil
}

type mockDoctors struct {
	infos map[uuid.UUID]*DoctorInfo
}

func (m *mockDoctors) Info(_ context.Context, doctorID uuid.UUID) (*DoctorInfo, error) {
	return m.infos[doctorID], nil
}

type mockPatients struct {
	links map[uuid.UUID]*uuid.UUID
}

func (m *mockPatients) UserLink(_ context.Context, patientID uuid.UUID) (*uuid.UUID, bool, error) {
	link, ok := m.links[patientID]
	if !ok {
		return nil, false, nil
	}
	return link, true, nil
}

type fixture struct {
	service  *Service
	repo     *mockRepo
	records  *mockRecords
	doctors  *mockDoctors
	patients *mockPatients

	doctor      auth.Identity
	recordID    uuid.UUID
	patientID   uuid.UUID
	patientUser uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMockRepo(),
		records:  &mockRecords{bindings: make(map[uuid.UUID]recordBinding)},
		doctors:  &mockDoctors{infos: make(map[uuid.UUID]*DoctorInfo)},
		patients: &mockPatients{links: make(map[uuid.UUID]*uuid.UUID)},
	}
	f.doctor = auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	f.recordID = uuid.New()
	f.patientID = uuid.New()
	f.patientUser = uuid.New()
	f.records.bindings[f.recordID] = recordBinding{doctorID: f.doctor.ID, patientID: f.patientID}
	f.doctors.infos[f.doctor.ID] = &DoctorInfo{FirstName: "Priya", LastName: "Nair", DoctorDepartment: "Cardiology"}
	link := f.patientUser
	f.patients.links[f.patientID] = &link
	f.service = NewService(f.repo, f.records, f.doctors, f.patients, events.NopPublisher{})
	return f
}

func amoxicillin() []Medication {
	return []Medication{{
		Name:      "Amoxicillin",
		Dosage:    "500mg",
		Frequency: "3x daily",
		Duration:  "7 days",
	}}
}

func TestCreatePrescription(t *testing.T) {
	f := newFixture(t)

	p, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "Dr. Priya Nair, MD",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != StatusActive {
		t.Errorf("status = %s, want %s", p.Status, StatusActive)
	}
	if p.PatientID != f.patientID {
		t.Errorf("patientId not denormalized from record: got %s, want %s", p.PatientID, f.patientID)
	}
	if p.DoctorID != f.doctor.ID {
		t.Errorf("doctorId = %s, want actor %s", p.DoctorID, f.doctor.ID)
	}
	if p.DateSigned.IsZero() {
		t.Error("dateSigned should default to now")
	}
}

func TestCreateRequiresMedications(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      nil,
		DigitalSignature: "sig",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.items) != 0 {
		t.Error("nothing should be written on validation failure")
	}
}

func TestCreateRejectsIncompleteMedicationLine(t *testing.T) {
	f := newFixture(t)

	meds := amoxicillin()
	meds[0].Dosage = ""
	_, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      meds,
		DigitalSignature: "sig",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRequiresSignature(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID: f.recordID,
		Medications:     amoxicillin(),
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateMissingRecordIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  uuid.New(),
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateOtherDoctorIsForbidden(t *testing.T) {
	f := newFixture(t)
	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}

	_, err := f.service.Create(context.Background(), other, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListByRecordExpandsDoctorNewestFirst(t *testing.T) {
	f := newFixture(t)
	// Each prescription is signed further in the past than the one before it,
	// so sorting by dateSigned would invert the creation order. Listings must
	// follow creation time; dateSigned is client-supplied and backdatable.
	for i := 0; i < 3; i++ {
		signed := time.Now().UTC().Add(-time.Duration(i+1) * time.Hour)
		_, err := f.service.Create(context.Background(), f.doctor, CreateInput{
			MedicalRecordID:  f.recordID,
			Medications:      amoxicillin(),
			DigitalSignature: "sig",
			DateSigned:       &signed,
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	views, err := f.service.ListByRecord(context.Background(), f.doctor, f.recordID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("len = %d, want 3", len(views))
	}
	for i := 1; i < len(views); i++ {
		if views[i].CreatedAt.After(views[i-1].CreatedAt) {
			t.Error("listing is not newest-first by creation time")
		}
	}
	if views[0].DateSigned.After(views[2].DateSigned) {
		t.Error("listing followed the backdated signature, want creation order")
	}
	if views[0].Doctor == nil || views[0].Doctor.DoctorDepartment != "Cardiology" {
		t.Errorf("doctor expansion missing: %+v", views[0].Doctor)
	}
}

func TestListByPatientSelfScope(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	owner := auth.Identity{ID: f.patientUser, Role: auth.RolePatient}
	views, err := f.service.ListByPatient(context.Background(), owner, f.patientID)
	if err != nil {
		t.Fatalf("own patient list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len = %d, want 1", len(views))
	}

	stranger := auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.service.ListByPatient(context.Background(), stranger, f.patientID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for other patient, got %v", err)
	}

	if _, err := f.service.ListByPatient(context.Background(), stranger, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing patient should be not found before forbidden, got %v", err)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	f := newFixture(t)
	p, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled := string(StatusCancelled)
	updated, err := f.service.Update(context.Background(), f.doctor, p.ID, UpdateInput{Status: &cancelled})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", updated.Status, StatusCancelled)
	}

	completed := string(StatusCompleted)
	if _, err := f.service.Update(context.Background(), f.doctor, p.ID, UpdateInput{Status: &completed}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("terminal state must be frozen, got %v", err)
	}
}

func TestUpdateMedicationsValidated(t *testing.T) {
	f := newFixture(t)
	p, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.service.Update(context.Background(), f.doctor, p.ID, UpdateInput{Medications: []Medication{}}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("empty medications should be rejected, got %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), p.ID)
	if len(stored.Medications) != 1 {
		t.Error("failed update must not change stored medications")
	}
}

func TestUpdateOwnershipAfterExistence(t *testing.T) {
	f := newFixture(t)
	p, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	cancelled := string(StatusCancelled)
	if _, err := f.service.Update(context.Background(), other, p.ID, UpdateInput{Status: &cancelled}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.service.Update(context.Background(), other, uuid.New(), UpdateInput{Status: &cancelled}); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("missing id must be not found before forbidden, got %v", err)
	}
}

func TestDeleteOwningDoctorOnly(t *testing.T) {
	f := newFixture(t)
	p, err := f.service.Create(context.Background(), f.doctor, CreateInput{
		MedicalRecordID:  f.recordID,
		Medications:      amoxicillin(),
		DigitalSignature: "sig",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	if err := f.service.Delete(context.Background(), other, p.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := f.service.Delete(context.Background(), f.doctor, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := f.repo.GetByID(context.Background(), p.ID); got != nil {
		t.Error("prescription should be hard deleted")
	}
	if err := f.service.Delete(context.Background(), f.doctor, p.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}
