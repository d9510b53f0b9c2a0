package medicalrecord

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

type mockRepo struct {
	records  map[uuid.UUID]*MedicalRecord
	versions map[uuid.UUID][]*Version

	// forceConflict makes the next ApplyUpdate behave as if another writer
	// raced in between the service's read and the transaction.
	forceConflict bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		records:  make(map[uuid.UUID]*MedicalRecord),
		versions: make(map[uuid.UUID][]*Version),
	}
}

func (m *mockRepo) Create(_ context.Context, r *MedicalRecord) error {
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) ApplyUpdate(_ context.Context, r *MedicalRecord, expectedVersion int, snap *Version) (bool, error) {
	stored, ok := m.records[r.ID]
	if !ok {
		return false, nil
	}
	if m.forceConflict {
		m.forceConflict = false
		stored.CurrentVersion++
	}
	if stored.CurrentVersion != expectedVersion {
		return false, nil
	}
	cp := *r
	cp.CurrentVersion = expectedVersion + 1
	m.records[r.ID] = &cp
	m.versions[r.ID] = append(m.versions[r.ID], snap)
	return true, nil
}

func (m *mockRepo) ListVersions(_ context.Context, recordID uuid.UUID) ([]*Version, error) {
	return m.versions[recordID], nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var items []*MedicalRecord
	for _, r := range m.records {
		if r.PatientID == patientID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var items []*MedicalRecord
	for _, r := range m.records {
		if r.DoctorID == doctorID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

type mockPatients struct {
	links map[uuid.UUID]*uuid.UUID
}

func (m *mockPatients) UserLink(_ context.Context, patientID uuid.UUID) (*uuid.UUID, bool, error) {
	userID, ok := m.links[patientID]
	return userID, ok, nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	patientID uuid.UUID
	userID    uuid.UUID
	doctor    auth.Identity
}

func newFixture() *fixture {
	patientID := uuid.New()
	userID := uuid.New()
	repo := newMockRepo()
	svc := NewService(repo,
		&mockPatients{links: map[uuid.UUID]*uuid.UUID{patientID: &userID}},
		events.NopPublisher{})
	return &fixture{
		svc:       svc,
		repo:      repo,
		patientID: patientID,
		userID:    userID,
		doctor:    auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor},
	}
}

func (f *fixture) create(t *testing.T) *MedicalRecord {
	t.Helper()
	m, err := f.svc.Create(context.Background(), f.doctor, CreateInput{
		PatientID:     f.patientID,
		Diagnosis:     "Acute bronchitis",
		Symptoms:      "Cough, fever",
		TreatmentPlan: "Rest and fluids",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

func strptr(s string) *string { return &s }

func TestCreate_StartsAtVersionOne(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	if m.CurrentVersion != 1 {
		t.Errorf("currentVersion = %d, want 1", m.CurrentVersion)
	}
	if len(f.repo.versions[m.ID]) != 0 {
		t.Errorf("new record has %d snapshots, want 0", len(f.repo.versions[m.ID]))
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.doctor, CreateInput{
		PatientID:     uuid.New(),
		Diagnosis:     "x",
		Symptoms:      "y",
		TreatmentPlan: "z",
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_SnapshotsPreStateAndIncrementsVersion(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	updated, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis: strptr("Pneumonia"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.CurrentVersion != 2 {
		t.Errorf("currentVersion = %d, want 2", updated.CurrentVersion)
	}
	if updated.Diagnosis != "Pneumonia" {
		t.Errorf("diagnosis = %q", updated.Diagnosis)
	}
	// Unpatched fields survive.
	if updated.Symptoms != "Cough, fever" || updated.TreatmentPlan != "Rest and fluids" {
		t.Errorf("unpatched fields changed: %+v", updated)
	}

	snaps := f.repo.versions[m.ID]
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	snap := snaps[0]
	if snap.Version != 1 {
		t.Errorf("snapshot version = %d, want 1", snap.Version)
	}
	if snap.Diagnosis != "Acute bronchitis" {
		t.Errorf("snapshot holds post-update state: %q", snap.Diagnosis)
	}
	if snap.UpdatedBy != f.doctor.ID {
		t.Errorf("snapshot updatedBy = %s, want owning doctor", snap.UpdatedBy)
	}
}

func TestUpdate_SnapshotKeepsPreUpdateMetadata(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	// Age the stored head so the snapshot timestamp is distinguishable from
	// the moment of the supersede.
	writtenAt := time.Now().UTC().Add(-48 * time.Hour)
	f.repo.records[m.ID].UpdatedAt = writtenAt

	admin := auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin}
	if _, err := f.svc.Update(context.Background(), admin, m.ID, UpdateInput{
		Diagnosis: strptr("Revised on review"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	snaps := f.repo.versions[m.ID]
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	snap := snaps[0]
	if snap.UpdatedBy != f.doctor.ID {
		t.Errorf("snapshot updatedBy = %s, want owning doctor, not the admin actor", snap.UpdatedBy)
	}
	if !snap.UpdatedAt.Equal(writtenAt) {
		t.Errorf("snapshot updatedAt = %s, want the superseded state's timestamp %s", snap.UpdatedAt, writtenAt)
	}
}

func TestUpdate_RefreshesHeadTimestamp(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	stale := time.Now().UTC().Add(-time.Hour)
	f.repo.records[m.ID].UpdatedAt = stale

	updated, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis: strptr("Pneumonia"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.UpdatedAt.After(stale) {
		t.Errorf("updatedAt = %s, still the pre-update timestamp", updated.UpdatedAt)
	}
}

func TestUpdate_VersionsAreMonotonic(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
			Notes: strptr("follow-up"),
		}); err != nil {
			t.Fatalf("update %d: %v", i+1, err)
		}
	}

	head, _ := f.repo.GetByID(context.Background(), m.ID)
	if head.CurrentVersion != 4 {
		t.Errorf("currentVersion = %d, want 4", head.CurrentVersion)
	}
	snaps := f.repo.versions[m.ID]
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	for i, snap := range snaps {
		if snap.Version != i+1 {
			t.Errorf("snapshot %d has version %d, want %d", i, snap.Version, i+1)
		}
	}
}

func TestUpdate_MissingRecordIsNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Update(context.Background(), f.doctor, uuid.New(), UpdateInput{
		Diagnosis: strptr("x"),
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_OtherDoctorForbiddenAndNothingWritten(t *testing.T) {
	f := newFixture()
	m := f.create(t)
	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}

	_, err := f.svc.Update(context.Background(), other, m.ID, UpdateInput{
		Diagnosis: strptr("Tampered"),
	})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	head, _ := f.repo.GetByID(context.Background(), m.ID)
	if head.CurrentVersion != 1 || head.Diagnosis != "Acute bronchitis" {
		t.Error("rejected update must not change the record")
	}
	if len(f.repo.versions[m.ID]) != 0 {
		t.Error("rejected update must not append a snapshot")
	}
}

func TestUpdate_ValidationFailuresWriteNothing(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	cases := []UpdateInput{
		{}, // empty patch
		{Diagnosis: strptr("")}, // clearing a clinical field
	}
	for i, in := range cases {
		if _, err := f.svc.Update(context.Background(), f.doctor, m.ID, in); !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}

	head, _ := f.repo.GetByID(context.Background(), m.ID)
	if head.CurrentVersion != 1 || len(f.repo.versions[m.ID]) != 0 {
		t.Error("failed validation must leave record and history untouched")
	}
}

func TestUpdate_StaleExpectedVersionConflicts(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	if _, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis: strptr("Pneumonia"),
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	stale := 1
	_, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis:       strptr("Bronchitis again"),
		ExpectedVersion: &stale,
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestUpdate_RacingWriterConflictsWithoutPartialWrite(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	// Another writer bumps the version between the service's read and the
	// guarded transaction.
	f.repo.forceConflict = true

	_, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis: strptr("Lost update"),
	})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	head, _ := f.repo.GetByID(context.Background(), m.ID)
	if head.Diagnosis == "Lost update" {
		t.Error("conflicting update must not be applied")
	}
	if len(f.repo.versions[m.ID]) != 0 {
		t.Error("conflicting update must not append a snapshot")
	}
}

func TestGet_PatientSelfScope(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	own := auth.Identity{ID: f.userID, Role: auth.RolePatient}
	if _, _, err := f.svc.Get(context.Background(), own, m.ID); err != nil {
		t.Errorf("own record: %v", err)
	}

	stranger := auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
	if _, _, err := f.svc.Get(context.Background(), stranger, m.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	// Missing record reports NotFound even to an actor who could never own it.
	if _, _, err := f.svc.Get(context.Background(), stranger, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGet_ReturnsVersionHistory(t *testing.T) {
	f := newFixture()
	m := f.create(t)

	if _, err := f.svc.Update(context.Background(), f.doctor, m.ID, UpdateInput{
		Diagnosis: strptr("Pneumonia"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, versions, err := f.svc.Get(context.Background(), f.doctor, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Errorf("versions = %+v", versions)
	}
}

func TestListByDoctor_DoctorSelfScope(t *testing.T) {
	f := newFixture()
	f.create(t)

	if _, _, err := f.svc.ListByDoctor(context.Background(), f.doctor, f.doctor.ID, 20, 0); err != nil {
		t.Errorf("own records: %v", err)
	}
	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, _, err := f.svc.ListByDoctor(context.Background(), other, f.doctor.ID, 20, 0); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}
