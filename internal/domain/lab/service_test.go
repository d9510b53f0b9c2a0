package lab

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

type mockRepo struct {
	orders  map[uuid.UUID]*Order
	results map[uuid.UUID]*Result // keyed by order ID
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		orders:  make(map[uuid.UUID]*Order),
		results: make(map[uuid.UUID]*Result),
	}
}

func (m *mockRepo) CreateOrder(_ context.Context, o *Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) GetOrder(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) UpdateOrder(_ context.Context, o *Order) error {
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) ListOrders(_ context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	var out []*Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Order, error) {
	var out []*Order
	for _, o := range m.orders {
		if o.PatientID == patientID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateResult(_ context.Context, res *Result) error {
	cp := *res
	m.results[res.OrderID] = &cp
	return nil
}

func (m *mockRepo) GetResultByOrder(_ context.Context, orderID uuid.UUID) (*Result, error) {
	res, ok := m.results[orderID]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (m *mockRepo) Verify(_ context.Context, orderID, verifiedBy uuid.UUID) error {
	m.results[orderID].VerifiedBy = &verifiedBy
	m.orders[orderID].Status = StatusVerified
	return nil
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
	svc  *Service
	repo *mockRepo

	doctor      auth.Identity
	technician  auth.Identity
	supervisor  auth.Identity
	patientID   uuid.UUID
	patientUser uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:        newMockRepo(),
		doctor:      auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor},
		technician:  auth.Identity{ID: uuid.New(), Role: auth.RoleTechnician},
		supervisor:  auth.Identity{ID: uuid.New(), Role: auth.RoleLabSupervisor},
		patientID:   uuid.New(),
		patientUser: uuid.New(),
	}
	link := f.patientUser
	patients := &mockPatients{links: map[uuid.UUID]*uuid.UUID{f.patientID: &link}}
	f.svc = NewService(f.repo, patients, events.NopPublisher{})
	return f
}

func (f *fixture) order(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Order(context.Background(), f.doctor, OrderInput{
		PatientID: f.patientID,
		TestCode:  "CBC",
		TestName:  "Complete Blood Count",
	})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	return o
}

func TestOrderDefaultsToRoutine(t *testing.T) {
	f := newFixture()
	o := f.order(t)
	if o.Status != StatusOrdered {
		t.Errorf("status = %s, want %s", o.Status, StatusOrdered)
	}
	if o.Priority != PriorityRoutine {
		t.Errorf("priority = %s, want %s", o.Priority, PriorityRoutine)
	}
	if o.OrderedBy != f.doctor.ID {
		t.Errorf("orderedBy = %s, want %s", o.OrderedBy, f.doctor.ID)
	}
}

func TestOrderRejectsUnknownPatientAndPriority(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Order(context.Background(), f.doctor, OrderInput{
		PatientID: uuid.New(), TestCode: "CBC", TestName: "Complete Blood Count",
	})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("unknown patient: got %v, want not found", err)
	}

	_, err = f.svc.Order(context.Background(), f.doctor, OrderInput{
		PatientID: f.patientID, TestCode: "CBC", TestName: "Complete Blood Count", Priority: "ASAP",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("bad priority: got %v, want validation", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture()
	o := f.order(t)

	if _, err := f.svc.Start(context.Background(), f.technician, o.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	v, err := f.svc.EnterResult(context.Background(), f.technician, o.ID, ResultInput{
		Findings: "Within normal limits",
	})
	if err != nil {
		t.Fatalf("enter result: %v", err)
	}
	if v.Status != StatusCompleted {
		t.Errorf("status after result = %s, want %s", v.Status, StatusCompleted)
	}
	if v.Result == nil || v.Result.EnteredBy != f.technician.ID {
		t.Fatalf("result = %+v", v.Result)
	}

	verified, err := f.svc.Verify(context.Background(), f.supervisor, o.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != StatusVerified {
		t.Errorf("status = %s, want %s", verified.Status, StatusVerified)
	}
	if verified.Result.VerifiedBy == nil || *verified.Result.VerifiedBy != f.supervisor.ID {
		t.Errorf("verifiedBy = %v", verified.Result.VerifiedBy)
	}
}

func TestCannotSkipStates(t *testing.T) {
	f := newFixture()
	o := f.order(t)

	if _, err := f.svc.EnterResult(context.Background(), f.technician, o.ID, ResultInput{Findings: "x"}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("result before start: got %v, want validation", err)
	}
	if _, err := f.svc.Verify(context.Background(), f.supervisor, o.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("verify before completion: got %v, want validation", err)
	}
}

func TestSupervisorCannotVerifyOwnEntry(t *testing.T) {
	f := newFixture()
	o := f.order(t)

	if _, err := f.svc.Start(context.Background(), f.supervisor, o.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.svc.EnterResult(context.Background(), f.supervisor, o.ID, ResultInput{Findings: "x"}); err != nil {
		t.Fatalf("enter result: %v", err)
	}
	if _, err := f.svc.Verify(context.Background(), f.supervisor, o.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("self-verify: got %v, want forbidden", err)
	}

	other := auth.Identity{ID: uuid.New(), Role: auth.RoleLabSupervisor}
	if _, err := f.svc.Verify(context.Background(), other, o.ID); err != nil {
		t.Errorf("other supervisor should verify: %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	f := newFixture()
	o := f.order(t)

	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := f.svc.Cancel(context.Background(), other, o.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("other doctor cancel: got %v, want forbidden", err)
	}

	if _, err := f.svc.Cancel(context.Background(), f.doctor, o.ID); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), f.doctor, o.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("cancel of cancelled order: got %v, want validation", err)
	}

	if _, err := f.svc.Cancel(context.Background(), f.doctor, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("cancel of missing order: got %v, want not found", err)
	}
}

func TestPatientSeesOnlyVerifiedResults(t *testing.T) {
	f := newFixture()
	verifiedOrder := f.order(t)
	f.order(t) // stays Ordered

	if _, err := f.svc.Start(context.Background(), f.technician, verifiedOrder.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.EnterResult(context.Background(), f.technician, verifiedOrder.ID, ResultInput{Findings: "Normal"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Verify(context.Background(), f.supervisor, verifiedOrder.ID); err != nil {
		t.Fatal(err)
	}

	patient := auth.Identity{ID: f.patientUser, Role: auth.RolePatient}
	views, err := f.svc.ListByPatient(context.Background(), patient, f.patientID)
	if err != nil {
		t.Fatalf("patient list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("patient sees %d orders, want 1 (only verified)", len(views))
	}
	if views[0].ID != verifiedOrder.ID || views[0].Result == nil {
		t.Errorf("patient view = %+v", views[0])
	}

	// Staff see the pending order too.
	all, err := f.svc.ListByPatient(context.Background(), f.doctor, f.patientID)
	if err != nil {
		t.Fatalf("doctor list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("doctor sees %d orders, want 2", len(all))
	}

	// A different patient is refused after existence is established.
	stranger := auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.ListByPatient(context.Background(), stranger, f.patientID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("stranger list: got %v, want forbidden", err)
	}
	if _, err := f.svc.ListByPatient(context.Background(), stranger, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("missing patient: got %v, want not found", err)
	}
}

func TestGetHidesUnverifiedResultFromPatient(t *testing.T) {
	f := newFixture()
	o := f.order(t)
	if _, err := f.svc.Start(context.Background(), f.technician, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.EnterResult(context.Background(), f.technician, o.ID, ResultInput{Findings: "Pending review"}); err != nil {
		t.Fatal(err)
	}

	patient := auth.Identity{ID: f.patientUser, Role: auth.RolePatient}
	v, err := f.svc.Get(context.Background(), patient, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Result != nil {
		t.Error("unverified result must not be exposed to the patient")
	}

	dv, err := f.svc.Get(context.Background(), f.doctor, o.ID)
	if err != nil {
		t.Fatalf("doctor get: %v", err)
	}
	if dv.Result == nil {
		t.Error("doctor should see the unverified result")
	}
}

func TestListQueueFiltersByStatus(t *testing.T) {
	f := newFixture()
	a := f.order(t)
	f.order(t)
	if _, err := f.svc.Start(context.Background(), f.technician, a.ID); err != nil {
		t.Fatal(err)
	}

	items, total, err := f.svc.ListQueue(context.Background(), string(StatusOrdered), 10, 0)
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("queue = %d items, total %d, want 1/1", len(items), total)
	}

	if _, _, err := f.svc.ListQueue(context.Background(), "Bogus", 10, 0); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("bad status filter: got %v, want validation", err)
	}
}
