package insurance

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

type mockRepo struct {
	claims map[uuid.UUID]*Claim
}

func newMockRepo() *mockRepo {
	return &mockRepo{claims: make(map[uuid.UUID]*Claim)}
}

func (m *mockRepo) Create(_ context.Context, c *Claim) error {
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c *Claim) error {
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Claim, error) {
	var out []*Claim
	for _, c := range m.claims {
		if c.PatientID == patientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByStatus(_ context.Context, status ClaimStatus, limit, offset int) ([]*Claim, int, error) {
	var out []*Claim
	for _, c := range m.claims {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
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

type mockInvoices struct {
	infos map[uuid.UUID]*InvoiceInfo
}

func (m *mockInvoices) InvoiceInfo(_ context.Context, invoiceID uuid.UUID) (*InvoiceInfo, error) {
	return m.infos[invoiceID], nil
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
	svc      *Service
	repo     *mockRepo
	invoices *mockInvoices

	reviewer    auth.Identity
	invoiceID   uuid.UUID
	patientID   uuid.UUID
	patientUser uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:        newMockRepo(),
		reviewer:    auth.Identity{ID: uuid.New(), Role: auth.RoleInsuranceStaff},
		invoiceID:   uuid.New(),
		patientID:   uuid.New(),
		patientUser: uuid.New(),
	}
	f.invoices = &mockInvoices{infos: map[uuid.UUID]*InvoiceInfo{
		f.invoiceID: {PatientID: f.patientID, TotalCents: 24000, Payable: true},
	}}
	link := f.patientUser
	patients := &mockPatients{links: map[uuid.UUID]*uuid.UUID{f.patientID: &link}}
	f.svc = NewService(f.repo, f.invoices, patients, events.NopPublisher{})
	return f
}

func (f *fixture) file(t *testing.T) *Claim {
	t.Helper()
	c, err := f.svc.File(context.Background(), FileInput{
		InvoiceID:    f.invoiceID,
		Provider:     "Acme Health",
		PolicyNumber: "POL-1042",
		AmountCents:  20000,
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	return c
}

func TestFileClaim(t *testing.T) {
	f := newFixture()
	c := f.file(t)

	if c.Status != StatusSubmitted {
		t.Errorf("status = %s, want %s", c.Status, StatusSubmitted)
	}
	if c.PatientID != f.patientID {
		t.Errorf("patientId not denormalized from invoice: got %s", c.PatientID)
	}
}

func TestFileValidation(t *testing.T) {
	f := newFixture()
	draftInvoice := uuid.New()
	f.invoices.infos[draftInvoice] = &InvoiceInfo{PatientID: f.patientID, TotalCents: 1000, Payable: false}

	cases := []struct {
		name string
		in   FileInput
		kind apperr.Kind
	}{
		{"missing invoice", FileInput{InvoiceID: uuid.New(), Provider: "p", PolicyNumber: "n", AmountCents: 100}, apperr.KindNotFound},
		{"draft invoice", FileInput{InvoiceID: draftInvoice, Provider: "p", PolicyNumber: "n", AmountCents: 100}, apperr.KindValidation},
		{"amount above total", FileInput{InvoiceID: f.invoiceID, Provider: "p", PolicyNumber: "n", AmountCents: 24001}, apperr.KindValidation},
		{"zero amount", FileInput{InvoiceID: f.invoiceID, Provider: "p", PolicyNumber: "n", AmountCents: 0}, apperr.KindValidation},
		{"missing provider", FileInput{InvoiceID: f.invoiceID, PolicyNumber: "n", AmountCents: 100}, apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.File(context.Background(), tc.in); !apperr.IsKind(err, tc.kind) {
				t.Errorf("got %v, want %s", err, tc.kind)
			}
		})
	}
}

func TestDecisionIsTerminal(t *testing.T) {
	f := newFixture()
	c := f.file(t)

	// A submitted claim cannot be decided before review.
	if _, err := f.svc.Decide(context.Background(), f.reviewer, c.ID, DecisionInput{Approve: true}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("decide before review: got %v, want validation", err)
	}

	if _, err := f.svc.StartReview(context.Background(), c.ID); err != nil {
		t.Fatalf("start review: %v", err)
	}

	note := "covered under outpatient policy"
	decided, err := f.svc.Decide(context.Background(), f.reviewer, c.ID, DecisionInput{Approve: true, Note: &note})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decided.Status != StatusApproved {
		t.Errorf("status = %s, want %s", decided.Status, StatusApproved)
	}
	if decided.DecidedBy == nil || *decided.DecidedBy != f.reviewer.ID {
		t.Errorf("decidedBy = %v", decided.DecidedBy)
	}
	if decided.DecisionNote == nil || *decided.DecisionNote != note {
		t.Errorf("decisionNote = %v", decided.DecisionNote)
	}

	// Terminal: no further transitions.
	if _, err := f.svc.Decide(context.Background(), f.reviewer, c.ID, DecisionInput{Approve: false}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("re-decide: got %v, want validation", err)
	}
	if _, err := f.svc.StartReview(context.Background(), c.ID); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("review after decision: got %v, want validation", err)
	}
}

func TestDenyClaim(t *testing.T) {
	f := newFixture()
	c := f.file(t)
	if _, err := f.svc.StartReview(context.Background(), c.ID); err != nil {
		t.Fatal(err)
	}

	decided, err := f.svc.Decide(context.Background(), f.reviewer, c.ID, DecisionInput{Approve: false})
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if decided.Status != StatusDenied {
		t.Errorf("status = %s, want %s", decided.Status, StatusDenied)
	}
}

func TestPatientSelfScope(t *testing.T) {
	f := newFixture()
	c := f.file(t)

	owner := auth.Identity{ID: f.patientUser, Role: auth.RolePatient}
	claims, err := f.svc.ListByPatient(context.Background(), owner, f.patientID)
	if err != nil {
		t.Fatalf("own list: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("len = %d, want 1", len(claims))
	}
	if _, err := f.svc.Get(context.Background(), owner, c.ID); err != nil {
		t.Errorf("own get: %v", err)
	}

	stranger := auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.Get(context.Background(), stranger, c.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("stranger get: got %v, want forbidden", err)
	}
	if _, err := f.svc.Get(context.Background(), stranger, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("missing claim: got %v, want not found", err)
	}
}

func TestListQueueDefaultsToSubmitted(t *testing.T) {
	f := newFixture()
	a := f.file(t)
	f.file(t)
	if _, err := f.svc.StartReview(context.Background(), a.ID); err != nil {
		t.Fatal(err)
	}

	items, total, err := f.svc.ListQueue(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("queue = %d/%d, want 1/1", len(items), total)
	}

	if _, _, err := f.svc.ListQueue(context.Background(), "Pending", 10, 0); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("bad status: got %v, want validation", err)
	}
}
