package insurance

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

// InvoiceInfo is the slice of an invoice the claims service needs.
type InvoiceInfo struct {
	PatientID  uuid.UUID
	TotalCents int64
	Payable    bool // Issued or Paid
}

// InvoiceDirectory resolves invoices without importing the billing package.
type InvoiceDirectory interface {
	InvoiceInfo(ctx context.Context, invoiceID uuid.UUID) (*InvoiceInfo, error)
}

// PatientDirectory resolves patient rows for the self-scope check.
type PatientDirectory interface {
	UserLink(ctx context.Context, patientID uuid.UUID) (userID *uuid.UUID, exists bool, err error)
}

type Service struct {
	repo      Repository
	invoices  InvoiceDirectory
	patients  PatientDirectory
	publisher events.Publisher
}

func NewService(repo Repository, invoices InvoiceDirectory, patients PatientDirectory, publisher events.Publisher) *Service {
	return &Service{repo: repo, invoices: invoices, patients: patients, publisher: publisher}
}

// FileInput carries the fields accepted when filing a claim.
type FileInput struct {
	InvoiceID    uuid.UUID `json:"invoiceId"`
	Provider     string    `json:"provider"`
	PolicyNumber string    `json:"policyNumber"`
	AmountCents  int64     `json:"amountCents"`
}

// DecisionInput carries the terminal decision on a claim under review.
type DecisionInput struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty"`
}

// File submits a claim against an issued or paid invoice. The claimed
// amount cannot exceed the invoice total.
func (s *Service) File(ctx context.Context, in FileInput) (*Claim, error) {
	if in.InvoiceID == uuid.Nil {
		return nil, apperr.Validation("invoiceId is required")
	}
	if in.Provider == "" || in.PolicyNumber == "" {
		return nil, apperr.Validation("provider and policyNumber are required")
	}
	if in.AmountCents <= 0 {
		return nil, apperr.Validation("claim amount must be positive")
	}

	inv, err := s.invoices.InvoiceInfo(ctx, in.InvoiceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inv == nil {
		return nil, apperr.NotFound("invoice %s not found", in.InvoiceID)
	}
	if !inv.Payable {
		return nil, apperr.Validation("claims can only be filed against issued or paid invoices")
	}
	if in.AmountCents > inv.TotalCents {
		return nil, apperr.Validation("claim amount exceeds the invoice total")
	}

	c := &Claim{
		ID:           uuid.New(),
		InvoiceID:    in.InvoiceID,
		PatientID:    inv.PatientID,
		Provider:     in.Provider,
		PolicyNumber: in.PolicyNumber,
		AmountCents:  in.AmountCents,
		Status:       StatusSubmitted,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicClaims, c.ID))
	return c, nil
}

// StartReview moves a submitted claim into review.
func (s *Service) StartReview(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, StatusInReview) {
		return nil, apperr.Validation("claim in status %s cannot enter review", c.Status)
	}
	c.Status = StatusInReview
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicClaims, c.ID))
	return c, nil
}

// Decide approves or denies a claim under review. The decision is terminal.
func (s *Service) Decide(ctx context.Context, actor auth.Identity, id uuid.UUID, in DecisionInput) (*Claim, error) {
	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	target := StatusDenied
	if in.Approve {
		target = StatusApproved
	}
	if !CanTransition(c.Status, target) {
		return nil, apperr.Validation("claim in status %s cannot be decided", c.Status)
	}
	c.Status = target
	c.DecidedBy = &actor.ID
	c.DecisionNote = in.Note
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicClaims, c.ID))
	return c, nil
}

// Get returns a claim. Patients only see their own.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Claim, error) {
	c, err := s.getClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, c.PatientID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListByPatient returns the patient's claims newest-first. A patient actor
// may only list their own.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) ([]*Claim, error) {
	userID, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only access their own claims")
		}
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

// ListQueue returns the review worklist for a given status.
func (s *Service) ListQueue(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	parsed := ClaimStatus(status)
	switch parsed {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusDenied:
	case "":
		parsed = StatusSubmitted
	default:
		return nil, 0, apperr.Validation("invalid status: %s", status)
	}
	items, total, err := s.repo.ListByStatus(ctx, parsed, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func (s *Service) getClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if c == nil {
		return nil, apperr.NotFound("claim %s not found", id)
	}
	return c, nil
}

func (s *Service) requireOwnPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	userID, _, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if userID == nil || !actor.Owns(*userID) {
		return apperr.Forbidden("patients may only access their own claims")
	}
	return nil
}
