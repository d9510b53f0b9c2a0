package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/events"
)

// PatientDirectory resolves patient rows for existence and self-scope checks.
type PatientDirectory interface {
	UserLink(ctx context.Context, patientID uuid.UUID) (userID *uuid.UUID, exists bool, err error)
}

type Service struct {
	repo      Repository
	patients  PatientDirectory
	publisher events.Publisher
}

func NewService(repo Repository, patients PatientDirectory, publisher events.Publisher) *Service {
	return &Service{repo: repo, patients: patients, publisher: publisher}
}

// InvoiceInput carries the fields accepted when drafting an invoice. The
// total is always computed from the items, never taken from the request.
type InvoiceInput struct {
	PatientID uuid.UUID `json:"patientId"`
	Items     []Item    `json:"items"`
}

// PaymentInput carries the fields accepted when recording a payment.
type PaymentInput struct {
	AmountCents int64  `json:"amountCents"`
	Method      string `json:"method"`
}

// CreateInvoice drafts a new invoice for a patient.
func (s *Service) CreateInvoice(ctx context.Context, actor auth.Identity, in InvoiceInput) (*Invoice, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	if err := ValidateItems(in.Items); err != nil {
		return nil, err
	}

	_, exists, err := s.patients.UserLink(ctx, in.PatientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", in.PatientID)
	}

	inv := &Invoice{
		ID:         uuid.New(),
		PatientID:  in.PatientID,
		Items:      in.Items,
		TotalCents: Total(in.Items),
		Status:     StatusDraft,
		IssuedBy:   actor.ID,
	}
	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicBilling, inv.ID))
	return inv, nil
}

// UpdateItems replaces the line items of a Draft invoice and recomputes the
// total. Issued and terminal invoices are frozen.
func (s *Service) UpdateItems(ctx context.Context, id uuid.UUID, items []Item) (*Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft {
		return nil, apperr.Validation("only draft invoices can be edited")
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	inv.Items = items
	inv.TotalCents = Total(items)
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicBilling, inv.ID))
	return inv, nil
}

// Issue moves a Draft invoice to Issued, making it payable.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, id, StatusIssued)
}

// Void cancels an invoice that has not been paid.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.transition(ctx, id, StatusVoid)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to InvoiceStatus) (*Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(inv.Status, to) {
		return nil, apperr.Validation("invoice in status %s cannot move to %s", inv.Status, to)
	}
	inv.Status = to
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicBilling, inv.ID))
	return inv, nil
}

// RecordPayment applies a payment to an Issued invoice. When the payments
// cover the total, the invoice flips to Paid in the same transaction.
func (s *Service) RecordPayment(ctx context.Context, actor auth.Identity, invoiceID uuid.UUID, in PaymentInput) (*InvoiceView, error) {
	inv, err := s.getInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusIssued {
		return nil, apperr.Validation("payments can only be recorded against issued invoices")
	}
	if in.AmountCents <= 0 {
		return nil, apperr.Validation("payment amount must be positive")
	}
	method := PaymentMethod(in.Method)
	if !validMethods[method] {
		return nil, apperr.Validation("invalid payment method: %s", in.Method)
	}

	existing, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	paid := sum(existing)
	if paid+in.AmountCents > inv.TotalCents {
		return nil, apperr.Validation("payment exceeds the outstanding balance")
	}

	p := &Payment{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		AmountCents: in.AmountCents,
		Method:      method,
		ReceivedBy:  actor.ID,
	}
	covered := paid+in.AmountCents == inv.TotalCents
	if err := s.repo.RecordPayment(ctx, p, covered); err != nil {
		return nil, apperr.Internal(err)
	}
	if covered {
		inv.Status = StatusPaid
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicBilling, inv.ID))

	return &InvoiceView{
		Invoice:          *inv,
		Payments:         append(existing, p),
		PaidCents:        paid + in.AmountCents,
		OutstandingCents: inv.TotalCents - paid - in.AmountCents,
	}, nil
}

// Get returns an invoice with its payments. Patients only see their own.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*InvoiceView, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, inv.PatientID); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, inv)
}

// ListByPatient returns the patient's invoices newest-first with payments
// attached. A patient actor may only list their own.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) ([]*InvoiceView, error) {
	userID, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only access their own invoices")
		}
	}

	invoices, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	views := make([]*InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		v, err := s.view(ctx, inv)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) getInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if inv == nil {
		return nil, apperr.NotFound("invoice %s not found", id)
	}
	return inv, nil
}

func (s *Service) view(ctx context.Context, inv *Invoice) (*InvoiceView, error) {
	payments, err := s.repo.ListPayments(ctx, inv.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	paid := sum(payments)
	return &InvoiceView{
		Invoice:          *inv,
		Payments:         payments,
		PaidCents:        paid,
		OutstandingCents: inv.TotalCents - paid,
	}, nil
}

func (s *Service) requireOwnPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	userID, _, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if userID == nil || !actor.Owns(*userID) {
		return apperr.Forbidden("patients may only access their own invoices")
	}
	return nil
}

func sum(payments []*Payment) int64 {
	var total int64
	for _, p := range payments {
		total += p.AmountCents
	}
	return total
}
