package billing

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error)

	CreatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)

	// RecordPayment inserts the payment and, when markPaid is set, flips
	// the invoice to Paid in the same transaction.
	RecordPayment(ctx context.Context, p *Payment, markPaid bool) error
}
