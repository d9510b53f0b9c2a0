package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/apperr"
)

// InvoiceStatus is the invoice lifecycle state. Paid and Void are terminal.
type InvoiceStatus string

const (
	StatusDraft  InvoiceStatus = "Draft"
	StatusIssued InvoiceStatus = "Issued"
	StatusPaid   InvoiceStatus = "Paid"
	StatusVoid   InvoiceStatus = "Void"
)

var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:  {StatusIssued, StatusVoid},
	StatusIssued: {StatusPaid, StatusVoid},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one invoice line. Amounts are integer cents; never floats.
type Item struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unitCents"`
}

// ValidateItems checks the line-level rules: at least one line, every line
// described, positive quantity, non-negative unit price.
func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return apperr.Validation("at least one invoice item is required")
	}
	for i, it := range items {
		if it.Description == "" {
			return apperr.Validation("item %d must have a description", i+1)
		}
		if it.Quantity <= 0 {
			return apperr.Validation("item %d must have a positive quantity", i+1)
		}
		if it.UnitCents < 0 {
			return apperr.Validation("item %d must have a non-negative unit price", i+1)
		}
	}
	return nil
}

// Total computes the invoice total in cents from its lines. The stored
// total is always derived server-side, never taken from the client.
func Total(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += int64(it.Quantity) * it.UnitCents
	}
	return total
}

// Invoice maps to the invoice table. Items are stored as a jsonb array.
type Invoice struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	PatientID  uuid.UUID     `db:"patient_id" json:"patientId"`
	Items      []Item        `db:"items" json:"items"`
	TotalCents int64         `db:"total_cents" json:"totalCents"`
	Status     InvoiceStatus `db:"status" json:"status"`
	IssuedBy   uuid.UUID     `db:"issued_by" json:"issuedBy"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// PaymentMethod of a payment row.
type PaymentMethod string

const (
	MethodCash      PaymentMethod = "Cash"
	MethodCard      PaymentMethod = "Card"
	MethodTransfer  PaymentMethod = "Transfer"
	MethodInsurance PaymentMethod = "Insurance"
)

var validMethods = map[PaymentMethod]bool{
	MethodCash:      true,
	MethodCard:      true,
	MethodTransfer:  true,
	MethodInsurance: true,
}

// Payment maps to the payment table.
type Payment struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	InvoiceID   uuid.UUID     `db:"invoice_id" json:"invoiceId"`
	AmountCents int64         `db:"amount_cents" json:"amountCents"`
	Method      PaymentMethod `db:"method" json:"method"`
	ReceivedBy  uuid.UUID     `db:"received_by" json:"receivedBy"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

// InvoiceView is an invoice with its payments and the amount still owed.
type InvoiceView struct {
	Invoice
	Payments         []*Payment `json:"payments"`
	PaidCents        int64      `json:"paidCents"`
	OutstandingCents int64      `json:"outstandingCents"`
}
