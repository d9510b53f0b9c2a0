package insurance

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the claim lifecycle state. Approved and Denied are
// terminal; once decided, a claim never changes.
type ClaimStatus string

const (
	StatusSubmitted ClaimStatus = "Submitted"
	StatusInReview  ClaimStatus = "InReview"
	StatusApproved  ClaimStatus = "Approved"
	StatusDenied    ClaimStatus = "Denied"
)

var transitions = map[ClaimStatus][]ClaimStatus{
	StatusSubmitted: {StatusInReview},
	StatusInReview:  {StatusApproved, StatusDenied},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to ClaimStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Claim maps to the claim table. PatientID is denormalized from the invoice
// at filing time; DecidedBy and DecisionNote are set when the claim is
// approved or denied.
type Claim struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	InvoiceID    uuid.UUID   `db:"invoice_id" json:"invoiceId"`
	PatientID    uuid.UUID   `db:"patient_id" json:"patientId"`
	Provider     string      `db:"provider" json:"provider"`
	PolicyNumber string      `db:"policy_number" json:"policyNumber"`
	AmountCents  int64       `db:"amount_cents" json:"amountCents"`
	Status       ClaimStatus `db:"status" json:"status"`
	DecidedBy    *uuid.UUID  `db:"decided_by" json:"decidedBy,omitempty"`
	DecisionNote *string     `db:"decision_note" json:"decisionNote,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}
