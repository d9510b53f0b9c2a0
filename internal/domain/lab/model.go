package lab

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lab order lifecycle state. Verified and Cancelled are
// terminal.
type OrderStatus string

const (
	StatusOrdered    OrderStatus = "Ordered"
	StatusInProgress OrderStatus = "InProgress"
	StatusCompleted  OrderStatus = "Completed"
	StatusVerified   OrderStatus = "Verified"
	StatusCancelled  OrderStatus = "Cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusOrdered:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusVerified, StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusOrdered, StatusInProgress, StatusCompleted, StatusVerified, StatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

// Priority of a lab order.
type Priority string

const (
	PriorityRoutine Priority = "Routine"
	PriorityUrgent  Priority = "Urgent"
	PriorityStat    Priority = "Stat"
)

var validPriorities = map[Priority]bool{
	PriorityRoutine: true,
	PriorityUrgent:  true,
	PriorityStat:    true,
}

// Order maps to the lab_order table. OrderedBy is the requesting doctor and
// never changes.
type Order struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	PatientID uuid.UUID   `db:"patient_id" json:"patientId"`
	OrderedBy uuid.UUID   `db:"ordered_by" json:"orderedBy"`
	TestCode  string      `db:"test_code" json:"testCode"`
	TestName  string      `db:"test_name" json:"testName"`
	Priority  Priority    `db:"priority" json:"priority"`
	Status    OrderStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}

// Result maps to the lab_result table, one row per completed order.
// VerifiedBy is set when a supervisor signs off.
type Result struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrderID        uuid.UUID  `db:"order_id" json:"orderId"`
	Findings       string     `db:"findings" json:"findings"`
	Value          *string    `db:"value" json:"value,omitempty"`
	Unit           *string    `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string    `db:"reference_range" json:"referenceRange,omitempty"`
	EnteredBy      uuid.UUID  `db:"entered_by" json:"enteredBy"`
	VerifiedBy     *uuid.UUID `db:"verified_by" json:"verifiedBy,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// OrderView is an order with its result attached when the reader may see it.
type OrderView struct {
	Order
	Result *Result `json:"result,omitempty"`
}
