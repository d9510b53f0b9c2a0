package lab

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

// OrderInput carries the fields accepted when a doctor orders a test.
type OrderInput struct {
	PatientID uuid.UUID `json:"patientId"`
	TestCode  string    `json:"testCode"`
	TestName  string    `json:"testName"`
	Priority  string    `json:"priority"`
}

// ResultInput carries the fields a technician enters for a completed test.
type ResultInput struct {
	Findings       string  `json:"findings"`
	Value          *string `json:"value,omitempty"`
	Unit           *string `json:"unit,omitempty"`
	ReferenceRange *string `json:"referenceRange,omitempty"`
}

// Order creates a lab order in the Ordered state.
func (s *Service) Order(ctx context.Context, actor auth.Identity, in OrderInput) (*Order, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	if in.TestCode == "" || in.TestName == "" {
		return nil, apperr.Validation("testCode and testName are required")
	}
	priority := Priority(in.Priority)
	if priority == "" {
		priority = PriorityRoutine
	}
	if !validPriorities[priority] {
		return nil, apperr.Validation("invalid priority: %s", in.Priority)
	}

	_, exists, err := s.patients.UserLink(ctx, in.PatientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", in.PatientID)
	}

	o := &Order{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		OrderedBy: actor.ID,
		TestCode:  in.TestCode,
		TestName:  in.TestName,
		Priority:  priority,
		Status:    StatusOrdered,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("created", events.TopicLabs, o.ID))
	return o, nil
}

// Get returns an order with its result attached when the reader may see it.
// Patients only see their own orders, and only results that were verified.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*OrderView, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if o == nil {
		return nil, apperr.NotFound("lab order %s not found", id)
	}
	if actor.Role == auth.RolePatient {
		if err := s.requireOwnPatient(ctx, actor, o.PatientID); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, actor, o)
}

// ListQueue returns the lab worklist, optionally filtered by status.
func (s *Service) ListQueue(ctx context.Context, status string, limit, offset int) ([]*Order, int, error) {
	var f ListFilter
	if status != "" {
		parsed, ok := ParseStatus(status)
		if !ok {
			return nil, 0, apperr.Validation("invalid status: %s", status)
		}
		f.Status = parsed
	}
	items, total, err := s.repo.ListOrders(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

// ListByPatient returns a patient's orders. A patient actor only sees orders
// whose results have been verified.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) ([]*OrderView, error) {
	userID, exists, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !exists {
		return nil, apperr.NotFound("patient %s not found", patientID)
	}
	if actor.Role == auth.RolePatient {
		if userID == nil || !actor.Owns(*userID) {
			return nil, apperr.Forbidden("patients may only access their own lab results")
		}
	}

	orders, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		if actor.Role == auth.RolePatient && o.Status != StatusVerified {
			continue
		}
		v, err := s.view(ctx, actor, o)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Start moves an order from Ordered to InProgress.
func (s *Service) Start(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusInProgress) {
		return nil, apperr.Validation("order in status %s cannot be started", o.Status)
	}
	o.Status = StatusInProgress
	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicLabs, o.ID))
	return o, nil
}

// EnterResult records findings for an InProgress order and completes it.
func (s *Service) EnterResult(ctx context.Context, actor auth.Identity, id uuid.UUID, in ResultInput) (*OrderView, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCompleted) {
		return nil, apperr.Validation("results cannot be entered for an order in status %s", o.Status)
	}
	if in.Findings == "" {
		return nil, apperr.Validation("findings are required")
	}

	res := &Result{
		ID:             uuid.New(),
		OrderID:        o.ID,
		Findings:       in.Findings,
		Value:          in.Value,
		Unit:           in.Unit,
		ReferenceRange: in.ReferenceRange,
		EnteredBy:      actor.ID,
	}
	if err := s.repo.CreateResult(ctx, res); err != nil {
		return nil, apperr.Internal(err)
	}
	o.Status = StatusCompleted
	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicLabs, o.ID))
	return &OrderView{Order: *o, Result: res}, nil
}

// Verify is the supervisor sign-off on a Completed order. The supervisor
// cannot verify a result they entered themselves.
func (s *Service) Verify(ctx context.Context, actor auth.Identity, id uuid.UUID) (*OrderView, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusVerified) {
		return nil, apperr.Validation("order in status %s cannot be verified", o.Status)
	}

	res, err := s.repo.GetResultByOrder(ctx, o.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if res == nil {
		return nil, apperr.NotFound("no result recorded for lab order %s", o.ID)
	}
	if res.EnteredBy == actor.ID {
		return nil, apperr.Forbidden("a result cannot be verified by the person who entered it")
	}

	if err := s.repo.Verify(ctx, o.ID, actor.ID); err != nil {
		return nil, apperr.Internal(err)
	}
	o.Status = StatusVerified
	res.VerifiedBy = &actor.ID
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicLabs, o.ID))
	return &OrderView{Order: *o, Result: res}, nil
}

// Cancel aborts an order from any non-terminal state. Only the ordering
// doctor or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && !actor.Owns(o.OrderedBy) {
		return nil, apperr.Forbidden("only the ordering doctor may cancel this order")
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, apperr.Validation("order in status %s cannot be cancelled", o.Status)
	}
	o.Status = StatusCancelled
	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return nil, apperr.Internal(err)
	}
	_ = s.publisher.Publish(ctx, events.NewEvent("updated", events.TopicLabs, o.ID))
	return o, nil
}

func (s *Service) getOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if o == nil {
		return nil, apperr.NotFound("lab order %s not found", id)
	}
	return o, nil
}

func (s *Service) view(ctx context.Context, actor auth.Identity, o *Order) (*OrderView, error) {
	v := &OrderView{Order: *o}
	if actor.Role == auth.RolePatient && o.Status != StatusVerified {
		return v, nil
	}
	res, err := s.repo.GetResultByOrder(ctx, o.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	v.Result = res
	return v, nil
}

func (s *Service) requireOwnPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	userID, _, err := s.patients.UserLink(ctx, patientID)
	if err != nil {
		return apperr.Internal(err)
	}
	if userID == nil || !actor.Owns(*userID) {
		return apperr.Forbidden("patients may only access their own lab results")
	}
	return nil
}
