package appointment

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/respond"
	"github.com/carebridge/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Book,
		auth.RequireRole(auth.RolePatient, auth.RoleReceptionist, auth.RoleAdmin))
	api.GET("/appointments/:id", h.Get)
	api.PATCH("/appointments/:id/status", h.UpdateStatus,
		auth.RequireRole(auth.RoleDoctor, auth.RolePatient, auth.RoleAdmin))
	api.GET("/appointments/patient/:patientId", h.ListByPatient)
	api.GET("/appointments/doctor/:doctorId", h.ListByDoctor,
		auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist, auth.RoleAdmin))
}

func (h *Handler) Book(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Appointment booked", respond.Payload{"appointment": a})
}

func (h *Handler) Get(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Appointment", respond.Payload{"appointment": a})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in struct {
		Status string  `json:"status"`
		Notes  *string `json:"notes,omitempty"`
	}
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	status, ok := ParseStatus(in.Status)
	if !ok {
		return apperr.Validation("invalid status: %s", in.Status)
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), actor, id, status, in.Notes)
	if err != nil {
		return err
	}
	return respond.OK(c, "Appointment updated", respond.Payload{"appointment": a})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c.Param("patientId"))
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Appointments", respond.Payload{
		"appointments": pagination.NewResponse(items, total, pg.Limit, pg.Offset),
	})
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c.Param("doctorId"))
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), actor, doctorID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Appointments", respond.Payload{
		"appointments": pagination.NewResponse(items, total, pg.Limit, pg.Offset),
	})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
