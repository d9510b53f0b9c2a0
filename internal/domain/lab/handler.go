package lab

import (
	"context"

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
	api.POST("/labs/orders", h.Order, auth.RequireRole(auth.RoleDoctor))
	api.GET("/labs/orders", h.ListQueue,
		auth.RequireRole(auth.RoleTechnician, auth.RoleLabSupervisor))
	api.GET("/labs/orders/:id", h.Get)
	api.GET("/labs/patient/:patientId", h.ListByPatient,
		auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePatient))
	api.PATCH("/labs/orders/:id/start", h.Start, auth.RequireRole(auth.RoleTechnician))
	api.POST("/labs/orders/:id/result", h.EnterResult, auth.RequireRole(auth.RoleTechnician))
	api.PATCH("/labs/orders/:id/verify", h.Verify, auth.RequireRole(auth.RoleLabSupervisor))
	api.PATCH("/labs/orders/:id/cancel", h.Cancel, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) Order(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in OrderInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	o, err := h.svc.Order(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Lab test ordered", respond.Payload{"order": o})
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
	v, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Lab order fetched successfully", respond.Payload{"order": v})
}

func (h *Handler) ListQueue(c echo.Context) error {
	params := pagination.FromContext(c)
	items, total, err := h.svc.ListQueue(c.Request().Context(), c.QueryParam("status"), params.Limit, params.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Lab orders fetched successfully", respond.Payload{
		"orders": pagination.NewResponse(items, total, params.Limit, params.Offset),
	})
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
	views, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID)
	if err != nil {
		return err
	}
	return respond.OK(c, "Lab orders fetched successfully", respond.Payload{
		"count":  len(views),
		"orders": views,
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.transition(c, h.svc.Start)
}

func (h *Handler) Verify(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	v, err := h.svc.Verify(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Lab result verified", respond.Payload{"order": v})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

func (h *Handler) EnterResult(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in ResultInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	v, err := h.svc.EnterResult(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Lab result recorded", respond.Payload{"order": v})
}

func (h *Handler) transition(c echo.Context, op func(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Order, error)) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	o, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Lab order updated", respond.Payload{"order": o})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
