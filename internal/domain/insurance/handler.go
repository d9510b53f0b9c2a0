package insurance

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
	api.POST("/claims", h.File, auth.RequireRole(auth.RoleBillingStaff))
	api.GET("/claims", h.ListQueue, auth.RequireRole(auth.RoleInsuranceStaff))
	api.GET("/claims/:id", h.Get,
		auth.RequireRole(auth.RoleBillingStaff, auth.RoleInsuranceStaff, auth.RolePatient))
	api.GET("/claims/patient/:patientId", h.ListByPatient,
		auth.RequireRole(auth.RoleBillingStaff, auth.RoleInsuranceStaff, auth.RolePatient))
	api.PATCH("/claims/:id/review", h.StartReview, auth.RequireRole(auth.RoleInsuranceStaff))
	api.PATCH("/claims/:id/decision", h.Decide, auth.RequireRole(auth.RoleInsuranceStaff))
}

func (h *Handler) File(c echo.Context) error {
	var in FileInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	claim, err := h.svc.File(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Claim filed successfully", respond.Payload{"claim": claim})
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
	claim, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Claim fetched successfully", respond.Payload{"claim": claim})
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
	claims, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID)
	if err != nil {
		return err
	}
	return respond.OK(c, "Claims fetched successfully", respond.Payload{
		"count":  len(claims),
		"claims": claims,
	})
}

func (h *Handler) ListQueue(c echo.Context) error {
	params := pagination.FromContext(c)
	claims, total, err := h.svc.ListQueue(c.Request().Context(), c.QueryParam("status"), params.Limit, params.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Claims fetched successfully", respond.Payload{
		"claims": pagination.NewResponse(claims, total, params.Limit, params.Offset),
	})
}

func (h *Handler) StartReview(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	claim, err := h.svc.StartReview(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Claim moved to review", respond.Payload{"claim": claim})
}

func (h *Handler) Decide(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in DecisionInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	claim, err := h.svc.Decide(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return respond.OK(c, "Claim decided", respond.Payload{"claim": claim})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
