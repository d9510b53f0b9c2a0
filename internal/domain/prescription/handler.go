package prescription

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	write := g.Group("/prescriptions", auth.RequireRole(auth.RoleDoctor))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Delete)

	read := g.Group("/prescriptions", auth.RequireRole(
		auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist, auth.RolePatient,
	))
	read.GET("/record/:recordId", h.ListByRecord)
	read.GET("/patient/:patientId", h.ListByPatient)
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.service.Create(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Prescription created successfully", respond.Payload{"prescription": p})
}

func (h *Handler) ListByRecord(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	recordID, err := parseID(c.Param("recordId"))
	if err != nil {
		return err
	}
	views, err := h.service.ListByRecord(c.Request().Context(), actor, recordID)
	if err != nil {
		return err
	}
	return respond.OK(c, "Prescriptions fetched successfully", respond.Payload{
		"count":         len(views),
		"prescriptions": views,
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
	views, err := h.service.ListByPatient(c.Request().Context(), actor, patientID)
	if err != nil {
		return err
	}
	return respond.OK(c, "Prescriptions fetched successfully", respond.Payload{
		"count":         len(views),
		"prescriptions": views,
	})
}

func (h *Handler) Update(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	p, err := h.service.Update(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return respond.OK(c, "Prescription updated successfully", respond.Payload{"prescription": p})
}

func (h *Handler) Delete(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return respond.OK(c, "Prescription deleted successfully", nil)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
