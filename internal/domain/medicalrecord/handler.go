package medicalrecord

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
	api.POST("/medical-records", h.Create, auth.RequireRole(auth.RoleDoctor))
	api.PUT("/medical-records/:id", h.Update, auth.RequireRole(auth.RoleDoctor))
	api.GET("/medical-records/:id", h.Get,
		auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePatient))
	api.GET("/medical-records/patient/:patientId", h.ListByPatient,
		auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePatient))
	api.GET("/medical-records/doctor/:doctorId", h.ListByDoctor,
		auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
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
	m, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Medical record created", respond.Payload{"medicalRecord": m})
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
	m, err := h.svc.Update(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return respond.OK(c, "Medical record updated", respond.Payload{"medicalRecord": m})
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
	m, versions, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Medical record", respond.Payload{
		"medicalRecord": m,
		"versions":      versions,
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
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), actor, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Medical records", respond.Payload{
		"medicalRecords": pagination.NewResponse(items, total, pg.Limit, pg.Offset),
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
	return respond.OK(c, "Medical records", respond.Payload{
		"medicalRecords": pagination.NewResponse(items, total, pg.Limit, pg.Offset),
	})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
