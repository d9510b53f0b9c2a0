package billing

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	write := api.Group("/invoices", auth.RequireRole(auth.RoleBillingStaff))
	write.POST("", h.CreateInvoice)
	write.PUT("/:id/items", h.UpdateItems)
	write.PATCH("/:id/issue", h.Issue)
	write.PATCH("/:id/void", h.Void)
	write.POST("/:id/payments", h.RecordPayment)

	read := api.Group("/invoices", auth.RequireRole(auth.RoleBillingStaff, auth.RolePatient))
	read.GET("/:id", h.Get)
	read.GET("/patient/:patientId", h.ListByPatient)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in InvoiceInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Invoice created successfully", respond.Payload{"invoice": inv})
}

func (h *Handler) UpdateItems(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in struct {
		Items []Item `json:"items"`
	}
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	inv, err := h.svc.UpdateItems(c.Request().Context(), id, in.Items)
	if err != nil {
		return err
	}
	return respond.OK(c, "Invoice updated successfully", respond.Payload{"invoice": inv})
}

func (h *Handler) Issue(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	inv, err := h.svc.Issue(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Invoice issued", respond.Payload{"invoice": inv})
}

func (h *Handler) Void(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	inv, err := h.svc.Void(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Invoice voided", respond.Payload{"invoice": inv})
}

func (h *Handler) RecordPayment(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	v, err := h.svc.RecordPayment(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Payment recorded", respond.Payload{"invoice": v})
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
	return respond.OK(c, "Invoice fetched successfully", respond.Payload{"invoice": v})
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
	return respond.OK(c, "Invoices fetched successfully", respond.Payload{
		"count":    len(views),
		"invoices": views,
	})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
