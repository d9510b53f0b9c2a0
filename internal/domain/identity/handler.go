package identity

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/hms/internal/platform/apperr"
	"github.com/carebridge/hms/internal/platform/auth"
	"github.com/carebridge/hms/internal/platform/db"
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
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me)

	api.POST("/users/staff", h.CreateStaff, auth.RequireRole(auth.RoleAdmin))
	api.GET("/doctors", h.ListDoctors, auth.RequireRole(auth.StaffRoles()...))
	api.GET("/doctors/:id", h.GetDoctor, auth.RequireRole(append(auth.StaffRoles(), auth.RolePatient)...))
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Account created", respond.Payload{"user": u})
}

func (h *Handler) Login(c echo.Context) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	tenantID := db.TenantFromContext(c.Request().Context())
	u, token, err := h.svc.Login(c.Request().Context(), in.Email, in.Password, tenantID)
	if err != nil {
		return err
	}
	return respond.OK(c, "Login successful", respond.Payload{"token": token, "user": u})
}

func (h *Handler) Me(c echo.Context) error {
	actor, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Me(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return respond.OK(c, "User profile", respond.Payload{"user": u})
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var in StaffInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.CreateStaff(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond.Created(c, "Staff account created", respond.Payload{"user": u})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Doctors", respond.Payload{
		"doctors": pagination.NewResponse(items, total, pg.Limit, pg.Offset),
	})
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Doctor", respond.Payload{"doctor": d})
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}
