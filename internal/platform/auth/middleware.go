package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/hms/internal/platform/apperr"
)

// Middleware authenticates the bearer token and places the caller Identity
// on the request context. Paths listed in skip are served unauthenticated
// (login, registration, health).
func Middleware(secret []byte, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipped[c.Path()] {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperr.Unauthenticated("missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return apperr.Unauthenticated("invalid authorization format")
			}

			identity, tenantID, err := ParseToken(secret, parts[1])
			if err != nil {
				return apperr.Unauthenticated("invalid token")
			}

			// Tenant middleware downstream reads this before resolving the schema.
			c.Set("jwt_tenant_id", tenantID)

			ctx := WithIdentity(c.Request().Context(), identity)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole checks that the caller holds one of the allowed roles.
// Admin passes every gate. Default-deny for everything else.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := FromContext(c.Request().Context())
			if !ok {
				return apperr.Unauthenticated("not authenticated")
			}
			if identity.Role == RoleAdmin || allowed[identity.Role] {
				return next(c)
			}
			return apperr.Forbidden("insufficient role for this operation")
		}
	}
}

// MustIdentity returns the caller identity or an Unauthenticated error.
// Handlers use it to pass the actor explicitly into services.
func MustIdentity(c echo.Context) (Identity, error) {
	identity, ok := FromContext(c.Request().Context())
	if !ok {
		return Identity{}, apperr.Unauthenticated("not authenticated")
	}
	return identity, nil
}
