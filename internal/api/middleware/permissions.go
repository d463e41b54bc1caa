package middleware

import (
	"net/http"

	"guildhub/internal/perms"

	"github.com/labstack/echo/v4"
)

// RequireSystemAdmin gates a route to platform operators.
func RequireSystemAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsSystemAdmin(c) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequirePermission checks that the caller holds a resolved permission URN.
// System admins pass unconditionally.
func RequirePermission(svc *perms.Service, urn string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsSystemAdmin(c) {
				return next(c)
			}

			ok, err := svc.HasPermission(c.Request().Context(), GetUserID(c), urn)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve permissions")
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}

			return next(c)
		}
	}
}
