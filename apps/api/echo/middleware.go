package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// permissionMiddleware requires the token to carry the capability code.
func permissionMiddleware(code string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.HasPermission(code) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// tenantScopeMiddleware pins the request to the token's tenant. A mismatch is
// reported as not-found so foreign tenant ids leak nothing.
func tenantScopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.TenantID == "" || claims.TenantID != ctx.Param("tid") {
				return errHttpNotFound
			}
			return next(ctx)
		}
	}
}
