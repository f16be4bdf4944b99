package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"procurement-service/pkg/jwtutil"
	"procurement-service/pkg/logger"
	"procurement-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the bearer token and puts the tenant on the context.
// Every procurement operation is tenant scoped, so a token without a tenant is rejected.
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil, m *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				m.RecordAuthError()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}
			m.RecordAuthAttempt()

			// Check if it's a Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				m.RecordAuthError()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				m.RecordAuthError()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			if claims.TenantID == nil {
				log.Warn("JWT token does not contain tenant_id", zap.Uint("user_id", claims.UserID))
				m.RecordTenantContextMissing()
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required in the token"})
			}
			m.RecordAuthSuccess()

			c.Set("user_id", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("tenant_id", *claims.TenantID)
			c.Set("tenant_name", claims.TenantName)
			c.Set("user_role", claims.Role)

			setLogger(c, log.With(
				zap.Uint("tenant_id", *claims.TenantID),
				zap.Uint("user_id", claims.UserID)))

			return next(c)
		}
	}
}

// GetTenantIDFromContext retrieves the tenant ID from the context
// Returns 0, false if tenant ID is not found
func GetTenantIDFromContext(c echo.Context) (uint, bool) {
	tenantID, ok := c.Get("tenant_id").(uint)
	return tenantID, ok
}

// ActorFromContext names the authenticated user for audit fields
func ActorFromContext(c echo.Context) string {
	if userID, ok := c.Get("user_id").(uint); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	return "anonymous"
}
