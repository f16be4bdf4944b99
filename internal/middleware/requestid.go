package middleware

import (
	"procurement-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestIDMiddleware tags each request with an id, reusing the caller's X-Request-ID
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
				c.Request().Header.Set(echo.HeaderXRequestID, requestID)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			c.Set("request_id", requestID)

			// Add request ID to logger context
			log := logger.GetLogger().With(zap.String("request_id", requestID))
			setLogger(c, log)

			return next(c)
		}
	}
}

// setLogger stores log on the echo context and on the request context the core sees
func setLogger(c echo.Context, log *zap.Logger) {
	c.Set("logger", log)
	c.SetRequest(c.Request().WithContext(logger.WithLogger(c.Request().Context(), log)))
}
