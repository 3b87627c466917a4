package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/tutormind/server/internal/observability"
)

// RequestContext puts an observability.RequestContext on every request. A client supplied
// X-Request-ID is kept; otherwise a new id is generated. The id is echoed back.
func RequestContext(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rc := observability.NewRequestContextWithID(logger, req.Header.Get(echo.HeaderXRequestID), "http", 0)
			c.Response().Header().Set(echo.HeaderXRequestID, rc.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), rc)))
			return next(c)
		}
	}
}
