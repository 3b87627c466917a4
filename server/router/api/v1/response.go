package v1

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/tutormind/server/internal/errors"
	"github.com/hrygo/tutormind/server/internal/observability"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Details map[string]any      `json:"details,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

var codeByStatus = map[int]apperrors.ErrorCode{
	http.StatusBadRequest:            apperrors.ErrCodeValidation,
	http.StatusUnauthorized:          apperrors.ErrCodeUnauthorized,
	http.StatusNotFound:              apperrors.ErrCodeNotFound,
	http.StatusMethodNotAllowed:      apperrors.ErrCodeNotFound,
	http.StatusRequestEntityTooLarge: apperrors.ErrCodeValidation,
	http.StatusTooManyRequests:       apperrors.ErrCodeRateLimitExceeded,
	http.StatusServiceUnavailable:    apperrors.ErrCodeServiceUnavailable,
}

// HTTPErrorHandler renders errors in the response envelope. AppErrors keep their code and
// message; echo's own errors are mapped by status; anything else is an internal error
// whose details are only logged.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := &ErrorBody{Code: apperrors.ErrCodeInternal}
	message := "internal server error"

	var httpErr *echo.HTTPError
	if appErr, ok := apperrors.As(err); ok {
		status = appErr.HTTPStatus()
		body.Code = appErr.Code
		body.Details = appErr.Context
		message = appErr.Message
	} else if errors.As(err, &httpErr) {
		status = httpErr.Code
		if code, ok := codeByStatus[status]; ok {
			body.Code = code
		}
		message = fmt.Sprint(httpErr.Message)
	}

	if status >= http.StatusInternalServerError {
		logger := slog.Default()
		if rc, ok := observability.FromContext(c.Request().Context()); ok {
			logger = rc.Logger.With(slog.String(observability.LogFieldRequestID, rc.RequestID))
		}
		logger.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, Envelope{Success: false, Message: message, Error: body})
	}
	if err != nil {
		slog.Error("failed to write error response", slog.String("error", err.Error()))
	}
}

// bindJSON decodes the request body, reporting malformed input as a validation error.
func bindJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return nil
}

func pathID(c echo.Context, name string) (int32, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("%s must be a positive integer", name)
	}
	return int32(id), nil
}

// queryInt returns nil when the parameter is absent.
func queryInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be an integer", name)
	}
	return &v, nil
}
