package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"unipay_momo/internal/services"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps a service error kind onto an HTTP status code and a short kind name
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, services.ErrFailedPrecondition):
		return http.StatusPreconditionFailed, "failed_precondition"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// JSONErrorHandler creates the JSON error responses for Echo
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	resp := ErrorResponse{Error: "internal", Message: "Something went wrong. Please try again later."}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		resp.Error = http.StatusText(code)
		if msg, ok := he.Message.(string); ok && msg != "" {
			resp.Message = msg
		} else {
			resp.Message = http.StatusText(code)
		}
	} else {
		var kind string
		code, kind = StatusFor(err)
		resp.Error = kind
		// Errors without a kind are not ours to explain to the caller
		if kind != "internal" || errors.Is(err, services.ErrInternal) {
			resp.Message = err.Error()
		}
	}

	// Log the error
	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	} else {
		c.Logger().Debug(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
