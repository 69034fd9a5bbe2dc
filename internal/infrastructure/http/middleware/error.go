package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oocana-go/oocana/internal/pkg/errors"
)

// errorResponse is the wire shape of every error the remote task API
// returns, whether it originated as a DomainError or an Echo HTTPError.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandler is a custom error handler for Echo
func ErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		// Check if it's a domain error
		var domainErr *errors.DomainError
		if errors.As(err, &domainErr) {
			statusCode := mapDomainErrorToHTTPStatus(domainErr)

			c.JSON(statusCode, errorResponse{
				Error:   domainErr.Code,
				Message: domainErr.Message,
				Code:    domainErr.Code,
			})
			return
		}

		// Check if it's an Echo HTTP error
		if he, ok := err.(*echo.HTTPError); ok {
			c.JSON(he.Code, errorResponse{
				Error:   http.StatusText(he.Code),
				Message: fmt.Sprintf("%v", he.Message),
			})
			return
		}

		// Default to internal server error
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

// mapDomainErrorToHTTPStatus maps a DomainError's code to an HTTP
// status, covering both general CRUD-ish codes and the execution error
// kinds internal/pkg/errors defines.
func mapDomainErrorToHTTPStatus(err *errors.DomainError) int {
	switch err.Code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "ALREADY_EXISTS":
		return http.StatusConflict
	case "INVALID_INPUT", "COMPOSE_ERROR":
		return http.StatusBadRequest
	case "INVALID_STATE":
		return http.StatusConflict
	case "UNAUTHORIZED":
		return http.StatusUnauthorized
	case "FORBIDDEN":
		return http.StatusForbidden
	case "CONCURRENCY":
		return http.StatusConflict
	case "TIMEOUT_ERROR":
		return http.StatusGatewayTimeout
	case "CANCELLED":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
