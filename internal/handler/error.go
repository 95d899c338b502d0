package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pmorrisey/njord/internal/domain"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes a JSON error body with the status derived from the
// error's domain code. Internal detail never leaks; the client sees the
// safe message only.
func ErrorResponse(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	return c.JSON(ErrorCodeToHTTPStatus(code), map[string]string{
		"error": domain.ErrorMessage(err),
		"code":  code,
	})
}
