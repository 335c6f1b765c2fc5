package apperr

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// statusFor maps error kinds to HTTP statuses. Payment errors keep distinct
// statuses so the UI can tell "try another method" from "retry later".
func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindStateConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPaymentPermanent:
		return http.StatusPaymentRequired
	case KindPaymentTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Respond writes the typed error as JSON. Internal errors are logged and
// masked; everything else surfaces its message to the caller.
func Respond(c echo.Context, err error) error {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		log.Printf("[api] internal error: %v", err)
		msg = "internal server error"
	}
	return c.JSON(statusFor(kind), echo.Map{"error": msg, "code": string(kind)})
}
