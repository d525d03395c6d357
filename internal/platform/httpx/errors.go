// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Domain packages wrap these so
// handlers can map failures to stable response kinds without switching on
// module-specific error values.
var (
	ErrValidation     = errors.New("validation failed")
	ErrImbalance      = errors.New("debits do not equal credits")
	ErrUnknownAccount = errors.New("unknown or inactive account")
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyVoided  = errors.New("document already voided")
	ErrDuplicate      = errors.New("duplicate entry")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUpstream       = errors.New("upstream service unavailable")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, ErrImbalance):
		Problem(w, http.StatusUnprocessableEntity, "IMBALANCE", err.Error())
	case errors.Is(err, ErrUnknownAccount):
		Problem(w, http.StatusUnprocessableEntity, "UNKNOWN_ACCOUNT", err.Error())
	case errors.Is(err, ErrAlreadyVoided):
		Problem(w, http.StatusConflict, "ALREADY_VOIDED", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "DUPLICATE", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, ErrUpstream):
		Problem(w, http.StatusBadGateway, "UPSTREAM", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "INTERNAL", "")
	}
}
