// Package apperror maps errors to the wire format of the admin API.
package apperror

import (
	"errors"
	"net/http"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "Conflict", Status: http.StatusConflict}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict}
}

func NewUnavailable(message string) *AppError {
	return &AppError{Code: "STORE_UNAVAILABLE", Message: message, Status: http.StatusServiceUnavailable}
}

// MapError translates domain and store errors to their HTTP shape.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrVehicleNotFound),
		errors.Is(err, domain.ErrActorNotFound),
		errors.Is(err, domain.ErrRequestNotFound):
		return NewNotFound(err.Error())
	case errors.Is(err, domain.ErrVehicleExists),
		errors.Is(err, domain.ErrVehicleInUse),
		errors.Is(err, domain.ErrAlreadyHolding),
		errors.Is(err, domain.ErrVehicleUnavailable),
		errors.Is(err, domain.ErrNotHolder),
		errors.Is(err, domain.ErrRequestAlreadyResolved),
		errors.Is(err, domain.ErrLastAdmin):
		return NewConflict(err.Error())
	case errors.Is(err, domain.ErrSnoozeNotAllowed):
		return NewBadRequest(err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		return NewUnauthorized(err.Error())
	case errors.Is(err, ports.ErrOperationFailed),
		errors.Is(err, ports.ErrStoreUnavailable),
		errors.Is(err, ports.ErrRateLimited):
		return NewUnavailable("record store is not responding")
	default:
		return ErrInternalServer
	}
}
