package domain

import "errors"

// Validation errors reported back to the requester. None of these are
// retried and none of them leave a ledger entry behind.
var (
	ErrAlreadyHolding         = errors.New("driver already holds a vehicle")
	ErrVehicleUnavailable     = errors.New("vehicle is held by another driver")
	ErrNotHolder              = errors.New("driver does not hold this vehicle")
	ErrRequestAlreadyResolved = errors.New("access request already resolved")
	ErrRequestNotFound        = errors.New("access request not found")

	ErrVehicleExists   = errors.New("vehicle already registered")
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrVehicleInUse    = errors.New("vehicle is currently in use")

	ErrActorNotFound = errors.New("actor not found")
	ErrLastAdmin     = errors.New("cannot remove the last admin")

	ErrSnoozeNotAllowed = errors.New("snooze duration not allowed")
	ErrWakeNotDue       = errors.New("snooze has not elapsed")
	ErrNotAuthorized    = errors.New("not authorized")
)
