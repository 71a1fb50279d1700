package domain

import (
	"strings"
	"time"
)

// Vehicle represents one shared vehicle in the pool, identified by its
// normalized plate. Description is free-form metadata set by the admin
// who registered it.
type Vehicle struct {
	Plate       string    `json:"plate"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	ServicedAt  time.Time `json:"serviced_at"`
}

// NewVehicle creates a vehicle with a normalized plate. ServicedAt
// starts at the registration time so the maintenance clock begins
// immediately.
func NewVehicle(plate, description string, now time.Time) *Vehicle {
	return &Vehicle{
		Plate:       NormalizePlate(plate),
		Description: description,
		AddedAt:     now,
		ServicedAt:  now,
	}
}

// NormalizePlate canonicalizes a plate for comparison and storage:
// surrounding whitespace stripped, letters upper-cased.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// MaintenanceDue reports whether the vehicle has gone intervalDays or
// more without service as of now.
func (v *Vehicle) MaintenanceDue(now time.Time, intervalDays int) bool {
	if intervalDays <= 0 {
		return false
	}
	return now.Sub(v.ServicedAt) >= time.Duration(intervalDays)*24*time.Hour
}
