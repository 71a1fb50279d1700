package domain

import "time"

// Role represents what an actor may do with the pool.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDriver  Role = "driver"
	RoleUnknown Role = "unknown"
)

// Actor represents an authorized user of the pool. ID is the stable
// numeric identity from the chat transport; only the role ever changes
// after creation.
type Actor struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewActor creates an actor with the given role.
func NewActor(id int64, displayName string, role Role, now time.Time) *Actor {
	return &Actor{
		ID:          id,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   now,
	}
}

// IsAdmin reports whether the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
