package models

import "github.com/google/uuid"

// Actor is the caller on whose behalf an operation runs
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// SystemActor is used for changes driven by the payment gateway or background jobs
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// IsSystem reports whether the actor is the system itself
func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// IsStaff reports whether the actor may act on bookings it does not own
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}

// LogUserID returns the user id to store on audit rows, nil for the system
func (a Actor) LogUserID() *uuid.UUID {
	if a.IsSystem() || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
