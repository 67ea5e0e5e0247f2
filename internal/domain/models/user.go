package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the credential record owned by the durable store.
// PassHash never leaves the service; callers get a UserView.
type User struct {
	ID            uuid.UUID
	Email         string
	PassHash      []byte
	RoleID        int
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	LastLoginAt   *time.Time
}

// Role is seeded reference data; read-only from this service.
type Role struct {
	ID          int
	Name        string
	Description string
}

// UserView is the public projection returned in auth responses.
type UserView struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
}
