package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents a refresh token stored in the database.
// Rows are never deleted; revocation only flips the flag, so the
// history stays available for audit and replay detection.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
	IP        string
	UserAgent string
}
