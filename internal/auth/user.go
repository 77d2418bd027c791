package auth

import (
	"time"

	"github.com/google/uuid"
)

// Identity providers supported by the reconciler.
const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderGitHub   = "github"
)

// User is the canonical durable identity a person resolves to, regardless of
// which provider they authenticate through. ID is assigned by the store and
// immutable; it is the only value ever bound into a session.
type User struct {
	ID           uuid.UUID
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Provider     string
	ExternalID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the user was registered with local credentials.
// OAuth-created rows carry a NULL password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Profile is the normalized identity assertion a provider integration hands
// to the reconciler. Provider-specific wire formats never cross this boundary.
// Missing optional fields stay empty and are stored as NULL, never fabricated.
type Profile struct {
	Provider   string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
}

// Session is a durable server-side session. The client only ever holds the
// opaque token; the store holds its SHA-256 hash.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
