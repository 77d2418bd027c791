package auth

import (
	"context"

	"github.com/google/uuid"
)

// UserStore is the credential store contract. The reconciler never issues
// queries of its own; any engine that enforces uniqueness on email and on
// (provider, external id) at insert time can back it. CreateUser must reject
// a duplicate with ErrEmailExists or ErrExternalIDExists; the reconciler
// performs no pre-insert existence check.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByExternalID(ctx context.Context, provider, externalID string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user User) (User, error)
}

// SessionStore persists sessions keyed by the SHA-256 hash of the opaque
// token. It is a separate collaborator from the credential store so the
// session mechanism can be swapped without touching user persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session, tokenHash string) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
