package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the identity reconciler and session binder. Every identity
// assertion, whether a local credential pair or a normalized OAuth profile,
// is resolved here to exactly one canonical user row, and sessions carry
// nothing but that row's id.
type Service struct {
	users      UserStore
	sessions   SessionStore
	hasher     *Hasher
	sessionTTL time.Duration
}

// NewService wires the reconciler with its collaborators.
func NewService(users UserStore, sessions SessionStore, hasher *Hasher, sessionTTL time.Duration) *Service {
	if sessionTTL == 0 {
		sessionTTL = 12 * time.Hour
	}
	if hasher == nil {
		hasher = NewHasher(DefaultBcryptCost)
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		sessionTTL: sessionTTL,
	}
}

// AuthenticateLocal resolves a local email/password pair to its user row.
// An unknown email fails with ErrUserNotFound and a wrong password with
// ErrInvalidCredentials; callers that face the outside world should collapse
// both into one generic message. Rows created through OAuth have no password
// hash and can never authenticate locally.
func (s *Service) AuthenticateLocal(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Verify(password, *user.PasswordHash); err != nil {
		return nil, err
	}

	return user, nil
}

// Register creates a locally-credentialed user. Uniqueness of the email is
// enforced by the store's constraint, not by a pre-insert lookup: two
// concurrent registrations with the same email race at the insert, exactly
// one row is created, and the loser receives ErrEmailExists.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("register: email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("register: password is required")
	}

	// Hashing is CPU-bound; run it off this flow and wait for the result.
	var hash string
	select {
	case res := <-s.hasher.HashAsync(ctx, password):
		if res.Err != nil {
			return nil, res.Err
		}
		hash = res.Hash
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	now := time.Now()
	user := User{
		ID:           uuid.New(),
		Email:        &email,
		PasswordHash: &hash,
		FirstName:    strPtr(strings.TrimSpace(firstName)),
		LastName:     strPtr(strings.TrimSpace(lastName)),
		Provider:     ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}

// ReconcileOAuth maps a provider assertion to its canonical user row,
// creating one on first sight. The lookup attribute comes from the
// per-provider configuration: email for Google, external id for Facebook
// and GitHub. A profile missing a required attribute fails with
// ErrMissingAttribute and persists nothing.
func (s *Service) ReconcileOAuth(ctx context.Context, profile Profile) (*User, error) {
	cfg, err := ConfigForProvider(profile.Provider)
	if err != nil {
		return nil, err
	}

	profile.Email = normalizeEmail(profile.Email)
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("%w: %s external id", ErrMissingAttribute, cfg.Name)
	}
	if cfg.RequireEmail && profile.Email == "" {
		return nil, fmt.Errorf("%w: %s email", ErrMissingAttribute, cfg.Name)
	}

	existing, err := s.lookupProfile(ctx, cfg, profile)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	user := User{
		ID:         uuid.New(),
		Email:      strPtr(profile.Email),
		FirstName:  strPtr(profile.FirstName),
		LastName:   strPtr(profile.LastName),
		Provider:   cfg.Name,
		ExternalID: strPtr(profile.ExternalID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		// Lost a find-or-create race: the constraint rejected the second
		// insert, so the winning row is there to be read back.
		if errors.Is(err, ErrEmailExists) || errors.Is(err, ErrExternalIDExists) {
			existing, lookupErr := s.lookupProfile(ctx, cfg, profile)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}

func (s *Service) lookupProfile(ctx context.Context, cfg ProviderConfig, profile Profile) (*User, error) {
	switch cfg.Lookup {
	case LookupByEmail:
		user, err := s.users.FindUserByEmail(ctx, profile.Email)
		if err != nil {
			return nil, fmt.Errorf("find user by email: %w", err)
		}
		return user, nil
	default:
		user, err := s.users.FindUserByExternalID(ctx, cfg.Name, profile.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("find user by external id: %w", err)
		}
		return user, nil
	}
}

// CreateSession serializes a user identity into a new opaque session token.
// The token is 32 random bytes; only its SHA-256 hash touches the store, and
// the session payload is nothing but the user id.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	now := time.Now()
	session := Session{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}

	if err := s.sessions.CreateSession(ctx, session, hashToken(token)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	return token, nil
}

// ValidateSession deserializes a token back into its user row. An unknown
// token, an expired session, or a session whose user has since been deleted
// all fail with ErrSessionInvalid: the caller treats the client as logged
// out, never as a fault.
func (s *Service) ValidateSession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessions.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionInvalid
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, ErrSessionInvalid
	}

	user, err := s.users.FindUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if user == nil {
		// Account deleted after the session was issued.
		_ = s.sessions.DeleteSession(ctx, session.ID)
		return nil, ErrSessionInvalid
	}

	return user, nil
}

// DeleteSession removes the session bound to the token. Deleting an unknown
// token is a no-op; logout must be idempotent.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.sessions.FindSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil
	}

	return s.sessions.DeleteSession(ctx, session.ID)
}

// CleanupExpiredSessions removes all expired sessions from the store.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx)
}

// hashToken returns the SHA-256 hash of the token as a hex string.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
