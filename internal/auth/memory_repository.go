package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements UserStore and SessionStore with in-process
// maps, ideal for local development or tests. It enforces the same
// uniqueness rules as the Postgres schema: the check and the insert happen
// under one lock, so concurrent duplicate registrations resolve to exactly
// one stored row.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]User
	byEmail    map[string]uuid.UUID
	byExternal map[string]uuid.UUID
	sessions   map[string]Session
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[uuid.UUID]User),
		byEmail:    make(map[string]uuid.UUID),
		byExternal: make(map[string]uuid.UUID),
		sessions:   make(map[string]Session),
	}
}

func externalKey(provider, externalID string) string {
	return provider + "\x00" + externalID
}

// FindUserByEmail returns the user with the given email, or nil.
func (r *MemoryRepository) FindUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

// FindUserByExternalID returns the user with the given provider identity, or nil.
func (r *MemoryRepository) FindUserByExternalID(_ context.Context, provider, externalID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalKey(provider, externalID)]
	if !ok {
		return nil, nil
	}
	user := r.users[id]
	return &user, nil
}

// FindUserByID returns the user with the given id, or nil.
func (r *MemoryRepository) FindUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateUser stores a new user, enforcing email and external-id uniqueness
// atomically with the insert.
func (r *MemoryRepository) CreateUser(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != nil {
		if _, exists := r.byEmail[*user.Email]; exists {
			return User{}, ErrEmailExists
		}
	}
	if user.ExternalID != nil {
		if _, exists := r.byExternal[externalKey(user.Provider, *user.ExternalID)]; exists {
			return User{}, ErrExternalIDExists
		}
	}

	r.users[user.ID] = user
	if user.Email != nil {
		r.byEmail[*user.Email] = user.ID
	}
	if user.ExternalID != nil {
		r.byExternal[externalKey(user.Provider, *user.ExternalID)] = user.ID
	}
	return user, nil
}

// DeleteUser removes a user and its index entries. Not part of the
// credential store contract; it exists so development setups and tests can
// exercise the deleted-account session path.
func (r *MemoryRepository) DeleteUser(_ context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return
	}
	if user.Email != nil {
		delete(r.byEmail, *user.Email)
	}
	if user.ExternalID != nil {
		delete(r.byExternal, externalKey(user.Provider, *user.ExternalID))
	}
	delete(r.users, id)
}

// CreateSession stores a session keyed by token hash.
func (r *MemoryRepository) CreateSession(_ context.Context, session Session, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[tokenHash] = session
	return nil
}

// FindSessionByTokenHash returns the session for a token hash, or nil.
func (r *MemoryRepository) FindSessionByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// DeleteSession removes a session by id.
func (r *MemoryRepository) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, session := range r.sessions {
		if session.ID == id {
			delete(r.sessions, hash)
			break
		}
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
func (r *MemoryRepository) DeleteExpiredSessions(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for hash, session := range r.sessions {
		if time.Now().After(session.ExpiresAt) {
			delete(r.sessions, hash)
			removed++
		}
	}
	return removed, nil
}
