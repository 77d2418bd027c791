package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Constraint names from the migrations; a unique_violation on one of these
// is a domain outcome, anything else is infrastructure.
const (
	emailConstraint      = "users_email_key"
	externalIDConstraint = "users_provider_external_id_key"
)

// PostgresRepository implements UserStore and SessionStore on PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByEmail looks up a user by email. Absence is (nil, nil).
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, provider, external_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err)
	}

	return row.toUser(), nil
}

// FindUserByExternalID looks up a user by provider name and provider-issued id.
func (r *PostgresRepository) FindUserByExternalID(ctx context.Context, provider, externalID string) (*User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, provider, external_id, created_at, updated_at
		FROM users
		WHERE provider = $1 AND external_id = $2
	`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, provider, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err)
	}

	return row.toUser(), nil
}

// FindUserByID looks up a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `
		SELECT id, email, password_hash, first_name, last_name, provider, external_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err)
	}

	return row.toUser(), nil
}

// CreateUser inserts a new user. The unique constraints on email and on
// (provider, external_id) arbitrate concurrent identical inserts; a
// violation comes back as ErrEmailExists or ErrExternalIDExists.
func (r *PostgresRepository) CreateUser(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, provider, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Provider,
		user.ExternalID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			switch pqErr.Constraint {
			case emailConstraint:
				return User{}, ErrEmailExists
			case externalIDConstraint:
				return User{}, ErrExternalIDExists
			}
		}
		return User{}, storeErr(err)
	}

	return user, nil
}

// CreateSession inserts a new session keyed by token hash.
func (r *PostgresRepository) CreateSession(ctx context.Context, session Session, tokenHash string) error {
	const query = `
		INSERT INTO user_sessions (id, user_id, session_token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		tokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// FindSessionByTokenHash looks up a session by token hash. Absence is (nil, nil).
func (r *PostgresRepository) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT id, user_id, expires_at, created_at
		FROM user_sessions
		WHERE session_token_hash = $1
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err)
	}

	return row.toSession(), nil
}

// DeleteSession removes a session.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM user_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return storeErr(err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, storeErr(err)
	}
	return result.RowsAffected()
}

// storeErr marks a database failure as a transient infrastructure error so
// callers surface it as retryable, never as an authentication outcome.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// userRow is a database row representation of User.
type userRow struct {
	ID           uuid.UUID      `db:"id"`
	Email        sql.NullString `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	FirstName    sql.NullString `db:"first_name"`
	LastName     sql.NullString `db:"last_name"`
	Provider     string         `db:"provider"`
	ExternalID   sql.NullString `db:"external_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *userRow) toUser() *User {
	return &User{
		ID:           r.ID,
		Email:        nullToPtr(r.Email),
		PasswordHash: nullToPtr(r.PasswordHash),
		FirstName:    nullToPtr(r.FirstName),
		LastName:     nullToPtr(r.LastName),
		Provider:     r.Provider,
		ExternalID:   nullToPtr(r.ExternalID),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// sessionRow is a database row representation of Session.
type sessionRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *sessionRow) toSession() *Session {
	return &Session{
		ID:        r.ID,
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

func nullToPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
