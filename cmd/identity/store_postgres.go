package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"keel/cmd/identity/ids"
)

// PostgresStore implements Store using PostgreSQL (keel.users).
//
// Atomicity notes:
//   - email uniqueness rides on the unique index over email_norm; a racing
//     duplicate insert surfaces as a ConflictError, never a partial write.
//   - slot overwrites are single UPDATE statements, so two racing logins
//     resolve to last-writer-wins at the row level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const userColumns = `
	id, email, password_hash, role,
	refresh_token_digest, refresh_expires_at, created_at
`

// CreateUser inserts a new user row with the default role and an empty slot.
func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	norm := NormalizeEmail(email)
	now := time.Now().UTC()

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrInternal, Msg: "id generation failed"}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO keel.users (id, email, email_norm, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, norm, norm, passwordHash, string(RoleUser), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ConflictError{Op: "identity.CreateUser", Field: "email"}
		}
		return User{}, err
	}

	return User{
		ID:           id,
		Email:        norm,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
	}, nil
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByEmail", `
		SELECT `+userColumns+`
		FROM keel.users
		WHERE email_norm = $1
	`, NormalizeEmail(email))
}

// GetUserByID looks a user up by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByID", `
		SELECT `+userColumns+`
		FROM keel.users
		WHERE id = $1
	`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, op, query string, arg any) (User, error) {
	var (
		u    User
		role string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.RefreshTokenDigest,
		&u.RefreshExpiresAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

// SaveRefreshToken overwrites the refresh slot unconditionally.
func (s *PostgresStore) SaveRefreshToken(ctx context.Context, id, tokenDigest string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE keel.users
		SET refresh_token_digest = $2,
		    refresh_expires_at = $3
		WHERE id = $1
	`, id, tokenDigest, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: "identity.SaveRefreshToken", Resource: "user"}
	}
	return nil
}

// ClearRefreshToken empties the refresh slot (idempotent for the slot).
func (s *PostgresStore) ClearRefreshToken(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE keel.users
		SET refresh_token_digest = NULL,
		    refresh_expires_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: "identity.ClearRefreshToken", Resource: "user"}
	}
	return nil
}
