package identity

import (
	"context"
	"time"
)

// Store is the credential persistence boundary.
//
// Contract:
//   - Every operation is atomic with respect to the others at the granularity
//     of a single user record; no caller may observe a partial write.
//   - Refresh-slot writes are last-writer-wins: a later SaveRefreshToken
//     silently supersedes an earlier one. Login is a revoke-and-replace
//     operation, not additive.
//   - The slot stores a token digest (see cmd/security/token), never the
//     plain refresh token.
type Store interface {
	// CreateUser inserts a new user with the default role and an empty
	// refresh slot. The email is normalized before the uniqueness check;
	// a case-insensitive duplicate yields a ConflictError.
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)

	// GetUserByEmail looks a user up by case-insensitive email.
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// GetUserByID looks a user up by id.
	GetUserByID(ctx context.Context, id string) (User, error)

	// SaveRefreshToken unconditionally overwrites the refresh slot with the
	// given digest and absolute expiry. This is the single rotation point:
	// whatever token the slot held before no longer matches and is dead.
	SaveRefreshToken(ctx context.Context, id, tokenDigest string, expiresAt time.Time) error

	// ClearRefreshToken empties the refresh slot. Clearing an already-empty
	// slot is not an error; a missing user is.
	ClearRefreshToken(ctx context.Context, id string) error
}
