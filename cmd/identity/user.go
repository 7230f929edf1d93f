package identity

import "time"

// Role is the coarse authorization level assigned at registration.
// It is immutable for the lifetime of this service's scope.
type Role string

const (
	// RoleUser is the default role for every registered account.
	RoleUser Role = "User"
	// RoleAdmin is reserved for elevated accounts created out of band.
	RoleAdmin Role = "Admin"
)

// User is Keel's canonical security principal.
//
// The refresh slot (RefreshTokenDigest + RefreshExpiresAt) represents the
// user's single session: at most one non-expired refresh token is valid per
// user at any time. Only a digest of the refresh token is stored server-side;
// the plain token lives exclusively on the client.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role

	RefreshTokenDigest *string
	RefreshExpiresAt   *time.Time

	CreatedAt time.Time
}

// HasRefreshSlot reports whether the user currently holds a refresh token
// that has not expired at the given instant.
func (u User) HasRefreshSlot(now time.Time) bool {
	return u.RefreshTokenDigest != nil &&
		u.RefreshExpiresAt != nil &&
		u.RefreshExpiresAt.After(now)
}
