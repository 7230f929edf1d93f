package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"keel/cmd/identity"
	"keel/cmd/security/password"
	"keel/cmd/security/token"
)

// Issued is the result of a successful login: the user plus both freshly
// minted token classes with their absolute expiries.
type Issued struct {
	User identity.User

	AccessToken     string
	AccessExpiresAt time.Time

	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service orchestrates register/login/refresh/logout/profile over the
// credential store, the password verifier, and the token codec.
//
// All credential failures (unknown email, wrong password, expired or
// superseded refresh token) collapse into identity.ErrUnauthorized so
// responses cannot be used as an enumeration oracle.
type Service struct {
	store identity.Store
	codec TokenCodec
	pw    password.Config
	log   *slog.Logger

	// dummyHash is verified against when login hits an unknown email, so
	// the unknown-email path costs the same as a wrong-password path.
	dummyHash string

	now func() time.Time
}

// NewService wires a session service. The clock is injectable for tests;
// nil means time.Now.
func NewService(store identity.Store, codec TokenCodec, pw password.Config, log *slog.Logger, now func() time.Time) (*Service, error) {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	decoy := make([]byte, 18)
	if _, err := rand.Read(decoy); err != nil {
		return nil, fmt.Errorf("session: decoy password: %w", err)
	}
	dummyHash, err := pw.Hash(hex.EncodeToString(decoy))
	if err != nil {
		return nil, fmt.Errorf("session: decoy hash: %w", err)
	}

	return &Service{
		store:     store,
		codec:     codec,
		pw:        pw,
		log:       log,
		dummyHash: dummyHash,
		now:       now,
	}, nil
}

// Register creates a new account and returns its public record.
//
// Policy violations and duplicate emails both surface as
// identity.ErrInvalidInput; the duplicate case is deliberately not
// distinguished from other validation failures in the error kind.
func (s *Service) Register(ctx context.Context, email, plainPassword string) (identity.User, error) {
	const op = "session.register"

	email = identity.NormalizeEmail(email)
	if !validEmail(email) {
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "invalid email"}
	}
	if err := s.pw.Validate(plainPassword); err != nil {
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "password policy violation"}
	}

	hash, err := s.pw.Hash(plainPassword)
	if err != nil {
		s.log.ErrorContext(ctx, "auth.register.hash_failed", slog.Any("error", err))
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	u, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		if identity.IsConflict(err) {
			return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "email already registered"}
		}
		s.log.ErrorContext(ctx, "auth.register.store_failed", slog.Any("error", err))
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	s.log.InfoContext(ctx, "auth.register.ok",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Login verifies credentials, mints both token classes, and rotates the
// refresh slot (revoke-and-replace). Unknown email and wrong password
// return the same error and cost roughly the same time.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (Issued, error) {
	const op = "session.login"

	email = identity.NormalizeEmail(email)
	now := s.now()

	u, lookupErr := s.store.GetUserByEmail(ctx, email)
	if lookupErr != nil {
		if identity.IsNotFound(lookupErr) {
			// Burn a verify anyway so timing matches the wrong-password path.
			_, _ = s.pw.Verify(s.dummyHash, plainPassword)
			return Issued{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
		}
		s.log.ErrorContext(ctx, "auth.login.store_failed", slog.Any("error", lookupErr))
		return Issued{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	ok, err := s.pw.Verify(u.PasswordHash, plainPassword)
	if err != nil || !ok {
		if err != nil {
			s.log.WarnContext(ctx, "auth.login.bad_hash",
				slog.String("user_id", u.ID),
				slog.Any("error", err),
			)
		}
		return Issued{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
	}

	access, accessExp, err := s.codec.IssueAccess(u, now)
	if err != nil {
		s.log.ErrorContext(ctx, "auth.login.sign_failed", slog.Any("error", err))
		return Issued{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(u, now)
	if err != nil {
		s.log.ErrorContext(ctx, "auth.login.sign_failed", slog.Any("error", err))
		return Issued{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	if err := s.store.SaveRefreshToken(ctx, u.ID, token.RefreshTokenDigest(refresh), refreshExp); err != nil {
		s.log.ErrorContext(ctx, "auth.login.rotate_failed",
			slog.String("user_id", u.ID),
			slog.Any("error", err),
		)
		return Issued{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	s.log.InfoContext(ctx, "auth.login.ok",
		slog.String("user_id", u.ID),
	)

	return Issued{
		User:             u,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a still-valid refresh token for a new access token.
//
// The presented token must decode under the refresh secret AND match the
// stored slot digest; a correctly signed, unexpired token that was
// superseded by a later login or cleared by logout fails the same way a
// forged one does. The refresh token itself is not rotated here.
func (s *Service) Refresh(ctx context.Context, presented string) (accessToken string, expiresAt time.Time, err error) {
	const op = "session.refresh"

	now := s.now()
	unauthorized := identity.OpError{Op: op, Kind: identity.ErrUnauthorized}

	claims, err := s.codec.DecodeRefresh(presented, now)
	if err != nil {
		return "", time.Time{}, unauthorized
	}

	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return "", time.Time{}, unauthorized
		}
		s.log.ErrorContext(ctx, "auth.refresh.store_failed", slog.Any("error", err))
		return "", time.Time{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	if !u.HasRefreshSlot(now) || *u.RefreshTokenDigest != token.RefreshTokenDigest(presented) {
		s.log.InfoContext(ctx, "auth.refresh.slot_mismatch",
			slog.String("user_id", u.ID),
		)
		return "", time.Time{}, unauthorized
	}

	access, accessExp, err := s.codec.IssueAccess(u, now)
	if err != nil {
		s.log.ErrorContext(ctx, "auth.refresh.sign_failed", slog.Any("error", err))
		return "", time.Time{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	return access, accessExp, nil
}

// Logout clears the user's refresh slot. It is idempotent: clearing an
// already-empty slot succeeds. The caller is expected to have passed the
// authentication gate already.
func (s *Service) Logout(ctx context.Context, userID string) error {
	const op = "session.logout"

	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		if identity.IsNotFound(err) {
			return identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
		}
		s.log.ErrorContext(ctx, "auth.logout.store_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return identity.OpError{Op: op, Kind: identity.ErrInternal}
	}

	s.log.InfoContext(ctx, "auth.logout.ok",
		slog.String("user_id", userID),
	)
	return nil
}

// Profile returns the user record for an authenticated id. Pure read.
func (s *Service) Profile(ctx context.Context, userID string) (identity.User, error) {
	const op = "session.profile"

	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrUnauthorized}
		}
		s.log.ErrorContext(ctx, "auth.profile.store_failed", slog.Any("error", err))
		return identity.User{}, identity.OpError{Op: op, Kind: identity.ErrInternal}
	}
	return u, nil
}

// validEmail is a cheap shape check, not RFC validation: one "@" with
// something on both sides and no spaces.
func validEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := -1
	for i, r := range email {
		switch {
		case r == '@':
			if at != -1 {
				return false
			}
			at = i
		case r == ' ':
			return false
		}
	}
	return at > 0 && at < len(email)-1
}
