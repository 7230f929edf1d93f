package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"keel/cmd/identity"
)

// Claims is the identity envelope carried inside both token classes:
// subject, role snapshot at issuance, and expiry.
type Claims struct {
	UserID    string
	Role      identity.Role
	ExpiresAt time.Time
	IssuedAt  time.Time
	Issuer    string
}

// TokenCodec mints and verifies the two token classes. Access and refresh
// tokens share the claims shape but are signed with distinct secrets; a
// cross-class decode fails as ErrInvalidToken.
type TokenCodec interface {
	IssueAccess(u identity.User, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(u identity.User, now time.Time) (token string, exp time.Time, err error)
	DecodeAccess(token string, now time.Time) (Claims, error)
	DecodeRefresh(token string, now time.Time) (Claims, error)
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type hs256Codec struct {
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	accessSecret  []byte
	refreshSecret []byte
}

// NewJWTCodec builds a TokenCodec signing HS256 JWTs with the configured
// per-class secrets. Expiry validation is strict server-clock comparison
// with no leeway.
func NewJWTCodec(cfg Config) (TokenCodec, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &hs256Codec{
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
	}, nil
}

func (c *hs256Codec) IssueAccess(u identity.User, now time.Time) (string, time.Time, error) {
	return c.issue(u, now, c.accessTTL, c.accessSecret)
}

func (c *hs256Codec) IssueRefresh(u identity.User, now time.Time) (string, time.Time, error) {
	return c.issue(u, now, c.refreshTTL, c.refreshSecret)
}

func (c *hs256Codec) issue(u identity.User, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	exp := now.Add(ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := tok.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *hs256Codec) DecodeAccess(token string, now time.Time) (Claims, error) {
	return c.decode(token, now, c.accessSecret)
}

func (c *hs256Codec) DecodeRefresh(token string, now time.Time) (Claims, error) {
	return c.decode(token, now, c.refreshSecret)
}

func (c *hs256Codec) decode(token string, now time.Time, secret []byte) (Claims, error) {
	claims := &jwtClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	role := identity.Role(claims.Role)
	if role != identity.RoleUser && role != identity.RoleAdmin {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID: claims.Subject,
		Role:   role,
		Issuer: c.issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
