package authapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"keel/cmd/identity"
)

type ctxKey int

const identityKey ctxKey = iota

// IdentityFrom returns the authenticated user attached by the gate.
func IdentityFrom(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(identityKey).(identity.User)
	return u, ok
}

// Authenticate is the gate in front of protected endpoints. It extracts the
// bearer access token, decodes it with the access secret, and re-resolves
// the user from the store so a deleted account fails even with a valid
// token. Any failure is a uniform 401.
//
// The refresh slot is deliberately NOT checked here: access-token validity
// is self-contained, and revoking a refresh token does not retract
// already-issued access tokens within their short TTL.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := h.codec.DecodeAccess(tok, time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		u, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			if identity.IsNotFound(err) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			h.log.Error("auth.gate.store_failed", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, u)))
	})
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
