package authapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Auditor writes auth events to keel.audit_log. With a nil pool (no
// database configured) events go to the structured log only; audit failure
// never fails the request it describes.
type Auditor struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewAuditor builds an Auditor. Both arguments may be nil.
func NewAuditor(pool *pgxpool.Pool, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{pool: pool, log: log}
}

// Insert records one audit event. Best effort.
func (a *Auditor) Insert(ctx context.Context, action string, userID *string, ip net.IP, ua string, meta map[string]any) {
	if a == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	if a.pool == nil {
		a.log.InfoContext(ctx, action,
			slog.Any("user_id", userID),
			slog.Any("ip", ipOrNil(ip)),
		)
		return
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO keel.audit_log (
			user_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, userID, action, ipOrNil(ip), trimOrNil(ua), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert_failed", "err", err, "action", action)
	}
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip net.IP, ua, email string) {
	h.audit.Insert(ctx, "auth.login.failed", userID, ip, ua, map[string]any{
		"email": email,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit.Insert(ctx, "auth.login.success", &userID, ip, ua, nil)
}

func (h *Handler) auditRegister(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit.Insert(ctx, "auth.register", &userID, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit.Insert(ctx, "auth.logout", &userID, ip, ua, nil)
}

func (h *Handler) auditRateLimited(ctx context.Context, ip net.IP, ua string, retryAfterSeconds int64) {
	h.audit.Insert(ctx, "auth.login.rate_limited", nil, ip, ua, map[string]any{
		"retry_after_s": retryAfterSeconds,
	})
}

func ipOrNil(ip net.IP) any {
	if ip == nil {
		return nil
	}
	return ip.String()
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
