package authapi

import (
	"context"
	"net"
	"time"
)

// checkLoginIPThrottle trips when an IP has accumulated too many failed
// logins inside the window. Counts come from the audit log, so the throttle
// needs no extra state and survives restarts. Disabled without a database
// or when the IP is unknown.
func (h *Handler) checkLoginIPThrottle(ctx context.Context, ip net.IP, now time.Time) (bool, time.Duration, error) {
	if h.audit == nil || h.audit.pool == nil || ip == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}

	cut := now.Add(-h.cfg.LoginIPWindow)
	var n int
	err := h.audit.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM keel.audit_log
		WHERE action = 'auth.login.failed'
		  AND ip = $1
		  AND created_at >= $2
	`, ip.String(), cut).Scan(&n)
	if err != nil {
		return false, 0, err
	}

	if n >= h.cfg.LoginIPMax {
		return true, h.cfg.LoginIPWindow, nil
	}
	return false, 0, nil
}
