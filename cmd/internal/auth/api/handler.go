package authapi

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/session"
)

// Handler wires the HTTP auth endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	store    identity.Store
	sessions *session.Service
	codec    session.TokenCodec

	audit   *Auditor
	metrics *Metrics
}

// NewHandler constructs the auth handler. audit and metrics may be nil.
func NewHandler(log *slog.Logger, cfg Config, store identity.Store, sessions *session.Service, codec session.TokenCodec, audit *Auditor, metrics *Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if audit == nil {
		audit = NewAuditor(nil, log)
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		codec:    codec,
		audit:    audit,
		metrics:  metrics,
	}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.Handle("/auth/logout", h.Authenticate(http.HandlerFunc(h.handleLogout)))
	mux.Handle("/users/profile", h.Authenticate(http.HandlerFunc(h.handleProfile)))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe("register", "invalid")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	u, err := h.sessions.Register(ctx, req.Email, req.Password)
	if err != nil {
		h.metrics.observe("register", "fail")
		writeKindError(w, err)
		return
	}

	h.auditRegister(ctx, u.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.metrics.observe("register", "ok")
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe("login", "invalid")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditRateLimited(ctx, ip, ua, int64(retryAfter.Seconds()))
		h.metrics.observe("login", "rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	issued, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.auditLoginFailed(ctx, nil, ip, ua, identity.NormalizeEmail(req.Email))
		h.metrics.observe("login", "fail")
		writeKindError(w, err)
		return
	}

	h.auditLoginSuccess(ctx, issued.User.ID, ip, ua)
	h.metrics.observe("login", "ok")

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	refreshToken, ok := refreshTokenFromCookie(r)
	if !ok {
		h.metrics.observe("refresh", "fail")
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	access, _, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.metrics.observe("refresh", "fail")
		writeKindError(w, err)
		return
	}

	h.metrics.observe("refresh", "ok")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	ctx := r.Context()
	if err := h.sessions.Logout(ctx, u.ID); err != nil {
		h.metrics.observe("logout", "fail")
		writeKindError(w, err)
		return
	}

	h.auditLogout(ctx, u.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.metrics.observe("logout", "ok")

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	u, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	h.metrics.observe("profile", "ok")
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
