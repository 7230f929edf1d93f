package authapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"keel/cmd/identity"
	"keel/cmd/internal/auth/session"
	"keel/cmd/security/password"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = []byte("access-secret-access-secret-0123")
	sessCfg.RefreshSecret = []byte("refresh-secret-refresh-secret-01")

	codec, err := session.NewJWTCodec(sessCfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}

	pwCfg := password.DefaultConfig()
	pwCfg.Params.MemoryKiB = 8 * 1024
	pwCfg.Params.Iterations = 1
	pwCfg.Params.Parallelism = 1

	store := identity.NewMemoryStore()
	svc, err := session.NewService(store, codec, pwCfg, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cfg := Config{MaxBodyBytes: 1 << 20, CookieSecure: false}
	h := NewHandler(nil, cfg, store, svc, codec, nil, NewMetrics(prometheus.NewRegistry()))

	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, mux *http.ServeMux, email, pw string) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPost, "/auth/register", `{"email":"`+email+`","password":"`+pw+`"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+pw+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("missing accessToken in login response")
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			refreshCookie = c
		}
	}
	if refreshCookie == nil {
		t.Fatalf("login did not set %q cookie", RefreshCookieName)
	}
	return resp.AccessToken, refreshCookie
}

func TestRegister(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/register", `{"email":"A@x.com","password":"secret1"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.Email != "a@x.com" || resp.Role != "User" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Same email, different case: exactly one success.
	rec = doJSON(t, mux, http.MethodPost, "/auth/register", `{"email":"a@X.com","password":"secret1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/register", `{"email":"b@x.com","password":"five5"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/register", `not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}

func TestLogin_CookieAttributes(t *testing.T) {
	mux := newTestMux(t)
	_, cookie := registerAndLogin(t, mux, "u@e.com", "secret1")

	if !cookie.HttpOnly {
		t.Fatalf("refresh cookie not http-only")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("refresh cookie SameSite = %v", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Fatalf("refresh cookie path = %q", cookie.Path)
	}
	if cookie.Value == "" {
		t.Fatalf("empty refresh cookie")
	}
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	mux := newTestMux(t)
	registerAndLogin(t, mux, "u@e.com", "secret1")

	wrongPw := doJSON(t, mux, http.MethodPost, "/auth/login", `{"email":"u@e.com","password":"nope-nope"}`, nil)
	unknown := doJSON(t, mux, http.MethodPost, "/auth/login", `{"email":"ghost@e.com","password":"secret1"}`, nil)

	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d / %d", wrongPw.Code, unknown.Code)
	}
	if wrongPw.Body.String() != unknown.Body.String() {
		t.Fatalf("login failure bodies distinguishable: %s vs %s", wrongPw.Body, unknown.Body)
	}
}

func TestRefresh(t *testing.T) {
	mux := newTestMux(t)
	_, cookie := registerAndLogin(t, mux, "u@e.com", "secret1")

	rec := doJSON(t, mux, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("bad refresh response: %v %s", err, rec.Body.String())
	}

	// No cookie at all.
	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("cookieless refresh status = %d", rec.Code)
	}

	// Garbage cookie.
	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "garbage"})
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage refresh status = %d", rec.Code)
	}
}

func TestRefresh_SupersededBySecondLogin(t *testing.T) {
	mux := newTestMux(t)
	_, first := registerAndLogin(t, mux, "u@e.com", "secret1")

	// Second login rotates the slot.
	rec := doJSON(t, mux, http.MethodPost, "/auth/login", `{"email":"u@e.com","password":"secret1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second login status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(first)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("superseded refresh status = %d", rec.Code)
	}
}

func TestProfile(t *testing.T) {
	mux := newTestMux(t)
	access, _ := registerAndLogin(t, mux, "u@e.com", "secret1")

	rec := doJSON(t, mux, http.MethodGet, "/users/profile", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["email"] != "u@e.com" || resp["role"] != "User" {
		t.Fatalf("unexpected profile: %v", resp)
	}
	body := strings.ToLower(rec.Body.String())
	for _, leak := range []string{"password", "hash", "refresh"} {
		if strings.Contains(body, leak) {
			t.Fatalf("profile leaks %q: %s", leak, rec.Body.String())
		}
	}
}

func TestGate_Rejections(t *testing.T) {
	mux := newTestMux(t)
	_, cookie := registerAndLogin(t, mux, "u@e.com", "secret1")

	cases := map[string]func(*http.Request){
		"no header":     nil,
		"not bearer":    func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"empty bearer":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
		"garbage token": func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") },
		// A refresh token must not pass the access-token gate.
		"refresh as bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+cookie.Value) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodGet, "/users/profile", "", mutate)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestGate_ExpiredAccessToken(t *testing.T) {
	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = []byte("access-secret-access-secret-0123")
	sessCfg.RefreshSecret = []byte("refresh-secret-refresh-secret-01")

	codec, err := session.NewJWTCodec(sessCfg)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}

	// Minted far enough in the past that it is already expired now.
	u := identity.User{ID: "01JEXPIRED000000000000000", Email: "u@e.com", Role: identity.RoleUser}
	tok, _, err := codec.IssueAccess(u, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	mux := newTestMux(t)
	rec := doJSON(t, mux, http.MethodGet, "/users/profile", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token status = %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	mux := newTestMux(t)
	access, cookie := registerAndLogin(t, mux, "u@e.com", "secret1")

	// Logout without a bearer token is rejected by the gate.
	rec := doJSON(t, mux, http.MethodPost, "/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("gateless logout status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/logout", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("logout did not expire the refresh cookie: %+v", cleared)
	}

	// The previously valid refresh token is dead.
	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	for _, path := range []string{"/auth/register", "/auth/login", "/auth/refresh"} {
		rec := doJSON(t, mux, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s status = %d", path, rec.Code)
		}
	}
}
