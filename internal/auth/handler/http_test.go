package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/auth/service"
	"merchant-docs/backend/internal/mfa"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/middleware"
	sessiondomain "merchant-docs/backend/internal/session/domain"
	userdomain "merchant-docs/backend/internal/user/domain"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *userdomain.User) error {
	return r.Create(nil, u)
}

func (r *memUserRepo) SetTOTPSecret(_ context.Context, userID, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.TOTPSecret = secret
	}
	return nil
}

func (r *memUserRepo) SetActive(_ context.Context, userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.IsActive = active
	}
	return nil
}

func (r *memUserRepo) List(_ context.Context, _ string, _, _ int32) ([]*userdomain.User, error) {
	return nil, nil
}

type memSessionRepo struct {
	mu      sync.Mutex
	records map[string]*sessiondomain.RefreshRecord
}

func (r *memSessionRepo) Create(_ context.Context, rec *sessiondomain.RefreshRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rec
	r.records[rec.ID] = &c
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.RefreshRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok && rec.RevokedAt == nil {
		rec.RevokedAt = &at
	}
	return nil
}

func (r *memSessionRepo) RevokeIfActive(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	rec.RevokedAt = &at
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.UserID == userID && rec.RevokedAt == nil {
			rec.RevokedAt = &at
		}
	}
	return nil
}

func newTestMux(t *testing.T) (http.Handler, *memUserRepo, *security.Hasher) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	users := &memUserRepo{users: map[string]*userdomain.User{}}
	sessions := &memSessionRepo{records: map[string]*sessiondomain.RefreshRecord{}}
	hasher := security.NewHasher(8*1024, 1, 1)
	svc := service.NewService(users, sessions, hasher, tokens, mfa.New("MerchantDocsTest", 2),
		nil, nil, nil, nil, 30*24*time.Hour)

	h := New(svc, users, 30*24*time.Hour, false)
	mux := http.NewServeMux()
	h.Register(mux, middleware.RequireAuth(tokens))
	return middleware.ClientMetaMiddleware(mux), users, hasher
}

func seedUser(t *testing.T, users *memUserRepo, hasher *security.Hasher, email, password string) *userdomain.User {
	t.Helper()
	digest, err := hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:             uuid.New().String(),
		Email:          email,
		Name:           "Handler Test",
		PasswordDigest: digest,
		Role:           userdomain.RoleMerchantUser,
		MerchantID:     "m-1",
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func postJSON(t *testing.T, mux http.Handler, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

func login(t *testing.T, mux http.Handler, email, password string) (accessToken string, cookie *http.Cookie) {
	t.Helper()
	rr := postJSON(t, mux, "/auth/login", map[string]string{"email": email, "password": password}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	c := refreshCookie(t, rr)
	if c == nil {
		t.Fatal("login did not set refresh cookie")
	}
	return resp.AccessToken, c
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	seedUser(t, users, hasher, "cookie@acme.test", "correct horse")

	rr := postJSON(t, mux, "/auth/login", map[string]string{
		"email": "cookie@acme.test", "password": "correct horse",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	c := refreshCookie(t, rr)
	if c == nil {
		t.Fatal("missing refresh cookie")
	}
	if !c.HttpOnly {
		t.Fatal("refresh cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("SameSite = %v, want Strict", c.SameSite)
	}
	if c.Path != "/auth" {
		t.Fatalf("Path = %q, want /auth", c.Path)
	}
	if c.MaxAge != int((30*24*time.Hour)/time.Second) {
		t.Fatalf("MaxAge = %d", c.MaxAge)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("missing access token")
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("password_digest")) {
		t.Fatal("response leaks password digest")
	}
}

func TestLoginFailures(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	seedUser(t, users, hasher, "fail@acme.test", "correct horse")

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "fail@acme.test", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@acme.test", "password": "nope"}, http.StatusUnauthorized},
		{"missing body fields", map[string]string{"bogus": "field"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, mux, "/auth/login", tc.body, nil)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			if refreshCookie(t, rr) != nil {
				t.Fatal("failed login must not set a cookie")
			}
		})
	}
}

func TestRefreshRotatesCookie(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	seedUser(t, users, hasher, "rotate@acme.test", "correct horse")
	_, first := login(t, mux, "rotate@acme.test", "correct horse")

	rr := postJSON(t, mux, "/auth/refresh", nil, func(r *http.Request) { r.AddCookie(first) })
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d body=%s", rr.Code, rr.Body.String())
	}
	second := refreshCookie(t, rr)
	if second == nil || second.Value == first.Value {
		t.Fatal("refresh must rotate the cookie value")
	}

	// Replaying the rotated cookie trips reuse detection and clears the cookie.
	rr = postJSON(t, mux, "/auth/refresh", nil, func(r *http.Request) { r.AddCookie(first) })
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", rr.Code)
	}
	// The body must not tell the caller detection fired: a replayed secret
	// gets the same response as an expired one.
	if bytes.Contains(bytes.ToLower(rr.Body.Bytes()), []byte("reuse")) {
		t.Fatalf("replay body leaks reuse detection: %s", rr.Body.String())
	}
	var replayResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &replayResp); err != nil {
		t.Fatalf("decode replay body: %v", err)
	}
	if replayResp.Error != service.ErrInvalidOrExpiredToken.Error() {
		t.Fatalf("replay error = %q, want the generic invalid-token message", replayResp.Error)
	}
	cleared := refreshCookie(t, rr)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatal("replay must clear the cookie")
	}

	// The whole chain is dead: the fresh cookie no longer works either.
	rr = postJSON(t, mux, "/auth/refresh", nil, func(r *http.Request) { r.AddCookie(second) })
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("post-reuse refresh status = %d, want 401", rr.Code)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	mux, _, _ := newTestMux(t)
	rr := postJSON(t, mux, "/auth/refresh", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestLogout(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	seedUser(t, users, hasher, "bye@acme.test", "correct horse")
	_, cookie := login(t, mux, "bye@acme.test", "correct horse")

	rr := postJSON(t, mux, "/auth/logout", nil, func(r *http.Request) { r.AddCookie(cookie) })
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rr.Code)
	}
	cleared := refreshCookie(t, rr)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatal("logout must clear the cookie")
	}

	// Idempotent: logging out again, with or without the cookie, succeeds.
	rr = postJSON(t, mux, "/auth/logout", nil, func(r *http.Request) { r.AddCookie(cookie) })
	if rr.Code != http.StatusNoContent {
		t.Fatalf("second logout status = %d", rr.Code)
	}
	rr = postJSON(t, mux, "/auth/logout", nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("cookieless logout status = %d", rr.Code)
	}

	// The refresh chain is gone.
	rr = postJSON(t, mux, "/auth/refresh", nil, func(r *http.Request) { r.AddCookie(cookie) })
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", rr.Code)
	}
}

func TestMe(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	seedUser(t, users, hasher, "me@acme.test", "correct horse")
	token, _ := login(t, mux, "me@acme.test", "correct horse")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Email != "me@acme.test" || resp.User.Role != "merchant_user" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if len(resp.Permissions) == 0 {
		t.Fatal("expected permissions in response")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rr.Code)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	mux, _, _ := newTestMux(t)

	body := map[string]string{"email": "new@acme.test", "name": "New", "password": "long enough"}
	rr := postJSON(t, mux, "/auth/register", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	rr = postJSON(t, mux, "/auth/register", body, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rr.Code)
	}
	rr = postJSON(t, mux, "/auth/register", map[string]string{"email": "x@acme.test", "name": "X", "password": "tiny"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d, want 400", rr.Code)
	}
}

func TestTwoFactorEndpoints(t *testing.T) {
	mux, users, hasher := newTestMux(t)
	u := seedUser(t, users, hasher, "2fa@acme.test", "correct horse")
	token, _ := login(t, mux, "2fa@acme.test", "correct horse")

	rr := postJSON(t, mux, "/auth/2fa/setup", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("setup status = %d body=%s", rr.Code, rr.Body.String())
	}
	var setup struct {
		Secret     string `json:"secret"`
		OTPAuthURL string `json:"otpauth_url"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &setup); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if setup.Secret == "" || setup.OTPAuthURL == "" {
		t.Fatal("expected secret and otpauth url")
	}

	rr = postJSON(t, mux, "/auth/2fa/verify", map[string]string{"secret": setup.Secret, "code": "000000"},
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad code status = %d, want 401", rr.Code)
	}

	stored, _ := users.GetByID(context.Background(), u.ID)
	if stored.TwoFactorEnabled() {
		t.Fatal("failed verify must not enable two-factor")
	}

	rr = postJSON(t, mux, "/auth/2fa/setup", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated setup status = %d, want 401", rr.Code)
	}
}
