package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	auditdomain "merchant-docs/backend/internal/audit/domain"
	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/middleware"
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

func (r *memUserRepo) List(_ context.Context, merchantID string, _, _ int32) ([]*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*userdomain.User
	for _, u := range r.users {
		if merchantID == "" || u.MerchantID == merchantID {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*auditdomain.AuditLog
}

func (r *memAuditRepo) Create(_ context.Context, e *auditdomain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.entries = append(r.entries, &c)
	return nil
}

func (r *memAuditRepo) ListByMerchant(_ context.Context, merchantID string, _, _ int32) ([]*auditdomain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auditdomain.AuditLog
	for _, e := range r.entries {
		if e.MerchantID == merchantID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeRevoker) RevokeAllSessions(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID)
	return nil
}

func newTestMux(t *testing.T) (http.Handler, *memUserRepo, *memAuditRepo, *fakeRevoker, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	users := &memUserRepo{users: map[string]*userdomain.User{}}
	auditLog := &memAuditRepo{}
	revoker := &fakeRevoker{}
	h := New(users, auditLog, revoker, nil)
	mux := http.NewServeMux()
	h.Register(mux, middleware.RequireAuth(tokens))
	return mux, users, auditLog, revoker, tokens
}

func tokenFor(t *testing.T, tokens *security.TokenProvider, role userdomain.Role, merchantID string) string {
	t.Helper()
	token, _, err := tokens.IssueAccess(uuid.New().String(), uuid.New().String(),
		string(role), authz.PermissionsFor(role), merchantID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func seedUser(t *testing.T, users *memUserRepo, email string, role userdomain.Role, merchantID string) *userdomain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordDigest: "x",
		Role:           role,
		MerchantID:     merchantID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func doRequest(t *testing.T, mux http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestListUsersScoping(t *testing.T) {
	mux, users, _, _, tokens := newTestMux(t)
	seedUser(t, users, "a@m1.test", userdomain.RoleMerchantUser, "m-1")
	seedUser(t, users, "b@m1.test", userdomain.RoleMerchantUser, "m-1")
	seedUser(t, users, "c@m2.test", userdomain.RoleMerchantUser, "m-2")

	decode := func(rr *httptest.ResponseRecorder) []map[string]any {
		t.Helper()
		var resp struct {
			Users []map[string]any `json:"users"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.Users
	}

	// A merchant admin sees only their own merchant, even when the query
	// asks for another.
	admin := tokenFor(t, tokens, userdomain.RoleMerchantAdmin, "m-1")
	rr := doRequest(t, mux, http.MethodGet, "/admin/users?merchant_id=m-2", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode(rr); len(got) != 2 {
		t.Fatalf("merchant admin sees %d users, want 2", len(got))
	}

	system := tokenFor(t, tokens, userdomain.RoleSystemAdmin, "")
	rr = doRequest(t, mux, http.MethodGet, "/admin/users?merchant_id=m-2", system, nil)
	if got := decode(rr); len(got) != 1 {
		t.Fatalf("system admin filter sees %d users, want 1", len(got))
	}

	// user:manage is required at all.
	user := tokenFor(t, tokens, userdomain.RoleMerchantUser, "m-1")
	rr = doRequest(t, mux, http.MethodGet, "/admin/users", user, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("merchant_user status = %d, want 403", rr.Code)
	}
}

func TestUpdateUserDeactivationRevokesSessions(t *testing.T) {
	mux, users, _, revoker, tokens := newTestMux(t)
	target := seedUser(t, users, "t@m1.test", userdomain.RoleMerchantUser, "m-1")
	admin := tokenFor(t, tokens, userdomain.RoleMerchantAdmin, "m-1")

	rr := doRequest(t, mux, http.MethodPatch, "/admin/users/"+target.ID, admin,
		map[string]any{"is_active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	stored, _ := users.GetByID(context.Background(), target.ID)
	if stored.IsActive {
		t.Fatal("user should be deactivated")
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != target.ID {
		t.Fatalf("revoked = %v, want [%s]", revoker.revoked, target.ID)
	}

	// Reactivating does not revoke again.
	rr = doRequest(t, mux, http.MethodPatch, "/admin/users/"+target.ID, admin,
		map[string]any{"is_active": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(revoker.revoked) != 1 {
		t.Fatalf("revoked = %v, want exactly one entry", revoker.revoked)
	}
}

func TestUpdateUserRoleRules(t *testing.T) {
	mux, users, _, _, tokens := newTestMux(t)
	target := seedUser(t, users, "t@m1.test", userdomain.RoleReadOnly, "m-1")
	foreign := seedUser(t, users, "f@m2.test", userdomain.RoleReadOnly, "m-2")
	admin := tokenFor(t, tokens, userdomain.RoleMerchantAdmin, "m-1")

	rr := doRequest(t, mux, http.MethodPatch, "/admin/users/"+target.ID, admin,
		map[string]any{"role": "merchant_manager"})
	if rr.Code != http.StatusOK {
		t.Fatalf("promote status = %d body=%s", rr.Code, rr.Body.String())
	}
	stored, _ := users.GetByID(context.Background(), target.ID)
	if stored.Role != userdomain.RoleMerchantManager {
		t.Fatalf("role = %q", stored.Role)
	}

	// Merchant admins cannot mint system admins or touch other merchants.
	rr = doRequest(t, mux, http.MethodPatch, "/admin/users/"+target.ID, admin,
		map[string]any{"role": "system_admin"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("system_admin grant status = %d, want 403", rr.Code)
	}
	rr = doRequest(t, mux, http.MethodPatch, "/admin/users/"+foreign.ID, admin,
		map[string]any{"role": "merchant_manager"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign user status = %d, want 403", rr.Code)
	}

	rr = doRequest(t, mux, http.MethodPatch, "/admin/users/"+target.ID, admin,
		map[string]any{"role": "emperor"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown role status = %d, want 400", rr.Code)
	}
}

func TestListAuditRequiresSystemAdmin(t *testing.T) {
	mux, _, auditLog, _, tokens := newTestMux(t)
	_ = auditLog.Create(context.Background(), &auditdomain.AuditLog{
		ID: uuid.New().String(), MerchantID: "m-1", UserID: "u-1",
		Action: "login_success", Resource: "user:u-1", CreatedAt: time.Now().UTC(),
	})

	// audit:read is not in the merchant admin's permission set.
	admin := tokenFor(t, tokens, userdomain.RoleMerchantAdmin, "m-1")
	rr := doRequest(t, mux, http.MethodGet, "/admin/audit?merchant_id=m-1", admin, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("merchant admin status = %d, want 403", rr.Code)
	}

	system := tokenFor(t, tokens, userdomain.RoleSystemAdmin, "")
	rr = doRequest(t, mux, http.MethodGet, "/admin/audit?merchant_id=m-1", system, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("system admin status = %d", rr.Code)
	}
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(resp.Entries))
	}
}
