package kyc

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

	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/merchant/domain"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/middleware"
	userdomain "merchant-docs/backend/internal/user/domain"
)

type memMerchantRepo struct {
	mu        sync.Mutex
	merchants map[string]*domain.Merchant
}

func (r *memMerchantRepo) GetByID(_ context.Context, id string) (*domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.merchants[id]; ok {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (r *memMerchantRepo) Create(_ context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *m
	r.merchants[m.ID] = &c
	return nil
}

func (r *memMerchantRepo) Update(_ context.Context, m *domain.Merchant) error {
	return r.Create(nil, m)
}

func (r *memMerchantRepo) SetKYCStatus(_ context.Context, id string, status domain.KYCStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.merchants[id]; ok {
		m.KYCStatus = status
	}
	return nil
}

func (r *memMerchantRepo) List(_ context.Context, _, _ int32) ([]*domain.Merchant, error) {
	return nil, nil
}

func seedMerchant(repo *memMerchantRepo, id, legalName string) {
	now := time.Now().UTC()
	_ = repo.Create(context.Background(), &domain.Merchant{
		ID: id, Name: "Acme", LegalName: legalName,
		KYCStatus: domain.KYCPending, CreatedAt: now, UpdatedAt: now,
	})
}

func TestMockProviders(t *testing.T) {
	ctx := context.Background()
	pan := MockPanProvider{}
	aadhaar := MockAadhaarProvider{}

	panCases := []struct {
		pan, legalName string
		want           bool
	}{
		{"ABCDE1234F", "Acme Pvt Ltd", true},
		{"abcde1234f", "Acme Pvt Ltd", true},
		{"ABCDE1234F", "", false},
		{"1234567890", "Acme Pvt Ltd", false},
		{"ABC1234567", "Acme Pvt Ltd", false},
	}
	for _, tc := range panCases {
		got, err := pan.VerifyPAN(ctx, tc.pan, tc.legalName)
		if err != nil || got != tc.want {
			t.Fatalf("VerifyPAN(%q, %q) = %v, %v; want %v", tc.pan, tc.legalName, got, err, tc.want)
		}
	}

	aadhaarCases := []struct {
		aadhaar string
		want    bool
	}{
		{"234123412346", true},
		{"2341 2341 2346", true},
		{"111111111111", false},
		{"12345", false},
		{"23412341234x", false},
	}
	for _, tc := range aadhaarCases {
		got, err := aadhaar.VerifyAadhaar(ctx, tc.aadhaar)
		if err != nil || got != tc.want {
			t.Fatalf("VerifyAadhaar(%q) = %v, %v; want %v", tc.aadhaar, got, err, tc.want)
		}
	}
}

func TestVerifyStoresOutcome(t *testing.T) {
	ctx := context.Background()
	repo := &memMerchantRepo{merchants: map[string]*domain.Merchant{}}
	seedMerchant(repo, "m-1", "Acme Pvt Ltd")
	svc := NewService(repo, MockPanProvider{}, MockAadhaarProvider{}, nil)

	res, err := svc.Verify(ctx, "u-1", "m-1", "ABCDE1234F", "234123412346")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Status != domain.KYCVerified {
		t.Fatalf("status = %q, want verified", res.Status)
	}
	m, _ := repo.GetByID(ctx, "m-1")
	if m.KYCStatus != domain.KYCVerified {
		t.Fatalf("stored status = %q, want verified", m.KYCStatus)
	}

	res, err = svc.Verify(ctx, "u-1", "m-1", "bogus", "234123412346")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Status != domain.KYCRejected {
		t.Fatalf("status = %q, want rejected", res.Status)
	}
	m, _ = repo.GetByID(ctx, "m-1")
	if m.KYCStatus != domain.KYCRejected {
		t.Fatalf("stored status = %q, want rejected", m.KYCStatus)
	}

	if _, err := svc.Verify(ctx, "u-1", "missing", "ABCDE1234F", "234123412346"); err != ErrMerchantNotFound {
		t.Fatalf("err = %v, want ErrMerchantNotFound", err)
	}
}

func TestVerifyEndpointAuthorization(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	repo := &memMerchantRepo{merchants: map[string]*domain.Merchant{}}
	seedMerchant(repo, "m-1", "Acme Pvt Ltd")
	h := NewHandler(NewService(repo, MockPanProvider{}, MockAadhaarProvider{}, nil))
	mux := http.NewServeMux()
	h.Register(mux, middleware.RequireAuth(tokens))

	issue := func(role userdomain.Role, merchantID string) string {
		token, _, err := tokens.IssueAccess(uuid.New().String(), uuid.New().String(),
			string(role), authz.PermissionsFor(role), merchantID)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		return token
	}
	post := func(token string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"pan": "ABCDE1234F", "aadhaar": "234123412346"})
		req := httptest.NewRequest(http.MethodPost, "/merchants/m-1/kyc/verify", bytes.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	if rr := post(""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rr.Code)
	}
	// kyc:verify belongs to managers and admins, not plain users.
	if rr := post(issue(userdomain.RoleMerchantUser, "m-1")); rr.Code != http.StatusForbidden {
		t.Fatalf("merchant_user status = %d, want 403", rr.Code)
	}
	if rr := post(issue(userdomain.RoleMerchantManager, "m-2")); rr.Code != http.StatusForbidden {
		t.Fatalf("foreign manager status = %d, want 403", rr.Code)
	}

	rr := post(issue(userdomain.RoleMerchantManager, "m-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("manager status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		KYCStatus string `json:"kyc_status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.KYCStatus != "verified" {
		t.Fatalf("kyc_status = %q, want verified", resp.KYCStatus)
	}
}
