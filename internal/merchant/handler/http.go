// Package handler exposes merchant profile and billing endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/audit"
	"merchant-docs/backend/internal/authz"
	docrepo "merchant-docs/backend/internal/document/repository"
	"merchant-docs/backend/internal/merchant/domain"
	"merchant-docs/backend/internal/merchant/repository"
	"merchant-docs/backend/internal/server/httpjson"
)

// Handler serves the merchant endpoints.
type Handler struct {
	merchants repository.Repository
	docs      docrepo.Repository
	auditor   audit.AuditLogger
}

// New creates the merchant handler. auditor may be nil.
func New(merchants repository.Repository, docs docrepo.Repository, auditor audit.AuditLogger) *Handler {
	return &Handler{merchants: merchants, docs: docs, auditor: auditor}
}

// Register installs the merchant routes on mux behind requireAuth.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /merchants", requireAuth(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /merchants/{merchantID}", requireAuth(http.HandlerFunc(h.handleGet)))
	mux.Handle("PUT /merchants/{merchantID}", requireAuth(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("GET /merchants/{merchantID}/billing", requireAuth(http.HandlerFunc(h.handleBilling)))
}

type merchantPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LegalName string    `json:"legal_name,omitempty"`
	KYCStatus string    `json:"kyc_status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMerchantPayload(m *domain.Merchant) merchantPayload {
	return merchantPayload{
		ID:        m.ID,
		Name:      m.Name,
		LegalName: m.LegalName,
		KYCStatus: string(m.KYCStatus),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// handleCreate onboards a new merchant. Only system admins create merchants;
// a merchant admin's merchant:write is scoped to their own profile.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.GuardRequest(w, r, "", authz.PermMerchantWrite)
	if !ok {
		return
	}
	if !authz.IsSystemAdmin(claims) {
		httpjson.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Name      string `json:"name"`
		LegalName string `json:"legal_name"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	now := time.Now().UTC()
	m := &domain.Merchant{
		ID:        uuid.New().String(),
		Name:      req.Name,
		LegalName: req.LegalName,
		KYCStatus: domain.KYCPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.merchants.Create(r.Context(), m); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logEvent(r, m.ID, claims.UserID(), "merchant_created", "merchant:"+m.ID)
	httpjson.Write(w, http.StatusCreated, map[string]any{"merchant": toMerchantPayload(m)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	if _, ok := authz.GuardRequest(w, r, merchantID, authz.PermMerchantRead); !ok {
		return
	}
	m, ok := h.load(w, r, merchantID)
	if !ok {
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"merchant": toMerchantPayload(m)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	claims, ok := authz.GuardRequest(w, r, merchantID, authz.PermMerchantWrite)
	if !ok {
		return
	}
	m, ok := h.load(w, r, merchantID)
	if !ok {
		return
	}
	var req struct {
		Name      string `json:"name"`
		LegalName string `json:"legal_name"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != "" {
		m.Name = req.Name
	}
	m.LegalName = req.LegalName
	if err := m.Validate(); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	m.UpdatedAt = time.Now().UTC()
	if err := h.merchants.Update(r.Context(), m); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logEvent(r, merchantID, claims.UserID(), "merchant_updated", "merchant:"+merchantID)
	httpjson.Write(w, http.StatusOK, map[string]any{"merchant": toMerchantPayload(m)})
}

// handleBilling reports document storage usage, the input to invoicing.
func (h *Handler) handleBilling(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	if _, ok := authz.GuardRequest(w, r, merchantID, authz.PermBillingView); !ok {
		return
	}
	if _, ok := h.load(w, r, merchantID); !ok {
		return
	}
	usage, err := h.docs.Usage(r.Context(), merchantID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"merchant_id":    usage.MerchantID,
		"document_count": usage.DocumentCount,
		"total_bytes":    usage.TotalBytes,
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, merchantID string) (*domain.Merchant, bool) {
	m, err := h.merchants.GetByID(r.Context(), merchantID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if m == nil {
		httpjson.Error(w, http.StatusNotFound, "merchant not found")
		return nil, false
	}
	return m, true
}

func (h *Handler) logEvent(r *http.Request, merchantID, userID, action, resource string) {
	if h.auditor == nil {
		return
	}
	h.auditor.LogEvent(r.Context(), merchantID, userID, action, resource, "")
}
