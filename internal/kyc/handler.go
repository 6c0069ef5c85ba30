package kyc

import (
	"errors"
	"net/http"

	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/server/httpjson"
)

// Handler serves the verification endpoint.
type Handler struct {
	svc *Service
}

// NewHandler creates the KYC handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register installs the KYC route on mux behind requireAuth.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("POST /merchants/{merchantID}/kyc/verify", requireAuth(http.HandlerFunc(h.handleVerify)))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("merchantID")
	claims, ok := authz.GuardRequest(w, r, merchantID, authz.PermKYCVerify)
	if !ok {
		return
	}
	var req struct {
		PAN     string `json:"pan"`
		Aadhaar string `json:"aadhaar"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.svc.Verify(r.Context(), claims.UserID(), merchantID, req.PAN, req.Aadhaar)
	if err != nil {
		if errors.Is(err, ErrMerchantNotFound) {
			httpjson.Error(w, http.StatusNotFound, "merchant not found")
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"merchant_id":      result.MerchantID,
		"pan_verified":     result.PANVerified,
		"aadhaar_verified": result.AadhaarOK,
		"kyc_status":       string(result.Status),
	})
}
