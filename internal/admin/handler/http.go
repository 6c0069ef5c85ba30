// Package handler exposes administrative listings and user management.
package handler

import (
	"context"
	"net/http"
	"time"

	"merchant-docs/backend/internal/audit"
	auditrepo "merchant-docs/backend/internal/audit/repository"
	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/server/httpjson"
	userdomain "merchant-docs/backend/internal/user/domain"
	userrepo "merchant-docs/backend/internal/user/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SessionRevoker ends every refresh chain a user holds. Satisfied by the
// session engine service.
type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID string) error
}

// Handler serves the /admin endpoints.
type Handler struct {
	users    userrepo.Repository
	auditLog auditrepo.Repository
	sessions SessionRevoker
	auditor  audit.AuditLogger
}

// New creates the admin handler. sessions is used to revoke refresh chains
// when a user is deactivated; auditor may be nil.
func New(users userrepo.Repository, auditLog auditrepo.Repository, sessions SessionRevoker, auditor audit.AuditLogger) *Handler {
	return &Handler{users: users, auditLog: auditLog, sessions: sessions, auditor: auditor}
}

// Register installs the admin routes on mux behind requireAuth.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/users", requireAuth(http.HandlerFunc(h.handleListUsers)))
	mux.Handle("PATCH /admin/users/{id}", requireAuth(http.HandlerFunc(h.handleUpdateUser)))
	mux.Handle("GET /admin/audit", requireAuth(http.HandlerFunc(h.handleListAudit)))
}

type userPayload struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	MerchantID string    `json:"merchant_id,omitempty"`
	IsActive   bool      `json:"is_active"`
	TwoFactor  bool      `json:"two_factor_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserPayload(u *userdomain.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		MerchantID: u.MerchantID,
		IsActive:   u.IsActive,
		TwoFactor:  u.TwoFactorEnabled(),
		CreatedAt:  u.CreatedAt,
	}
}

// handleListUsers lists users. Merchant-scoped admins see only their own
// merchant regardless of the query; system admins may filter freely.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.GuardRequest(w, r, "", authz.PermUserManage)
	if !ok {
		return
	}
	merchantID := r.URL.Query().Get("merchant_id")
	if !authz.IsSystemAdmin(claims) {
		merchantID = claims.MerchantID
	}
	limit, offset := httpjson.Pagination(r, defaultPageSize, maxPageSize)
	users, err := h.users.List(r.Context(), merchantID, limit, offset)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]userPayload, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPayload(u))
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"users": out})
}

// handleUpdateUser changes a user's role or active flag. Deactivation also
// revokes every refresh chain the user holds.
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := authz.GuardRequest(w, r, "", authz.PermUserManage)
	if !ok {
		return
	}
	target, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if target == nil {
		httpjson.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if !authz.IsSystemAdmin(claims) {
		if err := authz.RequireMerchantAccess(claims, target.MerchantID); err != nil {
			httpjson.Error(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Role != nil {
		role, known := userdomain.ParseRole(*req.Role)
		if !known {
			httpjson.Error(w, http.StatusBadRequest, "unknown role")
			return
		}
		// Only system admins mint system admins.
		if role == userdomain.RoleSystemAdmin && !authz.IsSystemAdmin(claims) {
			httpjson.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		target.Role = role
	}

	deactivated := false
	if req.IsActive != nil && *req.IsActive != target.IsActive {
		target.IsActive = *req.IsActive
		deactivated = !target.IsActive
	}

	if err := h.users.Update(r.Context(), target); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if deactivated && h.sessions != nil {
		if err := h.sessions.RevokeAllSessions(r.Context(), target.ID); err != nil {
			httpjson.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if h.auditor != nil {
		h.auditor.LogEvent(r.Context(), target.MerchantID, claims.UserID(), "user_updated", "user:"+target.ID, "")
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"user": toUserPayload(target)})
}

// handleListAudit lists audit entries for a merchant. audit:read is held
// only by system admins; the merchant_id query selects the tenant (or the
// "_system" sentinel for unscoped events).
func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := authz.GuardRequest(w, r, "", authz.PermAuditRead); !ok {
		return
	}
	merchantID := r.URL.Query().Get("merchant_id")
	if merchantID == "" {
		merchantID = audit.SentinelMerchantID
	}
	limit, offset := httpjson.Pagination(r, defaultPageSize, maxPageSize)
	entries, err := h.auditLog.ListByMerchant(r.Context(), merchantID, limit, offset)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	type entryPayload struct {
		ID         string    `json:"id"`
		MerchantID string    `json:"merchant_id"`
		UserID     string    `json:"user_id,omitempty"`
		Action     string    `json:"action"`
		Resource   string    `json:"resource"`
		IP         string    `json:"ip,omitempty"`
		UserAgent  string    `json:"user_agent,omitempty"`
		Metadata   string    `json:"metadata,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]entryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryPayload{
			ID:         e.ID,
			MerchantID: e.MerchantID,
			UserID:     e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			IP:         e.IP,
			UserAgent:  e.UserAgent,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"entries": out})
}
