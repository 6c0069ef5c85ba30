// Package handler exposes the session engine over HTTP. The refresh secret
// travels only in an HTTP-only cookie scoped to /auth; the access token is
// returned in the response body for the client to hold in memory.
package handler

import (
	"errors"
	"net/http"
	"time"

	"merchant-docs/backend/internal/auth/service"
	"merchant-docs/backend/internal/security"
	"merchant-docs/backend/internal/server/httpjson"
	"merchant-docs/backend/internal/server/middleware"
	userdomain "merchant-docs/backend/internal/user/domain"
	userrepo "merchant-docs/backend/internal/user/repository"
)

// RefreshCookieName is the cookie carrying the raw refresh secret.
const RefreshCookieName = "refresh_token"

// refreshCookiePath limits the cookie to the auth endpoints so it never rides
// along on API calls.
const refreshCookiePath = "/auth"

// Handler serves the /auth endpoints.
type Handler struct {
	svc           *service.Service
	users         userrepo.Repository
	refreshTTL    time.Duration
	secureCookies bool
}

// New creates the auth handler. secureCookies should be true everywhere the
// server sits behind TLS (i.e. everything except local development).
func New(svc *service.Service, users userrepo.Repository, refreshTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{svc: svc, users: users, refreshTTL: refreshTTL, secureCookies: secureCookies}
}

// Register installs the auth routes on mux. requireAuth wraps the endpoints
// that need a valid access token.
func (h *Handler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.Handle("POST /auth/2fa/setup", requireAuth(http.HandlerFunc(h.handleSetup2FA)))
	mux.Handle("POST /auth/2fa/verify", requireAuth(http.HandlerFunc(h.handleVerify2FA)))
	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(h.handleMe)))
}

type userPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	MerchantID string `json:"merchant_id,omitempty"`
	TwoFactor  bool   `json:"two_factor_enabled"`
}

func toUserPayload(u *userdomain.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(u.Role),
		MerchantID: u.MerchantID,
		TwoFactor:  u.TwoFactorEnabled(),
	}
}

type sessionResponse struct {
	User            userPayload `json:"user"`
	AccessToken     string      `json:"access_token"`
	AccessExpiresAt time.Time   `json:"access_expires_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, map[string]any{"user": toUserPayload(u)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	meta := middleware.GetClientMeta(r.Context())
	res, err := h.svc.Login(r.Context(), req.Email, req.Password, req.TOTPCode, meta.IP, meta.UserAgent)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshSecret)
	httpjson.Write(w, http.StatusOK, sessionResponse{
		User:            toUserPayload(res.User),
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshCookieValue(r)
	if raw == "" {
		httpjson.Error(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	meta := middleware.GetClientMeta(r.Context())
	res, err := h.svc.Refresh(r.Context(), raw, meta.IP, meta.UserAgent)
	if err != nil {
		// Whatever went wrong, the cookie is no longer usable.
		h.clearRefreshCookie(w)
		h.writeServiceError(w, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshSecret)
	httpjson.Write(w, http.StatusOK, sessionResponse{
		User:            toUserPayload(res.User),
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := h.refreshCookieValue(r)
	h.clearRefreshCookie(w)
	if raw == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	meta := middleware.GetClientMeta(r.Context())
	if err := h.svc.Logout(r.Context(), raw, meta.IP, meta.UserAgent); err != nil {
		if errors.Is(err, security.ErrMalformedRefreshSecret) {
			// The cookie was garbage; it is gone now, which is the goal.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetup2FA(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	secret, uri, err := h.svc.Setup2FA(r.Context(), claims.UserID())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{
		"secret":      secret,
		"otpauth_url": uri,
	})
}

func (h *Handler) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var req struct {
		Secret string `json:"secret"`
		Code   string `json:"code"`
	}
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	meta := middleware.GetClientMeta(r.Context())
	if err := h.svc.Verify2FA(r.Context(), claims.UserID(), req.Secret, req.Code, meta.IP, meta.UserAgent); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	u, err := h.users.GetByID(r.Context(), claims.UserID())
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u == nil || !u.IsActive {
		httpjson.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"user":        toUserPayload(u),
		"permissions": claims.Permissions,
	})
}

func (h *Handler) refreshCookieValue(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    raw,
		Path:     refreshCookiePath,
		MaxAge:   int(h.refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeServiceError maps session engine sentinels onto HTTP statuses. The
// body repeats the sentinel text so clients can branch (e.g. on the
// two-factor challenge) without parsing status codes alone. The one
// exception is reuse detection: the caller presenting a replayed secret may
// be the attacker, so the response is indistinguishable from an expired
// token.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, security.ErrMalformedRefreshSecret),
		errors.Is(err, service.ErrWeakPassword):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTwoFactorRequired):
		httpjson.Error(w, http.StatusUnauthorized, "two_factor_required")
	case errors.Is(err, service.ErrInvalidOrExpiredToken),
		errors.Is(err, service.ErrReuseDetected):
		httpjson.Error(w, http.StatusUnauthorized, service.ErrInvalidOrExpiredToken.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidTwoFactorCode):
		httpjson.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered),
		errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		httpjson.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		httpjson.Error(w, http.StatusTooManyRequests, err.Error())
	default:
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
