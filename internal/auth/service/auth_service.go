// Package service implements the session engine: credential verification,
// access token issuance, refresh rotation with reuse detection, and
// two-factor enrollment.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/audit"
	"merchant-docs/backend/internal/authz"
	"merchant-docs/backend/internal/mfa"
	"merchant-docs/backend/internal/notify"
	"merchant-docs/backend/internal/ratelimit"
	"merchant-docs/backend/internal/security"
	sessiondomain "merchant-docs/backend/internal/session/domain"
	sessionrepo "merchant-docs/backend/internal/session/repository"
	"merchant-docs/backend/internal/telemetry"
	userdomain "merchant-docs/backend/internal/user/domain"
	userrepo "merchant-docs/backend/internal/user/repository"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password, and
	// deactivated accounts. Callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTwoFactorRequired means the password was correct but the account
	// has two-factor enabled and no code was supplied.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactorCode means the supplied TOTP code did not verify.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrInvalidOrExpiredToken means the refresh record is absent or expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")
	// ErrReuseDetected means a rotated or mismatched refresh secret was
	// presented; every session for the user has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrTwoFactorAlreadyEnabled means enrollment was attempted on an
	// account that already has a TOTP secret.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrEmailAlreadyRegistered means registration hit an existing email.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrTooManyAttempts means the login rate limit for this email+IP tripped.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrWeakPassword means the password failed the minimum length check.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

// AuthResult is the outcome of a successful login or refresh.
type AuthResult struct {
	User             *userdomain.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshSecret    string
	RefreshExpiresAt time.Time
}

// Service is the session engine.
type Service struct {
	users    userrepo.Repository
	sessions sessionrepo.Repository
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	totp     *mfa.TOTP
	auditor  audit.AuditLogger
	emitter  telemetry.EventEmitter
	notifier notify.Notifier
	limiter  *ratelimit.LoginLimiter

	refreshTTL time.Duration

	// dummyDigest is verified against when the email is unknown so that
	// lookup misses cost the same as password mismatches.
	dummyDigest string

	now func() time.Time
}

// NewService wires the session engine. auditor, emitter, notifier, and
// limiter may be nil; the corresponding side effects are skipped.
func NewService(
	users userrepo.Repository,
	sessions sessionrepo.Repository,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	totp *mfa.TOTP,
	auditor audit.AuditLogger,
	emitter telemetry.EventEmitter,
	notifier notify.Notifier,
	limiter *ratelimit.LoginLimiter,
	refreshTTL time.Duration,
) *Service {
	dummy, err := hasher.Hash([]byte("2fbb1f39-2b4c-4c5e-9f36-not-a-password"))
	if err != nil {
		dummy = ""
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		hasher:      hasher,
		tokens:      tokens,
		totp:        totp,
		auditor:     auditor,
		emitter:     emitter,
		notifier:    notifier,
		limiter:     limiter,
		refreshTTL:  refreshTTL,
		dummyDigest: dummy,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with the read-only role. Elevated roles are
// granted afterwards by a user manager.
func (s *Service) Register(ctx context.Context, email, name, password string) (*userdomain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	digest, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &userdomain.User{
		ID:             uuid.New().String(),
		Email:          email,
		Name:           strings.TrimSpace(name),
		PasswordDigest: digest,
		Role:           userdomain.RoleReadOnly,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logEvent(ctx, u.MerchantID, u.ID, "user_registered", "user:"+u.ID, "")
	return u.Sanitized(), nil
}

// Login verifies email+password (and a TOTP code when two-factor is enabled),
// then opens a session: a refresh record is persisted and an access token
// bound to it is issued. No record is created on any failure path.
func (s *Service) Login(ctx context.Context, email, password, totpCode, ip, agent string) (*AuthResult, error) {
	email = normalizeEmail(email)

	if s.limiter != nil && !s.limiter.Allow(ctx, email, ip) {
		s.emitEvent(ctx, telemetry.EventLoginRateLimited, "", "", ip, agent, email)
		s.logEvent(ctx, "", "", "login_rate_limited", "email:"+email, ip)
		return nil, ErrTooManyAttempts
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		// Burn the same hashing work as a real mismatch.
		s.hasher.Verify(s.dummyDigest, []byte(password))
		s.emitEvent(ctx, telemetry.EventLoginFailure, "", "", ip, agent, "unknown or inactive account")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(u.PasswordDigest, []byte(password)) {
		s.emitEvent(ctx, telemetry.EventLoginFailure, u.ID, u.MerchantID, ip, agent, "password mismatch")
		s.logEvent(ctx, u.MerchantID, u.ID, "login_failure", "user:"+u.ID, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if u.TwoFactorEnabled() {
		if totpCode == "" {
			s.emitEvent(ctx, telemetry.EventTwoFactorRequired, u.ID, u.MerchantID, ip, agent, "")
			return nil, ErrTwoFactorRequired
		}
		if !s.totp.VerifyCode(u.TOTPSecret, totpCode) {
			s.emitEvent(ctx, telemetry.EventLoginFailure, u.ID, u.MerchantID, ip, agent, "totp mismatch")
			s.logEvent(ctx, u.MerchantID, u.ID, "login_failure", "user:"+u.ID, "totp mismatch")
			return nil, ErrInvalidTwoFactorCode
		}
	}

	if s.limiter != nil {
		s.limiter.Reset(ctx, email, ip)
	}

	result, err := s.openSession(ctx, u, ip, agent)
	if err != nil {
		return nil, err
	}
	s.emitEvent(ctx, telemetry.EventLoginSuccess, u.ID, u.MerchantID, ip, agent, "")
	s.logEvent(ctx, u.MerchantID, u.ID, "login_success", "user:"+u.ID, "")
	return result, nil
}

// Refresh rotates a refresh secret: the presented record is revoked and a new
// record plus access token are issued. A secret that fails its digest check,
// or that belongs to an already-revoked record, is treated as stolen: every
// session for that user is revoked and ErrReuseDetected is returned.
func (s *Service) Refresh(ctx context.Context, rawSecret, ip, agent string) (*AuthResult, error) {
	recordID, secret, err := security.ParseRefreshSecret(rawSecret)
	if err != nil {
		return nil, err
	}
	now := s.now()

	rec, err := s.sessions.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if !security.RefreshSecretDigestEqual(secret, rec.TokenDigest) {
		return nil, s.handleReuse(ctx, rec, ip, agent, "digest mismatch")
	}
	if rec.Revoked() {
		return nil, s.handleReuse(ctx, rec, ip, agent, "revoked record presented")
	}
	if rec.Expired(now) {
		return nil, ErrInvalidOrExpiredToken
	}

	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		_ = s.sessions.Revoke(ctx, rec.ID, now)
		return nil, ErrInvalidOrExpiredToken
	}

	// Exactly one of two concurrent presentations of the same secret wins
	// this transition; the loser falls into the reuse path.
	won, err := s.sessions.RevokeIfActive(ctx, rec.ID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.handleReuse(ctx, rec, ip, agent, "lost rotation race")
	}

	result, err := s.openSession(ctx, u, ip, agent)
	if err != nil {
		return nil, err
	}
	s.emitEvent(ctx, telemetry.EventRefreshRotated, u.ID, u.MerchantID, ip, agent, "rotated "+rec.ID)
	return result, nil
}

// Logout revokes the presented refresh record. It is idempotent: unknown or
// already-revoked records succeed silently. The secret digest must match so
// a guessed record id cannot end someone else's session.
func (s *Service) Logout(ctx context.Context, rawSecret, ip, agent string) error {
	recordID, secret, err := security.ParseRefreshSecret(rawSecret)
	if err != nil {
		return err
	}
	rec, err := s.sessions.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec == nil || !security.RefreshSecretDigestEqual(secret, rec.TokenDigest) {
		return nil
	}
	if err := s.sessions.Revoke(ctx, rec.ID, s.now()); err != nil {
		return err
	}
	s.emitEvent(ctx, telemetry.EventLogout, rec.UserID, "", ip, agent, "")
	s.logEvent(ctx, "", rec.UserID, "logout", "session:"+rec.ID, "")
	return nil
}

// Setup2FA generates a candidate TOTP secret and provisioning URI for the
// user. Nothing is persisted; the secret becomes active only when Verify2FA
// proves the user's authenticator produces valid codes for it.
func (s *Service) Setup2FA(ctx context.Context, userID string) (secret, uri string, err error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if u == nil || !u.IsActive {
		return "", "", ErrInvalidCredentials
	}
	if u.TwoFactorEnabled() {
		return "", "", ErrTwoFactorAlreadyEnabled
	}
	return s.totp.GenerateSecret(u.Email)
}

// Verify2FA checks a code against the candidate secret from Setup2FA and,
// on success, persists the secret, enabling two-factor for the account.
func (s *Service) Verify2FA(ctx context.Context, userID, secret, code, ip, agent string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || !u.IsActive {
		return ErrInvalidCredentials
	}
	if u.TwoFactorEnabled() {
		return ErrTwoFactorAlreadyEnabled
	}
	if secret == "" || !s.totp.VerifyCode(secret, code) {
		return ErrInvalidTwoFactorCode
	}
	if err := s.users.SetTOTPSecret(ctx, u.ID, secret); err != nil {
		return err
	}
	s.emitEvent(ctx, telemetry.EventTwoFactorEnabled, u.ID, u.MerchantID, ip, agent, "")
	s.logEvent(ctx, u.MerchantID, u.ID, "two_factor_enabled", "user:"+u.ID, "")
	return nil
}

// RevokeAllSessions revokes every refresh record for the user. Used on
// deactivation and password resets; existing access tokens still live out
// their short TTL.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllByUser(ctx, userID, s.now()); err != nil {
		return err
	}
	s.emitEvent(ctx, telemetry.EventSessionsRevoked, userID, "", "", "", "administrative revocation")
	s.logEvent(ctx, "", userID, "sessions_revoked", "user:"+userID, "administrative revocation")
	return nil
}

// openSession mints the refresh secret and access token first (pure crypto,
// no side effects) and persists the refresh record last, so a storage
// failure leaves nothing half-created.
func (s *Service) openSession(ctx context.Context, u *userdomain.User, ip, agent string) (*AuthResult, error) {
	now := s.now()
	recordID, raw, digest, err := security.MintRefreshSecret()
	if err != nil {
		return nil, err
	}
	perms := authz.PermissionsFor(u.Role)
	accessToken, accessExp, err := s.tokens.IssueAccess(u.ID, recordID, string(u.Role), perms, u.MerchantID)
	if err != nil {
		return nil, err
	}
	rec := &sessiondomain.RefreshRecord{
		ID:               recordID,
		UserID:           u.ID,
		TokenDigest:      digest,
		ExpiresAt:        now.Add(s.refreshTTL),
		CreatedFromIP:    ip,
		CreatedFromAgent: agent,
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &AuthResult{
		User:             u.Sanitized(),
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshSecret:    raw,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// handleReuse nukes every session for the record's owner and notifies them.
// Always returns ErrReuseDetected.
func (s *Service) handleReuse(ctx context.Context, rec *sessiondomain.RefreshRecord, ip, agent, detail string) error {
	if err := s.sessions.RevokeAllByUser(ctx, rec.UserID, s.now()); err != nil {
		// The chain could not be invalidated; still refuse the caller.
		s.logEvent(ctx, "", rec.UserID, "sessions_revoke_failed", "user:"+rec.UserID, err.Error())
	}
	s.emitEvent(ctx, telemetry.EventRefreshReuse, rec.UserID, "", ip, agent, detail)
	s.emitEvent(ctx, telemetry.EventSessionsRevoked, rec.UserID, "", ip, agent, "reuse detected")
	s.logEvent(ctx, "", rec.UserID, "refresh_reuse_detected", "session:"+rec.ID, detail)
	if s.notifier != nil {
		email := ""
		if u, err := s.users.GetByID(ctx, rec.UserID); err == nil && u != nil {
			email = u.Email
		}
		s.notifier.NotifySecurityAlert(ctx, rec.UserID, email,
			"All sessions signed out",
			"A previously used sign-in token was presented again. As a precaution every session on your account has been signed out.")
	}
	return ErrReuseDetected
}

func (s *Service) emitEvent(ctx context.Context, eventType, userID, merchantID, ip, agent, detail string) {
	if s.emitter == nil {
		return
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.SecurityEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		UserID:     userID,
		MerchantID: merchantID,
		IP:         ip,
		UserAgent:  agent,
		Detail:     detail,
		OccurredAt: s.now(),
	})
}

func (s *Service) logEvent(ctx context.Context, merchantID, userID, action, resource, metadata string) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogEvent(ctx, merchantID, userID, action, resource, metadata)
}
