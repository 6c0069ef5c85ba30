package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"merchant-docs/backend/internal/audit/domain"
	auditrepo "merchant-docs/backend/internal/audit/repository"
)

// SentinelMerchantID is the merchant_id used for audit events that have no
// merchant (e.g. login_failure before the user is known, system admin actions).
const SentinelMerchantID = "_system"

// MetaExtractor returns the client IP and user agent from the request context.
type MetaExtractor func(context.Context) (ip, userAgent string)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, merchantID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional meta extractor.
type Logger struct {
	repo auditrepo.Repository
	meta MetaExtractor
}

// NewLogger returns an AuditLogger that persists to repo and uses meta for
// client IP and user agent. meta may be nil; then both are recorded as "unknown".
func NewLogger(repo auditrepo.Repository, meta MetaExtractor) *Logger {
	return &Logger{repo: repo, meta: meta}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, merchantID, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip, agent := "unknown", "unknown"
	if l.meta != nil {
		ip, agent = l.meta(ctx)
	}
	if merchantID == "" {
		merchantID = SentinelMerchantID
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		IP:         ip,
		UserAgent:  agent,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
