package domain

import "time"

// RefreshRecord is the server-side half of one refresh credential. The raw
// secret is never stored; only TokenDigest is. A record moves
// ACTIVE -> ROTATED (revoked the instant its successor is created) and ends
// REVOKED or EXPIRED; the chain is implicit through creation time, there is
// no parent pointer.
type RefreshRecord struct {
	ID               string
	UserID           string
	TokenDigest      string
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	CreatedFromIP    string
	CreatedFromAgent string
	CreatedAt        time.Time
}

// Revoked reports whether the record has been rotated or revoked.
func (r *RefreshRecord) Revoked() bool { return r.RevokedAt != nil }

// Expired reports whether the record is past its expiry at the given time.
// Expiry is passive: nothing sweeps records, they are rejected at read time.
func (r *RefreshRecord) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// Active reports whether the record can still be presented for rotation.
func (r *RefreshRecord) Active(now time.Time) bool {
	return !r.Revoked() && !r.Expired(now)
}
