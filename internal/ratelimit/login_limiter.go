// Package ratelimit throttles authentication attempts using redis counters.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts failed login attempts per email+IP in a fixed window.
// A nil limiter (or one without a client) allows everything, so the limiter
// is simply not constructed when redis is not configured.
type LoginLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

// NewLoginLimiter returns a limiter allowing limit attempts per window.
func NewLoginLimiter(rdb *redis.Client, limit int, window time.Duration) *LoginLimiter {
	if rdb == nil {
		return nil
	}
	return &LoginLimiter{rdb: rdb, limit: int64(limit), window: window}
}

func attemptKey(email, ip string) string {
	return "login_attempts:" + email + ":" + ip
}

// Allow reports whether another attempt for this email+IP is inside the
// limit. Redis failures allow the attempt: the limiter is a brake, not a
// gate, and must not take logins down with it.
func (l *LoginLimiter) Allow(ctx context.Context, email, ip string) bool {
	if l == nil || l.rdb == nil {
		return true
	}
	key := attemptKey(email, ip)
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("ratelimit: incr failed: %v", err)
		return true
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			log.Printf("ratelimit: expire failed: %v", err)
		}
	}
	return n <= l.limit
}

// Reset clears the counter for email+IP, called after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) {
	if l == nil || l.rdb == nil {
		return
	}
	if err := l.rdb.Del(ctx, attemptKey(email, ip)).Err(); err != nil {
		log.Printf("ratelimit: reset failed: %v", err)
	}
}
