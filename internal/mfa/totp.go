// Package mfa wraps time-based one-time-password generation and verification.
// It holds no state: the candidate secret lives with the caller until the
// user proves possession.
package mfa

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpDigits = otp.DigitsSix
)

// TOTP generates shared secrets and verifies 6-digit codes with a small
// time-skew window.
type TOTP struct {
	issuer string
	skew   uint
}

// New returns a TOTP engine. skew is the number of 30s steps accepted on
// either side of now; 2 tolerates ~1 minute of clock drift.
func New(issuer string, skew uint) *TOTP {
	if issuer == "" {
		issuer = "MerchantDocs"
	}
	return &TOTP{issuer: issuer, skew: skew}
}

// GenerateSecret produces a fresh base32 secret and the otpauth:// URI an
// authenticator app can scan. Nothing is persisted here; the caller stores
// the secret only after the user verifies a code against it.
func (t *TOTP) GenerateSecret(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyCode reports whether code is valid for secret within the skew window.
// Malformed codes (anything but 6 digits) are rejected before any crypto.
func (t *TOTP) VerifyCode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 || !allDigits(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      t.skew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
