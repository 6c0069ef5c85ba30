package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformedRefreshSecret is returned when a raw refresh value does not
// split into "<recordID>.<secret>".
var ErrMalformedRefreshSecret = errors.New("malformed refresh secret")

const refreshSecretBytes = 32

// MintRefreshSecret generates a fresh refresh credential. It returns the
// record id (stored-side identifier), the raw bearer value
// "<recordID>.<base64url-secret>" handed to the client, and the SHA-256
// digest of the secret portion, which is the only thing ever persisted.
func MintRefreshSecret() (recordID, raw, digest string, err error) {
	recordID = uuid.New().String()
	b := make([]byte, refreshSecretBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(b)
	return recordID, recordID + "." + secret, HashRefreshSecret(secret), nil
}

// ParseRefreshSecret splits a raw refresh value into record id and secret.
// The record id lets the store find the record with a point lookup; the
// secret is then verified against the stored digest.
func ParseRefreshSecret(raw string) (recordID, secret string, err error) {
	recordID, secret, ok := strings.Cut(raw, ".")
	if !ok || recordID == "" || secret == "" {
		return "", "", ErrMalformedRefreshSecret
	}
	if _, err := uuid.Parse(recordID); err != nil {
		return "", "", ErrMalformedRefreshSecret
	}
	return recordID, secret, nil
}

// HashRefreshSecret returns the hex-encoded SHA-256 digest of the secret
// portion of a refresh credential.
func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// RefreshSecretDigestEqual performs a constant-time comparison of the provided
// secret's digest with the stored digest.
func RefreshSecretDigestEqual(secret, storedDigest string) bool {
	providedDigest := HashRefreshSecret(secret)
	return subtle.ConstantTimeCompare([]byte(providedDigest), []byte(storedDigest)) == 1
}
