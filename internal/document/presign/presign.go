// Package presign issues short-lived signed URLs for direct uploads and
// downloads, keeping file bytes off the API server.
package presign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Presigner issues signed URLs for an object key.
type Presigner interface {
	PresignUpload(objectKey, contentType string, expiresAt time.Time) (string, error)
	PresignDownload(objectKey string, expiresAt time.Time) (string, error)
}

// ErrInvalidSignature is returned by Verify for tampered or expired URLs.
var ErrInvalidSignature = errors.New("invalid or expired signature")

// HMACPresigner signs URLs against a local storage gateway with an HMAC-SHA256
// over method, object key, and expiry. It stands in for a cloud storage SDK's
// presigner behind the same interface.
type HMACPresigner struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewHMACPresigner creates a presigner. baseURL is the storage gateway root,
// e.g. "http://localhost:9000/uploads".
func NewHMACPresigner(baseURL string, secret []byte) *HMACPresigner {
	return &HMACPresigner{
		baseURL: baseURL,
		secret:  secret,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PresignUpload returns a signed PUT URL for the object key.
func (p *HMACPresigner) PresignUpload(objectKey, contentType string, expiresAt time.Time) (string, error) {
	return p.sign("PUT", objectKey, contentType, expiresAt)
}

// PresignDownload returns a signed GET URL for the object key.
func (p *HMACPresigner) PresignDownload(objectKey string, expiresAt time.Time) (string, error) {
	return p.sign("GET", objectKey, "", expiresAt)
}

func (p *HMACPresigner) sign(method, objectKey, contentType string, expiresAt time.Time) (string, error) {
	if objectKey == "" {
		return "", errors.New("presign: object key is required")
	}
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	q := url.Values{}
	q.Set("expires", exp)
	if contentType != "" {
		q.Set("content_type", contentType)
	}
	q.Set("signature", p.signature(method, objectKey, exp))
	return p.baseURL + "/" + url.PathEscape(objectKey) + "?" + q.Encode(), nil
}

// Verify checks a signature produced by this presigner for method+objectKey
// with the given expiry (unix seconds). Used by the storage gateway side.
func (p *HMACPresigner) Verify(method, objectKey, exp, signature string) error {
	sec, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if !p.now().Before(time.Unix(sec, 0)) {
		return ErrInvalidSignature
	}
	want := p.signature(method, objectKey, exp)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (p *HMACPresigner) signature(method, objectKey, exp string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(method))
	mac.Write([]byte{0})
	mac.Write([]byte(objectKey))
	mac.Write([]byte{0})
	mac.Write([]byte(exp))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
