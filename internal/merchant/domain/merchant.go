// Package domain defines the merchant profile.
package domain

import (
	"errors"
	"time"
)

// KYCStatus tracks the merchant's verification state.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// ValidKYCStatus reports whether s is one of the known statuses.
func ValidKYCStatus(s KYCStatus) bool {
	switch s {
	case KYCPending, KYCVerified, KYCRejected:
		return true
	}
	return false
}

// Merchant is a tenant of the platform. Every scoped resource (users,
// documents, audit entries) hangs off a merchant id.
type Merchant struct {
	ID        string
	Name      string
	LegalName string
	KYCStatus KYCStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks required fields.
func (m *Merchant) Validate() error {
	if m.ID == "" {
		return errors.New("merchant: id is required")
	}
	if m.Name == "" {
		return errors.New("merchant: name is required")
	}
	if !ValidKYCStatus(m.KYCStatus) {
		return errors.New("merchant: unknown kyc status")
	}
	return nil
}
