// Package kyc verifies merchant identity documents through pluggable
// providers and records the outcome on the merchant profile.
package kyc

import (
	"context"
	"regexp"
	"strings"
)

// PanProvider checks a PAN (tax id) against the issuing registry.
type PanProvider interface {
	VerifyPAN(ctx context.Context, pan, legalName string) (bool, error)
}

// AadhaarProvider checks an Aadhaar number against the identity registry.
type AadhaarProvider interface {
	VerifyAadhaar(ctx context.Context, aadhaar string) (bool, error)
}

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// MockPanProvider accepts any well-formed PAN for a non-empty legal name.
// It stands in for the registry client in development and tests.
type MockPanProvider struct{}

func (MockPanProvider) VerifyPAN(_ context.Context, pan, legalName string) (bool, error) {
	pan = strings.ToUpper(strings.TrimSpace(pan))
	if !panPattern.MatchString(pan) {
		return false, nil
	}
	return strings.TrimSpace(legalName) != "", nil
}

// MockAadhaarProvider accepts any 12-digit number that is not a single
// repeated digit.
type MockAadhaarProvider struct{}

func (MockAadhaarProvider) VerifyAadhaar(_ context.Context, aadhaar string) (bool, error) {
	aadhaar = strings.ReplaceAll(strings.TrimSpace(aadhaar), " ", "")
	if len(aadhaar) != 12 {
		return false, nil
	}
	repeated := true
	for i := 0; i < len(aadhaar); i++ {
		if aadhaar[i] < '0' || aadhaar[i] > '9' {
			return false, nil
		}
		if aadhaar[i] != aadhaar[0] {
			repeated = false
		}
	}
	return !repeated, nil
}
