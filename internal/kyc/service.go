package kyc

import (
	"context"
	"errors"
	"fmt"

	"merchant-docs/backend/internal/audit"
	"merchant-docs/backend/internal/merchant/domain"
	merchantrepo "merchant-docs/backend/internal/merchant/repository"
)

// ErrMerchantNotFound is returned when verification targets an unknown merchant.
var ErrMerchantNotFound = errors.New("merchant not found")

// Result is the outcome of one verification run.
type Result struct {
	MerchantID  string
	PANVerified bool
	AadhaarOK   bool
	Status      domain.KYCStatus
}

// Service runs document verification and records the outcome.
type Service struct {
	merchants merchantrepo.Repository
	pan       PanProvider
	aadhaar   AadhaarProvider
	auditor   audit.AuditLogger
}

// NewService wires the verification service. auditor may be nil.
func NewService(merchants merchantrepo.Repository, pan PanProvider, aadhaar AadhaarProvider, auditor audit.AuditLogger) *Service {
	return &Service{merchants: merchants, pan: pan, aadhaar: aadhaar, auditor: auditor}
}

// Verify checks the merchant's PAN and Aadhaar and stores verified or
// rejected on the profile. Provider failures leave the status untouched.
func (s *Service) Verify(ctx context.Context, actorID, merchantID, pan, aadhaar string) (*Result, error) {
	m, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMerchantNotFound
	}

	panOK, err := s.pan.VerifyPAN(ctx, pan, m.LegalName)
	if err != nil {
		return nil, fmt.Errorf("kyc: pan verification: %w", err)
	}
	aadhaarOK, err := s.aadhaar.VerifyAadhaar(ctx, aadhaar)
	if err != nil {
		return nil, fmt.Errorf("kyc: aadhaar verification: %w", err)
	}

	status := domain.KYCRejected
	if panOK && aadhaarOK {
		status = domain.KYCVerified
	}
	if err := s.merchants.SetKYCStatus(ctx, merchantID, status); err != nil {
		return nil, err
	}
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, merchantID, actorID, "kyc_"+string(status), "merchant:"+merchantID, "")
	}
	return &Result{
		MerchantID:  merchantID,
		PANVerified: panOK,
		AadhaarOK:   aadhaarOK,
		Status:      status,
	}, nil
}
