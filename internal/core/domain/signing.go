package domain

import (
	"fmt"
	"math"
	"time"

	"dealflow/internal/pkg/phone"
)

// NewSigningSession opens the signing flow of signer on contract. The token is
// issued by the caller.
func NewSigningSession(token string, c Contract, signer Signer, autoReleaseAt *time.Time, now time.Time) SigningSession {
	s := SigningSession{
		Token:         token,
		ContractID:    c.ID,
		SignerID:      signer.ID,
		Step:          StepInfo,
		AlreadySigned: signer.SignedAt != nil,
		AutoReleaseAt: autoReleaseAt,
		CreatedAt:     now,
	}
	if s.AlreadySigned {
		s.Step = StepSigned
	}
	return s
}

// PrepareOTPRequest gates an OTP request on both consents and on the signer not
// having signed yet. It returns the updated session and the signer to send the
// code to.
func PrepareOTPRequest(s SigningSession, c Contract, consentPersonalData, consentPep bool, now time.Time) (SigningSession, Signer, error) {
	if !consentPersonalData || !consentPep {
		return s, Signer{}, ErrConsentRequired
	}
	signer, ok := c.FindSigner(s.SignerID)
	if !ok {
		return s, Signer{}, ErrNotFound
	}
	if s.AlreadySigned || s.Step == StepSigned || signer.SignedAt != nil || c.Status == ContractFullySigned {
		return s, Signer{}, ErrAlreadySigned
	}
	if s.Step == StepDisputeOpened || !c.AcceptsSignatures(now) {
		return s, Signer{}, ErrContractNotSigning
	}
	s.ConsentPersonalData = true
	s.ConsentPep = true
	s.Step = StepConsent
	return s, signer, nil
}

// RecordOTPIssued stores the masked phone and code deadline after the dispatcher
// sent a code. A resend replaces the previous code.
func RecordOTPIssued(s SigningSession, rawPhone string, expiresInSeconds int, now time.Time) SigningSession {
	expires := now.Add(time.Duration(expiresInSeconds) * time.Second)
	requested := now
	s.Step = StepOTPRequested
	s.PhoneMasked = phone.Mask(rawPhone)
	s.OTPRequestedAt = &requested
	s.OTPExpiresAt = &expires
	s.CodeUsedAt = nil
	return s
}

// CheckVerifiable applies the time and single-use rules before a code is checked.
// An expired code is always reported as expired, even if it was correct.
func CheckVerifiable(s SigningSession, now time.Time) error {
	if s.OTPExpiresAt == nil {
		if s.AlreadySigned {
			return ErrAlreadySigned
		}
		return ErrOTPNotRequested
	}
	if now.After(*s.OTPExpiresAt) {
		return ErrCodeExpired
	}
	if s.CodeUsedAt != nil {
		return ErrAlreadyUsed
	}
	if s.Step != StepOTPRequested {
		return ErrOTPNotRequested
	}
	return nil
}

// RecordSigned consumes the code and marks the session signed.
func RecordSigned(s SigningSession, now time.Time) SigningSession {
	used := now
	s.Step = StepSigned
	s.CodeUsedAt = &used
	s.AlreadySigned = true
	return s
}

// CanOpenDispute reports whether the signer may dispute the document instead of
// signing it: the contract must allow disputes, the signer must not have signed,
// the deal must be in its hold period and the deadline must not have passed.
func CanOpenDispute(s SigningSession, c Contract, deal Deal, now time.Time) bool {
	if !c.AllowsDispute || s.AlreadySigned || s.Step == StepSigned || s.Step == StepDisputeOpened {
		return false
	}
	if c.Status == ContractFullySigned || c.Status == ContractCancelled || c.Status == ContractExpired {
		return false
	}
	if deal.Status != DealHoldPeriod {
		return false
	}
	if c.DisputeDeadline != nil && now.After(*c.DisputeDeadline) {
		return false
	}
	return true
}

// RecordDisputeOpened closes the session on the dispute branch.
func RecordDisputeOpened(s SigningSession) SigningSession {
	s.Step = StepDisputeOpened
	return s
}

// DaysUntilAutoRelease is a display-only countdown; nil when no release is scheduled.
func DaysUntilAutoRelease(s SigningSession, now time.Time) *int {
	if s.AutoReleaseAt == nil {
		return nil
	}
	left := s.AutoReleaseAt.Sub(now)
	days := 0
	if left > 0 {
		days = int(math.Ceil(left.Hours() / 24))
	}
	return &days
}

// FormatDaysRemaining renders a countdown for display.
func FormatDaysRemaining(days *int) string {
	switch {
	case days == nil:
		return ""
	case *days <= 0:
		return "less than a day"
	case *days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", *days)
	}
}
