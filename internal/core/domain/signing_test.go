package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestedSession(t *testing.T, c Contract) SigningSession {
	t.Helper()
	s := NewSigningSession("tok", c, c.RequiredSigners[0], nil, t0)
	s, signer, err := PrepareOTPRequest(s, c, true, true, t0)
	require.NoError(t, err)
	return RecordOTPIssued(s, signer.Phone, 300, t0)
}

func TestOTPRequestNeedsBothConsents(t *testing.T) {
	c := sentContract(t)
	s := NewSigningSession("tok", c, c.RequiredSigners[0], nil, t0)

	_, _, err := PrepareOTPRequest(s, c, true, false, t0)
	assert.ErrorIs(t, err, ErrConsentRequired)
	_, _, err = PrepareOTPRequest(s, c, false, true, t0)
	assert.ErrorIs(t, err, ErrConsentRequired)

	s, signer, err := PrepareOTPRequest(s, c, true, true, t0)
	require.NoError(t, err)
	assert.Equal(t, StepConsent, s.Step)
	assert.Equal(t, "s-agent", signer.ID)
}

func TestRecordOTPIssuedMasksPhone(t *testing.T) {
	s := requestedSession(t, sentContract(t))
	assert.Equal(t, StepOTPRequested, s.Step)
	assert.Equal(t, "+7******0001", s.PhoneMasked)
	require.NotNil(t, s.OTPExpiresAt)
	assert.Equal(t, t0.Add(5*time.Minute), *s.OTPExpiresAt)
}

func TestCheckVerifiable(t *testing.T) {
	c := sentContract(t)
	s := NewSigningSession("tok", c, c.RequiredSigners[0], nil, t0)
	assert.ErrorIs(t, CheckVerifiable(s, t0), ErrOTPNotRequested)

	s = requestedSession(t, c)
	assert.NoError(t, CheckVerifiable(s, t0.Add(4*time.Minute)))
	assert.ErrorIs(t, CheckVerifiable(s, t0.Add(6*time.Minute)), ErrCodeExpired)

	signed := RecordSigned(s, t0.Add(time.Minute))
	assert.ErrorIs(t, CheckVerifiable(signed, t0.Add(2*time.Minute)), ErrAlreadyUsed)
	assert.ErrorIs(t, CheckVerifiable(signed, t0.Add(10*time.Minute)), ErrCodeExpired, "expiry wins over reuse")
}

func TestOTPRequestAfterSigning(t *testing.T) {
	c := sentContract(t)
	s := RecordSigned(requestedSession(t, c), t0)
	_, _, err := PrepareOTPRequest(s, c, true, true, t0)
	assert.ErrorIs(t, err, ErrAlreadySigned)

	c, err = MarkSignerSigned(c, "s-agent", t0)
	require.NoError(t, err)
	fresh := NewSigningSession("tok2", c, c.RequiredSigners[0], nil, t0)
	assert.True(t, fresh.AlreadySigned)
	assert.Equal(t, StepSigned, fresh.Step)
}

func TestOTPRequestOnCancelledContract(t *testing.T) {
	c := sentContract(t)
	s := NewSigningSession("tok", c, c.RequiredSigners[0], nil, t0)
	c, err := CancelContract(c, t0)
	require.NoError(t, err)
	_, _, err = PrepareOTPRequest(s, c, true, true, t0)
	assert.ErrorIs(t, err, ErrContractNotSigning)
}

func TestCanOpenDispute(t *testing.T) {
	hold := t0.Add(14 * 24 * time.Hour)
	deal := Deal{ID: "deal-1", Status: DealHoldPeriod, HoldUntil: &hold}
	act, err := NewContract(deal, ContractCompletionAct, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	act, err = SendForSignature(act, t0)
	require.NoError(t, err)
	s := NewSigningSession("tok", act, act.RequiredSigners[1], &hold, t0)

	assert.True(t, CanOpenDispute(s, act, deal, t0.Add(24*time.Hour)))
	assert.False(t, CanOpenDispute(s, act, deal, hold.Add(time.Second)), "past deadline")

	closed := deal
	closed.Status = DealPayoutReady
	assert.False(t, CanOpenDispute(s, act, closed, t0))

	assert.False(t, CanOpenDispute(RecordSigned(s, t0), act, deal, t0))
	assert.False(t, CanOpenDispute(RecordDisputeOpened(s), act, deal, t0))

	agreement := sentContract(t)
	assert.False(t, CanOpenDispute(s, agreement, deal, t0), "agreements cannot be disputed")
}

func TestDaysUntilAutoRelease(t *testing.T) {
	assert.Nil(t, DaysUntilAutoRelease(SigningSession{}, t0))
	assert.Equal(t, "", FormatDaysRemaining(nil))

	release := t0.Add(36 * time.Hour)
	s := SigningSession{AutoReleaseAt: &release}

	days := DaysUntilAutoRelease(s, t0)
	require.NotNil(t, days)
	assert.Equal(t, 2, *days)
	assert.Equal(t, "2 days", FormatDaysRemaining(days))

	days = DaysUntilAutoRelease(s, t0.Add(20*time.Hour))
	assert.Equal(t, "1 day", FormatDaysRemaining(days))

	days = DaysUntilAutoRelease(s, release.Add(time.Hour))
	assert.Equal(t, 0, *days)
	assert.Equal(t, "less than a day", FormatDaysRemaining(days))
}
