package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contractTTL = 30 * 24 * time.Hour

func twoSigners() []Signer {
	return []Signer{
		{ID: "s-agent", UserID: 1, Name: "Anna Agent", Role: SignerAgent, Phone: "+79990000001"},
		{ID: "s-client", Name: "Carl Client", Role: SignerClient, Phone: "+79990000002"},
	}
}

func sentContract(t *testing.T) Contract {
	t.Helper()
	c, err := NewContract(Deal{ID: "deal-1", Status: DealDraft, Price: dec("1000000")}, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	c, err = SendForSignature(c, t0)
	require.NoError(t, err)
	return c
}

func TestSignersCompleteContractInOrder(t *testing.T) {
	c := sentContract(t)
	assert.Equal(t, ContractPendingSignature, c.Status)
	assert.Len(t, GetMissingSigners(c), 2)

	c, err := MarkSignerSigned(c, "s-agent", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ContractPartiallySigned, c.Status)
	assert.False(t, IsContractFullySigned(c))
	missing := GetMissingSigners(c)
	require.Len(t, missing, 1)
	assert.Equal(t, "s-client", missing[0].ID)

	_, err = MarkSignerSigned(c, "s-agent", t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadySigned)

	c, err = MarkSignerSigned(c, "s-client", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ContractFullySigned, c.Status)
	assert.True(t, IsContractFullySigned(c))
	assert.Empty(t, GetMissingSigners(c))

	_, err = MarkSignerSigned(c, "s-client", t0.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestMarkSignerSignedGuards(t *testing.T) {
	c := sentContract(t)

	_, err := MarkSignerSigned(c, "nobody", t0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = MarkSignerSigned(c, "s-agent", c.ExpiresAt.Add(time.Second))
	assert.ErrorIs(t, err, ErrContractNotSigning)

	draft, err := NewContract(Deal{ID: "deal-1", Status: DealDraft}, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	_, err = MarkSignerSigned(draft, "s-agent", t0)
	assert.ErrorIs(t, err, ErrContractNotSigning)
}

func TestNewContractRules(t *testing.T) {
	hold := t0.Add(14 * 24 * time.Hour)
	inHold := Deal{ID: "deal-1", Status: DealHoldPeriod, HoldUntil: &hold}

	_, err := NewContract(inHold, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewContract(Deal{Status: DealDraft}, ContractCompletionAct, twoSigners(), contractTTL, t0)
	assert.ErrorIs(t, err, ErrValidation)

	act, err := NewContract(inHold, ContractCompletionAct, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	assert.True(t, act.AllowsDispute)
	require.NotNil(t, act.DisputeDeadline)
	assert.Equal(t, hold, *act.DisputeDeadline)

	_, err = NewContract(Deal{Status: DealClosed}, ContractCompletionAct, twoSigners(), contractTTL, t0)
	var terminal *TerminalStateError
	assert.ErrorAs(t, err, &terminal)

	_, err = NewContract(Deal{Status: DealDraft}, ContractBrokerageAgreement, nil, contractTTL, t0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewContract(Deal{Status: DealDraft}, ContractType("lease"), twoSigners(), contractTTL, t0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewContractHashIsStable(t *testing.T) {
	deal := Deal{ID: "deal-1", Status: DealDraft, Price: dec("100"), CommissionTotal: dec("3")}
	a, err := NewContract(deal, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	b, err := NewContract(deal, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	assert.Len(t, a.DocumentHash, 64)
	assert.Equal(t, a.DocumentHash, b.DocumentHash)

	deal.Price = dec("101")
	c, err := NewContract(deal, ContractBrokerageAgreement, twoSigners(), contractTTL, t0)
	require.NoError(t, err)
	assert.NotEqual(t, a.DocumentHash, c.DocumentHash)
}

func TestSendForSignatureNeedsPhones(t *testing.T) {
	signers := twoSigners()
	signers[1].Phone = ""
	c, err := NewContract(Deal{Status: DealDraft}, ContractBrokerageAgreement, signers, contractTTL, t0)
	require.NoError(t, err)
	_, err = SendForSignature(c, t0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCancelAndExpireContract(t *testing.T) {
	c := sentContract(t)

	_, due := ExpireContract(c, t0)
	assert.False(t, due)
	expired, due := ExpireContract(c, c.ExpiresAt.Add(time.Minute))
	assert.True(t, due)
	assert.Equal(t, ContractExpired, expired.Status)

	cancelled, err := CancelContract(c, t0)
	require.NoError(t, err)
	assert.Equal(t, ContractCancelled, cancelled.Status)
	_, err = CancelContract(cancelled, t0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGatingContractsSigned(t *testing.T) {
	assert.False(t, GatingContractsSigned(nil))
	assert.False(t, GatingContractsSigned([]Contract{
		{ContractType: ContractBrokerageAgreement, Status: ContractFullySigned},
		{ContractType: ContractSplitAgreement, Status: ContractPartiallySigned},
	}))
	assert.True(t, GatingContractsSigned([]Contract{
		{ContractType: ContractBrokerageAgreement, Status: ContractFullySigned},
		{ContractType: ContractSplitAgreement, Status: ContractCancelled},
		{ContractType: ContractCompletionAct, Status: ContractPendingSignature},
	}))
}
