package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealflow/internal/core/domain"
)

func TestDealService_Create(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.deals.Create(ctx, owner, sampleDealInput())
	require.NoError(t, err)

	assert.NotEmpty(t, view.Deal.ID)
	assert.Equal(t, domain.DealDraft, view.Deal.Status)
	assert.Equal(t, "300000", view.Breakdown.TotalCommission.String())
	assert.Equal(t, "270000", view.Deal.CommissionAgent.String())
	assert.Equal(t, []domain.DealStatus{domain.DealAwaitingSignatures, domain.DealCancelled}, view.AllowedTransitions)

	require.Len(t, view.Recipients, 1)
	rec := view.Recipients[0]
	assert.Equal(t, domain.RecipientAgent, rec.Role)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, ownerID, *rec.UserID)
	assert.Equal(t, "100", rec.SplitValue.String())

	stored, err := fakeRecipients{h.store}.ListByDeal(ctx, view.Deal.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestDealService_CreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)

	in := sampleDealInput()
	in.PropertyAddress = "  "
	_, err := h.deals.Create(context.Background(), owner, in)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "property_address", verr.Field)
	assert.Empty(t, h.store.deals)
	assert.Empty(t, h.store.recipients)
}

func TestDealService_Quote(t *testing.T) {
	h := newHarness(t)

	b, err := h.deals.Quote(domain.CommissionInput{
		PropertyPrice: dec("5000000"),
		CommissionTerms: domain.CommissionTerms{
			PaymentType:     domain.PaymentFixed,
			CommissionFixed: decp("150000"),
			AdvanceType:     domain.AdvanceNone,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "150000", b.TotalCommission.String())
	assert.Equal(t, "15000", b.PlatformFee.String())
}

func TestDealService_GetAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deal := h.createDeal(t)

	_, err := h.deals.Get(ctx, stranger, deal.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	view, err := h.deals.Get(ctx, finance, deal.ID)
	require.NoError(t, err)
	assert.Contains(t, view.AllowedTransitions, domain.DealAwaitingSignatures)

	_, err = h.deals.Get(ctx, owner, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDealService_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createDeal(t)
	h.createDeal(t)

	deals, total, err := h.deals.List(ctx, owner, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, deals, 2)

	_, total, err = h.deals.List(ctx, stranger, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, total, err = h.deals.List(ctx, finance, domain.DealDraft, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, _, err = h.deals.List(ctx, finance, "bogus", 0, 10)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDealService_PaymentLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.effects.On("OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	deal := h.createDeal(t)
	h.forceStatus(t, deal.ID, domain.DealSigned)

	_, err := h.deals.Transition(ctx, owner, deal.ID, domain.DealHoldPeriod, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	invoiced, err := h.deals.Transition(ctx, owner, deal.ID, domain.DealInvoiced, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DealInvoiced, invoiced.Status)

	recs, err := fakeRecipients{h.store}.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "270000", recs[0].CalculatedAmount.String())

	_, err = h.deals.Transition(ctx, finance, deal.ID, domain.DealPaymentPending, "")
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	held, err := h.deals.Transition(ctx, finance, deal.ID, domain.DealHoldPeriod, "payment received")
	require.NoError(t, err)
	require.NotNil(t, held.HoldUntil)
	assert.True(t, held.HoldUntil.Equal(t0.Add(time.Hour+7*24*time.Hour)))

	for _, to := range []domain.DealStatus{domain.DealPayoutReady, domain.DealPayoutInProgress, domain.DealClosed} {
		_, err = h.deals.Transition(ctx, finance, deal.ID, to, "")
		require.NoError(t, err, to)
	}

	recs, err = fakeRecipients{h.store}.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, recs[0].PayoutStatus)

	history, err := h.deals.History(ctx, owner, deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 6)
	assert.Equal(t, domain.DealSigned, history[0].From)
	assert.Equal(t, domain.DealClosed, history[5].To)
	assert.Equal(t, financeID, history[5].ActorUserID)

	h.effects.AssertNumberOfCalls(t, "OnTransition", 6)
	h.effects.AssertCalled(t, "OnTransition", mock.Anything, mock.Anything, domain.DealPaymentPending, domain.DealHoldPeriod)
}

func TestDealService_InvoiceRequiresCompleteSplits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	deal := h.createDeal(t)
	_, err := h.deals.SetOwnerSplit(ctx, owner, deal.ID, dec("60"))
	require.NoError(t, err)
	h.forceStatus(t, deal.ID, domain.DealSigned)

	_, err = h.deals.Transition(ctx, owner, deal.ID, domain.DealInvoiced, "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recipients", verr.Field)

	assert.Equal(t, domain.DealSigned, h.deal(t, deal.ID).Status)
	assert.Empty(t, h.store.transitions)
	h.effects.AssertNotCalled(t, "OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDealService_TerminalAndInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.effects.On("OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deal := h.createDeal(t)

	_, err := h.deals.Transition(ctx, finance, deal.ID, domain.DealClosed, "")
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.DealDraft, invalid.From)

	_, err = h.deals.Transition(ctx, owner, deal.ID, domain.DealCancelled, "client withdrew")
	require.NoError(t, err)

	_, err = h.deals.Transition(ctx, finance, deal.ID, domain.DealAwaitingSignatures, "")
	var terminal *domain.TerminalStateError
	require.ErrorAs(t, err, &terminal)
	assert.ErrorIs(t, err, domain.ErrTerminalState)
}

func TestDealService_SideEffectFailureKeepsTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.effects.On("OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("webhook down"))
	deal := h.createDeal(t)

	next, err := h.deals.Transition(ctx, owner, deal.ID, domain.DealCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DealCancelled, next.Status)
	assert.Equal(t, domain.DealCancelled, h.deal(t, deal.ID).Status)
}

func TestDealService_SubmitForSigning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.effects.On("OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deal := h.createDeal(t)

	_, _, err := h.deals.SubmitForSigning(ctx, owner, deal.ID)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contracts", verr.Field)

	c, err := h.contracts.Generate(ctx, owner, deal.ID, domain.ContractBrokerageAgreement, nil)
	require.NoError(t, err)
	require.Len(t, c.RequiredSigners, 2)
	assert.Equal(t, "+79990000009", c.RequiredSigners[1].Phone)

	_, _, err = h.deals.SubmitForSigning(ctx, stranger, deal.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	next, links, err := h.deals.SubmitForSigning(ctx, owner, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealAwaitingSignatures, next.Status)
	require.Len(t, links, 2)
	assert.Contains(t, links[0].URL, "https://sign.example.test/s/")

	stored, err := fakeContracts{h.store}.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContractPendingSignature, stored.Status)
	assert.Len(t, h.store.sessions, 2)
	h.sms.AssertNumberOfCalls(t, "Send", 2)

	_, _, err = h.deals.SubmitForSigning(ctx, owner, deal.ID)
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestDealService_SetOwnerSplit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deal := h.createDeal(t)

	_, err := h.deals.SetOwnerSplit(ctx, stranger, deal.ID, dec("50"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.deals.SetOwnerSplit(ctx, owner, deal.ID, dec("120"))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	rec, err := h.deals.SetOwnerSplit(ctx, owner, deal.ID, dec("55.5"))
	require.NoError(t, err)
	assert.Equal(t, "55.5", rec.SplitValue.String())

	h.forceStatus(t, deal.ID, domain.DealInvoiced)
	_, err = h.deals.SetOwnerSplit(ctx, owner, deal.ID, dec("100"))
	assert.ErrorAs(t, err, &verr)
}

func TestDealService_ManualTransitionsCannotSkipSigning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.effects.On("OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deal := h.createDeal(t)

	_, err := h.deals.Transition(ctx, owner, deal.ID, domain.DealAwaitingSignatures, "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contracts", verr.Field)
	assert.Equal(t, domain.DealDraft, h.deal(t, deal.ID).Status)

	_, err = h.contracts.Generate(ctx, owner, deal.ID, domain.ContractBrokerageAgreement, nil)
	require.NoError(t, err)
	_, err = h.deals.Transition(ctx, finance, deal.ID, domain.DealAwaitingSignatures, "")
	require.ErrorAs(t, err, &verr, "a drafted agreement has not been sent")

	h.forceStatus(t, deal.ID, domain.DealAwaitingSignatures)
	_, err = h.deals.Transition(ctx, finance, deal.ID, domain.DealSigned, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contracts", verr.Field)
	assert.Equal(t, domain.DealAwaitingSignatures, h.deal(t, deal.ID).Status)

	assert.Empty(t, h.store.transitions)
	h.effects.AssertNotCalled(t, "OnTransition", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDealService_SignedOnlyAfterEveryAgreement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deal, links := submitted(t, h)

	_, err := h.deals.Transition(ctx, finance, deal.ID, domain.DealSigned, "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	h.sign(t, links["Olga Owner"].Token, "+79990000001")
	_, err = h.deals.Transition(ctx, finance, deal.ID, domain.DealSigned, "")
	require.ErrorAs(t, err, &verr, "the client has not signed yet")
	assert.Equal(t, domain.DealAwaitingSignatures, h.deal(t, deal.ID).Status)

	res := h.sign(t, links["Cora Client"].Token, "+79990000009")
	assert.Equal(t, domain.DealSigned, res.DealStatus)
}

func TestDealService_CancelWithdrawsOpenWork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deal, links := submitted(t, h)

	_, err := h.deals.SetOwnerSplit(ctx, owner, deal.ID, dec("70"))
	require.NoError(t, err)
	inv, err := h.invitations.Invite(ctx, owner, deal.ID, coagentInvite("30"))
	require.NoError(t, err)

	h.sign(t, links["Olga Owner"].Token, "+79990000001")

	_, err = h.deals.Transition(ctx, owner, deal.ID, domain.DealCancelled, "client withdrew")
	require.NoError(t, err)

	contracts, err := fakeContracts{h.store}.ListByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, domain.ContractCancelled, contracts[0].Status)

	stored, err := fakeInvitations{h.store}.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationCancelled, stored.Status)

	clientToken := links["Cora Client"].Token
	_, err = h.signing.RequestOTP(ctx, clientToken, true, true)
	assert.ErrorIs(t, err, domain.ErrContractNotSigning)
	_, _, err = h.invitations.Accept(ctx, coagent, inv.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyResponded)
	h.dispatcher.AssertNotCalled(t, "SendOTP", mock.Anything, clientToken, mock.Anything)
}
