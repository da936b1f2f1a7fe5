package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tableEdges = map[DealStatus][]DealStatus{
	DealDraft:              {DealAwaitingSignatures, DealCancelled},
	DealAwaitingSignatures: {DealSigned, DealCancelled},
	DealSigned:             {DealInvoiced, DealCancelled},
	DealInvoiced:           {DealPaymentPending, DealPaymentFailed, DealCancelled},
	DealPaymentPending:     {DealHoldPeriod, DealPaymentFailed},
	DealPaymentFailed:      {DealInvoiced, DealCancelled},
	DealHoldPeriod:         {DealPayoutReady, DealDispute},
	DealPayoutReady:        {DealPayoutInProgress},
	DealPayoutInProgress:   {DealClosed, DealRefunded},
	DealDispute:            {DealClosed, DealRefunded},
}

func inTable(from, to DealStatus) bool {
	for _, s := range tableEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TestTransitionClosure(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, from := range AllDealStatuses {
		if from.IsTerminal() {
			continue
		}
		for _, to := range AllDealStatuses {
			deal := Deal{ID: "d1", Status: from}
			next, err := Transition(deal, to, now)

			legal := inTable(from, to) || to == DealCancelled
			if legal {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, next.Status)
				assert.Equal(t, now, next.UpdatedAt)
				assert.Equal(t, from, deal.Status, "input must not be mutated")
				continue
			}

			var invalid *InvalidTransitionError
			require.True(t, errors.As(err, &invalid), "%s -> %s: got %v", from, to, err)
			assert.Equal(t, from, invalid.From)
			assert.Equal(t, to, invalid.To)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestTerminalStatesRejectEveryTarget(t *testing.T) {
	for _, from := range []DealStatus{DealClosed, DealCancelled, DealRefunded} {
		for _, to := range AllDealStatuses {
			_, err := Transition(Deal{Status: from}, to, time.Now())
			var terminal *TerminalStateError
			require.True(t, errors.As(err, &terminal), "%s -> %s", from, to)
			assert.Equal(t, from, terminal.Status)
		}
		assert.Empty(t, AllowedTransitions(from))
	}
}

func TestCancelIsGlobalForNonTerminal(t *testing.T) {
	for _, from := range AllDealStatuses {
		assert.Equal(t, !from.IsTerminal(), CanTransition(from, DealCancelled), from)
	}
}

func TestUnknownTargetIsInvalid(t *testing.T) {
	_, err := Transition(Deal{Status: DealDraft}, DealStatus("archived"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAllowedTransitions(t *testing.T) {
	assert.Equal(t, []DealStatus{DealCancelled, DealPaymentFailed, DealPaymentPending}, AllowedTransitions(DealInvoiced))
	assert.Equal(t, []DealStatus{DealCancelled, DealDispute, DealPayoutReady}, AllowedTransitions(DealHoldPeriod))
}

func TestMayRequest(t *testing.T) {
	deal := Deal{AgentUserID: 7, Status: DealSigned}
	owner := Actor{UserID: 7, Role: RoleAgent}
	stranger := Actor{UserID: 8, Role: RoleAgent}
	finance := Actor{UserID: 9, Role: RoleFinance}

	assert.True(t, MayRequest(owner, deal, DealInvoiced))
	assert.True(t, MayRequest(owner, deal, DealCancelled))
	assert.False(t, MayRequest(owner, deal, DealHoldPeriod))
	assert.False(t, MayRequest(stranger, deal, DealInvoiced))
	assert.True(t, MayRequest(finance, deal, DealHoldPeriod))
}
