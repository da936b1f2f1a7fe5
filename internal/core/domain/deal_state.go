package domain

import (
	"sort"
	"time"
)

// DealStatus is the lifecycle position of a deal.
type DealStatus string

const (
	DealDraft              DealStatus = "draft"
	DealAwaitingSignatures DealStatus = "awaiting_signatures"
	DealSigned             DealStatus = "signed"
	DealInvoiced           DealStatus = "invoiced"
	DealPaymentPending     DealStatus = "payment_pending"
	DealHoldPeriod         DealStatus = "hold_period"
	DealPaymentFailed      DealStatus = "payment_failed"
	DealPayoutReady        DealStatus = "payout_ready"
	DealPayoutInProgress   DealStatus = "payout_in_progress"
	DealRefunded           DealStatus = "refunded"
	DealClosed             DealStatus = "closed"
	DealDispute            DealStatus = "dispute"
	DealCancelled          DealStatus = "cancelled"
)

// AllDealStatuses lists every status in lifecycle order.
var AllDealStatuses = []DealStatus{
	DealDraft,
	DealAwaitingSignatures,
	DealSigned,
	DealInvoiced,
	DealPaymentPending,
	DealHoldPeriod,
	DealPaymentFailed,
	DealPayoutReady,
	DealPayoutInProgress,
	DealRefunded,
	DealClosed,
	DealDispute,
	DealCancelled,
}

// dealTransitions is the transition table without the global cancel edge.
var dealTransitions = map[DealStatus][]DealStatus{
	DealDraft:              {DealAwaitingSignatures},
	DealAwaitingSignatures: {DealSigned},
	DealSigned:             {DealInvoiced},
	DealInvoiced:           {DealPaymentPending, DealPaymentFailed},
	DealPaymentPending:     {DealHoldPeriod, DealPaymentFailed},
	DealPaymentFailed:      {DealInvoiced},
	DealHoldPeriod:         {DealPayoutReady, DealDispute},
	DealPayoutReady:        {DealPayoutInProgress},
	DealPayoutInProgress:   {DealClosed, DealRefunded},
	DealDispute:            {DealClosed, DealRefunded},
	DealClosed:             nil,
	DealCancelled:          nil,
	DealRefunded:           nil,
}

func (s DealStatus) Valid() bool {
	_, ok := dealTransitions[s]
	return ok
}

// IsTerminal reports whether no transition may leave s.
func (s DealStatus) IsTerminal() bool {
	return s == DealClosed || s == DealCancelled || s == DealRefunded
}

// CanTransition reports whether from -> to is legal, including the global cancel rule.
func CanTransition(from, to DealStatus) bool {
	if !from.Valid() || from.IsTerminal() || !to.Valid() {
		return false
	}
	if to == DealCancelled {
		return true
	}
	for _, s := range dealTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the targets reachable from status, sorted by name.
func AllowedTransitions(status DealStatus) []DealStatus {
	if !status.Valid() || status.IsTerminal() {
		return []DealStatus{}
	}
	out := make([]DealStatus, 0, len(dealTransitions[status])+1)
	out = append(out, dealTransitions[status]...)
	out = append(out, DealCancelled)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transition returns a copy of deal moved to target. It performs no I/O; the
// caller persists the result and runs side effects.
func Transition(deal Deal, target DealStatus, now time.Time) (Deal, error) {
	if deal.Status.IsTerminal() {
		return deal, &TerminalStateError{Status: deal.Status}
	}
	if !CanTransition(deal.Status, target) {
		return deal, &InvalidTransitionError{From: deal.Status, To: target}
	}
	next := deal
	next.Status = target
	next.UpdatedAt = now
	return next, nil
}

// agentRequestable are the targets a deal owner may request directly. Every
// other target is reported by finance staff or the payment provider.
var agentRequestable = map[DealStatus]bool{
	DealAwaitingSignatures: true,
	DealInvoiced:           true,
	DealCancelled:          true,
}

// MayRequest reports whether actor may ask for deal to move to target.
func MayRequest(actor Actor, deal Deal, target DealStatus) bool {
	if actor.IsStaff() {
		return true
	}
	return actor.UserID == deal.AgentUserID && agentRequestable[target]
}
