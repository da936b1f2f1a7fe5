package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// splitsOpen reports whether recipients and splits may still be edited.
// Amounts are fixed once the deal is invoiced.
func splitsOpen(status DealStatus) bool {
	return status == DealDraft || status == DealAwaitingSignatures || status == DealSigned
}

// ValidateRecipient checks the exactly-one-of identity rule and split range.
func ValidateRecipient(r Recipient) error {
	if !r.Role.Valid() {
		return newValidationError("role", "must be agent, coagent or agency")
	}
	switch r.Role {
	case RecipientAgency:
		if r.AgencyID == nil || *r.AgencyID == "" || r.UserID != nil {
			return newValidationError("agency_id", "agency recipients must reference an agency only")
		}
	default:
		if r.UserID == nil || r.AgencyID != nil {
			return newValidationError("user_id", "agent recipients must reference a user only")
		}
	}
	if r.SplitValue.IsNegative() || r.SplitValue.GreaterThan(hundred) {
		return newValidationError("split_value", "must be between 0 and 100")
	}
	return nil
}

// SamePartyAs reports whether r belongs to the given party.
func (r Recipient) SamePartyAs(p Party) bool {
	if p.UserID != nil && r.UserID != nil {
		return *p.UserID == *r.UserID
	}
	if p.AgencyID != nil && r.AgencyID != nil {
		return *p.AgencyID == *r.AgencyID
	}
	return false
}

// SplitSum adds up split values of the agent, coagent and agency recipients.
func SplitSum(recipients []Recipient) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range recipients {
		if r.Role.Valid() {
			sum = sum.Add(r.SplitValue)
		}
	}
	return sum
}

// ValidateSplitsComplete succeeds only when recipient splits add up to exactly 100.
func ValidateSplitsComplete(recipients []Recipient) error {
	if len(recipients) == 0 {
		return newValidationError("recipients", "deal has no commission recipients")
	}
	for _, r := range recipients {
		if err := ValidateRecipient(r); err != nil {
			return err
		}
	}
	sum := SplitSum(recipients)
	if !sum.Equal(hundred) {
		return newValidationError("recipients", "split values add up to "+sum.String()+", expected 100")
	}
	return nil
}

// NewOwnerRecipient builds the owning agent's recipient record for a new deal.
func NewOwnerRecipient(deal Deal, split decimal.Decimal, now time.Time) (Recipient, error) {
	uid := deal.AgentUserID
	r := Recipient{
		DealID:       deal.ID,
		Role:         RecipientAgent,
		UserID:       &uid,
		SplitValue:   split,
		PayoutStatus: PayoutPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := ValidateRecipient(r); err != nil {
		return Recipient{}, err
	}
	return r, nil
}

// SetOwnerSplit changes the owning agent's share. Other recipients and pending
// invitations keep their shares, so the new total must stay within 100.
func SetOwnerSplit(deal Deal, recipients []Recipient, pending []Invitation, split decimal.Decimal, now time.Time) (Recipient, error) {
	if !splitsOpen(deal.Status) {
		return Recipient{}, newValidationError("status", "splits are locked once the deal is invoiced")
	}
	if split.IsNegative() || split.GreaterThan(hundred) {
		return Recipient{}, newValidationError("split_value", "must be between 0 and 100")
	}

	owner := Party{UserID: &deal.AgentUserID}
	idx := -1
	others := decimal.Zero
	for i, r := range recipients {
		if r.Role == RecipientAgent && r.SamePartyAs(owner) {
			idx = i
			continue
		}
		others = others.Add(r.SplitValue)
	}
	if others.Add(pendingSplitSum(pending, "")).Add(split).GreaterThan(hundred) {
		return Recipient{}, newValidationError("split_value", "total split would exceed 100")
	}

	if idx < 0 {
		return NewOwnerRecipient(deal, split, now)
	}
	r := recipients[idx]
	r.SplitValue = split
	r.UpdatedAt = now
	return r, nil
}

// payoutFor maps a deal status to the payout status its recipients should hold.
var payoutFor = map[DealStatus]PayoutStatus{
	DealPayoutReady:      PayoutReady,
	DealPayoutInProgress: PayoutProcessing,
	DealClosed:           PayoutCompleted,
	DealRefunded:         PayoutFailed,
}

// SyncPayoutStatus returns the recipients whose payout status changes because
// the deal entered status.
func SyncPayoutStatus(recipients []Recipient, status DealStatus, now time.Time) []Recipient {
	target, ok := payoutFor[status]
	if !ok {
		return nil
	}
	changed := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.PayoutStatus == target || r.PayoutStatus == PayoutCompleted || r.PayoutStatus == PayoutFailed {
			continue
		}
		r.PayoutStatus = target
		r.UpdatedAt = now
		changed = append(changed, r)
	}
	return changed
}
