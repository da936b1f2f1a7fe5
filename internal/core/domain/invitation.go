package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InviteRequest describes an invitation the deal owner wants to send.
type InviteRequest struct {
	InvitedByUserID uint
	Phone           string
	Email           string
	Role            RecipientRole
	SplitPercent    decimal.Decimal
}

func pendingSplitSum(pending []Invitation, excludeID string) decimal.Decimal {
	sum := decimal.Zero
	for _, inv := range pending {
		if inv.Status != InvitationPending || inv.ID == excludeID {
			continue
		}
		sum = sum.Add(inv.SplitPercent)
	}
	return sum
}

// NewInvitation validates req against the deal's current recipients and pending
// invitations and returns a pending invitation expiring after ttl. The caller
// assigns the ID and must hold the per-deal lock.
func NewInvitation(deal Deal, req InviteRequest, recipients []Recipient, pending []Invitation, ttl time.Duration, now time.Time) (Invitation, error) {
	if req.InvitedByUserID != deal.AgentUserID {
		return Invitation{}, ErrForbidden
	}
	if !splitsOpen(deal.Status) {
		return Invitation{}, newValidationError("status", "deal no longer accepts new recipients")
	}
	if req.Role != RecipientCoagent && req.Role != RecipientAgency {
		return Invitation{}, newValidationError("role", "must be coagent or agency")
	}
	phone := strings.TrimSpace(req.Phone)
	email := strings.TrimSpace(req.Email)
	if phone == "" && email == "" {
		return Invitation{}, newValidationError("invited_phone", "phone or email is required")
	}
	if !req.SplitPercent.IsPositive() || req.SplitPercent.GreaterThan(hundred) {
		return Invitation{}, newValidationError("split_percent", "must be greater than 0 and at most 100")
	}
	committed := SplitSum(recipients).Add(pendingSplitSum(pending, ""))
	if committed.Add(req.SplitPercent).GreaterThan(hundred) {
		return Invitation{}, newValidationError("split_percent", "accepted and pending splits would exceed 100")
	}

	return Invitation{
		DealID:          deal.ID,
		InvitedByUserID: req.InvitedByUserID,
		InvitedPhone:    phone,
		InvitedEmail:    email,
		Role:            req.Role,
		SplitPercent:    req.SplitPercent,
		Status:          InvitationPending,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
	}, nil
}

// checkRespondable applies the guards shared by accept, decline and cancel.
func checkRespondable(inv Invitation, now time.Time) error {
	if inv.Status == InvitationExpired {
		return ErrInvitationExpired
	}
	if inv.Status != InvitationPending {
		return ErrAlreadyResponded
	}
	if now.After(inv.ExpiresAt) {
		return ErrInvitationExpired
	}
	return nil
}

// AcceptInvitation binds party to the deal as a recipient. An existing recipient
// for the same party is updated instead of duplicated.
func AcceptInvitation(deal Deal, inv Invitation, party Party, recipients []Recipient, now time.Time) (Invitation, Recipient, error) {
	if err := checkRespondable(inv, now); err != nil {
		return inv, Recipient{}, err
	}
	if !splitsOpen(deal.Status) {
		return inv, Recipient{}, newValidationError("status", "deal no longer accepts new recipients")
	}

	rec := Recipient{
		DealID:       deal.ID,
		Role:         inv.Role,
		UserID:       party.UserID,
		AgencyID:     party.AgencyID,
		SplitValue:   inv.SplitPercent,
		PayoutStatus: PayoutPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := ValidateRecipient(rec); err != nil {
		return inv, Recipient{}, err
	}

	others := decimal.Zero
	for _, r := range recipients {
		if r.SamePartyAs(party) && r.Role == inv.Role {
			rec.ID = r.ID
			rec.CreatedAt = r.CreatedAt
			continue
		}
		others = others.Add(r.SplitValue)
	}
	if others.Add(rec.SplitValue).GreaterThan(hundred) {
		return inv, Recipient{}, newValidationError("split_percent", "accepted splits would exceed 100")
	}

	inv.Status = InvitationAccepted
	inv.RespondedAt = &now
	return inv, rec, nil
}

// DeclineInvitation marks inv declined.
func DeclineInvitation(inv Invitation, reason string, now time.Time) (Invitation, error) {
	if err := checkRespondable(inv, now); err != nil {
		return inv, err
	}
	inv.Status = InvitationDeclined
	inv.DeclineReason = strings.TrimSpace(reason)
	inv.RespondedAt = &now
	return inv, nil
}

// CancelInvitation withdraws a pending invitation; only its inviter may do so.
func CancelInvitation(inv Invitation, byUserID uint, now time.Time) (Invitation, error) {
	if byUserID != inv.InvitedByUserID {
		return inv, ErrNotInviter
	}
	if err := checkRespondable(inv, now); err != nil {
		return inv, err
	}
	inv.Status = InvitationCancelled
	inv.RespondedAt = &now
	return inv, nil
}

// WithdrawInvitation cancels a pending invitation because its deal was
// cancelled. It reports false when inv was already answered.
func WithdrawInvitation(inv Invitation, now time.Time) (Invitation, bool) {
	if inv.Status != InvitationPending {
		return inv, false
	}
	inv.Status = InvitationCancelled
	inv.RespondedAt = &now
	return inv, true
}

// ExpireInvitation moves an unanswered invitation past its deadline to expired.
// It reports false when inv is not due.
func ExpireInvitation(inv Invitation, now time.Time) (Invitation, bool) {
	if inv.Status != InvitationPending || !now.After(inv.ExpiresAt) {
		return inv, false
	}
	inv.Status = InvitationExpired
	return inv, true
}
