package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/phone"
)

// InviteInput is what the deal owner supplies to invite a co-agent or agency.
type InviteInput struct {
	Phone        string               `json:"phone"`
	Email        string               `json:"email"`
	Role         domain.RecipientRole `json:"role"`
	SplitPercent decimal.Decimal      `json:"split_percent"`
}

// InvitationService manages invitations to share a deal's commission.
type InvitationService struct {
	deals       repositories.DealRepository
	recipients  repositories.RecipientRepository
	invitations repositories.InvitationRepository
	users       repositories.UserRepository
	sms         SMSSender
	policy      config.PolicyConfig
	now         Clock
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	deals repositories.DealRepository,
	recipients repositories.RecipientRepository,
	invitations repositories.InvitationRepository,
	users repositories.UserRepository,
	sms SMSSender,
	policy config.PolicyConfig,
	now Clock,
) *InvitationService {
	if now == nil {
		now = time.Now
	}
	return &InvitationService{
		deals:       deals,
		recipients:  recipients,
		invitations: invitations,
		users:       users,
		sms:         sms,
		policy:      policy,
		now:         now,
	}
}

// Invite creates a pending invitation on a deal owned by actor.
func (s *InvitationService) Invite(ctx context.Context, actor domain.Actor, dealID string, in InviteInput) (domain.Invitation, error) {
	ctx = logger.ContextWithDealID(ctx, dealID)

	var out domain.Invitation
	var address string
	err := s.deals.WithDealLock(ctx, dealID, func(ctx context.Context, deal domain.Deal) error {
		recipients, err := s.recipients.ListByDeal(ctx, dealID)
		if err != nil {
			return err
		}
		pending, err := s.invitations.ListByDeal(ctx, dealID)
		if err != nil {
			return err
		}

		req := domain.InviteRequest{
			InvitedByUserID: actor.UserID,
			Email:           strings.ToLower(strings.TrimSpace(in.Email)),
			Role:            in.Role,
			SplitPercent:    in.SplitPercent,
		}
		if strings.TrimSpace(in.Phone) != "" {
			req.Phone = phone.Normalize(in.Phone)
		}
		inv, err := domain.NewInvitation(deal, req, recipients, pending, s.policy.InvitationTTL, s.now().UTC())
		if err != nil {
			return err
		}
		inv.ID = uuid.NewString()
		if err := s.invitations.Create(ctx, inv); err != nil {
			return err
		}
		out = inv
		address = deal.PropertyAddress
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}

	logger.Info(ctx, "invitation created", "invitation_id", out.ID, "role", out.Role, "split_percent", out.SplitPercent.String())
	if out.InvitedPhone != "" && s.sms != nil {
		msg := fmt.Sprintf("You are invited to share %s%% of the commission on %s. Invitation: %s", out.SplitPercent.String(), address, out.ID)
		if err := s.sms.Send(ctx, out.InvitedPhone, msg); err != nil {
			logger.Warn(ctx, "invitation sms failed", "invitation_id", out.ID, "error", err)
		}
	}
	return out, nil
}

// Accept binds actor, or actor's agency, to the deal as a recipient.
func (s *InvitationService) Accept(ctx context.Context, actor domain.Actor, invitationID string) (domain.Invitation, domain.Recipient, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, domain.Recipient{}, err
	}
	ctx = logger.ContextWithDealID(ctx, inv.DealID)

	user, err := s.invitee(ctx, actor, inv)
	if err != nil {
		return domain.Invitation{}, domain.Recipient{}, err
	}
	party := domain.Party{}
	if inv.Role == domain.RecipientAgency {
		if user.AgencyID == nil || *user.AgencyID == "" {
			return domain.Invitation{}, domain.Recipient{}, &domain.ValidationError{Field: "agency_id", Reason: "user is not linked to an agency"}
		}
		agency := *user.AgencyID
		party.AgencyID = &agency
	} else {
		id := user.ID
		party.UserID = &id
	}

	var accepted domain.Invitation
	var rec domain.Recipient
	err = s.deals.WithDealLock(ctx, inv.DealID, func(ctx context.Context, deal domain.Deal) error {
		current, err := s.invitations.GetByID(ctx, invitationID)
		if err != nil {
			return err
		}
		recipients, err := s.recipients.ListByDeal(ctx, deal.ID)
		if err != nil {
			return err
		}
		accepted, rec, err = domain.AcceptInvitation(deal, current, party, recipients, s.now().UTC())
		if err != nil {
			return err
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if err := s.recipients.Save(ctx, rec); err != nil {
			return err
		}
		return s.invitations.Update(ctx, accepted)
	})
	if err != nil {
		return domain.Invitation{}, domain.Recipient{}, err
	}

	logger.Info(ctx, "invitation accepted", "invitation_id", accepted.ID, "recipient_id", rec.ID)
	return accepted, rec, nil
}

// Decline marks an invitation addressed to actor as declined.
func (s *InvitationService) Decline(ctx context.Context, actor domain.Actor, invitationID, reason string) (domain.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if _, err := s.invitee(ctx, actor, inv); err != nil {
		return domain.Invitation{}, err
	}
	return s.respond(ctx, inv, func(current domain.Invitation, now time.Time) (domain.Invitation, error) {
		return domain.DeclineInvitation(current, reason, now)
	})
}

// Cancel withdraws a pending invitation sent by actor.
func (s *InvitationService) Cancel(ctx context.Context, actor domain.Actor, invitationID string) (domain.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	return s.respond(ctx, inv, func(current domain.Invitation, now time.Time) (domain.Invitation, error) {
		return domain.CancelInvitation(current, actor.UserID, now)
	})
}

// ListByDeal returns the invitations of a deal to its owner or to staff.
func (s *InvitationService) ListByDeal(ctx context.Context, actor domain.Actor, dealID string) ([]domain.Invitation, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && actor.UserID != deal.AgentUserID {
		return nil, domain.ErrForbidden
	}
	return s.invitations.ListByDeal(ctx, dealID)
}

// ExpireOverdue marks pending invitations past their deadline as expired.
func (s *InvitationService) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	now := s.now().UTC()
	overdue, err := s.invitations.ListOverdue(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, inv := range overdue {
		var done bool
		err := s.deals.WithDealLock(ctx, inv.DealID, func(ctx context.Context, _ domain.Deal) error {
			current, err := s.invitations.GetByID(ctx, inv.ID)
			if err != nil {
				return err
			}
			next, ok := domain.ExpireInvitation(current, now)
			if !ok {
				return nil
			}
			if err := s.invitations.Update(ctx, next); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			logger.Warn(ctx, "invitation expiry failed", "invitation_id", inv.ID, "error", err)
			continue
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

func (s *InvitationService) respond(ctx context.Context, inv domain.Invitation, fn func(domain.Invitation, time.Time) (domain.Invitation, error)) (domain.Invitation, error) {
	var out domain.Invitation
	err := s.deals.WithDealLock(ctx, inv.DealID, func(ctx context.Context, _ domain.Deal) error {
		current, err := s.invitations.GetByID(ctx, inv.ID)
		if err != nil {
			return err
		}
		out, err = fn(current, s.now().UTC())
		if err != nil {
			return err
		}
		return s.invitations.Update(ctx, out)
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	logger.Info(logger.ContextWithDealID(ctx, out.DealID), "invitation answered", "invitation_id", out.ID, "status", out.Status)
	return out, nil
}

// invitee loads actor and checks the invitation was addressed to them.
func (s *InvitationService) invitee(ctx context.Context, actor domain.Actor, inv domain.Invitation) (*models.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if inv.InvitedPhone != "" && user.Phone != "" && phone.Normalize(user.Phone) == inv.InvitedPhone {
		return user, nil
	}
	if inv.InvitedEmail != "" && strings.EqualFold(user.Email, inv.InvitedEmail) {
		return user, nil
	}
	return nil, domain.ErrForbidden
}
