package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
)

// systemActor records transitions the service performs on its own, such as the
// cascade after the last agreement is signed.
const systemActor uint = 0

// DealView is a deal with everything a client needs to render it.
type DealView struct {
	Deal               domain.Deal                 `json:"deal"`
	Breakdown          *domain.CommissionBreakdown `json:"breakdown"`
	Recipients         []domain.Recipient          `json:"recipients"`
	AllowedTransitions []domain.DealStatus         `json:"allowed_transitions"`
}

// DealService orchestrates load, pure transition, save and side effects for deals.
type DealService struct {
	deals       repositories.DealRepository
	recipients  repositories.RecipientRepository
	invitations repositories.InvitationRepository
	contracts   *ContractService
	effects     DealTransitionSideEffects
	policy      config.PolicyConfig
	now         Clock
}

// NewDealService creates a new deal service
func NewDealService(
	deals repositories.DealRepository,
	recipients repositories.RecipientRepository,
	invitations repositories.InvitationRepository,
	contracts *ContractService,
	effects DealTransitionSideEffects,
	policy config.PolicyConfig,
	now Clock,
) *DealService {
	if now == nil {
		now = time.Now
	}
	return &DealService{
		deals:       deals,
		recipients:  recipients,
		invitations: invitations,
		contracts:   contracts,
		effects:     effects,
		policy:      policy,
		now:         now,
	}
}

// Quote runs the commission calculator without creating anything.
func (s *DealService) Quote(in domain.CommissionInput) (*domain.CommissionBreakdown, error) {
	return domain.CalculateCommission(in, s.policy.PlatformFeeRate)
}

// Create opens a draft deal owned by actor, with the owner as sole recipient.
func (s *DealService) Create(ctx context.Context, actor domain.Actor, in domain.NewDealInput) (*DealView, error) {
	now := s.now().UTC()
	deal, breakdown, err := domain.NewDeal(in, actor.UserID, s.policy.PlatformFeeRate, now)
	if err != nil {
		return nil, err
	}
	deal.ID = uuid.NewString()

	owner, err := domain.NewOwnerRecipient(deal, s.policy.DefaultOwnerSplit, now)
	if err != nil {
		return nil, err
	}
	owner.ID = uuid.NewString()

	err = s.deals.WithTx(ctx, func(ctx context.Context) error {
		if err := s.deals.Create(ctx, deal); err != nil {
			return err
		}
		return s.recipients.Save(ctx, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}

	logger.Info(logger.ContextWithDealID(ctx, deal.ID), "deal created", "type", deal.Type, "agent_user_id", deal.AgentUserID)
	return &DealView{
		Deal:               deal,
		Breakdown:          breakdown,
		Recipients:         []domain.Recipient{owner},
		AllowedTransitions: s.allowedFor(actor, deal),
	}, nil
}

// Get returns the deal if actor takes part in it.
func (s *DealService) Get(ctx context.Context, actor domain.Actor, id string) (*DealView, error) {
	deal, err := s.deals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipients.ListByDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, deal, recipients) {
		return nil, domain.ErrForbidden
	}

	breakdown, err := deal.Breakdown(s.policy.PlatformFeeRate)
	if err != nil {
		// legacy rows may carry terms the calculator no longer accepts
		logger.Warn(ctx, "stored commission terms no longer valid", "deal_id", id, "error", err)
		breakdown = nil
	}
	return &DealView{
		Deal:               deal,
		Breakdown:          breakdown,
		Recipients:         recipients,
		AllowedTransitions: s.allowedFor(actor, deal),
	}, nil
}

// List returns deals visible to actor.
func (s *DealService) List(ctx context.Context, actor domain.Actor, status domain.DealStatus, offset, limit int) ([]domain.Deal, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, &domain.ValidationError{Field: "status", Reason: "unknown status"}
	}
	filter := repositories.DealFilter{Status: status}
	if !actor.IsStaff() {
		filter.ParticipantUserID = actor.UserID
	}
	return s.deals.List(ctx, filter, offset, limit)
}

// History returns the status history of a deal.
func (s *DealService) History(ctx context.Context, actor domain.Actor, id string) ([]domain.DealTransition, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.deals.ListTransitions(ctx, id)
}

// Transition moves a deal to target on behalf of actor.
func (s *DealService) Transition(ctx context.Context, actor domain.Actor, id string, target domain.DealStatus, reason string) (domain.Deal, error) {
	ctx = logger.ContextWithDealID(ctx, id)

	var from domain.DealStatus
	var next domain.Deal
	err := s.deals.WithDealLock(ctx, id, func(ctx context.Context, deal domain.Deal) error {
		if !domain.MayRequest(actor, deal, target) {
			return domain.ErrForbidden
		}
		from = deal.Status
		var err error
		next, err = s.applyTransition(ctx, deal, target, actor.UserID, reason)
		return err
	})
	if err != nil {
		return domain.Deal{}, err
	}

	s.notify(ctx, next, from, target)
	return next, nil
}

// SubmitForSigning sends every draft contract out and moves the deal to
// awaiting_signatures.
func (s *DealService) SubmitForSigning(ctx context.Context, actor domain.Actor, id string) (domain.Deal, []SigningLink, error) {
	ctx = logger.ContextWithDealID(ctx, id)

	var next domain.Deal
	var links []SigningLink
	var messages []pendingMessage
	err := s.deals.WithDealLock(ctx, id, func(ctx context.Context, deal domain.Deal) error {
		if !domain.MayRequest(actor, deal, domain.DealAwaitingSignatures) {
			return domain.ErrForbidden
		}
		contracts, err := s.contracts.contracts.ListByDeal(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckSubmittable(deal, contracts); err != nil {
			return err
		}
		for _, c := range contracts {
			if c.Status != domain.ContractDraft {
				continue
			}
			l, m, err := s.contracts.sendLocked(ctx, deal, c)
			if err != nil {
				return err
			}
			links = append(links, l...)
			messages = append(messages, m...)
		}
		next, err = s.applyTransition(ctx, deal, domain.DealAwaitingSignatures, actor.UserID, "submitted for signing")
		return err
	})
	if err != nil {
		return domain.Deal{}, nil, err
	}

	s.contracts.deliver(ctx, messages)
	s.notify(ctx, next, domain.DealDraft, domain.DealAwaitingSignatures)
	return next, links, nil
}

// SetOwnerSplit changes the owning agent's share of the commission.
func (s *DealService) SetOwnerSplit(ctx context.Context, actor domain.Actor, id string, split decimal.Decimal) (domain.Recipient, error) {
	var out domain.Recipient
	err := s.deals.WithDealLock(ctx, id, func(ctx context.Context, deal domain.Deal) error {
		if actor.UserID != deal.AgentUserID {
			return domain.ErrForbidden
		}
		recipients, err := s.recipients.ListByDeal(ctx, id)
		if err != nil {
			return err
		}
		invitations, err := s.invitations.ListByDeal(ctx, id)
		if err != nil {
			return err
		}
		rec, err := domain.SetOwnerSplit(deal, recipients, invitations, split, s.now().UTC())
		if err != nil {
			return err
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		out = rec
		return s.recipients.Save(ctx, rec)
	})
	return out, err
}

// applyTransition performs a transition inside the caller's deal lock. Side
// effects are left to the caller, to run once the transaction has committed.
func (s *DealService) applyTransition(ctx context.Context, deal domain.Deal, target domain.DealStatus, actorID uint, reason string) (domain.Deal, error) {
	now := s.now().UTC()
	next, err := domain.Transition(deal, target, now)
	if err != nil {
		var invalid *domain.InvalidTransitionError
		var terminal *domain.TerminalStateError
		if errors.As(err, &invalid) || errors.As(err, &terminal) {
			logger.Warn(ctx, "rejected deal transition", "from", deal.Status, "to", target, "actor_user_id", actorID)
		}
		return deal, err
	}

	switch target {
	case domain.DealAwaitingSignatures, domain.DealSigned:
		contracts, err := s.contracts.contracts.ListByDeal(ctx, deal.ID)
		if err != nil {
			return deal, err
		}
		if err := domain.CheckAgreements(target, contracts); err != nil {
			return deal, err
		}
	case domain.DealCancelled:
		if err := s.withdrawOpenWork(ctx, deal.ID, now); err != nil {
			return deal, err
		}
	}

	recipients, err := s.recipients.ListByDeal(ctx, deal.ID)
	if err != nil {
		return deal, err
	}

	if deal.Status == domain.DealSigned && target == domain.DealInvoiced {
		if err := domain.CheckInvoiceable(deal, recipients); err != nil {
			return deal, err
		}
		recipients = domain.AllocateSplits(deal.CommissionAgent, recipients)
		if err := s.recipients.SaveAll(ctx, recipients); err != nil {
			return deal, err
		}
	}

	if target == domain.DealHoldPeriod {
		holdUntil := now.Add(s.policy.HoldPeriod)
		next.HoldUntil = &holdUntil
	}

	if changed := domain.SyncPayoutStatus(recipients, target, now); len(changed) > 0 {
		if err := s.recipients.SaveAll(ctx, changed); err != nil {
			return deal, err
		}
	}

	if err := s.deals.Update(ctx, &next); err != nil {
		return deal, err
	}
	err = s.deals.AppendTransition(ctx, domain.DealTransition{
		DealID:      deal.ID,
		From:        deal.Status,
		To:          target,
		ActorUserID: actorID,
		Reason:      reason,
		CreatedAt:   now,
	})
	if err != nil {
		return deal, err
	}

	logger.Info(ctx, "deal transitioned", "from", deal.Status, "to", target, "actor_user_id", actorID)
	return next, nil
}

// withdrawOpenWork cancels the unsigned contracts and pending invitations of a
// deal being cancelled, so nobody can sign or join it afterwards.
func (s *DealService) withdrawOpenWork(ctx context.Context, dealID string, now time.Time) error {
	contracts, err := s.contracts.contracts.ListByDeal(ctx, dealID)
	if err != nil {
		return err
	}
	for _, c := range contracts {
		switch c.Status {
		case domain.ContractDraft, domain.ContractPendingSignature, domain.ContractPartiallySigned:
		default:
			continue
		}
		cancelled, err := domain.CancelContract(c, now)
		if err != nil {
			return err
		}
		if err := s.contracts.contracts.Update(ctx, cancelled); err != nil {
			return err
		}
	}

	invitations, err := s.invitations.ListByDeal(ctx, dealID)
	if err != nil {
		return err
	}
	for _, inv := range invitations {
		withdrawn, ok := domain.WithdrawInvitation(inv, now)
		if !ok {
			continue
		}
		if err := s.invitations.Update(ctx, withdrawn); err != nil {
			return err
		}
	}
	return nil
}

// notify runs side effects. Failures are logged; the transition already happened.
func (s *DealService) notify(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) {
	if s.effects == nil {
		return
	}
	if err := s.effects.OnTransition(ctx, deal, from, to); err != nil {
		logger.Error(ctx, "deal transition side effects failed", "from", from, "to", to, "error", err)
	}
}

// allowedFor lists the targets actor could request right now.
func (s *DealService) allowedFor(actor domain.Actor, deal domain.Deal) []domain.DealStatus {
	all := domain.AllowedTransitions(deal.Status)
	out := make([]domain.DealStatus, 0, len(all))
	for _, to := range all {
		if domain.MayRequest(actor, deal, to) {
			out = append(out, to)
		}
	}
	return out
}

func canView(actor domain.Actor, deal domain.Deal, recipients []domain.Recipient) bool {
	if actor.IsStaff() || actor.UserID == deal.AgentUserID {
		return true
	}
	for _, r := range recipients {
		if r.UserID != nil && *r.UserID == actor.UserID {
			return true
		}
	}
	return false
}
