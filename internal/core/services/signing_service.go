package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
)

// SessionView is what a signer sees when opening a signing link.
type SessionView struct {
	Session          domain.SigningSession `json:"session"`
	ContractType     domain.ContractType   `json:"contract_type"`
	DocumentHash     string                `json:"document_hash"`
	SignerName       string                `json:"signer_name"`
	PropertyAddress  string                `json:"property_address"`
	CanOpenDispute   bool                  `json:"can_open_dispute"`
	DaysRemaining    *int                  `json:"days_remaining,omitempty"`
	DaysRemainingStr string                `json:"days_remaining_text,omitempty"`
}

// OTPRequestResult reports where and for how long a code was sent.
type OTPRequestResult struct {
	PhoneMasked string `json:"phone_masked"`
	ExpiresIn   int    `json:"expires_in"`
}

// SignResult is the outcome of a successful signature.
type SignResult struct {
	Session        domain.SigningSession `json:"session"`
	ContractStatus domain.ContractStatus `json:"contract_status"`
	DealStatus     domain.DealStatus     `json:"deal_status"`
}

// SigningService runs the per-signer signing flow behind a signing link.
type SigningService struct {
	deals      repositories.DealRepository
	contracts  repositories.ContractRepository
	sessions   repositories.SigningSessionRepository
	disputes   repositories.DisputeRepository
	dispatcher OTPDispatcher
	dealSvc    *DealService
	now        Clock
}

// NewSigningService creates a new signing service
func NewSigningService(
	deals repositories.DealRepository,
	contracts repositories.ContractRepository,
	sessions repositories.SigningSessionRepository,
	disputes repositories.DisputeRepository,
	dispatcher OTPDispatcher,
	dealSvc *DealService,
	now Clock,
) *SigningService {
	if now == nil {
		now = time.Now
	}
	return &SigningService{
		deals:      deals,
		contracts:  contracts,
		sessions:   sessions,
		disputes:   disputes,
		dispatcher: dispatcher,
		dealSvc:    dealSvc,
		now:        now,
	}
}

// GetSession returns the signing session behind token.
func (s *SigningService) GetSession(ctx context.Context, token string) (*SessionView, error) {
	session, c, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	deal, err := s.deals.GetByID(ctx, c.DealID)
	if err != nil {
		return nil, err
	}
	signer, _ := c.FindSigner(session.SignerID)

	now := s.now().UTC()
	days := domain.DaysUntilAutoRelease(session, now)
	return &SessionView{
		Session:          session,
		ContractType:     c.ContractType,
		DocumentHash:     c.DocumentHash,
		SignerName:       signer.Name,
		PropertyAddress:  deal.PropertyAddress,
		CanOpenDispute:   domain.CanOpenDispute(session, c, deal, now),
		DaysRemaining:    days,
		DaysRemainingStr: domain.FormatDaysRemaining(days),
	}, nil
}

// RequestOTP records both consents and texts a confirmation code to the signer.
func (s *SigningService) RequestOTP(ctx context.Context, token string, consentPersonalData, consentPep bool) (*OTPRequestResult, error) {
	session, c, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWithDealID(ctx, c.DealID)

	session, signer, err := domain.PrepareOTPRequest(session, c, consentPersonalData, consentPep, s.now().UTC())
	if err != nil {
		return nil, err
	}
	expiresIn, err := s.dispatcher.SendOTP(ctx, token, signer.Phone)
	if err != nil {
		return nil, err
	}

	session = domain.RecordOTPIssued(session, signer.Phone, expiresIn, s.now().UTC())
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	logger.Info(ctx, "signing code requested", "contract_id", c.ID, "signer_id", signer.ID)
	return &OTPRequestResult{PhoneMasked: session.PhoneMasked, ExpiresIn: expiresIn}, nil
}

// Verify checks code and, if it matches, signs the contract for this signer.
// The last signature on the last gating agreement moves the deal to signed.
func (s *SigningService) Verify(ctx context.Context, token, code string) (*SignResult, error) {
	session, c, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWithDealID(ctx, c.DealID)

	if err := domain.CheckVerifiable(session, s.now().UTC()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrInvalidCode
	}
	ok, err := s.dispatcher.ValidateOTP(ctx, token, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a concurrent verify may have consumed the code first
		if current, err := s.sessions.GetByToken(ctx, token); err == nil {
			if err := domain.CheckVerifiable(current, s.now().UTC()); err != nil {
				return nil, err
			}
		}
		logger.Warn(ctx, "invalid signing code", "contract_id", c.ID, "signer_id", session.SignerID)
		return nil, domain.ErrInvalidCode
	}

	var result SignResult
	var from domain.DealStatus
	var advanced *domain.Deal
	err = s.deals.WithDealLock(ctx, c.DealID, func(ctx context.Context, deal domain.Deal) error {
		if deal.Status.IsTerminal() {
			return domain.ErrContractNotSigning
		}
		now := s.now().UTC()
		current, err := s.sessions.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		if err := domain.CheckVerifiable(current, now); err != nil {
			return err
		}
		contract, err := s.contracts.GetByID(ctx, current.ContractID)
		if err != nil {
			return err
		}
		contract, err = domain.MarkSignerSigned(contract, current.SignerID, now)
		if err != nil {
			return err
		}
		if err := s.contracts.Update(ctx, contract); err != nil {
			return err
		}
		current = domain.RecordSigned(current, now)
		if err := s.sessions.Update(ctx, current); err != nil {
			return err
		}

		result = SignResult{Session: current, ContractStatus: contract.Status, DealStatus: deal.Status}
		if contract.Status != domain.ContractFullySigned || !contract.ContractType.GatesDealSigning() || deal.Status != domain.DealAwaitingSignatures {
			return nil
		}
		all, err := s.contracts.ListByDeal(ctx, deal.ID)
		if err != nil {
			return err
		}
		if !domain.GatingContractsSigned(all) {
			return nil
		}
		next, err := s.dealSvc.applyTransition(ctx, deal, domain.DealSigned, systemActor, "all agreements signed")
		if err != nil {
			return err
		}
		from = deal.Status
		advanced = &next
		result.DealStatus = next.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document signed", "contract_id", c.ID, "signer_id", session.SignerID, "contract_status", result.ContractStatus)
	if advanced != nil {
		s.dealSvc.notify(ctx, *advanced, from, advanced.Status)
	}
	return &result, nil
}

// OpenDispute lets a signer contest a completion act instead of signing it.
// The deal moves to dispute and payout is held.
func (s *SigningService) OpenDispute(ctx context.Context, token, reason, description string) (domain.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Dispute{}, &domain.ValidationError{Field: "reason", Reason: "reason is required"}
	}
	session, c, err := s.load(ctx, token)
	if err != nil {
		return domain.Dispute{}, err
	}
	ctx = logger.ContextWithDealID(ctx, c.DealID)

	var dispute domain.Dispute
	var from domain.DealStatus
	var next domain.Deal
	err = s.deals.WithDealLock(ctx, c.DealID, func(ctx context.Context, deal domain.Deal) error {
		now := s.now().UTC()
		current, err := s.sessions.GetByToken(ctx, token)
		if err != nil {
			return err
		}
		contract, err := s.contracts.GetByID(ctx, current.ContractID)
		if err != nil {
			return err
		}
		if !domain.CanOpenDispute(current, contract, deal, now) {
			return domain.ErrDisputeNotAllowed
		}

		dispute = domain.Dispute{
			ID:          uuid.NewString(),
			DealID:      deal.ID,
			ContractID:  contract.ID,
			SignerID:    current.SignerID,
			Reason:      reason,
			Description: strings.TrimSpace(description),
			CreatedAt:   now,
		}
		if err := s.disputes.Create(ctx, dispute); err != nil {
			return err
		}
		if err := s.sessions.Update(ctx, domain.RecordDisputeOpened(current)); err != nil {
			return err
		}
		from = deal.Status
		next, err = s.dealSvc.applyTransition(ctx, deal, domain.DealDispute, systemActor, reason)
		return err
	})
	if err != nil {
		return domain.Dispute{}, err
	}

	logger.Warn(ctx, "dispute opened", "dispute_id", dispute.ID, "contract_id", dispute.ContractID, "signer_id", session.SignerID)
	s.dealSvc.notify(ctx, next, from, domain.DealDispute)
	return dispute, nil
}

// ListDisputes returns disputes raised on a deal.
func (s *SigningService) ListDisputes(ctx context.Context, actor domain.Actor, dealID string) ([]domain.Dispute, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && actor.UserID != deal.AgentUserID {
		return nil, domain.ErrForbidden
	}
	return s.disputes.ListByDeal(ctx, dealID)
}

func (s *SigningService) load(ctx context.Context, token string) (domain.SigningSession, domain.Contract, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return domain.SigningSession{}, domain.Contract{}, err
	}
	c, err := s.contracts.GetByID(ctx, session.ContractID)
	if err != nil {
		return domain.SigningSession{}, domain.Contract{}, err
	}
	return session, c, nil
}
