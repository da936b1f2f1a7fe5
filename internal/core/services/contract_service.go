package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
	"dealflow/internal/pkg/password"
	"dealflow/internal/pkg/phone"
)

// SigningLink is the personal link a signer follows to sign a contract.
type SigningLink struct {
	ContractID string `json:"contract_id"`
	SignerID   string `json:"signer_id"`
	SignerName string `json:"signer_name"`
	Token      string `json:"token"`
	URL        string `json:"url"`
}

// ContractView is a contract with its outstanding signers.
type ContractView struct {
	Contract       domain.Contract `json:"contract"`
	MissingSigners []domain.Signer `json:"missing_signers"`
	FullySigned    bool            `json:"fully_signed"`
}

// pendingMessage is an SMS queued inside a transaction and sent after commit.
type pendingMessage struct {
	phone string
	text  string
}

// ContractService generates contracts and sends them out for signature.
type ContractService struct {
	deals      repositories.DealRepository
	recipients repositories.RecipientRepository
	contracts  repositories.ContractRepository
	sessions   repositories.SigningSessionRepository
	users      repositories.UserRepository
	sms        SMSSender
	policy     config.PolicyConfig
	now        Clock
}

// NewContractService creates a new contract service
func NewContractService(
	deals repositories.DealRepository,
	recipients repositories.RecipientRepository,
	contracts repositories.ContractRepository,
	sessions repositories.SigningSessionRepository,
	users repositories.UserRepository,
	sms SMSSender,
	policy config.PolicyConfig,
	now Clock,
) *ContractService {
	if now == nil {
		now = time.Now
	}
	return &ContractService{
		deals:      deals,
		recipients: recipients,
		contracts:  contracts,
		sessions:   sessions,
		users:      users,
		sms:        sms,
		policy:     policy,
		now:        now,
	}
}

// Generate creates a draft contract for a deal. Without explicit signers the
// deal owner and the client sign, plus every co-agent on a split agreement.
func (s *ContractService) Generate(ctx context.Context, actor domain.Actor, dealID string, contractType domain.ContractType, signers []domain.Signer) (domain.Contract, error) {
	ctx = logger.ContextWithDealID(ctx, dealID)

	var out domain.Contract
	err := s.deals.WithDealLock(ctx, dealID, func(ctx context.Context, deal domain.Deal) error {
		if !actor.IsStaff() && actor.UserID != deal.AgentUserID {
			return domain.ErrForbidden
		}
		if len(signers) == 0 {
			var err error
			signers, err = s.defaultSigners(ctx, deal, contractType)
			if err != nil {
				return err
			}
		}
		assigned := make([]domain.Signer, len(signers))
		for i, sg := range signers {
			sg.ID = uuid.NewString()
			sg.Phone = phone.Normalize(sg.Phone)
			assigned[i] = sg
		}

		c, err := domain.NewContract(deal, contractType, assigned, s.policy.ContractTTL, s.now().UTC())
		if err != nil {
			return err
		}
		c.ID = uuid.NewString()
		if err := s.contracts.Create(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	logger.Info(ctx, "contract generated", "contract_id", out.ID, "type", out.ContractType, "signers", len(out.RequiredSigners))
	return out, nil
}

// Send puts a draft contract out for signature and texts each signer a link.
// Agreements go out with the deal through SubmitForSigning, so sending one
// directly requires the deal to be awaiting signatures already.
func (s *ContractService) Send(ctx context.Context, actor domain.Actor, contractID string) ([]SigningLink, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	ctx = logger.ContextWithDealID(ctx, c.DealID)

	var links []SigningLink
	var messages []pendingMessage
	err = s.deals.WithDealLock(ctx, c.DealID, func(ctx context.Context, deal domain.Deal) error {
		if !actor.IsStaff() && actor.UserID != deal.AgentUserID {
			return domain.ErrForbidden
		}
		c, err := s.contracts.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if c.ContractType.GatesDealSigning() && deal.Status != domain.DealAwaitingSignatures {
			return &domain.ValidationError{Field: "status", Reason: "submit the deal for signing to send its agreements"}
		}
		if !c.ContractType.GatesDealSigning() && deal.Status != domain.DealHoldPeriod {
			return &domain.ValidationError{Field: "status", Reason: "completion acts are signed during the hold period"}
		}
		links, messages, err = s.sendLocked(ctx, deal, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, messages)
	return links, nil
}

// sendLocked moves c to pending_signature and opens a session per signer. The
// caller holds the deal lock; the returned messages are sent after commit.
func (s *ContractService) sendLocked(ctx context.Context, deal domain.Deal, c domain.Contract) ([]SigningLink, []pendingMessage, error) {
	now := s.now().UTC()
	sent, err := domain.SendForSignature(c, now)
	if err != nil {
		return nil, nil, err
	}
	if err := s.contracts.Update(ctx, sent); err != nil {
		return nil, nil, err
	}

	var release *time.Time
	if sent.AllowsDispute && deal.HoldUntil != nil {
		at := *deal.HoldUntil
		release = &at
	}

	links := make([]SigningLink, 0, len(sent.RequiredSigners))
	messages := make([]pendingMessage, 0, len(sent.RequiredSigners))
	for _, signer := range sent.RequiredSigners {
		token, err := password.NewToken(32)
		if err != nil {
			return nil, nil, fmt.Errorf("session token: %w", err)
		}
		session := domain.NewSigningSession(token, sent, signer, release, now)
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, nil, err
		}
		link := SigningLink{
			ContractID: sent.ID,
			SignerID:   signer.ID,
			SignerName: signer.Name,
			Token:      token,
			URL:        s.signingURL(token),
		}
		links = append(links, link)
		messages = append(messages, pendingMessage{
			phone: signer.Phone,
			text:  fmt.Sprintf("Please review and sign the %s for %s: %s", contractTitle(sent.ContractType), deal.PropertyAddress, link.URL),
		})
	}
	return links, messages, nil
}

// deliver sends queued messages. A failed SMS does not undo the send; the
// owner can still hand out the link.
func (s *ContractService) deliver(ctx context.Context, messages []pendingMessage) {
	if s.sms == nil {
		return
	}
	for _, m := range messages {
		if err := s.sms.Send(ctx, m.phone, m.text); err != nil {
			logger.Warn(ctx, "signing link sms failed", "to", phone.Mask(m.phone), "error", err)
		}
	}
}

// Cancel withdraws a contract that is not fully signed.
func (s *ContractService) Cancel(ctx context.Context, actor domain.Actor, contractID string) (domain.Contract, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return domain.Contract{}, err
	}

	var out domain.Contract
	err = s.deals.WithDealLock(ctx, c.DealID, func(ctx context.Context, deal domain.Deal) error {
		if !actor.IsStaff() && actor.UserID != deal.AgentUserID {
			return domain.ErrForbidden
		}
		c, err := s.contracts.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		cancelled, err := domain.CancelContract(c, s.now().UTC())
		if err != nil {
			return err
		}
		out = cancelled
		return s.contracts.Update(ctx, cancelled)
	})
	if err != nil {
		return domain.Contract{}, err
	}
	logger.Info(logger.ContextWithDealID(ctx, out.DealID), "contract cancelled", "contract_id", out.ID)
	return out, nil
}

// Get returns a contract of a deal actor takes part in.
func (s *ContractService) Get(ctx context.Context, actor domain.Actor, contractID string) (*ContractView, error) {
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, actor, c.DealID); err != nil {
		return nil, err
	}
	return newContractView(c), nil
}

// ListByDeal returns every contract of a deal.
func (s *ContractService) ListByDeal(ctx context.Context, actor domain.Actor, dealID string) ([]*ContractView, error) {
	if err := s.checkAccess(ctx, actor, dealID); err != nil {
		return nil, err
	}
	contracts, err := s.contracts.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	out := make([]*ContractView, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, newContractView(c))
	}
	return out, nil
}

// ExpireOverdue marks contracts past their deadline as expired.
func (s *ContractService) ExpireOverdue(ctx context.Context, batch int) (int, error) {
	now := s.now().UTC()
	overdue, err := s.contracts.ListOverdue(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, c := range overdue {
		err := s.deals.WithDealLock(ctx, c.DealID, func(ctx context.Context, _ domain.Deal) error {
			current, err := s.contracts.GetByID(ctx, c.ID)
			if err != nil {
				return err
			}
			next, ok := domain.ExpireContract(current, now)
			if !ok {
				return nil
			}
			expired++
			return s.contracts.Update(ctx, next)
		})
		if err != nil {
			logger.Warn(ctx, "contract expiry failed", "contract_id", c.ID, "error", err)
		}
	}
	return expired, nil
}

func (s *ContractService) checkAccess(ctx context.Context, actor domain.Actor, dealID string) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if actor.IsStaff() || actor.UserID == deal.AgentUserID {
		return nil
	}
	recipients, err := s.recipients.ListByDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if !canView(actor, deal, recipients) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *ContractService) defaultSigners(ctx context.Context, deal domain.Deal, contractType domain.ContractType) ([]domain.Signer, error) {
	owner, err := s.users.GetByID(ctx, deal.AgentUserID)
	if err != nil {
		return nil, fmt.Errorf("load deal owner: %w", err)
	}
	signers := []domain.Signer{
		{UserID: owner.ID, Name: owner.FullName, Role: domain.SignerAgent, Phone: owner.Phone},
		{Name: deal.ClientName, Role: domain.SignerClient, Phone: deal.ClientPhone},
	}
	if contractType != domain.ContractSplitAgreement {
		return signers, nil
	}

	recipients, err := s.recipients.ListByDeal(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range recipients {
		if r.Role != domain.RecipientCoagent || r.UserID == nil {
			continue
		}
		u, err := s.users.GetByID(ctx, *r.UserID)
		if err != nil {
			return nil, fmt.Errorf("load co-agent: %w", err)
		}
		signers = append(signers, domain.Signer{UserID: u.ID, Name: u.FullName, Role: domain.SignerCoagent, Phone: u.Phone})
	}
	return signers, nil
}

func (s *ContractService) signingURL(token string) string {
	base := strings.TrimRight(s.policy.SigningLinkBaseURL, "/")
	if base == "" {
		return token
	}
	return base + "/" + token
}

func newContractView(c domain.Contract) *ContractView {
	return &ContractView{
		Contract:       c,
		MissingSigners: domain.GetMissingSigners(c),
		FullySigned:    domain.IsContractFullySigned(c),
	}
}

func contractTitle(t domain.ContractType) string {
	switch t {
	case domain.ContractBrokerageAgreement:
		return "brokerage agreement"
	case domain.ContractSplitAgreement:
		return "commission split agreement"
	default:
		return "completion act"
	}
}
