package models

import (
	"time"

	"github.com/shopspring/decimal"

	"dealflow/internal/core/domain"
)

// ============================================================
// Deal Tables
// ============================================================

// Deal represents deals table
type Deal struct {
	ID                string           `gorm:"primaryKey;size:36"`
	Type              string           `gorm:"size:30;not null"`
	Status            string           `gorm:"size:30;not null;index"`
	PropertyAddress   string           `gorm:"size:500;not null"`
	Price             decimal.Decimal  `gorm:"type:decimal(15,2);not null"`
	CommissionTotal   decimal.Decimal  `gorm:"type:decimal(15,2);not null"`
	CommissionAgent   decimal.Decimal  `gorm:"type:decimal(15,2);not null"`
	PaymentType       string           `gorm:"size:20;not null"`
	CommissionPercent *decimal.Decimal `gorm:"type:decimal(7,4)"`
	CommissionFixed   *decimal.Decimal `gorm:"type:decimal(15,2)"`
	AdvanceType       string           `gorm:"size:20"`
	AdvanceAmount     *decimal.Decimal `gorm:"type:decimal(15,2)"`
	AdvancePercent    *decimal.Decimal `gorm:"type:decimal(7,4)"`
	ClientName        string           `gorm:"size:150"`
	ClientPhone       string           `gorm:"size:20"`
	ClientEmail       string           `gorm:"size:100"`
	AgentUserID       uint             `gorm:"not null;index"`
	HoldUntil         *time.Time
	Version           int       `gorm:"not null;default:1"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time

	Agent *User `gorm:"foreignKey:AgentUserID"`
}

func (Deal) TableName() string {
	return "deals"
}

func (m *Deal) ToDomain() domain.Deal {
	return domain.Deal{
		ID:              m.ID,
		Type:            domain.DealType(m.Type),
		Status:          domain.DealStatus(m.Status),
		PropertyAddress: m.PropertyAddress,
		Price:           m.Price,
		CommissionTotal: m.CommissionTotal,
		CommissionAgent: m.CommissionAgent,
		Terms: domain.CommissionTerms{
			PaymentType:       domain.PaymentType(m.PaymentType),
			CommissionPercent: m.CommissionPercent,
			CommissionFixed:   m.CommissionFixed,
			AdvanceType:       domain.AdvanceType(m.AdvanceType),
			AdvanceAmount:     m.AdvanceAmount,
			AdvancePercent:    m.AdvancePercent,
		},
		ClientName:  m.ClientName,
		ClientPhone: m.ClientPhone,
		ClientEmail: m.ClientEmail,
		AgentUserID: m.AgentUserID,
		HoldUntil:   m.HoldUntil,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func DealFromDomain(d domain.Deal) *Deal {
	return &Deal{
		ID:                d.ID,
		Type:              string(d.Type),
		Status:            string(d.Status),
		PropertyAddress:   d.PropertyAddress,
		Price:             d.Price,
		CommissionTotal:   d.CommissionTotal,
		CommissionAgent:   d.CommissionAgent,
		PaymentType:       string(d.Terms.PaymentType),
		CommissionPercent: d.Terms.CommissionPercent,
		CommissionFixed:   d.Terms.CommissionFixed,
		AdvanceType:       string(d.Terms.AdvanceType),
		AdvanceAmount:     d.Terms.AdvanceAmount,
		AdvancePercent:    d.Terms.AdvancePercent,
		ClientName:        d.ClientName,
		ClientPhone:       d.ClientPhone,
		ClientEmail:       d.ClientEmail,
		AgentUserID:       d.AgentUserID,
		HoldUntil:         d.HoldUntil,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// Recipient represents deal_recipients table
type Recipient struct {
	ID               string          `gorm:"primaryKey;size:36"`
	DealID           string          `gorm:"size:36;not null;index"`
	Role             string          `gorm:"size:20;not null"`
	UserID           *uint           `gorm:"index"`
	AgencyID         *string         `gorm:"size:36;index"`
	SplitValue       decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	CalculatedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	PayoutStatus     string          `gorm:"size:20;not null;default:'pending'"`
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
	UpdatedAt        time.Time
}

func (Recipient) TableName() string {
	return "deal_recipients"
}

func (m *Recipient) ToDomain() domain.Recipient {
	return domain.Recipient{
		ID:               m.ID,
		DealID:           m.DealID,
		Role:             domain.RecipientRole(m.Role),
		UserID:           m.UserID,
		AgencyID:         m.AgencyID,
		SplitValue:       m.SplitValue,
		CalculatedAmount: m.CalculatedAmount,
		PayoutStatus:     domain.PayoutStatus(m.PayoutStatus),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func RecipientFromDomain(r domain.Recipient) *Recipient {
	return &Recipient{
		ID:               r.ID,
		DealID:           r.DealID,
		Role:             string(r.Role),
		UserID:           r.UserID,
		AgencyID:         r.AgencyID,
		SplitValue:       r.SplitValue,
		CalculatedAmount: r.CalculatedAmount,
		PayoutStatus:     string(r.PayoutStatus),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Invitation represents deal_invitations table
type Invitation struct {
	ID              string          `gorm:"primaryKey;size:36"`
	DealID          string          `gorm:"size:36;not null;index"`
	InvitedByUserID uint            `gorm:"not null"`
	InvitedPhone    string          `gorm:"size:20;index"`
	InvitedEmail    string          `gorm:"size:100;index"`
	Role            string          `gorm:"size:20;not null"`
	SplitPercent    decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	Status          string          `gorm:"size:20;not null;index"`
	ExpiresAt       time.Time       `gorm:"not null;index"`
	RespondedAt     *time.Time
	DeclineReason   string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (Invitation) TableName() string {
	return "deal_invitations"
}

func (m *Invitation) ToDomain() domain.Invitation {
	return domain.Invitation{
		ID:              m.ID,
		DealID:          m.DealID,
		InvitedByUserID: m.InvitedByUserID,
		InvitedPhone:    m.InvitedPhone,
		InvitedEmail:    m.InvitedEmail,
		Role:            domain.RecipientRole(m.Role),
		SplitPercent:    m.SplitPercent,
		Status:          domain.InvitationStatus(m.Status),
		ExpiresAt:       m.ExpiresAt,
		RespondedAt:     m.RespondedAt,
		DeclineReason:   m.DeclineReason,
		CreatedAt:       m.CreatedAt,
	}
}

func InvitationFromDomain(i domain.Invitation) *Invitation {
	return &Invitation{
		ID:              i.ID,
		DealID:          i.DealID,
		InvitedByUserID: i.InvitedByUserID,
		InvitedPhone:    i.InvitedPhone,
		InvitedEmail:    i.InvitedEmail,
		Role:            string(i.Role),
		SplitPercent:    i.SplitPercent,
		Status:          string(i.Status),
		ExpiresAt:       i.ExpiresAt,
		RespondedAt:     i.RespondedAt,
		DeclineReason:   i.DeclineReason,
		CreatedAt:       i.CreatedAt,
	}
}

// Contract represents contracts table
type Contract struct {
	ID              string    `gorm:"primaryKey;size:36"`
	DealID          string    `gorm:"size:36;not null;index"`
	ContractType    string    `gorm:"size:40;not null"`
	Status          string    `gorm:"size:20;not null;index"`
	DocumentHash    string    `gorm:"size:64;not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
	AllowsDispute   bool      `gorm:"default:false"`
	DisputeDeadline *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time

	Signers []ContractSigner `gorm:"foreignKey:ContractID"`
}

func (Contract) TableName() string {
	return "contracts"
}

// ContractSigner represents contract_signers table
type ContractSigner struct {
	ID         string `gorm:"primaryKey;size:36"`
	ContractID string `gorm:"size:36;not null;index"`
	Position   int    `gorm:"not null"`
	UserID     uint
	Name       string `gorm:"size:150;not null"`
	Role       string `gorm:"size:20;not null"`
	Phone      string `gorm:"size:20"`
	SignedAt   *time.Time
}

func (ContractSigner) TableName() string {
	return "contract_signers"
}

func (m *Contract) ToDomain() domain.Contract {
	c := domain.Contract{
		ID:              m.ID,
		DealID:          m.DealID,
		ContractType:    domain.ContractType(m.ContractType),
		Status:          domain.ContractStatus(m.Status),
		DocumentHash:    m.DocumentHash,
		ExpiresAt:       m.ExpiresAt,
		AllowsDispute:   m.AllowsDispute,
		DisputeDeadline: m.DisputeDeadline,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	c.RequiredSigners = make([]domain.Signer, 0, len(m.Signers))
	for _, s := range m.Signers {
		c.RequiredSigners = append(c.RequiredSigners, domain.Signer{
			ID:       s.ID,
			UserID:   s.UserID,
			Name:     s.Name,
			Role:     domain.SignerRole(s.Role),
			Phone:    s.Phone,
			SignedAt: s.SignedAt,
		})
	}
	return c
}

func ContractFromDomain(c domain.Contract) *Contract {
	m := &Contract{
		ID:              c.ID,
		DealID:          c.DealID,
		ContractType:    string(c.ContractType),
		Status:          string(c.Status),
		DocumentHash:    c.DocumentHash,
		ExpiresAt:       c.ExpiresAt,
		AllowsDispute:   c.AllowsDispute,
		DisputeDeadline: c.DisputeDeadline,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	for i, s := range c.RequiredSigners {
		m.Signers = append(m.Signers, ContractSigner{
			ID:         s.ID,
			ContractID: c.ID,
			Position:   i,
			UserID:     s.UserID,
			Name:       s.Name,
			Role:       string(s.Role),
			Phone:      s.Phone,
			SignedAt:   s.SignedAt,
		})
	}
	return m
}

// SigningSession represents signing_sessions table
type SigningSession struct {
	Token               string `gorm:"primaryKey;size:36"`
	ContractID          string `gorm:"size:36;not null;index"`
	SignerID            string `gorm:"size:36;not null;uniqueIndex"`
	Step                string `gorm:"size:20;not null"`
	ConsentPersonalData bool
	ConsentPep          bool
	PhoneMasked         string `gorm:"size:20"`
	OTPRequestedAt      *time.Time
	OTPExpiresAt        *time.Time
	CodeUsedAt          *time.Time
	AlreadySigned       bool
	AutoReleaseAt       *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

func (SigningSession) TableName() string {
	return "signing_sessions"
}

func (m *SigningSession) ToDomain() domain.SigningSession {
	return domain.SigningSession{
		Token:               m.Token,
		ContractID:          m.ContractID,
		SignerID:            m.SignerID,
		Step:                domain.SigningStep(m.Step),
		ConsentPersonalData: m.ConsentPersonalData,
		ConsentPep:          m.ConsentPep,
		PhoneMasked:         m.PhoneMasked,
		OTPRequestedAt:      m.OTPRequestedAt,
		OTPExpiresAt:        m.OTPExpiresAt,
		CodeUsedAt:          m.CodeUsedAt,
		AlreadySigned:       m.AlreadySigned,
		AutoReleaseAt:       m.AutoReleaseAt,
		CreatedAt:           m.CreatedAt,
	}
}

func SigningSessionFromDomain(s domain.SigningSession) *SigningSession {
	return &SigningSession{
		Token:               s.Token,
		ContractID:          s.ContractID,
		SignerID:            s.SignerID,
		Step:                string(s.Step),
		ConsentPersonalData: s.ConsentPersonalData,
		ConsentPep:          s.ConsentPep,
		PhoneMasked:         s.PhoneMasked,
		OTPRequestedAt:      s.OTPRequestedAt,
		OTPExpiresAt:        s.OTPExpiresAt,
		CodeUsedAt:          s.CodeUsedAt,
		AlreadySigned:       s.AlreadySigned,
		AutoReleaseAt:       s.AutoReleaseAt,
		CreatedAt:           s.CreatedAt,
	}
}

// DealTransition represents deal_transitions table (status history)
type DealTransition struct {
	ID          uint      `gorm:"primaryKey"`
	DealID      string    `gorm:"size:36;not null;index"`
	FromStatus  string    `gorm:"size:30;not null"`
	ToStatus    string    `gorm:"size:30;not null"`
	ActorUserID uint      `gorm:"not null"`
	Reason      string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (DealTransition) TableName() string {
	return "deal_transitions"
}

func (m *DealTransition) ToDomain() domain.DealTransition {
	return domain.DealTransition{
		DealID:      m.DealID,
		From:        domain.DealStatus(m.FromStatus),
		To:          domain.DealStatus(m.ToStatus),
		ActorUserID: m.ActorUserID,
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt,
	}
}

func DealTransitionFromDomain(t domain.DealTransition) *DealTransition {
	return &DealTransition{
		DealID:      t.DealID,
		FromStatus:  string(t.From),
		ToStatus:    string(t.To),
		ActorUserID: t.ActorUserID,
		Reason:      t.Reason,
		CreatedAt:   t.CreatedAt,
	}
}

// Dispute represents deal_disputes table
type Dispute struct {
	ID          string    `gorm:"primaryKey;size:36"`
	DealID      string    `gorm:"size:36;not null;index"`
	ContractID  string    `gorm:"size:36;not null"`
	SignerID    string    `gorm:"size:36;not null"`
	Reason      string    `gorm:"size:100;not null"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Dispute) TableName() string {
	return "deal_disputes"
}

func (m *Dispute) ToDomain() domain.Dispute {
	return domain.Dispute{
		ID:          m.ID,
		DealID:      m.DealID,
		ContractID:  m.ContractID,
		SignerID:    m.SignerID,
		Reason:      m.Reason,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func DisputeFromDomain(d domain.Dispute) *Dispute {
	return &Dispute{
		ID:          d.ID,
		DealID:      d.DealID,
		ContractID:  d.ContractID,
		SignerID:    d.SignerID,
		Reason:      d.Reason,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}
