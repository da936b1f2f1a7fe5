package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role represents user role in the system
type Role string

const (
	RoleAgent   Role = "AGENT"
	RoleFinance Role = "FINANCE"
	RoleAdmin   Role = "ADMIN"
)

// Actor is the caller identity passed explicitly into every operation that needs it.
type Actor struct {
	UserID uint `json:"user_id"`
	Role   Role `json:"role"`
}

// IsStaff reports whether the actor may perform finance-side operations.
func (a Actor) IsStaff() bool {
	return a.Role == RoleFinance || a.Role == RoleAdmin
}

// DealType is the kind of brokerage transaction.
type DealType string

const (
	DealTypeBuy          DealType = "buy"
	DealTypeSell         DealType = "sell"
	DealTypeRentTenant   DealType = "rent_tenant"
	DealTypeRentLandlord DealType = "rent_landlord"

	// legacy types, still readable
	DealTypeSecondaryBuy    DealType = "secondary_buy"
	DealTypeSecondarySell   DealType = "secondary_sell"
	DealTypeNewbuildBooking DealType = "newbuild_booking"
)

func (t DealType) Valid() bool {
	switch t {
	case DealTypeBuy, DealTypeSell, DealTypeRentTenant, DealTypeRentLandlord,
		DealTypeSecondaryBuy, DealTypeSecondarySell, DealTypeNewbuildBooking:
		return true
	}
	return false
}

// IsLegacy reports whether new deals may no longer be created with this type.
func (t DealType) IsLegacy() bool {
	return t == DealTypeSecondaryBuy || t == DealTypeSecondarySell || t == DealTypeNewbuildBooking
}

// Deal represents one brokerage transaction.
type Deal struct {
	ID              string          `json:"id"`
	Type            DealType        `json:"type"`
	Status          DealStatus      `json:"status"`
	PropertyAddress string          `json:"property_address"`
	Price           decimal.Decimal `json:"price"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
	CommissionAgent decimal.Decimal `json:"commission_agent"`
	Terms           CommissionTerms `json:"terms"`
	ClientName      string          `json:"client_name"`
	ClientPhone     string          `json:"client_phone"`
	ClientEmail     string          `json:"client_email"`
	AgentUserID     uint            `json:"agent_user_id"`
	HoldUntil       *time.Time      `json:"hold_until,omitempty"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RecipientRole is the kind of party sharing the commission.
type RecipientRole string

const (
	RecipientAgent   RecipientRole = "agent"
	RecipientCoagent RecipientRole = "coagent"
	RecipientAgency  RecipientRole = "agency"
)

func (r RecipientRole) Valid() bool {
	return r == RecipientAgent || r == RecipientCoagent || r == RecipientAgency
}

// PayoutStatus tracks the payout of a single recipient share.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutReady      PayoutStatus = "ready"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Recipient is a party entitled to a share of the deal commission.
type Recipient struct {
	ID               string          `json:"id"`
	DealID           string          `json:"deal_id"`
	Role             RecipientRole   `json:"role"`
	UserID           *uint           `json:"user_id,omitempty"`
	AgencyID         *string         `json:"agency_id,omitempty"`
	SplitValue       decimal.Decimal `json:"split_value"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	PayoutStatus     PayoutStatus    `json:"payout_status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Party identifies whoever accepts an invitation.
type Party struct {
	UserID   *uint   `json:"user_id,omitempty"`
	AgencyID *string `json:"agency_id,omitempty"`
}

// InvitationStatus is the state of an invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Invitation is an offer to a third party to become a Recipient.
type Invitation struct {
	ID              string           `json:"id"`
	DealID          string           `json:"deal_id"`
	InvitedByUserID uint             `json:"invited_by_user_id"`
	InvitedPhone    string           `json:"invited_phone"`
	InvitedEmail    string           `json:"invited_email"`
	Role            RecipientRole    `json:"role"`
	SplitPercent    decimal.Decimal  `json:"split_percent"`
	Status          InvitationStatus `json:"status"`
	ExpiresAt       time.Time        `json:"expires_at"`
	RespondedAt     *time.Time       `json:"responded_at,omitempty"`
	DeclineReason   string           `json:"decline_reason"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ContractType is the kind of generated legal document.
type ContractType string

const (
	ContractBrokerageAgreement ContractType = "brokerage_agreement"
	ContractSplitAgreement     ContractType = "commission_split_agreement"
	ContractCompletionAct      ContractType = "completion_act"
)

func (t ContractType) Valid() bool {
	return t == ContractBrokerageAgreement || t == ContractSplitAgreement || t == ContractCompletionAct
}

// GatesDealSigning reports whether the deal may not become signed until
// documents of this type are fully signed.
func (t ContractType) GatesDealSigning() bool {
	return t == ContractBrokerageAgreement || t == ContractSplitAgreement
}

// ContractStatus is the signing state of a contract.
type ContractStatus string

const (
	ContractDraft            ContractStatus = "draft"
	ContractPendingSignature ContractStatus = "pending_signature"
	ContractPartiallySigned  ContractStatus = "partially_signed"
	ContractFullySigned      ContractStatus = "fully_signed"
	ContractCancelled        ContractStatus = "cancelled"
	ContractExpired          ContractStatus = "expired"
)

// SignerRole is the capacity in which a party signs.
type SignerRole string

const (
	SignerAgent   SignerRole = "agent"
	SignerClient  SignerRole = "client"
	SignerCoagent SignerRole = "coagent"
	SignerAgency  SignerRole = "agency"
)

// Signer is one required signature on a contract.
type Signer struct {
	ID       string     `json:"id"`
	UserID   uint       `json:"user_id"` // zero for external signers such as clients
	Name     string     `json:"name"`
	Role     SignerRole `json:"role"`
	Phone    string     `json:"phone"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// Contract is a generated legal document tied to a deal.
type Contract struct {
	ID              string         `json:"id"`
	DealID          string         `json:"deal_id"`
	ContractType    ContractType   `json:"contract_type"`
	Status          ContractStatus `json:"status"`
	DocumentHash    string         `json:"document_hash"`
	RequiredSigners []Signer       `json:"required_signers"`
	ExpiresAt       time.Time      `json:"expires_at"`
	AllowsDispute   bool           `json:"allows_dispute"`
	DisputeDeadline *time.Time     `json:"dispute_deadline,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SigningStep is the position of one signer in the signing flow.
type SigningStep string

const (
	StepInfo          SigningStep = "info"
	StepConsent       SigningStep = "consent"
	StepOTPRequested  SigningStep = "otp_requested"
	StepSigned        SigningStep = "signed"
	StepDisputeOpened SigningStep = "dispute_opened"
)

// SigningSession is one party's in-progress act of signing one document.
type SigningSession struct {
	Token               string      `json:"token"`
	ContractID          string      `json:"contract_id"`
	SignerID            string      `json:"signer_id"`
	Step                SigningStep `json:"step"`
	ConsentPersonalData bool        `json:"consent_personal_data"`
	ConsentPep          bool        `json:"consent_pep"`
	PhoneMasked         string      `json:"phone_masked"`
	OTPRequestedAt      *time.Time  `json:"otp_requested_at,omitempty"`
	OTPExpiresAt        *time.Time  `json:"otp_expires_at,omitempty"`
	CodeUsedAt          *time.Time  `json:"code_used_at,omitempty"`
	AlreadySigned       bool        `json:"already_signed"`
	AutoReleaseAt       *time.Time  `json:"auto_release_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

// DealTransition is one entry of a deal's status history.
type DealTransition struct {
	DealID      string     `json:"deal_id"`
	From        DealStatus `json:"from"`
	To          DealStatus `json:"to"`
	ActorUserID uint       `json:"actor_user_id"`
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Dispute is opened by a signer instead of signing a completion act.
type Dispute struct {
	ID          string    `json:"id"`
	DealID      string    `json:"deal_id"`
	ContractID  string    `json:"contract_id"`
	SignerID    string    `json:"signer_id"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
