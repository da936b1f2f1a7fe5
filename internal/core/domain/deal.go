package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NewDealInput is what an agent supplies to open a deal.
type NewDealInput struct {
	Type            DealType
	PropertyAddress string
	Price           decimal.Decimal
	Terms           CommissionTerms
	ClientName      string
	ClientPhone     string
	ClientEmail     string
}

// NewDeal validates in, prices the commission and returns a draft deal owned by
// agentUserID. The caller assigns the ID.
func NewDeal(in NewDealInput, agentUserID uint, platformFeeRate decimal.Decimal, now time.Time) (Deal, *CommissionBreakdown, error) {
	if !in.Type.Valid() {
		return Deal{}, nil, newValidationError("type", "unknown deal type")
	}
	if in.Type.IsLegacy() {
		return Deal{}, nil, newValidationError("type", "deal type is no longer offered")
	}
	address := strings.TrimSpace(in.PropertyAddress)
	if address == "" {
		return Deal{}, nil, newValidationError("property_address", "is required")
	}
	if agentUserID == 0 {
		return Deal{}, nil, newValidationError("agent_user_id", "is required")
	}

	breakdown, err := CalculateCommission(CommissionInput{PropertyPrice: in.Price, CommissionTerms: in.Terms}, platformFeeRate)
	if err != nil {
		return Deal{}, nil, err
	}

	return Deal{
		Type:            in.Type,
		Status:          DealDraft,
		PropertyAddress: address,
		Price:           in.Price,
		CommissionTotal: breakdown.TotalCommission,
		CommissionAgent: breakdown.AgentReceives,
		Terms:           in.Terms,
		ClientName:      strings.TrimSpace(in.ClientName),
		ClientPhone:     strings.TrimSpace(in.ClientPhone),
		ClientEmail:     strings.TrimSpace(in.ClientEmail),
		AgentUserID:     agentUserID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, breakdown, nil
}

// Breakdown recomputes the payment schedule from the terms stored on d.
func (d Deal) Breakdown(platformFeeRate decimal.Decimal) (*CommissionBreakdown, error) {
	return CalculateCommission(CommissionInput{PropertyPrice: d.Price, CommissionTerms: d.Terms}, platformFeeRate)
}

// CheckSubmittable verifies a draft deal can be sent out for signatures: it
// needs at least one live gating agreement.
func CheckSubmittable(d Deal, contracts []Contract) error {
	if d.Status != DealDraft {
		return &InvalidTransitionError{From: d.Status, To: DealAwaitingSignatures}
	}
	for _, c := range contracts {
		if !c.ContractType.GatesDealSigning() {
			continue
		}
		if c.Status == ContractDraft || c.Status == ContractPendingSignature || c.Status == ContractPartiallySigned || c.Status == ContractFullySigned {
			return nil
		}
	}
	return newValidationError("contracts", "generate a brokerage or commission split agreement first")
}

// CheckAgreements verifies that the deal's agreements allow entering target.
// A deal awaits signatures only once a gating agreement has been sent, and it
// counts as signed only once every live gating agreement is fully signed.
func CheckAgreements(target DealStatus, contracts []Contract) error {
	switch target {
	case DealAwaitingSignatures:
		for _, c := range contracts {
			if !c.ContractType.GatesDealSigning() {
				continue
			}
			switch c.Status {
			case ContractPendingSignature, ContractPartiallySigned, ContractFullySigned:
				return nil
			}
		}
		return newValidationError("contracts", "submit the deal for signing to send its agreements")
	case DealSigned:
		if !GatingContractsSigned(contracts) {
			return newValidationError("contracts", "every agreement must be fully signed first")
		}
	}
	return nil
}

// CheckInvoiceable verifies splits before signed -> invoiced.
func CheckInvoiceable(d Deal, recipients []Recipient) error {
	if d.Status != DealSigned {
		return nil
	}
	return ValidateSplitsComplete(recipients)
}
