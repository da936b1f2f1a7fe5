package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// documentPayload is the canonical content a contract hash is taken over.
type documentPayload struct {
	DealID          string       `json:"deal_id"`
	DealType        DealType     `json:"deal_type"`
	ContractType    ContractType `json:"contract_type"`
	PropertyAddress string       `json:"property_address"`
	Price           string       `json:"price"`
	CommissionTotal string       `json:"commission_total"`
	Signers         []string     `json:"signers"`
	IssuedAt        string       `json:"issued_at"`
}

// DocumentHash returns the SHA-256 hex digest of the document rendered for deal.
func DocumentHash(deal Deal, contractType ContractType, signers []Signer, issuedAt time.Time) string {
	names := make([]string, 0, len(signers))
	for _, s := range signers {
		names = append(names, string(s.Role)+":"+s.Name)
	}
	payload := documentPayload{
		DealID:          deal.ID,
		DealType:        deal.Type,
		ContractType:    contractType,
		PropertyAddress: deal.PropertyAddress,
		Price:           deal.Price.StringFixed(MoneyPlaces),
		CommissionTotal: deal.CommissionTotal.StringFixed(MoneyPlaces),
		Signers:         names,
		IssuedAt:        issuedAt.UTC().Format(time.RFC3339),
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NewContract builds a draft contract for deal. Signer IDs are assigned by the caller.
func NewContract(deal Deal, contractType ContractType, signers []Signer, ttl time.Duration, now time.Time) (Contract, error) {
	if !contractType.Valid() {
		return Contract{}, newValidationError("contract_type", "unknown contract type")
	}
	if deal.Status.IsTerminal() {
		return Contract{}, &TerminalStateError{Status: deal.Status}
	}
	if contractType.GatesDealSigning() {
		if deal.Status != DealDraft && deal.Status != DealAwaitingSignatures {
			return Contract{}, newValidationError("status", "agreements can only be issued before the deal is signed")
		}
	} else if deal.Status != DealHoldPeriod {
		return Contract{}, newValidationError("status", "completion acts can only be issued during the hold period")
	}
	if len(signers) == 0 {
		return Contract{}, newValidationError("signers", "at least one signer is required")
	}
	signers = append([]Signer(nil), signers...)
	for i, s := range signers {
		if strings.TrimSpace(s.Name) == "" {
			return Contract{}, newValidationError("signers", "signer name is required")
		}
		switch s.Role {
		case SignerAgent, SignerClient, SignerCoagent, SignerAgency:
		default:
			return Contract{}, newValidationError("signers", "unknown signer role")
		}
		signers[i].SignedAt = nil
	}

	c := Contract{
		DealID:          deal.ID,
		ContractType:    contractType,
		Status:          ContractDraft,
		DocumentHash:    DocumentHash(deal, contractType, signers, now),
		RequiredSigners: signers,
		ExpiresAt:       now.Add(ttl),
		AllowsDispute:   contractType == ContractCompletionAct,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.AllowsDispute && deal.HoldUntil != nil {
		deadline := *deal.HoldUntil
		c.DisputeDeadline = &deadline
	}
	return c, nil
}

// SendForSignature moves a draft contract to pending_signature.
func SendForSignature(c Contract, now time.Time) (Contract, error) {
	if c.Status != ContractDraft {
		return c, newValidationError("status", "only draft contracts can be sent for signature")
	}
	for _, s := range c.RequiredSigners {
		if strings.TrimSpace(s.Phone) == "" {
			return c, newValidationError("signers", "every signer needs a phone number for code confirmation")
		}
	}
	c.Status = ContractPendingSignature
	c.UpdatedAt = now
	return c, nil
}

// AcceptsSignatures reports whether signers may still sign c.
func (c Contract) AcceptsSignatures(now time.Time) bool {
	if c.Status != ContractPendingSignature && c.Status != ContractPartiallySigned {
		return false
	}
	return !now.After(c.ExpiresAt)
}

// FindSigner returns the signer with id.
func (c Contract) FindSigner(id string) (Signer, bool) {
	for _, s := range c.RequiredSigners {
		if s.ID == id {
			return s, true
		}
	}
	return Signer{}, false
}

// IsContractFullySigned reports whether every required signer has signed.
func IsContractFullySigned(c Contract) bool {
	if len(c.RequiredSigners) == 0 {
		return false
	}
	for _, s := range c.RequiredSigners {
		if s.SignedAt == nil {
			return false
		}
	}
	return true
}

// GetMissingSigners returns the signers that have not signed yet.
func GetMissingSigners(c Contract) []Signer {
	missing := make([]Signer, 0, len(c.RequiredSigners))
	for _, s := range c.RequiredSigners {
		if s.SignedAt == nil {
			missing = append(missing, s)
		}
	}
	return missing
}

// MarkSignerSigned records signerID's signature and recomputes the contract status.
// fully_signed is only ever reached through IsContractFullySigned.
func MarkSignerSigned(c Contract, signerID string, now time.Time) (Contract, error) {
	if c.Status == ContractFullySigned {
		return c, ErrAlreadySigned
	}
	if !c.AcceptsSignatures(now) {
		return c, ErrContractNotSigning
	}

	signers := make([]Signer, len(c.RequiredSigners))
	copy(signers, c.RequiredSigners)
	found := false
	for i := range signers {
		if signers[i].ID != signerID {
			continue
		}
		if signers[i].SignedAt != nil {
			return c, ErrAlreadySigned
		}
		at := now
		signers[i].SignedAt = &at
		found = true
	}
	if !found {
		return c, ErrNotFound
	}

	c.RequiredSigners = signers
	c.UpdatedAt = now
	if IsContractFullySigned(c) {
		c.Status = ContractFullySigned
	} else {
		c.Status = ContractPartiallySigned
	}
	return c, nil
}

// CancelContract withdraws a contract that is not yet fully signed.
func CancelContract(c Contract, now time.Time) (Contract, error) {
	switch c.Status {
	case ContractDraft, ContractPendingSignature, ContractPartiallySigned:
	default:
		return c, newValidationError("status", "contract can no longer be cancelled")
	}
	c.Status = ContractCancelled
	c.UpdatedAt = now
	return c, nil
}

// ExpireContract moves an unsigned contract past its deadline to expired.
func ExpireContract(c Contract, now time.Time) (Contract, bool) {
	if c.Status != ContractPendingSignature && c.Status != ContractPartiallySigned {
		return c, false
	}
	if !now.After(c.ExpiresAt) {
		return c, false
	}
	c.Status = ContractExpired
	c.UpdatedAt = now
	return c, true
}

// GatingContractsSigned reports whether every live gating contract of a deal is
// fully signed. Cancelled and expired contracts are ignored; at least one signed
// gating contract is required.
func GatingContractsSigned(contracts []Contract) bool {
	signed := 0
	for _, c := range contracts {
		if !c.ContractType.GatesDealSigning() {
			continue
		}
		switch c.Status {
		case ContractCancelled, ContractExpired:
			continue
		case ContractFullySigned:
			signed++
		default:
			return false
		}
	}
	return signed > 0
}
