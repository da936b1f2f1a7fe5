package domain

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the rounding precision of every derived amount.
const MoneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// PaymentType selects how the total commission is computed.
type PaymentType string

const (
	PaymentPercent PaymentType = "percent"
	PaymentFixed   PaymentType = "fixed"
	PaymentMixed   PaymentType = "mixed"
)

// AdvanceType selects whether part of the commission is paid up front.
type AdvanceType string

const (
	AdvanceNone    AdvanceType = "none"
	AdvanceFixed   AdvanceType = "advance_fixed"
	AdvancePercent AdvanceType = "advance_percent"
)

// CommissionTerms are the commission settings stored on a deal. Nil means not provided.
type CommissionTerms struct {
	PaymentType       PaymentType      `json:"payment_type"`
	CommissionPercent *decimal.Decimal `json:"commission_percent,omitempty"`
	CommissionFixed   *decimal.Decimal `json:"commission_fixed,omitempty"`
	AdvanceType       AdvanceType      `json:"advance_type"`
	AdvanceAmount     *decimal.Decimal `json:"advance_amount,omitempty"`
	AdvancePercent    *decimal.Decimal `json:"advance_percent,omitempty"`
}

// CommissionInput is the calculator input.
type CommissionInput struct {
	PropertyPrice decimal.Decimal `json:"property_price"`
	CommissionTerms
}

// StepKind names a payment step.
type StepKind string

const (
	StepAdvance StepKind = "advance"
	StepFinal   StepKind = "final"
	StepFull    StepKind = "full"
)

// PaymentWhen is a semantic marker; wall-clock dates are assigned once the deal
// reaches the relevant status.
type PaymentWhen string

const (
	WhenImmediately  PaymentWhen = "immediately"
	WhenOnCompletion PaymentWhen = "on_completion"
)

// PaymentStep is one scheduled commission payment.
type PaymentStep struct {
	Kind   StepKind        `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	When   PaymentWhen     `json:"when"`
	IsPaid bool            `json:"is_paid"`
}

// CommissionBreakdown is the calculator output.
type CommissionBreakdown struct {
	TotalCommission decimal.Decimal `json:"total_commission"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	AgentReceives   decimal.Decimal `json:"agent_receives"`
	AdvanceAmount   decimal.Decimal `json:"advance_amount"`
	FinalPayment    decimal.Decimal `json:"final_payment"`
	Steps           []PaymentStep   `json:"steps"`
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func checkPercent(field string, p *decimal.Decimal) error {
	if p == nil {
		return newValidationError(field, "is required")
	}
	if p.IsNegative() || p.GreaterThan(hundred) {
		return newValidationError(field, "must be between 0 and 100")
	}
	return nil
}

// CalculateCommission computes total commission, platform fee and the payment
// schedule. The platform fee rate is a business policy value supplied by the caller.
func CalculateCommission(in CommissionInput, platformFeeRate decimal.Decimal) (*CommissionBreakdown, error) {
	if !in.PropertyPrice.IsPositive() {
		return nil, newValidationError("property_price", "must be greater than 0")
	}
	if platformFeeRate.IsNegative() || platformFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, newValidationError("platform_fee_rate", "must be between 0 and 1")
	}

	var total decimal.Decimal
	switch in.PaymentType {
	case PaymentPercent:
		if err := checkPercent("commission_percent", in.CommissionPercent); err != nil {
			return nil, err
		}
		total = in.PropertyPrice.Mul(*in.CommissionPercent).Div(hundred)
	case PaymentFixed:
		if in.CommissionFixed == nil || !in.CommissionFixed.IsPositive() {
			return nil, newValidationError("commission_fixed", "must be greater than 0")
		}
		total = *in.CommissionFixed
	case PaymentMixed:
		if err := checkPercent("commission_percent", in.CommissionPercent); err != nil {
			return nil, err
		}
		if in.CommissionFixed == nil || !in.CommissionFixed.IsPositive() {
			return nil, newValidationError("commission_fixed", "must be greater than 0")
		}
		total = in.CommissionFixed.Add(in.PropertyPrice.Mul(*in.CommissionPercent).Div(hundred))
	default:
		return nil, newValidationError("payment_type", "must be percent, fixed or mixed")
	}
	total = roundMoney(total)

	fee := roundMoney(total.Mul(platformFeeRate))
	out := &CommissionBreakdown{
		TotalCommission: total,
		PlatformFee:     fee,
		AgentReceives:   total.Sub(fee),
	}

	advanceType := in.AdvanceType
	if advanceType == "" {
		advanceType = AdvanceNone
	}

	var advance decimal.Decimal
	switch advanceType {
	case AdvanceNone:
		out.FinalPayment = total
		out.Steps = []PaymentStep{{Kind: StepFull, Amount: total, When: WhenOnCompletion}}
		return out, nil
	case AdvanceFixed:
		if in.AdvanceAmount == nil {
			return nil, newValidationError("advance_amount", "is required")
		}
		if in.AdvanceAmount.IsNegative() {
			return nil, newValidationError("advance_amount", "must not be negative")
		}
		advance = roundMoney(*in.AdvanceAmount)
		if advance.GreaterThan(total) {
			return nil, newValidationError("advance_amount", "must not exceed total commission")
		}
	case AdvancePercent:
		if err := checkPercent("advance_percent", in.AdvancePercent); err != nil {
			return nil, err
		}
		advance = roundMoney(total.Mul(*in.AdvancePercent).Div(hundred))
	default:
		return nil, newValidationError("advance_type", "must be none, advance_fixed or advance_percent")
	}

	out.AdvanceAmount = advance
	out.FinalPayment = total.Sub(advance)
	out.Steps = []PaymentStep{
		{Kind: StepAdvance, Amount: advance, When: WhenImmediately},
		{Kind: StepFinal, Amount: out.FinalPayment, When: WhenOnCompletion},
	}
	return out, nil
}

// SumSteps adds up the amounts of steps.
func SumSteps(steps []PaymentStep) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range steps {
		sum = sum.Add(s.Amount)
	}
	return sum
}

// AllocateSplits fills CalculatedAmount on each recipient from amount and its
// split percent. The rounding remainder goes to the owning agent, or to the first
// recipient when there is none, so allocations always add up to amount.
func AllocateSplits(amount decimal.Decimal, recipients []Recipient) []Recipient {
	out := make([]Recipient, len(recipients))
	copy(out, recipients)
	if len(out) == 0 {
		return out
	}

	allocated := decimal.Zero
	owner := 0
	for i := range out {
		out[i].CalculatedAmount = roundMoney(amount.Mul(out[i].SplitValue).Div(hundred))
		allocated = allocated.Add(out[i].CalculatedAmount)
		if out[i].Role == RecipientAgent && out[owner].Role != RecipientAgent {
			owner = i
		}
	}
	out[owner].CalculatedAmount = out[owner].CalculatedAmount.Add(amount.Sub(allocated))
	return out
}
