package raffle

import "context"

// FeeDiscount lowers the treasury cut for participants meeting Condition.
type FeeDiscount struct {
	Rate      Rate               `json:"rate"`
	Condition AdvantageCondition `json:"condition"`
}

// DiscountResult records whether a single discount rule applied.
type DiscountResult struct {
	Discount  FeeDiscount `json:"discount"`
	Satisfied bool        `json:"satisfied"`
}

// DiscountReport is the full evaluation of the configured discounts for one
// participant. Multiplier is the fraction of the fee still charged and Total
// is the effective discount; both lie in [0, 1].
type DiscountReport struct {
	Participant Identity         `json:"participant"`
	Discounts   []DiscountResult `json:"discounts"`
	Multiplier  Rate             `json:"multiplier"`
	Total       Rate             `json:"total_discount"`
}

// Gate checks that participant satisfies every condition, stopping at the
// first one that fails.
func Gate(ctx context.Context, q AccountQuerier, participant Identity, conditions []AdvantageCondition) error {
	for i, c := range conditions {
		if !c.Satisfied(ctx, q, participant) {
			return &IneligibleError{Participant: participant, Index: i, Condition: c}
		}
	}
	return nil
}

// EvaluateDiscounts evaluates every discount rule for participant. Satisfied
// rules compose multiplicatively on the complement:
// multiplier = prod(1 - rate_i), total = 1 - multiplier.
func EvaluateDiscounts(ctx context.Context, q AccountQuerier, participant Identity, discounts []FeeDiscount) DiscountReport {
	report := DiscountReport{
		Participant: participant,
		Discounts:   make([]DiscountResult, 0, len(discounts)),
		Multiplier:  RateOne,
	}
	for _, d := range discounts {
		ok := d.Condition.Satisfied(ctx, q, participant)
		report.Discounts = append(report.Discounts, DiscountResult{Discount: d, Satisfied: ok})
		if ok {
			report.Multiplier = report.Multiplier.Mul(d.Rate.Clamp().Complement())
		}
	}
	report.Multiplier = report.Multiplier.Clamp()
	report.Total = report.Multiplier.Complement().Clamp()
	return report
}

func whitelisted(list []Identity, who Identity) bool {
	if len(list) == 0 {
		return true
	}
	for _, w := range list {
		if w == who {
			return true
		}
	}
	return false
}
