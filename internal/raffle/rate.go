package raffle

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// maxRateDecimals bounds the precision accepted for fee and discount rates.
const maxRateDecimals = 18

var (
	one = decimal.NewFromInt(1)

	// RateZero is 0%.
	RateZero = Rate{}
	// RateOne is 100%.
	RateOne = Rate{d: one}
)

// Rate is an exact decimal fraction in [0, 1]. Products of rates stay exact,
// so fee computation is reproducible on every node.
type Rate struct {
	d decimal.Decimal
}

// ParseRate parses a decimal string such as "0.05".
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidFeeRate, s)
	}
	r := Rate{d: d}
	if err := r.Validate(); err != nil {
		return Rate{}, err
	}
	return r, nil
}

// MustRate is ParseRate for constants; it panics on malformed input.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate checks range and precision.
func (r Rate) Validate() error {
	if r.d.IsNegative() || r.d.GreaterThan(one) {
		return fmt.Errorf("%w: %s", ErrInvalidFeeRate, r.d.String())
	}
	if -r.d.Exponent() > maxRateDecimals && !r.d.Equal(r.d.Truncate(maxRateDecimals)) {
		return fmt.Errorf("%w: more than %d decimals", ErrInvalidFeeRate, maxRateDecimals)
	}
	return nil
}

// Complement returns 1 - r.
func (r Rate) Complement() Rate { return Rate{d: one.Sub(r.d)} }

// Mul returns r * o.
func (r Rate) Mul(o Rate) Rate { return Rate{d: r.d.Mul(o.d)} }

// Clamp bounds r to [0, 1].
func (r Rate) Clamp() Rate {
	switch {
	case r.d.IsNegative():
		return RateZero
	case r.d.GreaterThan(one):
		return RateOne
	default:
		return r
	}
}

func (r Rate) IsZero() bool { return r.d.IsZero() }

func (r Rate) Equal(o Rate) bool { return r.d.Equal(o.d) }

func (r Rate) String() string { return r.d.String() }

// ApplyFloor returns floor(a * r).
func (r Rate) ApplyFloor(a Amount) (Amount, error) {
	product := decimal.NewFromBigInt(a.Big(), 0).Mul(r.d).Floor()
	return AmountFromBig(product.BigInt())
}

func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.d.String()), nil
}

func (r *Rate) UnmarshalText(text []byte) error {
	parsed, err := ParseRate(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
