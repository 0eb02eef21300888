package raffle

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is a non-negative token quantity. All arithmetic is checked and
// reports ErrOverflow or ErrUnderflow instead of wrapping.
type Amount struct {
	n uint256.Int
}

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) Amount {
	var a Amount
	a.n.SetUint64(v)
	return a
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.n.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return a, nil
}

// AmountFromBig converts b, failing when it is negative or does not fit in 256 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Amount{}, ErrUnderflow
	}
	n, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrOverflow
	}
	return Amount{n: *n}, nil
}

func (a Amount) IsZero() bool { return a.n.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.n.Cmp(&b.n) }

func (a Amount) Equal(b Amount) bool { return a.n.Eq(&b.n) }

func (a Amount) String() string { return a.n.Dec() }

// Big returns a copy as a big.Int.
func (a Amount) Big() *big.Int { return a.n.ToBig() }

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.n.AddOverflow(&a.n, &b.n); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.n.SubOverflow(&a.n, &b.n); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

// MulUint64 returns a*k.
func (a Amount) MulUint64(k uint64) (Amount, error) {
	var out, factor Amount
	factor.n.SetUint64(k)
	if _, overflow := out.n.MulOverflow(&a.n, &factor.n); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.n.Dec()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer; amounts are stored as NUMERIC text.
func (a Amount) Value() (driver.Value, error) {
	return a.n.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return ErrUnderflow
		}
		*a = NewAmount(uint64(v))
		return nil
	case nil:
		*a = Amount{}
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAmount, src)
	}
}
