package raffle

import (
	"context"
	"fmt"
	"strings"
)

// ConditionKind discriminates AdvantageCondition.
type ConditionKind string

const (
	// ConditionCoin requires a native balance of at least Min of Denom.
	ConditionCoin ConditionKind = "coin"
	// ConditionToken requires a fungible token balance of at least Min at Address.
	ConditionToken ConditionKind = "token"
	// ConditionNFT requires holding at least Min tokens of collection Address.
	ConditionNFT ConditionKind = "nft"
	// ConditionVotingPower requires at least Min voting power in DAO Address.
	ConditionVotingPower ConditionKind = "voting_power"
	// ConditionStaked requires at least Min of Denom delegated.
	ConditionStaked ConditionKind = "staked"
)

// AdvantageCondition is a predicate over external account state, used both
// to gate ticket purchases and to grant fee discounts.
type AdvantageCondition struct {
	Kind    ConditionKind `json:"kind"`
	Denom   string        `json:"denom,omitempty"`
	Address string        `json:"address,omitempty"`
	Min     Amount        `json:"min"`
}

// AccountQuerier answers read-only questions about account state on the host
// chain. Any error is treated as the condition not being met.
type AccountQuerier interface {
	Balance(ctx context.Context, holder Identity, denom string) (Amount, error)
	TokenBalance(ctx context.Context, holder Identity, token string) (Amount, error)
	NFTCount(ctx context.Context, holder Identity, collection string) (Amount, error)
	VotingPower(ctx context.Context, holder Identity, dao string) (Amount, error)
	Staked(ctx context.Context, holder Identity, denom string) (Amount, error)
}

// EmptyAccounts reports zero holdings for everyone.
type EmptyAccounts struct{}

func (EmptyAccounts) Balance(context.Context, Identity, string) (Amount, error)      { return Amount{}, nil }
func (EmptyAccounts) TokenBalance(context.Context, Identity, string) (Amount, error) { return Amount{}, nil }
func (EmptyAccounts) NFTCount(context.Context, Identity, string) (Amount, error)     { return Amount{}, nil }
func (EmptyAccounts) VotingPower(context.Context, Identity, string) (Amount, error)  { return Amount{}, nil }
func (EmptyAccounts) Staked(context.Context, Identity, string) (Amount, error)       { return Amount{}, nil }

// normalize validates the condition and fills defaults. Owning an NFT
// collection with no explicit minimum means owning at least one token.
func (c AdvantageCondition) normalize() (AdvantageCondition, error) {
	switch c.Kind {
	case ConditionCoin, ConditionStaked:
		if strings.TrimSpace(c.Denom) == "" {
			return c, fmt.Errorf("%w: %s needs denom", ErrInvalidCondition, c.Kind)
		}
	case ConditionToken, ConditionVotingPower:
		if strings.TrimSpace(c.Address) == "" {
			return c, fmt.Errorf("%w: %s needs address", ErrInvalidCondition, c.Kind)
		}
	case ConditionNFT:
		if strings.TrimSpace(c.Address) == "" {
			return c, fmt.Errorf("%w: nft needs collection", ErrInvalidCondition)
		}
		if c.Min.IsZero() {
			c.Min = NewAmount(1)
		}
	default:
		return c, fmt.Errorf("%w: unknown kind %q", ErrInvalidCondition, c.Kind)
	}
	return c, nil
}

func normalizeConditions(conds []AdvantageCondition) ([]AdvantageCondition, error) {
	if conds == nil {
		return nil, nil
	}
	out := make([]AdvantageCondition, len(conds))
	for i, c := range conds {
		n, err := c.normalize()
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Satisfied queries q and reports whether holder meets the condition.
func (c AdvantageCondition) Satisfied(ctx context.Context, q AccountQuerier, holder Identity) bool {
	if q == nil {
		return false
	}
	var (
		have Amount
		err  error
	)
	switch c.Kind {
	case ConditionCoin:
		have, err = q.Balance(ctx, holder, c.Denom)
	case ConditionToken:
		have, err = q.TokenBalance(ctx, holder, c.Address)
	case ConditionNFT:
		have, err = q.NFTCount(ctx, holder, c.Address)
	case ConditionVotingPower:
		have, err = q.VotingPower(ctx, holder, c.Address)
	case ConditionStaked:
		have, err = q.Staked(ctx, holder, c.Denom)
	default:
		return false
	}
	if err != nil {
		return false
	}
	return have.Cmp(c.Min) >= 0
}

// Matches reports whether the condition refers to the given token.
func (c AdvantageCondition) Matches(token string) bool {
	return c.Denom == token || c.Address == token
}

func (c AdvantageCondition) String() string {
	switch c.Kind {
	case ConditionCoin, ConditionStaked:
		return fmt.Sprintf("%s >= %s%s", c.Kind, c.Min, c.Denom)
	default:
		return fmt.Sprintf("%s >= %s at %s", c.Kind, c.Min, c.Address)
	}
}
