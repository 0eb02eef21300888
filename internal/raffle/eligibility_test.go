package raffle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	ctx := context.Background()
	q := NewMockAccountQuerier()
	q.Set(ConditionCoin, alice, NativeDenom, 500)
	q.Set(ConditionNFT, alice, "punks", 1)

	conds, err := normalizeConditions([]AdvantageCondition{
		{Kind: ConditionCoin, Denom: NativeDenom, Min: NewAmount(100)},
		{Kind: ConditionNFT, Address: "punks"},
		{Kind: ConditionStaked, Denom: NativeDenom, Min: NewAmount(10)},
	})
	require.NoError(t, err)

	err = Gate(ctx, q, alice, conds[:2])
	require.NoError(t, err)

	err = Gate(ctx, q, alice, conds)
	var inel *IneligibleError
	require.True(t, errors.As(err, &inel))
	assert.Equal(t, 2, inel.Index)
	assert.Equal(t, alice, inel.Participant)
	assert.True(t, errors.Is(err, ErrIneligible))
	assert.Equal(t, KindEligibility, KindOf(err))

	// the first failing condition is reported
	err = Gate(ctx, q, bob, conds)
	require.True(t, errors.As(err, &inel))
	assert.Equal(t, 0, inel.Index)

	q.Fail(alice)
	assert.Error(t, Gate(ctx, q, alice, conds[:1]))
	assert.Error(t, Gate(ctx, nil, alice, conds[:1]))
	assert.NoError(t, Gate(ctx, nil, alice, nil))
}

func TestNormalizeCondition(t *testing.T) {
	c, err := AdvantageCondition{Kind: ConditionNFT, Address: "punks"}.normalize()
	require.NoError(t, err)
	assert.True(t, c.Min.Equal(NewAmount(1)))

	_, err = AdvantageCondition{Kind: ConditionToken}.normalize()
	assert.ErrorIs(t, err, ErrInvalidCondition)
	_, err = AdvantageCondition{Kind: "unknown", Denom: "x"}.normalize()
	assert.ErrorIs(t, err, ErrInvalidCondition)
}

func TestEvaluateDiscounts(t *testing.T) {
	ctx := context.Background()
	q := NewMockAccountQuerier()
	q.Set(ConditionNFT, alice, "punks", 3)
	q.Set(ConditionVotingPower, alice, "dao", 10)

	discounts := []FeeDiscount{
		{Rate: MustRate("0.5"), Condition: AdvantageCondition{Kind: ConditionNFT, Address: "punks", Min: NewAmount(1)}},
		{Rate: MustRate("0.5"), Condition: AdvantageCondition{Kind: ConditionVotingPower, Address: "dao", Min: NewAmount(5)}},
		{Rate: MustRate("0.9"), Condition: AdvantageCondition{Kind: ConditionToken, Address: "cw20", Min: NewAmount(1)}},
	}

	t.Run("Composes", func(t *testing.T) {
		report := EvaluateDiscounts(ctx, q, alice, discounts)
		require.Len(t, report.Discounts, 3)
		assert.True(t, report.Discounts[0].Satisfied)
		assert.True(t, report.Discounts[1].Satisfied)
		assert.False(t, report.Discounts[2].Satisfied)
		assert.True(t, report.Multiplier.Equal(MustRate("0.25")), "multiplier %s", report.Multiplier)
		assert.True(t, report.Total.Equal(MustRate("0.75")), "total %s", report.Total)
	})

	t.Run("Capped", func(t *testing.T) {
		full := []FeeDiscount{
			{Rate: RateOne, Condition: AdvantageCondition{Kind: ConditionNFT, Address: "punks", Min: NewAmount(1)}},
			{Rate: rawRate("1.5"), Condition: AdvantageCondition{Kind: ConditionVotingPower, Address: "dao", Min: NewAmount(1)}},
		}
		report := EvaluateDiscounts(ctx, q, alice, full)
		assert.True(t, report.Multiplier.IsZero())
		assert.True(t, report.Total.Equal(RateOne))
	})

	t.Run("QueryFailureIsUnsatisfied", func(t *testing.T) {
		failing := NewMockAccountQuerier()
		failing.Fail(alice)
		report := EvaluateDiscounts(ctx, failing, alice, discounts)
		assert.True(t, report.Multiplier.Equal(RateOne))
		assert.True(t, report.Total.IsZero())
	})
}

func TestWhitelisted(t *testing.T) {
	assert.True(t, whitelisted(nil, alice))
	assert.True(t, whitelisted([]Identity{bob, alice}, alice))
	assert.False(t, whitelisted([]Identity{bob}, alice))
}
