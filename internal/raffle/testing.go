package raffle

import (
	"context"
	"errors"
	"sync"
)

// MockAccountQuerier provides a mock AccountQuerier for testing.
type MockAccountQuerier struct {
	mu       sync.RWMutex
	balances map[string]Amount // kind/holder/key -> amount
	failing  map[Identity]bool
}

// NewMockAccountQuerier creates a new mock account querier.
func NewMockAccountQuerier() *MockAccountQuerier {
	return &MockAccountQuerier{
		balances: make(map[string]Amount),
		failing:  make(map[Identity]bool),
	}
}

func balanceKey(kind ConditionKind, holder Identity, key string) string {
	return string(kind) + "/" + string(holder) + "/" + key
}

// Set records the amount holder has for a condition kind; key is the denom
// or the contract address.
func (m *MockAccountQuerier) Set(kind ConditionKind, holder Identity, key string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(kind, holder, key)] = NewAmount(amount)
}

// Fail makes every query about holder return an error.
func (m *MockAccountQuerier) Fail(holder Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[holder] = true
}

func (m *MockAccountQuerier) get(kind ConditionKind, holder Identity, key string) (Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing[holder] {
		return Amount{}, errors.New("account query failed")
	}
	return m.balances[balanceKey(kind, holder, key)], nil
}

func (m *MockAccountQuerier) Balance(_ context.Context, holder Identity, denom string) (Amount, error) {
	return m.get(ConditionCoin, holder, denom)
}

func (m *MockAccountQuerier) TokenBalance(_ context.Context, holder Identity, token string) (Amount, error) {
	return m.get(ConditionToken, holder, token)
}

func (m *MockAccountQuerier) NFTCount(_ context.Context, holder Identity, collection string) (Amount, error) {
	return m.get(ConditionNFT, holder, collection)
}

func (m *MockAccountQuerier) VotingPower(_ context.Context, holder Identity, dao string) (Amount, error) {
	return m.get(ConditionVotingPower, holder, dao)
}

func (m *MockAccountQuerier) Staked(_ context.Context, holder Identity, denom string) (Amount, error) {
	return m.get(ConditionStaked, holder, denom)
}
