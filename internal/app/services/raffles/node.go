package raffles

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/R3E-Network/raffle_layer/internal/chain"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// BalanceReader reads token holdings from a Neo node.
type BalanceReader interface {
	NEP17Balance(ctx context.Context, holder, asset util.Uint160) (*big.Int, error)
	NEP11Count(ctx context.Context, holder, collection util.Uint160) (*big.Int, error)
}

// NodeQuerier answers account conditions from chain state. Coin denoms are
// mapped to NEP-17 contracts through denoms; token, NFT and DAO addresses
// are contract hashes. Staked amounts are not visible on the node and go to
// fallback when one is set.
type NodeQuerier struct {
	node     BalanceReader
	denoms   map[string]util.Uint160
	fallback raffle.AccountQuerier
}

// NewNodeQuerier validates the denom table and returns a querier.
func NewNodeQuerier(node BalanceReader, denoms map[string]string, fallback raffle.AccountQuerier) (*NodeQuerier, error) {
	q := &NodeQuerier{node: node, denoms: make(map[string]util.Uint160, len(denoms)), fallback: fallback}
	for denom, hash := range denoms {
		u, err := chain.ParseAddress(hash)
		if err != nil {
			return nil, fmt.Errorf("denom %s: %w", denom, err)
		}
		q.denoms[denom] = u
	}
	return q, nil
}

func (q *NodeQuerier) nep17(ctx context.Context, holder raffle.Identity, asset util.Uint160) (raffle.Amount, error) {
	h, err := chain.ParseAddress(string(holder))
	if err != nil {
		return raffle.Amount{}, err
	}
	n, err := q.node.NEP17Balance(ctx, h, asset)
	if err != nil {
		return raffle.Amount{}, err
	}
	return raffle.AmountFromBig(n)
}

func (q *NodeQuerier) Balance(ctx context.Context, holder raffle.Identity, denom string) (raffle.Amount, error) {
	asset, ok := q.denoms[denom]
	if !ok {
		return raffle.Amount{}, fmt.Errorf("no contract configured for denom %q", denom)
	}
	return q.nep17(ctx, holder, asset)
}

func (q *NodeQuerier) TokenBalance(ctx context.Context, holder raffle.Identity, token string) (raffle.Amount, error) {
	asset, err := chain.ParseAddress(token)
	if err != nil {
		return raffle.Amount{}, err
	}
	return q.nep17(ctx, holder, asset)
}

func (q *NodeQuerier) NFTCount(ctx context.Context, holder raffle.Identity, collection string) (raffle.Amount, error) {
	h, err := chain.ParseAddress(string(holder))
	if err != nil {
		return raffle.Amount{}, err
	}
	c, err := chain.ParseAddress(collection)
	if err != nil {
		return raffle.Amount{}, err
	}
	n, err := q.node.NEP11Count(ctx, h, c)
	if err != nil {
		return raffle.Amount{}, err
	}
	return raffle.AmountFromBig(n)
}

// VotingPower reads the holder's balance of the DAO's governance token.
func (q *NodeQuerier) VotingPower(ctx context.Context, holder raffle.Identity, dao string) (raffle.Amount, error) {
	return q.TokenBalance(ctx, holder, dao)
}

func (q *NodeQuerier) Staked(ctx context.Context, holder raffle.Identity, denom string) (raffle.Amount, error) {
	if q.fallback == nil {
		return raffle.Amount{}, fmt.Errorf("staking queries need the accounts indexer")
	}
	return q.fallback.Staked(ctx, holder, denom)
}
