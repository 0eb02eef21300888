package raffle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreateMsg describes a new raffle. Owner defaults to the sender.
type CreateMsg struct {
	Owner       *Identity
	Assets      []Asset
	TicketPrice Coin
	Options     OptionsMsg
}

// Created is the outcome of a successful CreateRaffle.
type Created struct {
	Raffle     Raffle            `json:"raffle"`
	Transfers  []Transfer        `json:"transfers"`
	Randomness RandomnessRequest `json:"randomness_request"`
}

// ModifyMsg changes a raffle that has not sold any ticket yet.
type ModifyMsg struct {
	RaffleID    uint64
	Options     OptionsMsg
	TicketPrice *Coin
}

// CreateRaffle validates the request, takes the creation fee, escrows the
// assets and allocates the next raffle id.
func (e *Engine) CreateRaffle(ctx context.Context, env Env, msg CreateMsg) (Created, error) {
	var out Created
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if cfg.Locks.Locked() {
			return ErrContractLocked
		}
		if err := validatePrice(msg.TicketPrice); err != nil {
			return err
		}

		remaining, fee, err := takeCreationFee(cfg.CreationCoins, env.Funds)
		if err != nil {
			return err
		}
		if len(msg.Assets) == 0 {
			return ErrNoAssets
		}
		for _, a := range msg.Assets {
			if err := a.Validate(); err != nil {
				return err
			}
		}
		if !allUnique(msg.Assets) {
			return ErrDuplicateAssets
		}
		if err := coinsCovered(msg.Assets, remaining); err != nil {
			return err
		}
		opts, err := newOptions(env.Now, cfg, len(msg.Assets), msg.Options)
		if err != nil {
			return err
		}

		owner := env.Sender
		if msg.Owner != nil {
			owner = *msg.Owner
		}
		if strings.TrimSpace(string(owner)) == "" {
			return ErrInvalidIdentity
		}

		id := cfg.nextRaffleID()
		if _, err := tx.Raffle(id); err == nil {
			return fmt.Errorf("%w: %d", ErrRaffleExists, id)
		} else if !errors.Is(err, ErrRaffleNotFound) {
			return err
		}

		r := Raffle{
			ID:          id,
			Owner:       owner,
			Assets:      append([]Asset(nil), msg.Assets...),
			TicketPrice: msg.TicketPrice,
			Options:     opts,
		}
		if err := tx.PutConfig(cfg); err != nil {
			return err
		}
		if err := tx.PutRaffle(r); err != nil {
			return err
		}

		var transfers []Transfer
		if fee != nil {
			transfers = append(transfers, Transfer{To: cfg.FeeAddr, Asset: CoinAsset(*fee)})
		}
		for _, a := range r.Assets {
			if a.Kind == AssetCoin {
				continue
			}
			transfers = append(transfers, Transfer{From: env.Sender, To: env.Contract, Asset: a})
		}
		out = Created{Raffle: r, Transfers: transfers, Randomness: newRandomnessRequest(cfg, r)}
		return nil
	})
	return out, err
}

// ModifyRaffle merges new options into a raffle without tickets.
func (e *Engine) ModifyRaffle(ctx context.Context, env Env, msg ModifyMsg) (Raffle, error) {
	var out Raffle
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, msg.RaffleID)
		if err != nil {
			return err
		}
		if env.Sender != r.Owner {
			return ErrNotRaffleOwner
		}
		if r.NumberOfTickets > 0 {
			return ErrRaffleHasTickets
		}
		if err := requireState("modify", StateAt(env.Now, cfg, r), StateCreated, StateStarted); err != nil {
			return err
		}
		opts, err := r.Options.merge(cfg, len(r.Assets), msg.Options)
		if err != nil {
			return err
		}
		if msg.TicketPrice != nil {
			if err := validatePrice(*msg.TicketPrice); err != nil {
				return err
			}
			r.TicketPrice = *msg.TicketPrice
		}
		r.Options = opts
		out = r
		return tx.PutRaffle(r)
	})
	return out, err
}

// CancelRaffle withdraws a raffle that has not sold any ticket and returns
// its assets to the owner.
func (e *Engine) CancelRaffle(ctx context.Context, env Env, id uint64) ([]Transfer, error) {
	var transfers []Transfer
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, id)
		if err != nil {
			return err
		}
		if env.Sender != r.Owner {
			return ErrNotRaffleOwner
		}
		if err := requireState("cancel", StateAt(env.Now, cfg, r), StateCreated, StateStarted); err != nil {
			return err
		}
		if r.NumberOfTickets > 0 {
			return ErrRaffleHasTickets
		}
		r.IsCancelled = true
		if err := tx.PutRaffle(r); err != nil {
			return err
		}
		for _, a := range r.Assets {
			transfers = append(transfers, Transfer{To: r.Owner, Asset: a})
		}
		return nil
	})
	return transfers, err
}

func validatePrice(c Coin) error {
	if strings.TrimSpace(c.Denom) == "" {
		return ErrInvalidTicketPrice
	}
	return nil
}

// takeCreationFee finds a sent coin equal to one of the accepted creation
// coins and returns the funds without it. An empty accepted list means
// creation is free.
func takeCreationFee(accepted, funds []Coin) ([]Coin, *Coin, error) {
	if len(accepted) == 0 {
		return funds, nil, nil
	}
	for i, f := range funds {
		for _, c := range accepted {
			if !f.Equal(c) {
				continue
			}
			rest := make([]Coin, 0, len(funds)-1)
			rest = append(rest, funds[:i]...)
			rest = append(rest, funds[i+1:]...)
			fee := f
			return rest, &fee, nil
		}
	}
	return nil, nil, ErrInvalidCreationFee
}

// coinsCovered checks that the native coins among assets are paid for by
// funds, denomination by denomination.
func coinsCovered(assets []Asset, funds []Coin) error {
	sent := make(map[string]Amount)
	for _, f := range funds {
		sum, err := sent[f.Denom].Add(f.Amount)
		if err != nil {
			return err
		}
		sent[f.Denom] = sum
	}
	for _, a := range assets {
		if a.Kind != AssetCoin {
			continue
		}
		left, err := sent[a.Denom].Sub(a.Amount)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrFundsMismatch, a)
		}
		sent[a.Denom] = left
	}
	return nil
}
