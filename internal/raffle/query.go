package raffle

import (
	"context"
	"time"
)

// Pagination limits for list queries.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	scanLimit        = 100
)

// RaffleView is a raffle together with its state at query time.
type RaffleView struct {
	ID     uint64 `json:"id"`
	State  State  `json:"state"`
	Raffle Raffle `json:"raffle"`
}

// RaffleFilters narrows the Raffles listing. Zero-valued fields match all.
type RaffleFilters struct {
	States           []State
	Owner            *Identity
	TicketDepositor  *Identity
	ContainsToken    string
	GatedRightsBuyer *Identity
}

func pageLimit(limit *uint32) int {
	if limit == nil || *limit == 0 {
		return DefaultPageLimit
	}
	if *limit > MaxPageLimit {
		return MaxPageLimit
	}
	return int(*limit)
}

// Config returns the current configuration.
func (e *Engine) Config(ctx context.Context) (Config, error) {
	var cfg Config
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		cfg, err = tx.Config()
		return err
	})
	return cfg, err
}

// Raffle returns one raffle. Once randomness is stored and before finalize,
// the winners it would settle with are filled in.
func (e *Engine) Raffle(ctx context.Context, now time.Time, id uint64) (RaffleView, error) {
	var view RaffleView
	err := e.store.View(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, id)
		if err != nil {
			return err
		}
		view, err = describe(tx, now, cfg, r)
		return err
	})
	return view, err
}

func describe(tx Tx, now time.Time, cfg Config, r Raffle) (RaffleView, error) {
	st := StateAt(now, cfg, r)
	if len(r.Winners) == 0 && r.Randomness != nil && !r.IsCancelled {
		d, err := determineWinners(tx, r)
		if err != nil {
			return RaffleView{}, err
		}
		r.Winners = d.winners
	}
	return RaffleView{ID: r.ID, State: st, Raffle: r}, nil
}

// Raffles lists raffles newest first, starting below startAfter. At most
// one scan window of raffles is examined per call.
func (e *Engine) Raffles(ctx context.Context, now time.Time, filters RaffleFilters, startAfter *uint64, limit *uint32) ([]RaffleView, error) {
	want := pageLimit(limit)
	var out []RaffleView
	err := e.store.View(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		candidates, err := scanRaffles(tx, filters.TicketDepositor, startAfter)
		if err != nil {
			return err
		}
		for _, r := range candidates {
			if len(out) >= want {
				break
			}
			if !e.matches(ctx, filters, StateAt(now, cfg, r), r) {
				continue
			}
			view, err := describe(tx, now, cfg, r)
			if err != nil {
				return err
			}
			out = append(out, view)
		}
		return nil
	})
	return out, err
}

func scanRaffles(tx Tx, depositor *Identity, startAfter *uint64) ([]Raffle, error) {
	if depositor == nil {
		return tx.Raffles(startAfter, scanLimit)
	}
	ids, err := tx.UserRaffles(*depositor, startAfter, scanLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Raffle, 0, len(ids))
	for _, id := range ids {
		r, err := tx.Raffle(id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) matches(ctx context.Context, f RaffleFilters, st State, r Raffle) bool {
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if s == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Owner != nil && *f.Owner != r.Owner {
		return false
	}
	if f.ContainsToken != "" {
		found := false
		for _, a := range r.Assets {
			if a.Matches(f.ContainsToken) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.GatedRightsBuyer != nil {
		buyer := *f.GatedRightsBuyer
		if !whitelisted(r.Options.Whitelist, buyer) {
			return false
		}
		if Gate(ctx, e.querier, buyer, r.Options.Gating) != nil {
			return false
		}
	}
	return true
}

// Tickets lists ticket owners of a raffle by index.
func (e *Engine) Tickets(ctx context.Context, id uint64, startAfter *uint32, limit *uint32) ([]Identity, error) {
	var out []Identity
	err := e.store.View(ctx, func(tx Tx) error {
		if _, err := tx.Raffle(id); err != nil {
			return err
		}
		var err error
		out, err = tx.Tickets(id, startAfter, pageLimit(limit))
		return err
	})
	return out, err
}

// TicketCount returns how many tickets owner holds in a raffle.
func (e *Engine) TicketCount(ctx context.Context, owner Identity, id uint64) (uint32, error) {
	var n uint32
	err := e.store.View(ctx, func(tx Tx) error {
		var err error
		n, err = tx.UserTicketCount(owner, id)
		return err
	})
	return n, err
}

// FeeDiscount evaluates the configured discounts for user.
func (e *Engine) FeeDiscount(ctx context.Context, user Identity) (DiscountReport, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return DiscountReport{}, err
	}
	return EvaluateDiscounts(ctx, e.querier, user, cfg.FeeDiscounts), nil
}
