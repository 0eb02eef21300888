package raffle

import (
	"context"
	"fmt"
)

// Outcome tells how the winners of a raffle were determined.
type Outcome string

const (
	// OutcomeDrawn means winners were drawn from the sold tickets.
	OutcomeDrawn Outcome = "drawn"
	// OutcomeNoTickets means nothing was sold and the owner keeps the assets.
	OutcomeNoTickets Outcome = "no_tickets"
	// OutcomeRefund means too few tickets were sold; buyers are refunded and
	// the assets return to the owner.
	OutcomeRefund Outcome = "refund"
)

// Settlement is the result of Finalize.
type Settlement struct {
	RaffleID       uint64         `json:"raffle_id"`
	Outcome        Outcome        `json:"outcome"`
	Winners        []Identity     `json:"winners"`
	WinningTickets []uint32       `json:"winning_tickets,omitempty"`
	TotalPaid      Coin           `json:"total_paid"`
	TreasuryCut    Coin           `json:"treasury_cut"`
	OwnerCut       Coin           `json:"owner_cut"`
	Discount       DiscountReport `json:"discount"`
	Transfers      []Transfer     `json:"transfers"`
}

type draw struct {
	outcome Outcome
	winners []Identity
	tickets []uint32
}

// determineWinners picks the winners of r. Raffles that sold nothing, or
// fewer tickets than required, revert to the owner.
func determineWinners(tx Tx, r Raffle) (draw, error) {
	n := r.NumberOfTickets
	m := r.winnerCount()
	ownerOnly := func(outcome Outcome) draw {
		winners := make([]Identity, m)
		for i := range winners {
			winners[i] = r.Owner
		}
		return draw{outcome: outcome, winners: winners}
	}

	switch {
	case n == 0:
		return ownerOnly(OutcomeNoTickets), nil
	case r.Options.MinTicketNumber != nil && n < *r.Options.MinTicketNumber:
		return ownerOnly(OutcomeRefund), nil
	case n < m:
		return ownerOnly(OutcomeRefund), nil
	}
	if r.Randomness == nil {
		return draw{}, &StateError{Op: "draw winners", State: StateClosed}
	}

	tickets, err := Pick(*r.Randomness, n, m)
	if err != nil {
		return draw{}, err
	}
	winners := make([]Identity, len(tickets))
	for i, idx := range tickets {
		owner, err := tx.TicketOwner(r.ID, idx)
		if err != nil {
			return draw{}, fmt.Errorf("winning ticket %d: %w", idx, err)
		}
		winners[i] = owner
	}
	return draw{outcome: OutcomeDrawn, winners: winners, tickets: tickets}, nil
}

// Finalize settles a raffle exactly once. Anyone may call it once the raffle
// is Finished, or Closed without any ticket sold.
func (e *Engine) Finalize(ctx context.Context, env Env, id uint64) (Settlement, error) {
	var out Settlement
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, id)
		if err != nil {
			return err
		}
		if len(r.Winners) > 0 {
			return ErrAlreadyFinalized
		}
		st := StateAt(env.Now, cfg, r)
		if st != StateFinished && !(st == StateClosed && r.NumberOfTickets == 0) {
			return &StateError{Op: "finalize", State: st}
		}

		d, err := determineWinners(tx, r)
		if err != nil {
			return err
		}
		s := Settlement{
			RaffleID:       r.ID,
			Outcome:        d.outcome,
			Winners:        d.winners,
			WinningTickets: d.tickets,
			TotalPaid:      Coin{Denom: r.TicketPrice.Denom},
			TreasuryCut:    Coin{Denom: r.TicketPrice.Denom},
			OwnerCut:       Coin{Denom: r.TicketPrice.Denom},
		}

		if r.Options.OneWinnerPerAsset {
			for i, a := range r.Assets {
				s.Transfers = append(s.Transfers, Transfer{To: d.winners[i], Asset: a})
			}
		} else {
			for _, a := range r.Assets {
				s.Transfers = append(s.Transfers, Transfer{To: d.winners[0], Asset: a})
			}
		}

		switch d.outcome {
		case OutcomeRefund:
			refunds, err := refundTransfers(tx, r)
			if err != nil {
				return err
			}
			s.Transfers = append(s.Transfers, refunds...)
		case OutcomeDrawn:
			if err := e.splitProceeds(ctx, cfg, r, &s); err != nil {
				return err
			}
		}

		r.Winners = d.winners
		if err := tx.PutRaffle(r); err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// splitProceeds divides the ticket revenue between the fee address and the
// raffle owner. The fee rate is reduced by the discounts the owner earns.
func (e *Engine) splitProceeds(ctx context.Context, cfg Config, r Raffle, s *Settlement) error {
	total, err := checkedCost(r.TicketPrice, r.NumberOfTickets)
	if err != nil {
		return err
	}
	report := EvaluateDiscounts(ctx, e.querier, r.Owner, cfg.FeeDiscounts)
	rate := cfg.RaffleFee.Mul(report.Multiplier).Clamp()
	treasury, err := rate.ApplyFloor(total.Amount)
	if err != nil {
		return fmt.Errorf("treasury cut: %w", err)
	}
	ownerCut, err := total.Amount.Sub(treasury)
	if err != nil {
		return fmt.Errorf("owner cut: %w", err)
	}

	s.Discount = report
	s.TotalPaid = total
	s.TreasuryCut = Coin{Denom: total.Denom, Amount: treasury}
	s.OwnerCut = Coin{Denom: total.Denom, Amount: ownerCut}
	s.Transfers = appendCoin(s.Transfers, cfg.FeeAddr, s.TreasuryCut)
	s.Transfers = appendCoin(s.Transfers, r.Owner, s.OwnerCut)
	return nil
}

func refundTransfers(tx Tx, r Raffle) ([]Transfer, error) {
	holdings, err := tx.Holdings(r.ID)
	if err != nil {
		return nil, err
	}
	var out []Transfer
	for _, h := range holdings {
		refund, err := checkedCost(r.TicketPrice, h.Count)
		if err != nil {
			return nil, err
		}
		out = appendCoin(out, h.Owner, refund)
	}
	return out, nil
}

// appendCoin adds a payout from escrow, skipping empty amounts.
func appendCoin(transfers []Transfer, to Identity, c Coin) []Transfer {
	if c.Amount.IsZero() {
		return transfers
	}
	return append(transfers, Transfer{To: to, Asset: CoinAsset(c)})
}
