package raffle

import (
	"context"
	"fmt"
	"math"
)

// BuyMsg purchases Count tickets paying Paid. Tickets are assigned to
// OnBehalfOf when set, otherwise to the sender.
type BuyMsg struct {
	RaffleID   uint64
	Count      uint32
	Paid       Coin
	OnBehalfOf *Identity
}

// Purchase describes the ticket range assigned by BuyTickets.
type Purchase struct {
	RaffleID uint64   `json:"raffle_id"`
	Buyer    Identity `json:"buyer"`
	First    uint32   `json:"first_index"`
	Count    uint32   `json:"count"`
	Total    uint32   `json:"number_of_tickets"`
	Cost     Coin     `json:"cost"`
	SoldOut  bool     `json:"sold_out"`
}

// BuyTickets sells tickets for an open raffle. The range [n, n+count) is
// assigned to the buyer and both ticket counters move together.
func (e *Engine) BuyTickets(ctx context.Context, env Env, msg BuyMsg) (Purchase, error) {
	var out Purchase
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, msg.RaffleID)
		if err != nil {
			return err
		}
		if cfg.Locks.Locked() {
			return ErrContractLocked
		}
		if msg.Count == 0 {
			return ErrInvalidTicketCount
		}
		cost, err := checkedCost(r.TicketPrice, msg.Count)
		if err != nil {
			return err
		}
		if err := checkPayment(cost, msg.Paid, env.Funds); err != nil {
			return err
		}
		if err := requireState("buy tickets", StateAt(env.Now, cfg, r), StateStarted); err != nil {
			return err
		}

		buyer := env.Sender
		if msg.OnBehalfOf != nil {
			buyer = *msg.OnBehalfOf
		}
		if !whitelisted(r.Options.Whitelist, buyer) {
			return fmt.Errorf("%w: %s", ErrNotWhitelisted, buyer)
		}
		if err := Gate(ctx, e.querier, buyer, r.Options.Gating); err != nil {
			return err
		}

		held, err := tx.UserTicketCount(buyer, r.ID)
		if err != nil {
			return err
		}
		owned := uint64(held) + uint64(msg.Count)
		if limit := r.Options.MaxTicketPerAddress; limit != nil && owned > uint64(*limit) {
			return ErrTooManyTicketsForUser
		}
		total := uint64(r.NumberOfTickets) + uint64(msg.Count)
		limit := tighterCap(r.Options.MaxTicketNumber, cfg.MaxTicketsPerRaffle)
		if limit != nil && total > uint64(*limit) {
			return ErrTooManyTickets
		}
		if total > math.MaxUint32 {
			return ErrOverflow
		}

		first := r.NumberOfTickets
		if err := tx.AddTickets(r.ID, first, buyer, msg.Count); err != nil {
			return err
		}
		if err := tx.PutUserTicketCount(buyer, r.ID, uint32(owned)); err != nil {
			return err
		}
		r.NumberOfTickets = uint32(total)
		soldOut := limit != nil && total == uint64(*limit)
		if soldOut {
			r.Options.Duration = env.Now.Sub(r.Options.Start)
		}
		if err := tx.PutRaffle(r); err != nil {
			return err
		}

		out = Purchase{
			RaffleID: r.ID,
			Buyer:    buyer,
			First:    first,
			Count:    msg.Count,
			Total:    r.NumberOfTickets,
			Cost:     cost,
			SoldOut:  soldOut,
		}
		return nil
	})
	return out, err
}

// checkPayment requires the declared payment to equal the cost and the sent
// funds to be exactly that payment. Free tickets are bought with no funds.
func checkPayment(cost, paid Coin, funds []Coin) error {
	if cost.Amount.IsZero() {
		if len(funds) != 0 {
			return fmt.Errorf("%w: tickets are free", ErrAssetMismatch)
		}
		return nil
	}
	if !paid.Equal(cost) {
		return fmt.Errorf("%w: want %s, declared %s", ErrPaymentMismatch, cost, paid)
	}
	if len(funds) != 1 || !funds[0].Equal(paid) {
		return ErrAssetMismatch
	}
	return nil
}
