package raffle

import (
	"context"
	"fmt"
	"time"
)

// RandomnessRequest asks the oracle for one seed, to be delivered no earlier
// than After.
type RandomnessRequest struct {
	RaffleID uint64    `json:"raffle_id"`
	JobID    string    `json:"job_id"`
	After    time.Time `json:"after"`
	Fee      Coin      `json:"fee"`
}

func newRandomnessRequest(cfg Config, r Raffle) RandomnessRequest {
	return RandomnessRequest{
		RaffleID: r.ID,
		JobID:    fmt.Sprintf("raffle-%d", r.ID),
		After:    r.Options.End().Add(cfg.RandomnessTimeout),
		Fee:      cfg.OracleFee,
	}
}

// RequestRandomness builds the oracle request for a raffle. Anyone may ask;
// it fails once the raffle is settled, randomness is stored or the raffle is
// cancelled.
func (e *Engine) RequestRandomness(ctx context.Context, env Env, id uint64) (RandomnessRequest, error) {
	var req RandomnessRequest
	err := e.store.View(ctx, func(tx Tx) error {
		cfg, r, err := load(tx, id)
		if err != nil {
			return err
		}
		if len(r.Winners) > 0 {
			return ErrAlreadyFinalized
		}
		if r.Randomness != nil {
			return ErrRandomnessAlreadyProvided
		}
		if st := StateAt(env.Now, cfg, r); st == StateCancelled {
			return &StateError{Op: "request randomness", State: st}
		}
		req = newRandomnessRequest(cfg, r)
		return nil
	})
	return req, err
}

// ReceiveRandomness stores the oracle seed. Only the configured oracle may
// deliver it, only once, and only after sales closed.
func (e *Engine) ReceiveRandomness(ctx context.Context, env Env, id uint64, seed Seed) (Raffle, error) {
	var out Raffle
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if env.Sender != cfg.Oracle {
			return ErrNotOracle
		}
		r, err := tx.Raffle(id)
		if err != nil {
			return err
		}
		if len(r.Winners) > 0 {
			return ErrAlreadyFinalized
		}
		if r.Randomness != nil {
			return ErrRandomnessAlreadyProvided
		}
		if err := requireState("receive randomness", StateAt(env.Now, cfg, r), StateClosed); err != nil {
			return err
		}
		s := seed
		r.Randomness = &s
		out = r
		return tx.PutRaffle(r)
	})
	return out, err
}
