package raffle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Env carries the execution context of a single operation.
type Env struct {
	Now      time.Time
	Sender   Identity
	Funds    []Coin
	Contract Identity
}

// Engine implements the raffle lifecycle on top of a Store.
type Engine struct {
	store   Store
	querier AccountQuerier
}

// NewEngine constructs an engine. querier may be nil, in which case every
// gating and discount condition is considered unmet.
func NewEngine(store Store, querier AccountQuerier) *Engine {
	return &Engine{store: store, querier: querier}
}

// Instantiate stores the initial configuration.
func (e *Engine) Instantiate(ctx context.Context, env Env, msg InstantiateMsg) (Config, error) {
	var cfg Config
	err := e.store.Update(ctx, func(tx Tx) error {
		if _, err := tx.Config(); err == nil {
			return ErrAlreadyInstantiated
		} else if !errors.Is(err, ErrConfigNotFound) {
			return err
		}
		var err error
		cfg, err = NewConfig(env.Sender, msg)
		if err != nil {
			return err
		}
		return tx.PutConfig(cfg)
	})
	return cfg, err
}

// UpdateConfig changes the configuration. Only the config owner may call it.
func (e *Engine) UpdateConfig(ctx context.Context, env Env, msg UpdateConfigMsg) (Config, error) {
	var out Config
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if env.Sender != cfg.Owner {
			return ErrUnauthorized
		}
		out, err = cfg.apply(msg)
		if err != nil {
			return err
		}
		return tx.PutConfig(out)
	})
	return out, err
}

// ToggleLock sets the owner lock.
func (e *Engine) ToggleLock(ctx context.Context, env Env, lock bool) (Locks, error) {
	return e.setLock(ctx, func(cfg *Config) error {
		if env.Sender != cfg.Owner {
			return ErrUnauthorized
		}
		cfg.Locks.Lock = lock
		return nil
	})
}

// SudoToggleLock sets the governance lock. The caller is responsible for
// authorizing governance before invoking it.
func (e *Engine) SudoToggleLock(ctx context.Context, lock bool) (Locks, error) {
	return e.setLock(ctx, func(cfg *Config) error {
		cfg.Locks.SudoLock = lock
		return nil
	})
}

func (e *Engine) setLock(ctx context.Context, fn func(*Config) error) (Locks, error) {
	var locks Locks
	err := e.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}
		locks = cfg.Locks
		return tx.PutConfig(cfg)
	})
	return locks, err
}

// load reads the config and a raffle in one step.
func load(tx Tx, id uint64) (Config, Raffle, error) {
	cfg, err := tx.Config()
	if err != nil {
		return Config{}, Raffle{}, err
	}
	r, err := tx.Raffle(id)
	if err != nil {
		return Config{}, Raffle{}, err
	}
	return cfg, r, nil
}

func requireState(op string, got State, allowed ...State) error {
	for _, s := range allowed {
		if got == s {
			return nil
		}
	}
	return &StateError{Op: op, State: got}
}

// checkedCost returns price * count or ErrOverflow.
func checkedCost(price Coin, count uint32) (Coin, error) {
	amt, err := price.Amount.MulUint64(uint64(count))
	if err != nil {
		return Coin{}, fmt.Errorf("ticket cost: %w", err)
	}
	return Coin{Denom: price.Denom, Amount: amt}, nil
}
