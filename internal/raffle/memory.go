package raffle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var errReadOnly = errors.New("write in read-only transaction")

type ticketRun struct {
	first uint32
	count uint32
	owner Identity
}

type userKey struct {
	owner    Identity
	raffleID uint64
}

// MemoryStore provides an in-memory implementation of Store. Update holds
// the write lock for the whole transaction and undoes its writes on error.
type MemoryStore struct {
	mu          sync.RWMutex
	config      *Config
	raffles     map[uint64]Raffle
	runs        map[uint64][]ticketRun
	userTickets map[userKey]uint32
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		raffles:     make(map[uint64]Raffle),
		runs:        make(map[uint64][]ticketRun),
		userTickets: make(map[userKey]uint32),
	}
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{s: s, readOnly: true})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type memTx struct {
	s        *MemoryStore
	readOnly bool
	undo     []func()
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// Config operations

func (t *memTx) Config() (Config, error) {
	if t.s.config == nil {
		return Config{}, ErrConfigNotFound
	}
	return cloneConfig(*t.s.config), nil
}

func (t *memTx) PutConfig(cfg Config) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev := t.s.config
	t.undo = append(t.undo, func() { t.s.config = prev })
	c := cloneConfig(cfg)
	t.s.config = &c
	return nil
}

// Raffle operations

func (t *memTx) Raffle(id uint64) (Raffle, error) {
	r, ok := t.s.raffles[id]
	if !ok {
		return Raffle{}, fmt.Errorf("%w: %d", ErrRaffleNotFound, id)
	}
	return cloneRaffle(r), nil
}

func (t *memTx) PutRaffle(r Raffle) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev, existed := t.s.raffles[r.ID]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.raffles[r.ID] = prev
		} else {
			delete(t.s.raffles, r.ID)
		}
	})
	t.s.raffles[r.ID] = cloneRaffle(r)
	return nil
}

func (t *memTx) Raffles(startBefore *uint64, limit int) ([]Raffle, error) {
	ids := make([]uint64, 0, len(t.s.raffles))
	for id := range t.s.raffles {
		if startBefore != nil && id >= *startBefore {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]Raffle, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneRaffle(t.s.raffles[id]))
	}
	return out, nil
}

// Ticket operations

func (t *memTx) AddTickets(raffleID uint64, first uint32, owner Identity, count uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	runs := t.s.runs[raffleID]
	if n := len(runs); n > 0 && runs[n-1].first+runs[n-1].count != first {
		return fmt.Errorf("ticket index %d is not contiguous", first)
	}
	t.undo = append(t.undo, func() {
		if len(runs) == 0 {
			delete(t.s.runs, raffleID)
			return
		}
		t.s.runs[raffleID] = runs
	})
	next := make([]ticketRun, len(runs), len(runs)+1)
	copy(next, runs)
	t.s.runs[raffleID] = append(next, ticketRun{first: first, count: count, owner: owner})
	return nil
}

func (t *memTx) TicketOwner(raffleID uint64, index uint32) (Identity, error) {
	runs := t.s.runs[raffleID]
	i := sort.Search(len(runs), func(i int) bool { return runs[i].first+runs[i].count > index })
	if i == len(runs) || runs[i].first > index {
		return "", fmt.Errorf("ticket %d of raffle %d not found", index, raffleID)
	}
	return runs[i].owner, nil
}

func (t *memTx) Tickets(raffleID uint64, startAfter *uint32, limit int) ([]Identity, error) {
	var from uint32
	if startAfter != nil {
		if *startAfter == math.MaxUint32 {
			return nil, nil
		}
		from = *startAfter + 1
	}
	var out []Identity
	for _, run := range t.s.runs[raffleID] {
		end := run.first + run.count
		if end <= from {
			continue
		}
		idx := run.first
		if idx < from {
			idx = from
		}
		for ; idx < end; idx++ {
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
			out = append(out, run.owner)
		}
	}
	return out, nil
}

func (t *memTx) Holdings(raffleID uint64) ([]Holding, error) {
	counts := make(map[Identity]uint32)
	for _, run := range t.s.runs[raffleID] {
		counts[run.owner] += run.count
	}
	out := make([]Holding, 0, len(counts))
	for owner, c := range counts {
		out = append(out, Holding{Owner: owner, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

// Per-address counters

func (t *memTx) UserTicketCount(owner Identity, raffleID uint64) (uint32, error) {
	return t.s.userTickets[userKey{owner: owner, raffleID: raffleID}], nil
}

func (t *memTx) PutUserTicketCount(owner Identity, raffleID uint64, count uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := userKey{owner: owner, raffleID: raffleID}
	prev, existed := t.s.userTickets[key]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.userTickets[key] = prev
		} else {
			delete(t.s.userTickets, key)
		}
	})
	t.s.userTickets[key] = count
	return nil
}

func (t *memTx) UserRaffles(owner Identity, startBefore *uint64, limit int) ([]uint64, error) {
	var ids []uint64
	for key := range t.s.userTickets {
		if key.owner != owner {
			continue
		}
		if startBefore != nil && key.raffleID >= *startBefore {
			continue
		}
		ids = append(ids, key.raffleID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func cloneConfig(c Config) Config {
	out := c
	if c.LastRaffleID != nil {
		id := *c.LastRaffleID
		out.LastRaffleID = &id
	}
	out.MaxTicketsPerRaffle = copyU32(c.MaxTicketsPerRaffle)
	out.CreationCoins = append([]Coin(nil), c.CreationCoins...)
	out.FeeDiscounts = append([]FeeDiscount(nil), c.FeeDiscounts...)
	return out
}

func cloneRaffle(r Raffle) Raffle {
	out := r
	out.Assets = append([]Asset(nil), r.Assets...)
	out.Winners = append([]Identity(nil), r.Winners...)
	if r.Randomness != nil {
		seed := *r.Randomness
		out.Randomness = &seed
	}
	out.Options.MaxTicketNumber = copyU32(r.Options.MaxTicketNumber)
	out.Options.MaxTicketPerAddress = copyU32(r.Options.MaxTicketPerAddress)
	out.Options.MinTicketNumber = copyU32(r.Options.MinTicketNumber)
	out.Options.Whitelist = append([]Identity(nil), r.Options.Whitelist...)
	out.Options.Gating = append([]AdvantageCondition(nil), r.Options.Gating...)
	return out
}
