package raffle

import "context"

// Store defines the persistence interface for raffle data. Every engine
// operation runs inside exactly one View or Update call; an Update whose
// function returns an error leaves no trace.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}

// Holding is the number of tickets an address holds in one raffle.
type Holding struct {
	Owner Identity `json:"owner"`
	Count uint32   `json:"count"`
}

// Tx is the transactional view handed to engine operations.
type Tx interface {
	// Config operations
	Config() (Config, error)
	PutConfig(cfg Config) error

	// Raffle operations
	Raffle(id uint64) (Raffle, error)
	PutRaffle(r Raffle) error
	// Raffles returns up to limit raffles in descending id order, starting
	// below startBefore when it is set.
	Raffles(startBefore *uint64, limit int) ([]Raffle, error)

	// Ticket operations
	AddTickets(raffleID uint64, first uint32, owner Identity, count uint32) error
	TicketOwner(raffleID uint64, index uint32) (Identity, error)
	// Tickets lists owners by ascending index, starting after startAfter.
	Tickets(raffleID uint64, startAfter *uint32, limit int) ([]Identity, error)
	// Holdings lists per-address counts of a raffle ordered by owner.
	Holdings(raffleID uint64) ([]Holding, error)

	// Per-address counters
	UserTicketCount(owner Identity, raffleID uint64) (uint32, error)
	PutUserTicketCount(owner Identity, raffleID uint64, count uint32) error
	// UserRaffles lists raffle ids owner holds tickets in, descending.
	UserRaffles(owner Identity, startBefore *uint64, limit int) ([]uint64, error)
}
