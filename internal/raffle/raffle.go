package raffle

import (
	"encoding/hex"
	"fmt"
)

// Seed is a 32-byte randomness value as delivered by the oracle.
type Seed [32]byte

// ParseSeed decodes a 64-character hex string.
func ParseSeed(s string) (Seed, error) {
	var seed Seed
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(seed) {
		return Seed{}, fmt.Errorf("%w: got %q", ErrInvalidRandomness, s)
	}
	copy(seed[:], raw)
	return seed, nil
}

func (s Seed) String() string { return hex.EncodeToString(s[:]) }

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Raffle is the aggregate root. Tickets live in the ledger tables of the
// Store; NumberOfTickets always equals the number of assigned indices.
type Raffle struct {
	ID              uint64        `json:"id"`
	Owner           Identity      `json:"owner"`
	Assets          []Asset       `json:"assets"`
	TicketPrice     Coin          `json:"ticket_price"`
	NumberOfTickets uint32        `json:"number_of_tickets"`
	Randomness      *Seed         `json:"randomness,omitempty"`
	Winners         []Identity    `json:"winners,omitempty"`
	IsCancelled     bool          `json:"is_cancelled"`
	Options         RaffleOptions `json:"options"`
}

// winnerCount is the number of distinct tickets drawn on settlement.
func (r Raffle) winnerCount() uint32 {
	if r.Options.OneWinnerPerAsset {
		return uint32(len(r.Assets))
	}
	return 1
}
