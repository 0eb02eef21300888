package raffle

import (
	"fmt"
	"strings"
	"time"
)

// Default configuration values.
const (
	MinimumRaffleDuration      = time.Second
	DefaultRandomnessTimeout   = 6 * time.Second
	DefaultMaxTicketsPerRaffle = uint32(100000)
	DefaultCreationFee         = uint64(100)
	NativeDenom                = "ustars"
	MaxCommentBytes            = 20000
)

// Locks gate raffle creation and ticket purchase. Lock is owned by the
// config owner, SudoLock by governance; either one blocks.
type Locks struct {
	Lock     bool `json:"lock"`
	SudoLock bool `json:"sudo_lock"`
}

func (l Locks) Locked() bool { return l.Lock || l.SudoLock }

// Config holds the process-wide raffle settings.
type Config struct {
	Name                  string        `json:"name"`
	Owner                 Identity      `json:"owner"`
	FeeAddr               Identity      `json:"fee_addr"`
	LastRaffleID          *uint64       `json:"last_raffle_id,omitempty"`
	MinimumRaffleDuration time.Duration `json:"minimum_raffle_duration"`
	RandomnessTimeout     time.Duration `json:"randomness_timeout"`
	CreationCoins         []Coin        `json:"creation_coins"`
	RaffleFee             Rate          `json:"raffle_fee"`
	MaxTicketsPerRaffle   *uint32       `json:"max_tickets_per_raffle,omitempty"`
	FeeDiscounts          []FeeDiscount `json:"fee_discounts"`
	Locks                 Locks         `json:"locks"`
	Oracle                Identity      `json:"oracle"`
	OracleFee             Coin          `json:"oracle_fee"`
}

// InstantiateMsg seeds the configuration. Nil fields take defaults.
type InstantiateMsg struct {
	Name                  string
	Owner                 *Identity
	FeeAddr               *Identity
	MinimumRaffleDuration *time.Duration
	RandomnessTimeout     *time.Duration
	CreationCoins         []Coin
	RaffleFee             Rate
	MaxTicketsPerRaffle   *uint32
	FeeDiscounts          []FeeDiscount
	Oracle                Identity
	OracleFee             Coin
}

// UpdateConfigMsg changes the owner-controlled fields. Nil fields are kept.
type UpdateConfigMsg struct {
	Name                  *string
	Owner                 *Identity
	FeeAddr               *Identity
	MinimumRaffleDuration *time.Duration
	RandomnessTimeout     *time.Duration
	CreationCoins         []Coin
	RaffleFee             *Rate
	MaxTicketsPerRaffle   *uint32
	FeeDiscounts          []FeeDiscount
	Oracle                *Identity
	OracleFee             *Coin
}

func validName(name string) bool {
	return len(name) >= 3 && len(name) <= 50
}

// NewConfig builds the initial configuration on behalf of sender.
func NewConfig(sender Identity, msg InstantiateMsg) (Config, error) {
	if !validName(msg.Name) {
		return Config{}, ErrInvalidName
	}
	if err := msg.RaffleFee.Validate(); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(string(msg.Oracle)) == "" {
		return Config{}, fmt.Errorf("%w: oracle identity required", ErrInvalidIdentity)
	}
	discounts, err := normalizeDiscounts(msg.FeeDiscounts)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Name:                  msg.Name,
		Owner:                 sender,
		FeeAddr:               sender,
		MinimumRaffleDuration: MinimumRaffleDuration,
		RandomnessTimeout:     DefaultRandomnessTimeout,
		CreationCoins:         msg.CreationCoins,
		RaffleFee:             msg.RaffleFee,
		FeeDiscounts:          discounts,
		Oracle:                msg.Oracle,
		OracleFee:             msg.OracleFee,
	}
	if msg.Owner != nil {
		cfg.Owner = *msg.Owner
	}
	if msg.FeeAddr != nil {
		cfg.FeeAddr = *msg.FeeAddr
	}
	if msg.MinimumRaffleDuration != nil {
		cfg.MinimumRaffleDuration = maxDuration(*msg.MinimumRaffleDuration, MinimumRaffleDuration)
	}
	if msg.RandomnessTimeout != nil {
		cfg.RandomnessTimeout = *msg.RandomnessTimeout
	}
	if cfg.CreationCoins == nil {
		cfg.CreationCoins = []Coin{NewCoin(DefaultCreationFee, NativeDenom)}
	}
	maxTickets := DefaultMaxTicketsPerRaffle
	if msg.MaxTicketsPerRaffle != nil {
		maxTickets = *msg.MaxTicketsPerRaffle
	}
	cfg.MaxTicketsPerRaffle = &maxTickets
	return cfg, nil
}

// apply returns the configuration with msg merged in. An invalid name is
// ignored rather than rejected.
func (c Config) apply(msg UpdateConfigMsg) (Config, error) {
	next := c
	if msg.Name != nil && validName(*msg.Name) {
		next.Name = *msg.Name
	}
	if msg.Owner != nil {
		next.Owner = *msg.Owner
	}
	if msg.FeeAddr != nil {
		next.FeeAddr = *msg.FeeAddr
	}
	if msg.MinimumRaffleDuration != nil {
		next.MinimumRaffleDuration = maxDuration(*msg.MinimumRaffleDuration, MinimumRaffleDuration)
	}
	if msg.RandomnessTimeout != nil {
		next.RandomnessTimeout = *msg.RandomnessTimeout
	}
	if msg.RaffleFee != nil {
		if err := msg.RaffleFee.Validate(); err != nil {
			return Config{}, err
		}
		next.RaffleFee = *msg.RaffleFee
	}
	if msg.CreationCoins != nil {
		next.CreationCoins = msg.CreationCoins
	}
	if msg.MaxTicketsPerRaffle != nil {
		v := *msg.MaxTicketsPerRaffle
		next.MaxTicketsPerRaffle = &v
	}
	if msg.FeeDiscounts != nil {
		discounts, err := normalizeDiscounts(msg.FeeDiscounts)
		if err != nil {
			return Config{}, err
		}
		next.FeeDiscounts = discounts
	}
	if msg.Oracle != nil {
		if strings.TrimSpace(string(*msg.Oracle)) == "" {
			return Config{}, fmt.Errorf("%w: oracle identity required", ErrInvalidIdentity)
		}
		next.Oracle = *msg.Oracle
	}
	if msg.OracleFee != nil {
		next.OracleFee = *msg.OracleFee
	}
	return next, nil
}

func normalizeDiscounts(in []FeeDiscount) ([]FeeDiscount, error) {
	out := make([]FeeDiscount, len(in))
	for i, d := range in {
		if err := d.Rate.Validate(); err != nil {
			return nil, err
		}
		cond, err := d.Condition.normalize()
		if err != nil {
			return nil, err
		}
		out[i] = FeeDiscount{Rate: d.Rate, Condition: cond}
	}
	return out, nil
}

// nextRaffleID allocates an id; the first raffle gets 0.
func (c *Config) nextRaffleID() uint64 {
	var id uint64
	if c.LastRaffleID != nil {
		id = *c.LastRaffleID + 1
	}
	c.LastRaffleID = &id
	return id
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
