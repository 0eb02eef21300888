package raffle

import "time"

// RaffleOptions are the owner-chosen parameters of a raffle after
// normalization against the global configuration.
type RaffleOptions struct {
	Start               time.Time            `json:"start"`
	Duration            time.Duration        `json:"duration"`
	Comment             string               `json:"comment,omitempty"`
	MaxTicketNumber     *uint32              `json:"max_ticket_number,omitempty"`
	MaxTicketPerAddress *uint32              `json:"max_ticket_per_address,omitempty"`
	MinTicketNumber     *uint32              `json:"min_ticket_number,omitempty"`
	OneWinnerPerAsset   bool                 `json:"one_winner_per_asset"`
	Whitelist           []Identity           `json:"whitelist,omitempty"`
	Gating              []AdvantageCondition `json:"gating,omitempty"`
	Preview             uint32               `json:"preview"`
}

// End is the instant ticket sales stop.
func (o RaffleOptions) End() time.Time { return o.Start.Add(o.Duration) }

// OptionsMsg is the owner's request; nil fields take defaults on creation
// and keep their current value on modification.
type OptionsMsg struct {
	Start               *time.Time
	Duration            *time.Duration
	Comment             *string
	MaxTicketNumber     *uint32
	MaxTicketPerAddress *uint32
	MinTicketNumber     *uint32
	OneWinnerPerAsset   bool
	Whitelist           []Identity
	Gating              []AdvantageCondition
	Preview             *uint32
}

func newOptions(now time.Time, cfg Config, assetCount int, msg OptionsMsg) (RaffleOptions, error) {
	start := now
	if msg.Start != nil && msg.Start.After(now) {
		start = *msg.Start
	}
	duration := cfg.MinimumRaffleDuration
	if msg.Duration != nil {
		duration = maxDuration(*msg.Duration, cfg.MinimumRaffleDuration)
	}
	var comment string
	if msg.Comment != nil {
		comment = *msg.Comment
	}
	if len(comment) > MaxCommentBytes {
		return RaffleOptions{}, ErrCommentTooLong
	}
	gating, err := normalizeConditions(msg.Gating)
	if err != nil {
		return RaffleOptions{}, err
	}
	var preview uint32
	if msg.Preview != nil {
		preview = *msg.Preview
	}

	return RaffleOptions{
		Start:               start,
		Duration:            duration,
		Comment:             comment,
		MaxTicketNumber:     tighterCap(msg.MaxTicketNumber, cfg.MaxTicketsPerRaffle),
		MaxTicketPerAddress: copyU32(msg.MaxTicketPerAddress),
		MinTicketNumber:     minTickets(msg.MinTicketNumber, msg.OneWinnerPerAsset, assetCount),
		OneWinnerPerAsset:   msg.OneWinnerPerAsset,
		Whitelist:           msg.Whitelist,
		Gating:              gating,
		Preview:             clampPreview(preview, assetCount),
	}, nil
}

// merge applies a modification. The start can only move later.
func (o RaffleOptions) merge(cfg Config, assetCount int, msg OptionsMsg) (RaffleOptions, error) {
	next := o
	if msg.Start != nil && msg.Start.After(o.Start) {
		next.Start = *msg.Start
	}
	if msg.Duration != nil {
		next.Duration = *msg.Duration
	}
	next.Duration = maxDuration(next.Duration, cfg.MinimumRaffleDuration)
	if msg.Comment != nil {
		if len(*msg.Comment) > MaxCommentBytes {
			return RaffleOptions{}, ErrCommentTooLong
		}
		next.Comment = *msg.Comment
	}
	if msg.MaxTicketNumber != nil {
		next.MaxTicketNumber = tighterCap(msg.MaxTicketNumber, cfg.MaxTicketsPerRaffle)
	}
	if msg.MaxTicketPerAddress != nil {
		next.MaxTicketPerAddress = copyU32(msg.MaxTicketPerAddress)
	}
	next.OneWinnerPerAsset = msg.OneWinnerPerAsset
	requested := o.MinTicketNumber
	if msg.MinTicketNumber != nil {
		requested = msg.MinTicketNumber
	}
	next.MinTicketNumber = minTickets(requested, msg.OneWinnerPerAsset, assetCount)
	if msg.Whitelist != nil {
		next.Whitelist = msg.Whitelist
	}
	if msg.Gating != nil {
		gating, err := normalizeConditions(msg.Gating)
		if err != nil {
			return RaffleOptions{}, err
		}
		next.Gating = gating
	}
	if msg.Preview != nil {
		next.Preview = clampPreview(*msg.Preview, assetCount)
	}
	return next, nil
}

// tighterCap returns the smaller of the local and global caps.
func tighterCap(local, global *uint32) *uint32 {
	switch {
	case local == nil && global == nil:
		return nil
	case local == nil:
		return copyU32(global)
	case global == nil:
		return copyU32(local)
	case *local < *global:
		return copyU32(local)
	default:
		return copyU32(global)
	}
}

// minTickets forces at least one ticket per asset when each asset gets its
// own winner, since a ticket cannot win twice.
func minTickets(requested *uint32, oneWinnerPerAsset bool, assetCount int) *uint32 {
	if !oneWinnerPerAsset {
		return copyU32(requested)
	}
	floor := uint32(assetCount)
	if requested != nil && *requested > floor {
		floor = *requested
	}
	return &floor
}

func clampPreview(preview uint32, assetCount int) uint32 {
	if int(preview) >= assetCount {
		return 0
	}
	return preview
}

func copyU32(v *uint32) *uint32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
