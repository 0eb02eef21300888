package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// Durations travel as whole seconds.
const maxSeconds = uint64(math.MaxInt64 / int64(time.Second))

func seconds(field string, v *uint64) (*time.Duration, error) {
	if v == nil {
		return nil, nil
	}
	if *v > maxSeconds {
		return nil, fmt.Errorf("%s out of range", field)
	}
	d := time.Duration(*v) * time.Second
	return &d, nil
}

type optionsRequest struct {
	Start               *time.Time                  `json:"start,omitempty"`
	DurationSeconds     *uint64                     `json:"duration_seconds,omitempty"`
	Comment             *string                     `json:"comment,omitempty"`
	MaxTicketNumber     *uint32                     `json:"max_ticket_number,omitempty"`
	MaxTicketPerAddress *uint32                     `json:"max_ticket_per_address,omitempty"`
	MinTicketNumber     *uint32                     `json:"min_ticket_number,omitempty"`
	OneWinnerPerAsset   bool                        `json:"one_winner_per_asset"`
	Whitelist           []string                    `json:"whitelist,omitempty"`
	Gating              []raffle.AdvantageCondition `json:"gating,omitempty"`
	Preview             *uint32                     `json:"preview,omitempty"`
}

func (h *handler) options(o optionsRequest) (raffle.OptionsMsg, error) {
	d, err := seconds("duration_seconds", o.DurationSeconds)
	if err != nil {
		return raffle.OptionsMsg{}, err
	}
	var whitelist []raffle.Identity
	if o.Whitelist != nil {
		whitelist = make([]raffle.Identity, 0, len(o.Whitelist))
		for _, w := range o.Whitelist {
			id, err := h.identity(w)
			if err != nil {
				return raffle.OptionsMsg{}, fmt.Errorf("whitelist: %w", err)
			}
			whitelist = append(whitelist, id)
		}
	}
	return raffle.OptionsMsg{
		Start:               o.Start,
		Duration:            d,
		Comment:             o.Comment,
		MaxTicketNumber:     o.MaxTicketNumber,
		MaxTicketPerAddress: o.MaxTicketPerAddress,
		MinTicketNumber:     o.MinTicketNumber,
		OneWinnerPerAsset:   o.OneWinnerPerAsset,
		Whitelist:           whitelist,
		Gating:              o.Gating,
		Preview:             o.Preview,
	}, nil
}

// Funds lists the coins the caller attached to the call, as relayed by the
// chain gateway.
type createRequest struct {
	Owner       *string        `json:"owner,omitempty"`
	Assets      []raffle.Asset `json:"assets"`
	TicketPrice raffle.Coin    `json:"ticket_price"`
	Options     optionsRequest `json:"options"`
	Funds       []raffle.Coin  `json:"funds,omitempty"`
}

type modifyRequest struct {
	Options     optionsRequest `json:"options"`
	TicketPrice *raffle.Coin   `json:"ticket_price,omitempty"`
}

type buyRequest struct {
	Count      uint32        `json:"count"`
	Paid       raffle.Coin   `json:"paid"`
	OnBehalfOf *string       `json:"on_behalf_of,omitempty"`
	Funds      []raffle.Coin `json:"funds,omitempty"`
}

type randomnessRequest struct {
	Seed raffle.Seed `json:"seed"`
}

type lockRequest struct {
	Lock bool `json:"lock"`
}

type updateConfigRequest struct {
	Name                         *string              `json:"name,omitempty"`
	Owner                        *string              `json:"owner,omitempty"`
	FeeAddr                      *string              `json:"fee_addr,omitempty"`
	MinimumRaffleDurationSeconds *uint64              `json:"minimum_raffle_duration_seconds,omitempty"`
	RandomnessTimeoutSeconds     *uint64              `json:"randomness_timeout_seconds,omitempty"`
	CreationCoins                []raffle.Coin        `json:"creation_coins,omitempty"`
	RaffleFee                    *raffle.Rate         `json:"raffle_fee,omitempty"`
	MaxTicketsPerRaffle          *uint32              `json:"max_tickets_per_raffle,omitempty"`
	FeeDiscounts                 []raffle.FeeDiscount `json:"fee_discounts,omitempty"`
	Oracle                       *string              `json:"oracle,omitempty"`
	OracleFee                    *raffle.Coin         `json:"oracle_fee,omitempty"`
}

func (h *handler) updateConfigMsg(req updateConfigRequest) (raffle.UpdateConfigMsg, error) {
	msg := raffle.UpdateConfigMsg{
		Name:                req.Name,
		CreationCoins:       req.CreationCoins,
		RaffleFee:           req.RaffleFee,
		MaxTicketsPerRaffle: req.MaxTicketsPerRaffle,
		FeeDiscounts:        req.FeeDiscounts,
		OracleFee:           req.OracleFee,
	}
	var err error
	if msg.Owner, err = h.optionalIdentity(req.Owner); err != nil {
		return msg, fmt.Errorf("owner: %w", err)
	}
	if msg.FeeAddr, err = h.optionalIdentity(req.FeeAddr); err != nil {
		return msg, fmt.Errorf("fee_addr: %w", err)
	}
	if msg.Oracle, err = h.optionalIdentity(req.Oracle); err != nil {
		return msg, fmt.Errorf("oracle: %w", err)
	}
	if msg.MinimumRaffleDuration, err = seconds("minimum_raffle_duration_seconds", req.MinimumRaffleDurationSeconds); err != nil {
		return msg, err
	}
	if msg.RandomnessTimeout, err = seconds("randomness_timeout_seconds", req.RandomnessTimeoutSeconds); err != nil {
		return msg, err
	}
	return msg, nil
}

func (h *handler) identity(s string) (raffle.Identity, error) {
	id, err := h.addresses.Normalize(s)
	if err != nil {
		return "", err
	}
	return raffle.Identity(id), nil
}

func (h *handler) optionalIdentity(s *string) (*raffle.Identity, error) {
	if s == nil {
		return nil, nil
	}
	id, err := h.identity(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func raffleID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid raffle id")
	}
	return id, nil
}

func optionalUint32(r *http.Request, key string) (*uint32, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	out := uint32(v)
	return &out, nil
}

func optionalUint64(r *http.Request, key string) (*uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &v, nil
}

// filters reads the listing filters. state may repeat or hold a comma list.
func (h *handler) filters(r *http.Request) (raffle.RaffleFilters, error) {
	q := r.URL.Query()
	var f raffle.RaffleFilters
	for _, raw := range q["state"] {
		for _, name := range strings.Split(raw, ",") {
			st := raffle.ParseState(strings.ToLower(strings.TrimSpace(name)))
			if st == raffle.StateUnknown {
				return f, fmt.Errorf("unknown state %q", name)
			}
			f.States = append(f.States, st)
		}
	}
	var err error
	if f.Owner, err = h.queryIdentity(r, "owner"); err != nil {
		return f, err
	}
	if f.TicketDepositor, err = h.queryIdentity(r, "depositor"); err != nil {
		return f, err
	}
	if f.GatedRightsBuyer, err = h.queryIdentity(r, "gated_buyer"); err != nil {
		return f, err
	}
	f.ContainsToken = strings.TrimSpace(q.Get("contains_token"))
	return f, nil
}

func (h *handler) queryIdentity(r *http.Request, key string) (*raffle.Identity, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := h.identity(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &id, nil
}
