// Package raffles runs the raffle engine as a service: it supplies the clock
// and escrow identity, dispatches randomness requests and transfers, and
// records metrics.
package raffles

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/raffle_layer/internal/app/metrics"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

// RandomnessRequester forwards randomness requests to the oracle.
type RandomnessRequester interface {
	RequestRandomness(ctx context.Context, req raffle.RandomnessRequest) error
}

// Service coordinates raffle operations.
type Service struct {
	engine   *raffle.Engine
	contract raffle.Identity
	log      *logger.Logger
	now      func() time.Time
	vrf      RandomnessRequester
	executor TransferExecutor
}

// New creates a raffle service. contract is the escrow identity holding
// deposited assets.
func New(engine *raffle.Engine, contract raffle.Identity, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("raffles")
	}
	return &Service{
		engine:   engine,
		contract: contract,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		executor: NewLogExecutor(log),
	}
}

// WithVRF sets the oracle client used after creation and by the keeper.
func (s *Service) WithVRF(vrf RandomnessRequester) {
	s.vrf = vrf
}

// WithExecutor replaces the default logging executor.
func (s *Service) WithExecutor(executor TransferExecutor) {
	s.executor = executor
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) env(sender raffle.Identity, funds []raffle.Coin) raffle.Env {
	return raffle.Env{Now: s.now(), Sender: sender, Funds: funds, Contract: s.contract}
}

func (s *Service) record(op string, err error) {
	if err == nil {
		metrics.RecordOperation(op, "")
		return
	}
	metrics.RecordOperation(op, raffle.KindOf(err).String())
}

func (s *Service) dispatch(ctx context.Context, op string, raffleID uint64, transfers []raffle.Transfer) {
	if len(transfers) == 0 {
		return
	}
	for _, t := range transfers {
		metrics.RecordTransfer(string(t.Asset.Kind))
	}
	if err := s.executor.Execute(ctx, op, raffleID, transfers); err != nil {
		s.log.WithError(err).
			WithField("raffle_id", raffleID).
			WithField("operation", op).
			Error("transfer execution failed")
	}
}

// Instantiate seeds the configuration. It fails once a configuration exists.
func (s *Service) Instantiate(ctx context.Context, sender raffle.Identity, msg raffle.InstantiateMsg) (raffle.Config, error) {
	cfg, err := s.engine.Instantiate(ctx, s.env(sender, nil), msg)
	s.record("instantiate", err)
	if err != nil {
		return raffle.Config{}, err
	}
	s.log.WithField("owner", cfg.Owner).WithField("oracle", cfg.Oracle).Info("raffle configuration instantiated")
	return cfg, nil
}

// EnsureInstantiated instantiates unless a configuration is already stored.
func (s *Service) EnsureInstantiated(ctx context.Context, sender raffle.Identity, msg raffle.InstantiateMsg) (raffle.Config, error) {
	cfg, err := s.engine.Config(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, raffle.ErrConfigNotFound) {
		return raffle.Config{}, err
	}
	return s.Instantiate(ctx, sender, msg)
}

func (s *Service) UpdateConfig(ctx context.Context, sender raffle.Identity, msg raffle.UpdateConfigMsg) (raffle.Config, error) {
	cfg, err := s.engine.UpdateConfig(ctx, s.env(sender, nil), msg)
	s.record("update_config", err)
	if err != nil {
		return raffle.Config{}, err
	}
	s.log.WithField("sender", sender).Info("raffle configuration updated")
	return cfg, nil
}

func (s *Service) ToggleLock(ctx context.Context, sender raffle.Identity, lock bool) (raffle.Locks, error) {
	locks, err := s.engine.ToggleLock(ctx, s.env(sender, nil), lock)
	s.record("toggle_lock", err)
	if err == nil {
		s.log.WithField("lock", lock).Info("owner lock toggled")
	}
	return locks, err
}

// SudoToggleLock is the governance lock. Callers must have checked the
// governance role.
func (s *Service) SudoToggleLock(ctx context.Context, lock bool) (raffle.Locks, error) {
	locks, err := s.engine.SudoToggleLock(ctx, lock)
	s.record("sudo_toggle_lock", err)
	if err == nil {
		s.log.WithField("sudo_lock", lock).Warn("governance lock toggled")
	}
	return locks, err
}

// CreateRaffle creates a raffle, executes the fee and escrow transfers and
// forwards the randomness request to the oracle. A failed oracle call is
// logged; the keeper retries it once the raffle closes.
func (s *Service) CreateRaffle(ctx context.Context, sender raffle.Identity, funds []raffle.Coin, msg raffle.CreateMsg) (raffle.Created, error) {
	created, err := s.engine.CreateRaffle(ctx, s.env(sender, funds), msg)
	s.record("create_raffle", err)
	if err != nil {
		return raffle.Created{}, err
	}

	id := created.Raffle.ID
	s.log.WithFields(logrus.Fields{
		"raffle_id": id,
		"owner":     created.Raffle.Owner,
		"assets":    len(created.Raffle.Assets),
		"end":       created.Raffle.Options.End(),
	}).Info("raffle created")
	s.dispatch(ctx, "create_raffle", id, created.Transfers)
	s.forward(ctx, created.Randomness)
	return created, nil
}

func (s *Service) forward(ctx context.Context, req raffle.RandomnessRequest) bool {
	if s.vrf == nil {
		return false
	}
	if err := s.vrf.RequestRandomness(ctx, req); err != nil {
		s.log.WithError(err).WithField("raffle_id", req.RaffleID).Warn("randomness request failed")
		return false
	}
	s.log.WithField("raffle_id", req.RaffleID).WithField("job_id", req.JobID).Debug("randomness requested")
	return true
}

func (s *Service) ModifyRaffle(ctx context.Context, sender raffle.Identity, msg raffle.ModifyMsg) (raffle.Raffle, error) {
	r, err := s.engine.ModifyRaffle(ctx, s.env(sender, nil), msg)
	s.record("modify_raffle", err)
	if err != nil {
		return raffle.Raffle{}, err
	}
	s.log.WithField("raffle_id", r.ID).Info("raffle modified")
	return r, nil
}

// CancelRaffle cancels an unsold raffle and returns its assets to the owner.
func (s *Service) CancelRaffle(ctx context.Context, sender raffle.Identity, id uint64) ([]raffle.Transfer, error) {
	transfers, err := s.engine.CancelRaffle(ctx, s.env(sender, nil), id)
	s.record("cancel_raffle", err)
	if err != nil {
		return nil, err
	}
	s.log.WithField("raffle_id", id).Info("raffle cancelled")
	s.dispatch(ctx, "cancel_raffle", id, transfers)
	return transfers, nil
}

func (s *Service) BuyTickets(ctx context.Context, sender raffle.Identity, funds []raffle.Coin, msg raffle.BuyMsg) (raffle.Purchase, error) {
	p, err := s.engine.BuyTickets(ctx, s.env(sender, funds), msg)
	s.record("buy_tickets", err)
	if err != nil {
		return raffle.Purchase{}, err
	}
	metrics.RecordTicketsSold(p.Count)
	entry := s.log.WithFields(logrus.Fields{
		"raffle_id": p.RaffleID,
		"buyer":     p.Buyer,
		"first":     p.First,
		"count":     p.Count,
	})
	if p.SoldOut {
		entry.Info("raffle sold out")
	} else {
		entry.Debug("tickets bought")
	}
	return p, nil
}

// RequestRandomness rebuilds the oracle request for a raffle and forwards it
// when an oracle client is configured.
func (s *Service) RequestRandomness(ctx context.Context, sender raffle.Identity, id uint64) (raffle.RandomnessRequest, error) {
	req, err := s.engine.RequestRandomness(ctx, s.env(sender, nil), id)
	s.record("request_randomness", err)
	if err != nil {
		return raffle.RandomnessRequest{}, err
	}
	s.forward(ctx, req)
	return req, nil
}

// ReceiveRandomness stores the oracle's seed.
func (s *Service) ReceiveRandomness(ctx context.Context, sender raffle.Identity, id uint64, seed raffle.Seed) (raffle.Raffle, error) {
	r, err := s.engine.ReceiveRandomness(ctx, s.env(sender, nil), id, seed)
	s.record("receive_randomness", err)
	if err != nil {
		return raffle.Raffle{}, err
	}
	s.log.WithField("raffle_id", id).Info("randomness received")
	return r, nil
}

// Finalize settles a raffle and executes the resulting transfers.
func (s *Service) Finalize(ctx context.Context, sender raffle.Identity, id uint64) (raffle.Settlement, error) {
	st, err := s.engine.Finalize(ctx, s.env(sender, nil), id)
	s.record("finalize", err)
	if err != nil {
		return raffle.Settlement{}, err
	}
	metrics.RecordSettlement(string(st.Outcome))
	s.log.WithFields(logrus.Fields{
		"raffle_id":    id,
		"outcome":      st.Outcome,
		"winners":      st.Winners,
		"total_paid":   st.TotalPaid.String(),
		"treasury_cut": st.TreasuryCut.String(),
	}).Info("raffle finalized")
	s.dispatch(ctx, "finalize", id, st.Transfers)
	return st, nil
}

func (s *Service) Config(ctx context.Context) (raffle.Config, error) {
	return s.engine.Config(ctx)
}

func (s *Service) Raffle(ctx context.Context, id uint64) (raffle.RaffleView, error) {
	return s.engine.Raffle(ctx, s.now(), id)
}

func (s *Service) Raffles(ctx context.Context, filters raffle.RaffleFilters, startAfter *uint64, limit *uint32) ([]raffle.RaffleView, error) {
	return s.engine.Raffles(ctx, s.now(), filters, startAfter, limit)
}

func (s *Service) Tickets(ctx context.Context, id uint64, startAfter, limit *uint32) ([]raffle.Identity, error) {
	return s.engine.Tickets(ctx, id, startAfter, limit)
}

func (s *Service) TicketCount(ctx context.Context, owner raffle.Identity, id uint64) (uint32, error) {
	return s.engine.TicketCount(ctx, owner, id)
}

func (s *Service) FeeDiscount(ctx context.Context, user raffle.Identity) (raffle.DiscountReport, error) {
	return s.engine.FeeDiscount(ctx, user)
}
