package raffles

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/raffle_layer/internal/app/metrics"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

const (
	keeperPage = uint32(raffle.MaxPageLimit)
	// DefaultRequestRetry spaces out repeated randomness requests for one raffle.
	DefaultRequestRetry = 5 * time.Minute
)

// SweepReport summarises one keeper pass.
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Requested int `json:"requested"`
	Finalized int `json:"finalized"`
	Failed    int `json:"failed"`
}

// Keeper periodically walks all raffles, re-requests randomness for closed
// raffles still waiting on the oracle and finalizes raffles that are ready.
type Keeper struct {
	svc      *Service
	identity raffle.Identity
	log      *logger.Logger
	retry    time.Duration

	mu        sync.Mutex
	requested map[uint64]time.Time
	cron      *cron.Cron
}

// NewKeeper builds a keeper acting as identity. Finalize and randomness
// requests are permissionless, so identity only labels the calls.
func NewKeeper(svc *Service, identity raffle.Identity, log *logger.Logger) *Keeper {
	if log == nil {
		log = logger.NewDefault("keeper")
	}
	return &Keeper{
		svc:       svc,
		identity:  identity,
		log:       log,
		retry:     DefaultRequestRetry,
		requested: make(map[uint64]time.Time),
	}
}

// WithRetry sets the minimum spacing of randomness requests per raffle.
func (k *Keeper) WithRetry(d time.Duration) {
	k.retry = d
}

// Start schedules Sweep with a cron schedule such as "@every 30s". Overlapping
// runs are skipped.
func (k *Keeper) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := k.Sweep(ctx); err != nil {
			k.log.WithError(err).Warn("keeper sweep failed")
		}
	}); err != nil {
		return err
	}
	k.mu.Lock()
	k.cron = c
	k.mu.Unlock()
	c.Start()
	k.log.WithField("schedule", schedule).Info("keeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (k *Keeper) Stop(ctx context.Context) {
	k.mu.Lock()
	c := k.cron
	k.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep performs one pass over every raffle, newest first.
func (k *Keeper) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	var report SweepReport
	var cursor *uint64
	limit := keeperPage

	for {
		views, err := k.svc.Raffles(ctx, raffle.RaffleFilters{}, cursor, &limit)
		if err != nil {
			metrics.RecordKeeperRun(time.Since(start), false)
			return report, err
		}
		for _, v := range views {
			report.Scanned++
			k.visit(ctx, v, &report)
		}
		if len(views) < int(limit) {
			break
		}
		last := views[len(views)-1].ID
		cursor = &last
	}

	metrics.RecordKeeperRun(time.Since(start), report.Failed == 0)
	if report.Requested > 0 || report.Finalized > 0 || report.Failed > 0 {
		k.log.WithFields(logrus.Fields{
			"scanned":   report.Scanned,
			"requested": report.Requested,
			"finalized": report.Finalized,
			"failed":    report.Failed,
		}).Info("keeper sweep done")
	}
	return report, nil
}

func (k *Keeper) visit(ctx context.Context, v raffle.RaffleView, report *SweepReport) {
	r := v.Raffle
	switch {
	case v.State == raffle.StateFinished,
		v.State == raffle.StateClosed && r.NumberOfTickets == 0 && len(r.Winners) == 0:
		if _, err := k.svc.Finalize(ctx, k.identity, v.ID); err != nil {
			if errors.Is(err, raffle.ErrAlreadyFinalized) {
				return
			}
			report.Failed++
			k.log.WithError(err).WithField("raffle_id", v.ID).Warn("keeper finalize failed")
			return
		}
		report.Finalized++
		k.forget(v.ID)

	case v.State == raffle.StateClosed && r.Randomness == nil && len(r.Winners) == 0:
		if !k.due(v.ID) {
			return
		}
		if _, err := k.svc.RequestRandomness(ctx, k.identity, v.ID); err != nil {
			report.Failed++
			k.log.WithError(err).WithField("raffle_id", v.ID).Warn("keeper randomness request failed")
			return
		}
		report.Requested++
	}
}

// due reports whether a randomness request for id may be sent now and, if
// so, marks it sent.
func (k *Keeper) due(id uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.svc.Now()
	if last, ok := k.requested[id]; ok && now.Sub(last) < k.retry {
		return false
	}
	k.requested[id] = now
	return true
}

func (k *Keeper) forget(id uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.requested, id)
}
