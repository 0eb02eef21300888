package raffles

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

func TestKeeperSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty := h.create(t, "1")
	waiting := h.create(t, "2")
	ready := h.create(t, "3")
	h.buy(t, waiting, "alice", 1)
	h.buy(t, ready, "bob", 2)

	h.now = t0.Add(time.Hour)
	_, err := h.svc.ReceiveRandomness(ctx, "oracle", ready, raffle.Seed{7})
	require.NoError(t, err)
	h.now = t0.Add(time.Hour + 10*time.Second)

	keeper := NewKeeper(h.svc, "keeper", quietLogger())
	report, err := keeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 3, Requested: 1, Finalized: 2}, report)
	assert.Equal(t, 2, h.vrf.count(jobID(waiting)), "creation plus one keeper retry")

	view, err := h.svc.Raffle(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, []raffle.Identity{"creator"}, view.Raffle.Winners)

	view, err = h.svc.Raffle(ctx, ready)
	require.NoError(t, err)
	assert.Equal(t, raffle.StateClaimed, view.State)

	// nothing left to do, and the pending request is not due again yet
	report, err = keeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 3}, report)
	assert.Equal(t, 2, h.vrf.count(jobID(waiting)))

	h.now = h.now.Add(DefaultRequestRetry)
	report, err = keeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 3, Requested: 1}, report)
	assert.Equal(t, 3, h.vrf.count(jobID(waiting)))
	assert.Equal(t, 1, h.vrf.count(jobID(empty)), "settled raffle is never requested again")
}

func TestKeeperLeavesSettledEmptyRaffleAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t, "1")
	h.now = t0.Add(time.Hour)

	keeper := NewKeeper(h.svc, "keeper", quietLogger())
	report, err := keeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Scanned: 1, Finalized: 1}, report)

	for i := 0; i < 3; i++ {
		h.now = h.now.Add(DefaultRequestRetry)
		report, err = keeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, SweepReport{Scanned: 1}, report, "sweep %d", i+2)
	}
	assert.Equal(t, 1, h.vrf.count(jobID(id)), "only the request sent at creation")

	view, err := h.svc.Raffle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, raffle.StateClaimed, view.State)
	assert.Nil(t, view.Raffle.Randomness)
}

func TestKeeperPagesThroughAllRaffles(t *testing.T) {
	h := newHarness(t)
	total := int(keeperPage) + 5
	for i := 0; i < total; i++ {
		h.create(t, strconv.Itoa(i))
	}
	h.now = t0.Add(2 * time.Hour)

	report, err := NewKeeper(h.svc, "keeper", quietLogger()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, report.Scanned)
	assert.Equal(t, total, report.Finalized)
}

func TestKeeperStartRejectsBadSchedule(t *testing.T) {
	h := newHarness(t)
	keeper := NewKeeper(h.svc, "keeper", quietLogger())

	require.Error(t, keeper.Start("every now and then"))

	require.NoError(t, keeper.Start("@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	keeper.Stop(ctx)
}
