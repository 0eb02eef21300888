package raffles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeVRF struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (f *fakeVRF) RequestRandomness(_ context.Context, req raffle.RandomnessRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, req.JobID)
	return f.err
}

func jobID(id uint64) string {
	return fmt.Sprintf("raffle-%d", id)
}

func (f *fakeVRF) count(job string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j == job {
			n++
		}
	}
	return n
}

type harness struct {
	svc      *Service
	vrf      *fakeVRF
	executor *RecordingExecutor
	now      time.Time
}

func quietLogger() *logger.Logger {
	l := logger.New(logger.LoggingConfig{Level: "debug"})
	l.SetOutput(&bytes.Buffer{})
	return l
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{vrf: &fakeVRF{}, executor: NewRecordingExecutor(), now: t0}
	h.svc = New(raffle.NewEngine(raffle.NewMemoryStore(), raffle.NewMockAccountQuerier()), "escrow", quietLogger())
	h.svc.WithClock(func() time.Time { return h.now })
	h.svc.WithVRF(h.vrf)
	h.svc.WithExecutor(h.executor)

	_, err := h.svc.EnsureInstantiated(context.Background(), "admin", raffle.InstantiateMsg{
		Name:          "raffles",
		CreationCoins: []raffle.Coin{},
		RaffleFee:     raffle.MustRate("0.1"),
		Oracle:        "oracle",
	})
	require.NoError(t, err)
	return h
}

func (h *harness) create(t *testing.T, token string) uint64 {
	t.Helper()
	hour := time.Hour
	created, err := h.svc.CreateRaffle(context.Background(), "creator", nil, raffle.CreateMsg{
		Assets:      []raffle.Asset{raffle.NFTAsset("punks", token)},
		TicketPrice: raffle.NewCoin(10, "X"),
		Options:     raffle.OptionsMsg{Duration: &hour},
	})
	require.NoError(t, err)
	return created.Raffle.ID
}

func (h *harness) buy(t *testing.T, id uint64, buyer raffle.Identity, count uint32) {
	t.Helper()
	paid := raffle.NewCoin(uint64(10*count), "X")
	_, err := h.svc.BuyTickets(context.Background(), buyer, []raffle.Coin{paid}, raffle.BuyMsg{RaffleID: id, Count: count, Paid: paid})
	require.NoError(t, err)
}

func TestEnsureInstantiatedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	cfg, err := h.svc.EnsureInstantiated(context.Background(), "someone", raffle.InstantiateMsg{Name: "other", Oracle: "x"})
	require.NoError(t, err)
	assert.Equal(t, "raffles", cfg.Name)
	assert.Equal(t, raffle.Identity("admin"), cfg.Owner)

	_, err = h.svc.Instantiate(context.Background(), "admin", raffle.InstantiateMsg{Name: "again", Oracle: "x"})
	assert.ErrorIs(t, err, raffle.ErrAlreadyInstantiated)
}

func TestServiceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := h.create(t, "1")
	assert.Equal(t, 1, h.vrf.count(jobID(id)))

	batches := h.executor.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "create_raffle", batches[0].Operation)
	require.Len(t, batches[0].Transfers, 1)
	assert.Equal(t, raffle.Identity("creator"), batches[0].Transfers[0].From)
	assert.Equal(t, raffle.Identity("escrow"), batches[0].Transfers[0].To)

	h.buy(t, id, "alice", 2)
	h.buy(t, id, "bob", 1)

	n, err := h.svc.TicketCount(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	h.now = t0.Add(time.Hour)
	_, err = h.svc.ReceiveRandomness(ctx, "mallory", id, raffle.Seed{1})
	assert.ErrorIs(t, err, raffle.ErrNotOracle)
	_, err = h.svc.ReceiveRandomness(ctx, "oracle", id, raffle.Seed{1})
	require.NoError(t, err)

	_, err = h.svc.Finalize(ctx, "alice", id)
	assert.ErrorIs(t, err, raffle.ErrWrongState, "finalize waits for the randomness timeout")

	h.now = t0.Add(time.Hour + 10*time.Second)
	view, err := h.svc.Raffle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, raffle.StateFinished, view.State)

	st, err := h.svc.Finalize(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, raffle.OutcomeDrawn, st.Outcome)
	assert.True(t, st.TotalPaid.Equal(raffle.NewCoin(30, "X")))
	assert.True(t, st.TreasuryCut.Equal(raffle.NewCoin(3, "X")))

	batches = h.executor.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, "finalize", batches[1].Operation)
	assert.Equal(t, st.Transfers, batches[1].Transfers)
}

func TestCreateRaffleSurvivesOracleFailure(t *testing.T) {
	h := newHarness(t)
	h.vrf.err = errors.New("oracle down")

	id := h.create(t, "1")
	view, err := h.svc.Raffle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, raffle.StateStarted, view.State)
}

func TestExecutorFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.executor.FailWith(errors.New("relay offline"))

	id := h.create(t, "1")
	transfers, err := h.svc.CancelRaffle(context.Background(), "creator", id)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Len(t, h.executor.Batches(), 2)
}

func TestLocksThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ToggleLock(ctx, "creator", true)
	assert.ErrorIs(t, err, raffle.ErrUnauthorized)

	locks, err := h.svc.SudoToggleLock(ctx, true)
	require.NoError(t, err)
	assert.True(t, locks.Locked())

	hour := time.Hour
	_, err = h.svc.CreateRaffle(ctx, "creator", nil, raffle.CreateMsg{
		Assets:      []raffle.Asset{raffle.NFTAsset("punks", "1")},
		TicketPrice: raffle.NewCoin(10, "X"),
		Options:     raffle.OptionsMsg{Duration: &hour},
	})
	assert.ErrorIs(t, err, raffle.ErrContractLocked)
}
