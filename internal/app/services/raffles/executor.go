package raffles

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

// TransferExecutor carries out the transfers produced by an operation on the
// host ledger.
type TransferExecutor interface {
	Execute(ctx context.Context, operation string, raffleID uint64, transfers []raffle.Transfer) error
}

// LogExecutor writes each transfer to the log. It is the executor of a
// deployment without a ledger relay.
type LogExecutor struct {
	log *logger.Logger
}

func NewLogExecutor(log *logger.Logger) *LogExecutor {
	return &LogExecutor{log: log}
}

func (e *LogExecutor) Execute(_ context.Context, operation string, raffleID uint64, transfers []raffle.Transfer) error {
	for i, t := range transfers {
		from := t.From
		if from == "" {
			from = "escrow"
		}
		e.log.WithFields(logrus.Fields{
			"raffle_id": raffleID,
			"operation": operation,
			"index":     i,
			"from":      from,
			"to":        t.To,
			"asset":     t.Asset.String(),
		}).Info("transfer")
	}
	return nil
}

// ExecutedBatch is one Execute call seen by a RecordingExecutor.
type ExecutedBatch struct {
	Operation string
	RaffleID  uint64
	Transfers []raffle.Transfer
}

// RecordingExecutor keeps every batch in memory.
type RecordingExecutor struct {
	mu      sync.Mutex
	batches []ExecutedBatch
	err     error
}

func NewRecordingExecutor() *RecordingExecutor {
	return &RecordingExecutor{}
}

// FailWith makes subsequent calls return err after recording.
func (e *RecordingExecutor) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *RecordingExecutor) Execute(_ context.Context, operation string, raffleID uint64, transfers []raffle.Transfer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, ExecutedBatch{
		Operation: operation,
		RaffleID:  raffleID,
		Transfers: append([]raffle.Transfer(nil), transfers...),
	})
	return e.err
}

// Batches returns a copy of the recorded batches.
func (e *RecordingExecutor) Batches() []ExecutedBatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExecutedBatch(nil), e.batches...)
}
