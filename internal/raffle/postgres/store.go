// Package postgres implements raffle.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// writerLockKey is the advisory lock taken by every Update; writers are
// serialized while readers proceed on snapshots.
const writerLockKey int64 = 0x72616666

// Store implements raffle.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ raffle.Store = (*Store)(nil)

// New creates a Store using the provided database handle. The schema in
// internal/platform/migrations must already be applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) View(ctx context.Context, fn func(raffle.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) Update(ctx context.Context, fn func(raffle.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(raffle.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if !readOnly {
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, writerLockKey); err != nil {
			_ = sqlTx.Rollback()
			return fmt.Errorf("acquire writer lock: %w", err)
		}
	}
	if err := fn(&tx{ctx: ctx, tx: sqlTx, readOnly: readOnly}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var errReadOnly = errors.New("write in read-only transaction")

type tx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// --- Config -----------------------------------------------------------------

func (t *tx) Config() (raffle.Config, error) {
	var body []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT body FROM raffle_config WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return raffle.Config{}, raffle.ErrConfigNotFound
	}
	if err != nil {
		return raffle.Config{}, fmt.Errorf("load config: %w", err)
	}
	var cfg raffle.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return raffle.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (t *tx) PutConfig(cfg raffle.Config) error {
	if err := t.writable(); err != nil {
		return err
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO raffle_config (id, body, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, body)
	if err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	return nil
}

// --- Raffles ----------------------------------------------------------------

func (t *tx) Raffle(id uint64) (raffle.Raffle, error) {
	var body []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT body FROM raffles WHERE id = $1`, int64(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return raffle.Raffle{}, fmt.Errorf("%w: %d", raffle.ErrRaffleNotFound, id)
	}
	if err != nil {
		return raffle.Raffle{}, fmt.Errorf("load raffle %d: %w", id, err)
	}
	return decodeRaffle(body)
}

func (t *tx) PutRaffle(r raffle.Raffle) error {
	if err := t.writable(); err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO raffles (id, owner, body, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (id) DO UPDATE SET owner = EXCLUDED.owner, body = EXCLUDED.body, updated_at = now()
	`, int64(r.ID), string(r.Owner), body)
	if err != nil {
		return fmt.Errorf("store raffle %d: %w", r.ID, err)
	}
	return nil
}

func (t *tx) Raffles(startBefore *uint64, limit int) ([]raffle.Raffle, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT body FROM raffles
		WHERE ($1::BIGINT IS NULL OR id < $1)
		ORDER BY id DESC
		LIMIT $2
	`, nullID(startBefore), nullLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list raffles: %w", err)
	}
	defer rows.Close()

	var out []raffle.Raffle
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		r, err := decodeRaffle(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeRaffle(body []byte) (raffle.Raffle, error) {
	var r raffle.Raffle
	if err := json.Unmarshal(body, &r); err != nil {
		return raffle.Raffle{}, fmt.Errorf("decode raffle: %w", err)
	}
	return r, nil
}

// --- Tickets ----------------------------------------------------------------

func (t *tx) AddTickets(raffleID uint64, first uint32, owner raffle.Identity, count uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	var next int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COALESCE(MAX(first_index + ticket_count), 0)
		FROM raffle_ticket_runs
		WHERE raffle_id = $1
	`, int64(raffleID)).Scan(&next)
	if err != nil {
		return fmt.Errorf("next ticket index: %w", err)
	}
	if next != int64(first) {
		return fmt.Errorf("ticket index %d is not contiguous", first)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO raffle_ticket_runs (raffle_id, first_index, ticket_count, owner)
		VALUES ($1, $2, $3, $4)
	`, int64(raffleID), int64(first), int64(count), string(owner))
	if err != nil {
		return fmt.Errorf("store tickets: %w", err)
	}
	return nil
}

func (t *tx) TicketOwner(raffleID uint64, index uint32) (raffle.Identity, error) {
	var (
		first, count int64
		owner        string
	)
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT first_index, ticket_count, owner
		FROM raffle_ticket_runs
		WHERE raffle_id = $1 AND first_index <= $2
		ORDER BY first_index DESC
		LIMIT 1
	`, int64(raffleID), int64(index)).Scan(&first, &count, &owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && int64(index) >= first+count) {
		return "", fmt.Errorf("ticket %d of raffle %d not found", index, raffleID)
	}
	if err != nil {
		return "", fmt.Errorf("ticket owner: %w", err)
	}
	return raffle.Identity(owner), nil
}

func (t *tx) Tickets(raffleID uint64, startAfter *uint32, limit int) ([]raffle.Identity, error) {
	var from int64
	if startAfter != nil {
		if *startAfter == math.MaxUint32 {
			return nil, nil
		}
		from = int64(*startAfter) + 1
	}
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT first_index, ticket_count, owner
		FROM raffle_ticket_runs
		WHERE raffle_id = $1 AND first_index + ticket_count > $2
		ORDER BY first_index
	`, int64(raffleID), from)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []raffle.Identity
	for rows.Next() {
		var (
			first, count int64
			owner        string
		)
		if err := rows.Scan(&first, &count, &owner); err != nil {
			return nil, err
		}
		if first < from {
			count -= from - first
		}
		for ; count > 0; count-- {
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
			out = append(out, raffle.Identity(owner))
		}
	}
	return out, rows.Err()
}

func (t *tx) Holdings(raffleID uint64) ([]raffle.Holding, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT owner, SUM(ticket_count)
		FROM raffle_ticket_runs
		WHERE raffle_id = $1
		GROUP BY owner
		ORDER BY owner
	`, int64(raffleID))
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	var out []raffle.Holding
	for rows.Next() {
		var (
			owner string
			count int64
		)
		if err := rows.Scan(&owner, &count); err != nil {
			return nil, err
		}
		out = append(out, raffle.Holding{Owner: raffle.Identity(owner), Count: uint32(count)})
	}
	return out, rows.Err()
}

// --- Per-address counters ---------------------------------------------------

func (t *tx) UserTicketCount(owner raffle.Identity, raffleID uint64) (uint32, error) {
	var count int64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT ticket_count FROM raffle_user_tickets
		WHERE owner = $1 AND raffle_id = $2
	`, string(owner), int64(raffleID)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("user ticket count: %w", err)
	}
	return uint32(count), nil
}

func (t *tx) PutUserTicketCount(owner raffle.Identity, raffleID uint64, count uint32) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO raffle_user_tickets (owner, raffle_id, ticket_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, raffle_id) DO UPDATE SET ticket_count = EXCLUDED.ticket_count
	`, string(owner), int64(raffleID), int64(count))
	if err != nil {
		return fmt.Errorf("store user ticket count: %w", err)
	}
	return nil
}

func (t *tx) UserRaffles(owner raffle.Identity, startBefore *uint64, limit int) ([]uint64, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT raffle_id FROM raffle_user_tickets
		WHERE owner = $1 AND ($2::BIGINT IS NULL OR raffle_id < $2)
		ORDER BY raffle_id DESC
		LIMIT $3
	`, string(owner), nullID(startBefore), nullLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list user raffles: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, uint64(id))
	}
	return out, rows.Err()
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

// nullLimit maps a non-positive limit to LIMIT NULL, which postgres treats as
// no limit.
func nullLimit(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}
