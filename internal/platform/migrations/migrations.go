// Package migrations holds the postgres schema of the raffle store.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are applied in order; every one of them is idempotent.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS raffle_config (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		body JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS raffles (
		id BIGINT PRIMARY KEY,
		owner TEXT NOT NULL,
		body JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS raffle_ticket_runs (
		raffle_id BIGINT NOT NULL REFERENCES raffles(id),
		first_index BIGINT NOT NULL,
		ticket_count BIGINT NOT NULL CHECK (ticket_count > 0),
		owner TEXT NOT NULL,
		PRIMARY KEY (raffle_id, first_index)
	)`,
	`CREATE TABLE IF NOT EXISTS raffle_user_tickets (
		owner TEXT NOT NULL,
		raffle_id BIGINT NOT NULL REFERENCES raffles(id),
		ticket_count BIGINT NOT NULL,
		PRIMARY KEY (owner, raffle_id)
	)`,
	`CREATE INDEX IF NOT EXISTS raffles_owner_idx ON raffles (owner, id DESC)`,
	`CREATE INDEX IF NOT EXISTS raffle_user_tickets_raffle_idx ON raffle_user_tickets (raffle_id)`,
}

// Apply runs every migration against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
