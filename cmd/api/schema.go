package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Credit ledger tables. The UNIQUE on order_id is load-bearing: it is the
// replay guard that makes webhook grants exactly-once.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	user_id    TEXT PRIMARY KEY,
	credits    INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            TEXT NOT NULL,
	order_id           TEXT NOT NULL UNIQUE,
	credits_added      INTEGER NOT NULL,
	transaction_status TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_user
	ON credit_transactions (user_id, created_at DESC);
`

func migrateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
