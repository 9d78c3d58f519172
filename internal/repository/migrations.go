package repository

import (
	"context"
	"database/sql"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		status      TEXT NOT NULL,
		total       NUMERIC(12,2) NOT NULL,
		currency    TEXT NOT NULL DEFAULT 'BRL',
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id          TEXT PRIMARY KEY,
		order_id    TEXT NOT NULL REFERENCES orders(id),
		product_id  TEXT NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		unit_price  NUMERIC(12,2) NOT NULL,
		position    INTEGER NOT NULL DEFAULT 0
	)`,
	`ALTER TABLE order_items ADD COLUMN IF NOT EXISTS position INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_position ON order_items(order_id, position)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                  TEXT PRIMARY KEY,
		gateway_payment_id  TEXT NOT NULL UNIQUE,
		order_id            TEXT NOT NULL REFERENCES orders(id),
		amount              NUMERIC(12,2) NOT NULL,
		status              TEXT NOT NULL,
		method              TEXT NOT NULL,
		card_brand          TEXT NOT NULL DEFAULT '',
		authorization_code  TEXT NOT NULL DEFAULT '',
		transaction_id      TEXT NOT NULL DEFAULT '',
		proof_of_sale       TEXT NOT NULL DEFAULT '',
		return_code         TEXT NOT NULL DEFAULT '',
		return_message      TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id)`,
	// At most one blocking payment per order.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_order_blocking
		ON payments(order_id)
		WHERE status IN ('pending', 'authorized', 'scheduled', 'paid')`,
}

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
