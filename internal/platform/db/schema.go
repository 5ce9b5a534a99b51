package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS console_audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		meta JSONB NOT NULL DEFAULT '{}'::jsonb,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS console_audit_logs_entity_idx ON console_audit_logs (entity, entity_id)`,
	`CREATE INDEX IF NOT EXISTS console_audit_logs_occurred_idx ON console_audit_logs (occurred_at DESC)`,
}

// EnsureSchema creates the console tables when they are missing.
func EnsureSchema(ctx context.Context, pool TxBeginner) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
