package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx runs fn in a read committed transaction, rolling back when fn fails.
func WithTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	if err := pgx.BeginTxFunc(ctx, db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn); err != nil {
		return fmt.Errorf("platform/db: tx: %w", err)
	}
	return nil
}
