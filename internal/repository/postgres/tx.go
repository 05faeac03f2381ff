package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fbrgate/internal/port"
)

type txKey struct{}

type transactor struct {
	db *sqlx.DB
}

// NewTransactor creates a port.Transactor backed by sqlx transactions.
// Repositories in this package observe the enclosing transaction through the
// context, so a caller-owned transaction spans every repository call made
// inside fn.
func NewTransactor(db *sqlx.DB) port.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		// Already inside a transaction; nested calls join it.
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transactor.WithTransaction begin: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transactor.WithTransaction rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transactor.WithTransaction commit: %w", err)
	}
	return nil
}

// ext returns the query target for ctx: the enclosing transaction if one is
// open, otherwise the pool itself.
func ext(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}
