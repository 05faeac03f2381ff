package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type sequenceRepo struct {
	db *sqlx.DB
}

// NewSequenceAllocator creates the PostgreSQL-backed sequence allocator.
func NewSequenceAllocator(db *sqlx.DB) port.SequenceAllocator {
	return &sequenceRepo{db: db}
}

// Allocate atomically increments and returns the per-business counter. The
// upsert takes a row lock, so concurrent callers serialize on the counter row
// and can never observe the same value. Callers run this inside the
// transaction that persists the invoice, so an aborted transaction rolls the
// increment back and leaves no gap.
func (r *sequenceRepo) Allocate(ctx context.Context, businessID uuid.UUID) (int64, error) {
	var exists bool
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM businesses WHERE id = $1)", businessID)
	if err != nil {
		return 0, fmt.Errorf("sequenceRepo.Allocate business check: %w", err)
	}
	if !exists {
		return 0, domain.ErrBusinessNotFound
	}

	var seq int64
	err = sqlx.GetContext(ctx, ext(ctx, r.db), &seq,
		`INSERT INTO invoice_sequences (business_id, last_value) VALUES ($1, 1)
		 ON CONFLICT (business_id)
		 DO UPDATE SET last_value = invoice_sequences.last_value + 1
		 RETURNING last_value`, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("sequenceRepo.Allocate: no row returned")
		}
		return 0, fmt.Errorf("sequenceRepo.Allocate: %w", err)
	}
	return seq, nil
}
