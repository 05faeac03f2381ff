package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type batchItemRepo struct {
	db *sqlx.DB
}

// NewBatchItemRepo creates a new PostgreSQL-backed BatchItemRepository.
func NewBatchItemRepo(db *sqlx.DB) port.BatchItemRepository {
	return &batchItemRepo{db: db}
}

func (r *batchItemRepo) Create(ctx context.Context, item *domain.BulkInvoiceItem) error {
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Stage == "" {
		item.Stage = domain.StageIngested
	}

	query := `INSERT INTO bulk_invoice_items (
		id, batch_id, row_number, local_id, stage,
		invoice_data, validation_errors, sandbox_response, production_response,
		failure_kind, invoice_id, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		item.ID, item.BatchID, item.RowNumber, item.LocalID, item.Stage,
		item.InvoiceData, item.ValidationErrors, item.SandboxResponse, item.ProductionResponse,
		item.FailureKind, item.InvoiceID, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), "local_id") {
			return domain.ErrDuplicateLocalID
		}
		return fmt.Errorf("batchItemRepo.Create: %w", err)
	}
	return nil
}

func (r *batchItemRepo) GetByID(ctx context.Context, batchID, itemID uuid.UUID) (*domain.BulkInvoiceItem, error) {
	var item domain.BulkInvoiceItem
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &item,
		"SELECT * FROM bulk_invoice_items WHERE id = $1 AND batch_id = $2", itemID, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRowNotFound
		}
		return nil, fmt.Errorf("batchItemRepo.GetByID: %w", err)
	}
	return &item, nil
}

func (r *batchItemRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BulkInvoiceItem, error) {
	var items []domain.BulkInvoiceItem
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &items,
		"SELECT * FROM bulk_invoice_items WHERE batch_id = $1 ORDER BY row_number", batchID)
	if err != nil {
		return nil, fmt.Errorf("batchItemRepo.ListByBatch: %w", err)
	}
	return items, nil
}

func (r *batchItemRepo) ListByStage(ctx context.Context, batchID uuid.UUID, stage domain.RowStage) ([]domain.BulkInvoiceItem, error) {
	var items []domain.BulkInvoiceItem
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &items,
		"SELECT * FROM bulk_invoice_items WHERE batch_id = $1 AND stage = $2 ORDER BY row_number",
		batchID, stage)
	if err != nil {
		return nil, fmt.Errorf("batchItemRepo.ListByStage: %w", err)
	}
	return items, nil
}

func (r *batchItemRepo) Update(ctx context.Context, item *domain.BulkInvoiceItem) error {
	item.UpdatedAt = time.Now().UTC()
	query := `UPDATE bulk_invoice_items SET
		stage = $1, validation_errors = $2, sandbox_response = $3,
		production_response = $4, failure_kind = $5, invoice_id = $6, updated_at = $7
		WHERE id = $8`
	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		item.Stage, item.ValidationErrors, item.SandboxResponse,
		item.ProductionResponse, item.FailureKind, item.InvoiceID, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("batchItemRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrRowNotFound
	}
	return nil
}
