package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type batchRepo struct {
	db *sqlx.DB
}

// NewBatchRepo creates a new PostgreSQL-backed BatchRepository.
func NewBatchRepo(db *sqlx.DB) port.BatchRepository {
	return &batchRepo{db: db}
}

func (r *batchRepo) Create(ctx context.Context, batch *domain.BulkInvoiceBatch) error {
	batch.ID = uuid.New()
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	if batch.ProcessingStatus == "" {
		batch.ProcessingStatus = domain.BatchStatusUploading
	}
	if batch.ValidationStatus == "" {
		batch.ValidationStatus = domain.BatchValidationPending
	}

	query := `INSERT INTO bulk_invoice_batches (
		id, business_id, uploaded_by, file_name, s3_key,
		processing_status, validation_status,
		total_records, valid_records, invalid_records,
		error_detail, completed_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		batch.ID, batch.BusinessID, batch.UploadedBy, batch.FileName, batch.S3Key,
		batch.ProcessingStatus, batch.ValidationStatus,
		batch.TotalRecords, batch.ValidRecords, batch.InvalidRecords,
		batch.ErrorDetail, batch.CompletedAt, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("batchRepo.Create: %w", err)
	}
	return nil
}

func (r *batchRepo) GetByID(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	var batch domain.BulkInvoiceBatch
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &batch,
		"SELECT * FROM bulk_invoice_batches WHERE id = $1 AND business_id = $2", batchID, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.GetByID: %w", err)
	}
	return &batch, nil
}

func (r *batchRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error) {
	var total int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &total,
		"SELECT COUNT(*) FROM bulk_invoice_batches WHERE business_id = $1", businessID)
	if err != nil {
		return nil, 0, fmt.Errorf("batchRepo.ListByBusiness count: %w", err)
	}

	var batches []domain.BulkInvoiceBatch
	err = sqlx.SelectContext(ctx, ext(ctx, r.db), &batches,
		`SELECT * FROM bulk_invoice_batches WHERE business_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		businessID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("batchRepo.ListByBusiness: %w", err)
	}
	return batches, total, nil
}

func (r *batchRepo) Update(ctx context.Context, batch *domain.BulkInvoiceBatch) error {
	batch.UpdatedAt = time.Now().UTC()
	query := `UPDATE bulk_invoice_batches SET
		processing_status = $1, validation_status = $2,
		total_records = $3, valid_records = $4, invalid_records = $5,
		error_detail = $6, completed_at = $7, updated_at = $8
		WHERE id = $9`
	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		batch.ProcessingStatus, batch.ValidationStatus,
		batch.TotalRecords, batch.ValidRecords, batch.InvalidRecords,
		batch.ErrorDetail, batch.CompletedAt, batch.UpdatedAt, batch.ID)
	if err != nil {
		return fmt.Errorf("batchRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (r *batchRepo) ListWithRetryableRows(ctx context.Context, limit int) ([]domain.BulkInvoiceBatch, error) {
	var batches []domain.BulkInvoiceBatch
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &batches,
		`SELECT b.* FROM bulk_invoice_batches b
		 WHERE b.processing_status NOT IN ('cancelled', 'failed')
		   AND EXISTS (
			SELECT 1 FROM bulk_invoice_items i
			WHERE i.batch_id = b.id AND i.stage = 'failed' AND i.failure_kind = 'transient')
		 ORDER BY b.created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("batchRepo.ListWithRetryableRows: %w", err)
	}
	return batches, nil
}

type batchCounters struct {
	Total       int `db:"total"`
	Valid       int `db:"valid"`
	Invalid     int `db:"invalid"`
	NonTerminal int `db:"non_terminal"`
}

// RefreshCounters recomputes the batch's aggregate counters from its rows in
// one statement. Rows that failed after passing validation (transient or auth
// failures) still count as valid records; only validation failures count as
// invalid. completed_at is stamped exactly once, when no row remains
// non-terminal for the business's production setting.
func (r *batchRepo) RefreshCounters(ctx context.Context, batchID uuid.UUID, productionEnabled bool) (*domain.BulkInvoiceBatch, error) {
	sandboxTerminal := "TRUE"
	if productionEnabled {
		sandboxTerminal = "FALSE"
	}
	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE stage NOT IN ('ingested', 'failed')
			OR (stage = 'failed' AND failure_kind IN ('transient', 'auth'))) AS valid,
		COUNT(*) FILTER (WHERE stage = 'failed' AND failure_kind = 'validation') AS invalid,
		COUNT(*) FILTER (WHERE stage IN ('ingested', 'validated')
			OR (stage = 'sandbox_submitted' AND NOT %s)) AS non_terminal
		FROM bulk_invoice_items WHERE batch_id = $1`, sandboxTerminal)

	var c batchCounters
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &c, query, batchID); err != nil {
		return nil, fmt.Errorf("batchRepo.RefreshCounters count: %w", err)
	}

	var completedAt *time.Time
	if c.NonTerminal == 0 {
		now := time.Now().UTC()
		completedAt = &now
	}

	var batch domain.BulkInvoiceBatch
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &batch,
		`UPDATE bulk_invoice_batches SET
			total_records = $1, valid_records = $2, invalid_records = $3,
			completed_at = COALESCE(completed_at, $4), updated_at = $5
		 WHERE id = $6
		 RETURNING *`,
		c.Total, c.Valid, c.Invalid, completedAt, time.Now().UTC(), batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchRepo.RefreshCounters: %w", err)
	}
	return &batch, nil
}
