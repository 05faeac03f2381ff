package port

import (
	"context"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
)

// BatchRepository defines the contract for bulk batch persistence.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.BulkInvoiceBatch) error
	GetByID(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error)
	Update(ctx context.Context, batch *domain.BulkInvoiceBatch) error
	// RefreshCounters recomputes total/valid/invalid record counts from the
	// batch's rows and stamps completed_at once no row remains non-terminal.
	RefreshCounters(ctx context.Context, batchID uuid.UUID, productionEnabled bool) (*domain.BulkInvoiceBatch, error)
	// ListWithRetryableRows returns non-cancelled batches that have at least
	// one transiently failed row, oldest first.
	ListWithRetryableRows(ctx context.Context, limit int) ([]domain.BulkInvoiceBatch, error)
}

// BatchItemRepository defines the contract for per-row persistence.
type BatchItemRepository interface {
	Create(ctx context.Context, item *domain.BulkInvoiceItem) error
	GetByID(ctx context.Context, batchID, itemID uuid.UUID) (*domain.BulkInvoiceItem, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BulkInvoiceItem, error)
	// ListByStage returns rows currently at the given stage, in row order.
	ListByStage(ctx context.Context, batchID uuid.UUID, stage domain.RowStage) ([]domain.BulkInvoiceItem, error)
	Update(ctx context.Context, item *domain.BulkInvoiceItem) error
}
