package port

import (
	"context"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
)

// InvoiceRepository defines the contract for invoice persistence. All query
// methods include businessID to enforce tenant isolation at the data layer.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem) error
	GetByID(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceItem, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Invoice, int, error)
	// Update persists status, sequence, FBR correlation fields, failure kind,
	// and the QR payload. Line items are immutable once submitted and are not
	// touched here.
	Update(ctx context.Context, inv *domain.Invoice) error
}

// SequenceAllocator issues gap-free, collision-free invoice sequence numbers
// per business. Allocate must be called inside the transaction that persists
// the invoice mutation, so an aborted transaction rolls the increment back.
type SequenceAllocator interface {
	Allocate(ctx context.Context, businessID uuid.UUID) (int64, error)
}
