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

type invoiceRepo struct {
	db *sqlx.DB
}

// NewInvoiceRepo creates a new PostgreSQL-backed InvoiceRepository.
func NewInvoiceRepo(db *sqlx.DB) port.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = domain.InvoiceStatusDraft
	}

	query := `INSERT INTO invoices (
		id, business_id, customer_id, invoice_sequence, status, mode, invoice_date,
		subtotal, tax_amount, discount, total_amount,
		fbr_transmission_id, fbr_acknowledgment_number, fbr_invoice_number,
		fbr_response, failure_kind, qr_payload, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11,
		$12, $13, $14,
		$15, $16, $17, $18, $19
	)`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		inv.ID, inv.BusinessID, inv.CustomerID, inv.InvoiceSequence, inv.Status, inv.Mode, inv.InvoiceDate,
		inv.Subtotal, inv.TaxAmount, inv.Discount, inv.TotalAmount,
		inv.FBRTransmissionID, inv.FBRAcknowledgmentNumber, inv.FBRInvoiceNumber,
		inv.FBRResponse, inv.FailureKind, inv.QRPayload, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Create: %w", err)
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].InvoiceID = inv.ID
		_, err := ext(ctx, r.db).ExecContext(ctx,
			`INSERT INTO invoice_items (
				id, invoice_id, description, hs_code, quantity, unit_price,
				tax_rate, tax_amount, total_value
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			items[i].ID, items[i].InvoiceID, items[i].Description, items[i].HSCode,
			items[i].Quantity, items[i].UnitPrice, items[i].TaxRate,
			items[i].TaxAmount, items[i].TotalValue)
		if err != nil {
			return fmt.Errorf("invoiceRepo.Create item %d: %w", i, err)
		}
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &inv,
		"SELECT * FROM invoices WHERE id = $1 AND business_id = $2", invoiceID, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("invoiceRepo.GetByID: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepo) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &items,
		"SELECT * FROM invoice_items WHERE invoice_id = $1 ORDER BY id", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListItems: %w", err)
	}
	return items, nil
}

func (r *invoiceRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Invoice, int, error) {
	var total int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &total,
		"SELECT COUNT(*) FROM invoices WHERE business_id = $1", businessID)
	if err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.ListByBusiness count: %w", err)
	}

	var invoices []domain.Invoice
	err = sqlx.SelectContext(ctx, ext(ctx, r.db), &invoices,
		`SELECT * FROM invoices WHERE business_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, businessID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.ListByBusiness: %w", err)
	}
	return invoices, total, nil
}

func (r *invoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	query := `UPDATE invoices SET
		customer_id = $1, invoice_sequence = $2, status = $3, mode = $4,
		subtotal = $5, tax_amount = $6, discount = $7, total_amount = $8,
		fbr_transmission_id = $9, fbr_acknowledgment_number = $10,
		fbr_invoice_number = $11, fbr_response = $12, failure_kind = $13,
		qr_payload = $14, updated_at = $15
		WHERE id = $16 AND business_id = $17`
	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		inv.CustomerID, inv.InvoiceSequence, inv.Status, inv.Mode,
		inv.Subtotal, inv.TaxAmount, inv.Discount, inv.TotalAmount,
		inv.FBRTransmissionID, inv.FBRAcknowledgmentNumber,
		inv.FBRInvoiceNumber, inv.FBRResponse, inv.FailureKind,
		inv.QRPayload, inv.UpdatedAt, inv.ID, inv.BusinessID)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}
