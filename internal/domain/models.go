package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Business is the tenant. Every invoice, customer, and product belongs to
// exactly one business, and its IntegrationMode governs where its invoices
// are submitted.
type Business struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	NTN               string          `db:"ntn" json:"ntn"`
	IntegrationMode   IntegrationMode `db:"integration_mode" json:"integration_mode"`
	SandboxToken      string          `db:"sandbox_token" json:"-"`
	ProductionToken   string          `db:"production_token" json:"-"`
	SandboxValidated  bool            `db:"sandbox_validated" json:"sandbox_validated"`
	ProductionEnabled bool            `db:"production_enabled" json:"production_enabled"`
	OperatorEmail     string          `db:"operator_email" json:"operator_email"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Token returns the bearer token for the given mode. ModeLocal has no token.
func (b *Business) Token(mode IntegrationMode) string {
	switch mode {
	case ModeSandbox:
		return b.SandboxToken
	case ModeProduction:
		return b.ProductionToken
	default:
		return ""
	}
}

// Customer is a buyer registered under a business. Invoices hold a weak
// reference to it; deleting a customer never cascades into invoices.
type Customer struct {
	ID         uuid.UUID `db:"id" json:"id"`
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	NTN        string    `db:"ntn" json:"ntn"`
	Address    string    `db:"address" json:"address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a sellable item registered under a business.
type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	BusinessID  uuid.UUID `db:"business_id" json:"business_id"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	HSCode      string    `db:"hs_code" json:"hs_code"`
	UnitPrice   int64     `db:"unit_price" json:"unit_price"`
	TaxRate     float64   `db:"tax_rate" json:"tax_rate"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Invoice is one tax invoice owned by a business. Monetary amounts are in
// paisa (minor units) so invariant checks stay exact. InvoiceSequence is nil
// until the first submission allocates it, and is never re-allocated after
// that regardless of how many attempts the submission takes.
type Invoice struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	BusinessID      uuid.UUID       `db:"business_id" json:"business_id"`
	CustomerID      *uuid.UUID      `db:"customer_id" json:"customer_id"`
	InvoiceSequence *int64          `db:"invoice_sequence" json:"invoice_sequence"`
	Status          InvoiceStatus   `db:"status" json:"status"`
	Mode            IntegrationMode `db:"mode" json:"mode"`
	InvoiceDate     time.Time       `db:"invoice_date" json:"invoice_date"`
	Subtotal        int64           `db:"subtotal" json:"subtotal"`
	TaxAmount       int64           `db:"tax_amount" json:"tax_amount"`
	Discount        int64           `db:"discount" json:"discount"`
	TotalAmount     int64           `db:"total_amount" json:"total_amount"`

	FBRTransmissionID       string          `db:"fbr_transmission_id" json:"fbr_transmission_id"`
	FBRAcknowledgmentNumber string          `db:"fbr_acknowledgment_number" json:"fbr_acknowledgment_number"`
	FBRInvoiceNumber        string          `db:"fbr_invoice_number" json:"fbr_invoice_number"`
	FBRResponse             json.RawMessage `db:"fbr_response" json:"fbr_response"`
	FailureKind             FailureKind     `db:"failure_kind" json:"failure_kind"`
	QRPayload               string          `db:"qr_payload" json:"qr_payload"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InvoiceItem is one line entry. Line math is enforced at invoice finalize
// time, not per item, so partially edited drafts stay saveable.
type InvoiceItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	HSCode      string    `db:"hs_code" json:"hs_code"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	UnitPrice   int64     `db:"unit_price" json:"unit_price"`
	TaxRate     float64   `db:"tax_rate" json:"tax_rate"`
	TaxAmount   int64     `db:"tax_amount" json:"tax_amount"`
	TotalValue  int64     `db:"total_value" json:"total_value"`
}

// BulkInvoiceBatch is one uploaded file's worth of invoices, processed
// together with shared lifecycle tracking.
type BulkInvoiceBatch struct {
	ID               uuid.UUID             `db:"id" json:"id"`
	BusinessID       uuid.UUID             `db:"business_id" json:"business_id"`
	UploadedBy       uuid.UUID             `db:"uploaded_by" json:"uploaded_by"`
	FileName         string                `db:"file_name" json:"file_name"`
	S3Key            string                `db:"s3_key" json:"s3_key"`
	ProcessingStatus BatchStatus           `db:"processing_status" json:"processing_status"`
	ValidationStatus BatchValidationStatus `db:"validation_status" json:"validation_status"`
	TotalRecords     int                   `db:"total_records" json:"total_records"`
	ValidRecords     int                   `db:"valid_records" json:"valid_records"`
	InvalidRecords   int                   `db:"invalid_records" json:"invalid_records"`
	ErrorDetail      json.RawMessage       `db:"error_detail" json:"error_detail"`
	CompletedAt      *time.Time            `db:"completed_at" json:"completed_at"`
	CreatedAt        time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time             `db:"updated_at" json:"updated_at"`
}

// BulkInvoiceItem is one source row of a batch. InvoiceData is the frozen
// input payload and is never mutated after ingestion; ValidationErrors
// accumulates across validation passes. LocalID is the caller-supplied
// idempotency key, unique within the batch.
type BulkInvoiceItem struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	BatchID            uuid.UUID       `db:"batch_id" json:"batch_id"`
	RowNumber          int             `db:"row_number" json:"row_number"`
	LocalID            string          `db:"local_id" json:"local_id"`
	Stage              RowStage        `db:"stage" json:"stage"`
	InvoiceData        json.RawMessage `db:"invoice_data" json:"invoice_data"`
	ValidationErrors   json.RawMessage `db:"validation_errors" json:"validation_errors"`
	SandboxResponse    json.RawMessage `db:"sandbox_response" json:"sandbox_response"`
	ProductionResponse json.RawMessage `db:"production_response" json:"production_response"`
	FailureKind        FailureKind     `db:"failure_kind" json:"failure_kind"`
	InvoiceID          *uuid.UUID      `db:"invoice_id" json:"invoice_id"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// AppendValidationErrors merges new field errors into the row's stored
// array. Earlier passes are preserved, so the row carries its full failure
// history rather than only the latest verdict.
func (i *BulkInvoiceItem) AppendValidationErrors(errs []FieldError) {
	if len(errs) == 0 {
		return
	}
	var all []FieldError
	if len(i.ValidationErrors) > 0 {
		// an unreadable stored array is dropped rather than blocking the append
		_ = json.Unmarshal(i.ValidationErrors, &all)
	}
	all = append(all, errs...)
	if raw, err := json.Marshal(all); err == nil {
		i.ValidationErrors = raw
	}
}

// FieldError is a single field-level validation failure, either produced
// locally or reported back by FBR.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
