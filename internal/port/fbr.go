package port

import (
	"context"
	"encoding/json"
	"time"

	"fbrgate/internal/domain"
)

// FBRLineItem is one line of a submission payload.
type FBRLineItem struct {
	Description string  `json:"description"`
	HSCode      string  `json:"hsCode"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   int64   `json:"unitPrice"`
	TaxRate     float64 `json:"taxRate"`
	TaxAmount   int64   `json:"taxAmount"`
	TotalValue  int64   `json:"totalValue"`
}

// FBRInvoiceRequest is the payload submitted to the tax authority.
// BusinessInvoiceRef carries the already-allocated sequence and acts as the
// idempotency key: the authority dedups duplicate deliveries on it.
type FBRInvoiceRequest struct {
	BusinessNTN        string        `json:"sellerNTN"`
	BusinessInvoiceRef string        `json:"businessInvoiceRef"`
	InvoiceDate        time.Time     `json:"invoiceDate"`
	BuyerNTN           string        `json:"buyerNTN,omitempty"`
	BuyerName          string        `json:"buyerName,omitempty"`
	Items              []FBRLineItem `json:"items"`
	Subtotal           int64         `json:"subtotal"`
	TaxAmount          int64         `json:"taxAmount"`
	Discount           int64         `json:"discount"`
	TotalAmount        int64         `json:"totalAmount"`
}

// FBRResult is the authority's answer to a submission.
type FBRResult struct {
	Accepted             bool            `json:"accepted"`
	TransmissionID       string          `json:"transmission_id"`
	AcknowledgmentNumber string          `json:"acknowledgment_number"`
	InvoiceNumber        string          `json:"invoice_number"`
	Raw                  json.RawMessage `json:"raw"`
}

// FBRClient abstracts the tax authority's HTTP API. Submit performs exactly
// one network call and persists nothing; failures come back as *domain.FBRError
// so callers can branch on the classification.
type FBRClient interface {
	Submit(ctx context.Context, mode domain.IntegrationMode, token string, req *FBRInvoiceRequest) (*FBRResult, error)
}
