package domain

import "time"

// RowLineItem is one line of a batch row's frozen invoice payload.
type RowLineItem struct {
	ProductCode string  `json:"product_code"`
	Description string  `json:"description"`
	HSCode      string  `json:"hs_code"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	TaxAmount   int64   `json:"tax_amount"`
	TotalValue  int64   `json:"total_value"`
}

// RowInvoiceData is the structured form of BulkInvoiceItem.InvoiceData. It is
// frozen at ingestion: validation and submission read it but never write it.
type RowInvoiceData struct {
	LocalID      string        `json:"local_id,omitempty"`
	CustomerCode string        `json:"customer_code"`
	InvoiceDate  time.Time     `json:"invoice_date"`
	Items        []RowLineItem `json:"items"`
	Subtotal     int64         `json:"subtotal"`
	TaxAmount    int64         `json:"tax_amount"`
	Discount     int64         `json:"discount"`
	TotalAmount  int64         `json:"total_amount"`
}
