// Package qr builds the QR payload string printed on validated invoices.
// Only the opaque payload matters here; image rendering happens downstream.
package qr

import (
	"fmt"
	"time"
)

// Payload derives the QR string for a validated invoice. It is a pure
// function of the FBR invoice number, the total amount in paisa, and the
// invoice date, so regenerating it for the same invoice always yields the
// same bytes.
func Payload(fbrInvoiceNumber string, totalAmount int64, invoiceDate time.Time) string {
	return fmt.Sprintf("FBR:%s:%d:%s", fbrInvoiceNumber, totalAmount, invoiceDate.UTC().Format("2006-01-02"))
}
