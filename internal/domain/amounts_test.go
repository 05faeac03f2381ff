package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fbrgate/internal/domain"
)

// consistentInvoice returns an invoice whose amounts all line up:
// 3 x 1000 paisa at 17% tax, no discount.
func consistentInvoice() (*domain.Invoice, []domain.InvoiceItem) {
	items := []domain.InvoiceItem{
		{Quantity: 3, UnitPrice: 1000, TotalValue: 3000, TaxRate: 17, TaxAmount: 510},
	}
	inv := &domain.Invoice{
		Subtotal:    3000,
		TaxAmount:   510,
		Discount:    0,
		TotalAmount: 3510,
	}
	return inv, items
}

func TestValidateAmounts_Consistent(t *testing.T) {
	inv, items := consistentInvoice()
	assert.Empty(t, inv.ValidateAmounts(items))
}

func TestValidateAmounts_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Invoice, []domain.InvoiceItem)
		field  string
	}{
		{
			"line total mismatch",
			func(_ *domain.Invoice, items []domain.InvoiceItem) { items[0].TotalValue = 2999 },
			"items[0].total_value",
		},
		{
			"line tax mismatch",
			func(_ *domain.Invoice, items []domain.InvoiceItem) { items[0].TaxAmount = 500 },
			"items[0].tax_amount",
		},
		{
			"zero quantity",
			func(_ *domain.Invoice, items []domain.InvoiceItem) { items[0].Quantity = 0 },
			"items[0].quantity",
		},
		{
			"header subtotal does not match item sum",
			func(inv *domain.Invoice, _ []domain.InvoiceItem) { inv.Subtotal = 4000 },
			"subtotal",
		},
		{
			"header tax does not match item sum",
			func(inv *domain.Invoice, _ []domain.InvoiceItem) { inv.TaxAmount = 999 },
			"tax_amount",
		},
		{
			"grand total off by one",
			func(inv *domain.Invoice, _ []domain.InvoiceItem) { inv.TotalAmount = 3511 },
			"total_amount",
		},
		{
			"negative discount",
			func(inv *domain.Invoice, _ []domain.InvoiceItem) { inv.Discount = -5; inv.TotalAmount = 3515 },
			"discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, items := consistentInvoice()
			tt.mutate(inv, items)

			errs := inv.ValidateAmounts(items)
			assert.NotEmpty(t, errs)
			found := false
			for _, fe := range errs {
				if fe.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected a field error on %s, got %v", tt.field, errs)
		})
	}
}

func TestValidateAmounts_NoItems(t *testing.T) {
	inv := &domain.Invoice{}
	errs := inv.ValidateAmounts(nil)
	assert.Len(t, errs, 1)
	assert.Equal(t, "items", errs[0].Field)
}

func TestValidateAmounts_DiscountApplied(t *testing.T) {
	inv, items := consistentInvoice()
	inv.Discount = 510
	inv.TotalAmount = 3000
	assert.Empty(t, inv.ValidateAmounts(items))
}

func TestExpectedTaxAmount(t *testing.T) {
	tests := []struct {
		total int64
		rate  float64
		want  int64
	}{
		{10000, 17, 1700},
		{100, 17, 17},
		{99, 17, 17},   // 16.83 rounds up
		{97, 17, 16},   // 16.49 rounds down
		{10000, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ExpectedTaxAmount(tt.total, tt.rate),
			"total %d at %.2f%%", tt.total, tt.rate)
	}
}
