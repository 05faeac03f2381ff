package domain

import "fmt"

// roundHalfUp rounds a tax computation on paisa amounts to the nearest unit.
func roundHalfUp(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}

// ExpectedTaxAmount computes the tax on a line total at the given rate.
func ExpectedTaxAmount(totalValue int64, taxRate float64) int64 {
	return roundHalfUp(float64(totalValue) * taxRate / 100)
}

// ValidateAmounts checks the monetary invariants enforced at finalize time:
// per line, quantity x unit price == total value and total x rate == tax;
// on the invoice, total == subtotal + tax - discount and the item sums match
// the header. Returns nil when everything is consistent.
func (i *Invoice) ValidateAmounts(items []InvoiceItem) []FieldError {
	var errs []FieldError

	if len(items) == 0 {
		errs = append(errs, FieldError{Field: "items", Message: "invoice has no line items"})
	}

	var sumValue, sumTax int64
	for idx, it := range items {
		prefix := fmt.Sprintf("items[%d]", idx)
		if it.Quantity <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".quantity", Message: "quantity must be positive"})
		}
		if it.UnitPrice < 0 {
			errs = append(errs, FieldError{Field: prefix + ".unit_price", Message: "unit price must not be negative"})
		}
		if it.Quantity*it.UnitPrice != it.TotalValue {
			errs = append(errs, FieldError{
				Field:   prefix + ".total_value",
				Message: fmt.Sprintf("expected %d (quantity x unit price), got %d", it.Quantity*it.UnitPrice, it.TotalValue),
			})
		}
		if want := ExpectedTaxAmount(it.TotalValue, it.TaxRate); want != it.TaxAmount {
			errs = append(errs, FieldError{
				Field:   prefix + ".tax_amount",
				Message: fmt.Sprintf("expected %d at rate %.2f%%, got %d", want, it.TaxRate, it.TaxAmount),
			})
		}
		sumValue += it.TotalValue
		sumTax += it.TaxAmount
	}

	if len(items) > 0 {
		if sumValue != i.Subtotal {
			errs = append(errs, FieldError{
				Field:   "subtotal",
				Message: fmt.Sprintf("expected %d (sum of line totals), got %d", sumValue, i.Subtotal),
			})
		}
		if sumTax != i.TaxAmount {
			errs = append(errs, FieldError{
				Field:   "tax_amount",
				Message: fmt.Sprintf("expected %d (sum of line taxes), got %d", sumTax, i.TaxAmount),
			})
		}
	}
	if i.Discount < 0 {
		errs = append(errs, FieldError{Field: "discount", Message: "discount must not be negative"})
	}
	if i.TotalAmount != i.Subtotal+i.TaxAmount-i.Discount {
		errs = append(errs, FieldError{
			Field:   "total_amount",
			Message: fmt.Sprintf("expected %d (subtotal + tax - discount), got %d", i.Subtotal+i.TaxAmount-i.Discount, i.TotalAmount),
		})
	}
	return errs
}
