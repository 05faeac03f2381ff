package validator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type rowValidator struct {
	customers port.CustomerRepository
	products  port.ProductRepository
}

// NewRowValidator creates the standard row validator: required fields,
// monetary consistency, and referential plausibility of customer/product
// codes within the business.
func NewRowValidator(customers port.CustomerRepository, products port.ProductRepository) RowValidator {
	return &rowValidator{customers: customers, products: products}
}

func (v *rowValidator) ValidateRow(ctx context.Context, businessID uuid.UUID, data *domain.RowInvoiceData) (bool, []domain.FieldError, error) {
	var errs []domain.FieldError

	errs = append(errs, checkRequired(data)...)
	errs = append(errs, checkAmounts(data)...)

	refErrs, err := v.checkReferences(ctx, businessID, data)
	if err != nil {
		return false, nil, err
	}
	errs = append(errs, refErrs...)

	return len(errs) == 0, errs, nil
}

func checkRequired(data *domain.RowInvoiceData) []domain.FieldError {
	var errs []domain.FieldError
	if data.CustomerCode == "" {
		errs = append(errs, domain.FieldError{Field: "customer_code", Message: "required"})
	}
	if data.InvoiceDate.IsZero() {
		errs = append(errs, domain.FieldError{Field: "invoice_date", Message: "required"})
	}
	if len(data.Items) == 0 {
		errs = append(errs, domain.FieldError{Field: "items", Message: "at least one line item is required"})
	}
	for i, it := range data.Items {
		if it.Description == "" && it.ProductCode == "" {
			errs = append(errs, domain.FieldError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: "product_code or description is required",
			})
		}
	}
	return errs
}

// checkAmounts applies the same monetary invariants the invoice state
// machine enforces at finalize time, so a row that passes here will not be
// bounced later for arithmetic.
func checkAmounts(data *domain.RowInvoiceData) []domain.FieldError {
	inv := domain.Invoice{
		Subtotal:    data.Subtotal,
		TaxAmount:   data.TaxAmount,
		Discount:    data.Discount,
		TotalAmount: data.TotalAmount,
	}
	items := make([]domain.InvoiceItem, 0, len(data.Items))
	for _, it := range data.Items {
		items = append(items, domain.InvoiceItem{
			Description: it.Description,
			HSCode:      it.HSCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxAmount:   it.TaxAmount,
			TotalValue:  it.TotalValue,
		})
	}
	return inv.ValidateAmounts(items)
}

func (v *rowValidator) checkReferences(ctx context.Context, businessID uuid.UUID, data *domain.RowInvoiceData) ([]domain.FieldError, error) {
	var errs []domain.FieldError

	if data.CustomerCode != "" {
		ok, err := v.customers.ExistsByCode(ctx, businessID, data.CustomerCode)
		if err != nil {
			return nil, fmt.Errorf("rowValidator: customer lookup: %w", err)
		}
		if !ok {
			errs = append(errs, domain.FieldError{
				Field:   "customer_code",
				Message: fmt.Sprintf("unknown customer %q for this business", data.CustomerCode),
			})
		}
	}

	for i, it := range data.Items {
		if it.ProductCode == "" {
			continue
		}
		ok, err := v.products.ExistsByCode(ctx, businessID, it.ProductCode)
		if err != nil {
			return nil, fmt.Errorf("rowValidator: product lookup: %w", err)
		}
		if !ok {
			errs = append(errs, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].product_code", i),
				Message: fmt.Sprintf("unknown product %q for this business", it.ProductCode),
			})
		}
	}
	return errs, nil
}
