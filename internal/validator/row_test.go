package validator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fbrgate/internal/domain"
	"fbrgate/internal/validator"
	"fbrgate/mocks"
)

func consistentRow() *domain.RowInvoiceData {
	return &domain.RowInvoiceData{
		LocalID:      "row-1",
		CustomerCode: "CUST-1",
		InvoiceDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Items: []domain.RowLineItem{
			{ProductCode: "P-1", Description: "Widget", Quantity: 2, UnitPrice: 500, TotalValue: 1000, TaxRate: 17, TaxAmount: 170},
		},
		Subtotal:    1000,
		TaxAmount:   170,
		TotalAmount: 1170,
	}
}

func knownCodes(customers *mocks.MockCustomerRepo, products *mocks.MockProductRepo) {
	customers.On("ExistsByCode", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	products.On("ExistsByCode", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
}

func TestValidateRow_Consistent(t *testing.T) {
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	knownCodes(customers, products)
	v := validator.NewRowValidator(customers, products)

	ok, errs, err := v.ValidateRow(context.Background(), uuid.New(), consistentRow())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateRow_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.RowInvoiceData)
		field  string
	}{
		{"missing customer code", func(d *domain.RowInvoiceData) { d.CustomerCode = "" }, "customer_code"},
		{"missing invoice date", func(d *domain.RowInvoiceData) { d.InvoiceDate = time.Time{} }, "invoice_date"},
		{"no line items", func(d *domain.RowInvoiceData) { d.Items = nil }, "items"},
		{
			"item without product or description",
			func(d *domain.RowInvoiceData) { d.Items[0].ProductCode = ""; d.Items[0].Description = "" },
			"items[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			customers := new(mocks.MockCustomerRepo)
			products := new(mocks.MockProductRepo)
			knownCodes(customers, products)
			v := validator.NewRowValidator(customers, products)

			data := consistentRow()
			tt.mutate(data)

			ok, errs, err := v.ValidateRow(context.Background(), uuid.New(), data)
			require.NoError(t, err)
			assert.False(t, ok)
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

func TestValidateRow_AmountMismatch(t *testing.T) {
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	knownCodes(customers, products)
	v := validator.NewRowValidator(customers, products)

	data := consistentRow()
	data.TotalAmount = 9999

	ok, errs, err := v.ValidateRow(context.Background(), uuid.New(), data)
	require.NoError(t, err)
	assert.False(t, ok)
	found := false
	for _, fe := range errs {
		if fe.Field == "total_amount" {
			found = true
		}
	}
	assert.True(t, found, "got %v", errs)
}

func TestValidateRow_UnknownCodes(t *testing.T) {
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	businessID := uuid.New()
	customers.On("ExistsByCode", mock.Anything, businessID, "CUST-1").Return(false, nil)
	products.On("ExistsByCode", mock.Anything, businessID, "P-1").Return(false, nil)
	v := validator.NewRowValidator(customers, products)

	ok, errs, err := v.ValidateRow(context.Background(), businessID, consistentRow())
	require.NoError(t, err)
	assert.False(t, ok)

	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "customer_code")
	assert.Contains(t, fields, "items[0].product_code")
}

func TestValidateRow_LookupErrorPropagates(t *testing.T) {
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	customers.On("ExistsByCode", mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("connection reset"))
	v := validator.NewRowValidator(customers, products)

	_, _, err := v.ValidateRow(context.Background(), uuid.New(), consistentRow())
	require.Error(t, err, "infrastructure failures must not masquerade as row rejections")
}
