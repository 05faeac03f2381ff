package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
	"fbrgate/internal/service"
	"fbrgate/mocks"
)

type invoiceServiceFixture struct {
	invoices   *mocks.MockInvoiceRepo
	businesses *mocks.MockBusinessRepo
	customers  *mocks.MockCustomerRepo
	sequences  *mocks.MockSequenceAllocator
	fbrClient  *mocks.MockFBRClient
	locker     *mocks.MockSubmissionLocker
	alerts     *mocks.MockAlertSender
	svc        service.InvoiceService
}

func newInvoiceFixture() *invoiceServiceFixture {
	f := &invoiceServiceFixture{
		invoices:   new(mocks.MockInvoiceRepo),
		businesses: new(mocks.MockBusinessRepo),
		customers:  new(mocks.MockCustomerRepo),
		sequences:  new(mocks.MockSequenceAllocator),
		fbrClient:  new(mocks.MockFBRClient),
		locker:     new(mocks.MockSubmissionLocker),
		alerts:     new(mocks.MockAlertSender),
	}
	// tight backoff so transient-retry tests finish quickly
	backoff := service.BackoffPolicy{Initial: time.Millisecond, Max: 5 * time.Millisecond, MaxAttempts: 3}
	f.svc = service.NewInvoiceService(
		f.invoices, f.businesses, f.customers, f.sequences, mocks.MockTransactor{},
		f.fbrClient, f.locker, f.alerts, backoff, time.Minute)
	return f
}

func sandboxBusiness() *domain.Business {
	return &domain.Business{
		ID:              uuid.New(),
		Name:            "Acme Traders",
		NTN:             "1234567",
		IntegrationMode: domain.ModeSandbox,
		SandboxToken:    "sbx-token",
		IsActive:        true,
	}
}

func consistentItems() []domain.InvoiceItem {
	return []domain.InvoiceItem{
		{Quantity: 2, UnitPrice: 5000, TotalValue: 10000, TaxRate: 17, TaxAmount: 1700},
	}
}

func draftInvoice(businessID uuid.UUID) *domain.Invoice {
	return &domain.Invoice{
		ID:          uuid.New(),
		BusinessID:  businessID,
		Status:      domain.InvoiceStatusDraft,
		InvoiceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:    10000,
		TaxAmount:   1700,
		TotalAmount: 11700,
	}
}

func seq(v int64) *int64 { return &v }

func (f *invoiceServiceFixture) expectLease() {
	f.locker.On("AcquireInvoiceLease", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func() {}, nil)
	f.locker.On("IsAuthHalted", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
}

func TestFinalize_AllocatesSequenceAndTransitions(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)

	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	f.sequences.On("Allocate", mock.Anything, business.ID).Return(int64(1), nil).Once()
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	err := f.svc.Finalize(context.Background(), business, inv)

	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	require.NotNil(t, inv.InvoiceSequence)
	assert.Equal(t, int64(1), *inv.InvoiceSequence)
	f.sequences.AssertNumberOfCalls(t, "Allocate", 1)
}

func TestFinalize_AmountViolationBlocksWithoutAllocation(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.TotalAmount = 11699 // off by one

	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)

	err := f.svc.Finalize(context.Background(), business, inv)

	var vf *domain.ValidationFailedError
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status, "invoice must stay draft")
	assert.Nil(t, inv.InvoiceSequence, "no sequence may be allocated for an invalid invoice")
	f.sequences.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything)
}

func TestFinalize_ResubmissionKeepsSequence(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusFailed
	inv.InvoiceSequence = seq(7)
	inv.FailureKind = domain.FailureTransient

	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	err := f.svc.Finalize(context.Background(), business, inv)

	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	assert.Equal(t, int64(7), *inv.InvoiceSequence, "resubmission must reuse the sequence")
	assert.Equal(t, domain.FailureNone, inv.FailureKind)
	f.sequences.AssertNotCalled(t, "Allocate", mock.Anything, mock.Anything)
}

func TestFinalize_AllocatorExhaustionWrapsSequenceError(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)

	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	f.sequences.On("Allocate", mock.Anything, business.ID).Return(int64(0), assert.AnError)

	err := f.svc.Finalize(context.Background(), business, inv)

	var seqErr *domain.SequenceError
	require.ErrorAs(t, err, &seqErr)
	f.sequences.AssertNumberOfCalls(t, "Allocate", 3)
}

func TestSubmitPending_TransientRetriesThenSucceeds(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(42)

	f.expectLease()
	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)

	transient := &domain.FBRError{Kind: domain.FBRErrTransient, Code: "HTTP_503", Message: "unavailable"}
	f.fbrClient.On("Submit", mock.Anything, domain.ModeSandbox, "sbx-token", mock.Anything).
		Return(nil, transient).Twice()
	f.fbrClient.On("Submit", mock.Anything, domain.ModeSandbox, "sbx-token", mock.Anything).
		Return(&port.FBRResult{
			Accepted:       true,
			InvoiceNumber:  "FBR-0042",
			TransmissionID: "tx-1",
		}, nil).Once()
	f.invoices.On("Update", mock.Anything, inv).Return(nil)
	f.businesses.On("UpdateIntegration", mock.Anything, business).Return(nil)

	result, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, domain.InvoiceStatusValidated, inv.Status)
	assert.Equal(t, "FBR-0042", inv.FBRInvoiceNumber)
	assert.NotEmpty(t, inv.QRPayload)
	assert.True(t, business.SandboxValidated, "first sandbox validation unlocks production")
	f.fbrClient.AssertNumberOfCalls(t, "Submit", 3)

	// every attempt carries the same idempotency reference
	for _, call := range f.fbrClient.Calls {
		req := call.Arguments.Get(3).(*port.FBRInvoiceRequest)
		assert.Equal(t, "1234567-42", req.BusinessInvoiceRef)
	}
}

func TestSubmitPending_TransientExhaustionFailsRetryable(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(5)

	f.expectLease()
	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	transient := &domain.FBRError{Kind: domain.FBRErrTransient, Code: "NETWORK", Message: "timeout"}
	f.fbrClient.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, transient).Times(3)
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	_, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	require.Error(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, inv.Status)
	assert.Equal(t, domain.FailureTransient, inv.FailureKind)
	f.fbrClient.AssertNumberOfCalls(t, "Submit", 3)
}

func TestSubmitPending_ValidationRejectionFailsPermanently(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(9)

	f.expectLease()
	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	rejection := &domain.FBRError{
		Kind: domain.FBRErrValidation, Code: "REJECTED",
		Message: "payload rejected", Raw: []byte(`{"valid":false}`),
	}
	f.fbrClient.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, rejection).Once()
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	_, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	require.Error(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, inv.Status)
	assert.Equal(t, domain.FailureValidation, inv.FailureKind)
	assert.JSONEq(t, `{"valid":false}`, string(inv.FBRResponse))
	// validation rejections are never retried
	f.fbrClient.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSubmitPending_AuthFailureHaltsAndAlerts(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(3)

	f.expectLease()
	f.invoices.On("ListItems", mock.Anything, inv.ID).Return(consistentItems(), nil)
	authErr := &domain.FBRError{Kind: domain.FBRErrAuth, Code: "HTTP_401", Message: "token expired"}
	f.fbrClient.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, authErr).Once()
	f.locker.On("SetAuthHalt", mock.Anything, business.ID, domain.ModeSandbox, mock.Anything).Return(nil)
	f.alerts.On("SendAuthFailureAlert", mock.Anything, business, domain.ModeSandbox).Return(nil)
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	_, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	require.Error(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, inv.Status)
	assert.Equal(t, domain.FailureAuth, inv.FailureKind)
	// auth failures are never retried
	f.fbrClient.AssertNumberOfCalls(t, "Submit", 1)
	f.locker.AssertCalled(t, "SetAuthHalt", mock.Anything, business.ID, domain.ModeSandbox, mock.Anything)
	f.alerts.AssertCalled(t, "SendAuthFailureAlert", mock.Anything, business, domain.ModeSandbox)
}

func TestSubmitPending_HaltedBusinessShortCircuits(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(4)

	f.locker.On("IsAuthHalted", mock.Anything, business.ID, domain.ModeSandbox).Return(true, nil)
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	_, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	require.Error(t, err)
	kind, ok := domain.FBRKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.FBRErrAuth, kind)
	f.fbrClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPending_LeaseHeldBlocksSubmission(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(6)

	f.locker.On("IsAuthHalted", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.locker.On("AcquireInvoiceLease", mock.Anything, business.ID, int64(6), mock.Anything).
		Return(nil, domain.ErrSubmissionLocked)

	_, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeSandbox)

	assert.ErrorIs(t, err, domain.ErrSubmissionLocked)
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status, "a locked-out attempt changes nothing")
	f.fbrClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitPending_LocalModeValidatesWithoutNetwork(t *testing.T) {
	f := newInvoiceFixture()
	business := sandboxBusiness()
	business.IntegrationMode = domain.ModeLocal
	inv := draftInvoice(business.ID)
	inv.Status = domain.InvoiceStatusPending
	inv.InvoiceSequence = seq(11)

	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	result, err := f.svc.SubmitPending(context.Background(), business, inv, domain.ModeLocal)

	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, domain.InvoiceStatusValidated, inv.Status)
	assert.Equal(t, "LOCAL-1234567-000011", inv.FBRInvoiceNumber)
	assert.NotEmpty(t, inv.QRPayload)
	f.fbrClient.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.locker.AssertNotCalled(t, "AcquireInvoiceLease", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel(t *testing.T) {
	t.Run("draft cancels", func(t *testing.T) {
		f := newInvoiceFixture()
		inv := draftInvoice(uuid.New())
		f.invoices.On("GetByID", mock.Anything, inv.BusinessID, inv.ID).Return(inv, nil)
		f.invoices.On("Update", mock.Anything, inv).Return(nil)

		got, err := f.svc.Cancel(context.Background(), inv.BusinessID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusCancelled, got.Status)
	})

	t.Run("validated cannot cancel", func(t *testing.T) {
		f := newInvoiceFixture()
		inv := draftInvoice(uuid.New())
		inv.Status = domain.InvoiceStatusValidated
		f.invoices.On("GetByID", mock.Anything, inv.BusinessID, inv.ID).Return(inv, nil)

		_, err := f.svc.Cancel(context.Background(), inv.BusinessID, inv.ID)
		var conflict *domain.StateConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}
