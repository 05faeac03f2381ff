package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fbrgate/internal/domain"
	"fbrgate/internal/ingest"
	"fbrgate/internal/port"
	"fbrgate/internal/service"
	"fbrgate/internal/validator"
	"fbrgate/mocks"
)

// uploadFile adapts an in-memory buffer to the multipart.File interface.
type uploadFile struct {
	*bytes.Reader
}

func (uploadFile) Close() error { return nil }

type batchServiceFixture struct {
	batches    *mocks.MockBatchRepo
	items      *mocks.MockBatchItemRepo
	businesses *mocks.MockBusinessRepo
	storage    *mocks.MockObjectStorage
	customers  *mocks.MockCustomerRepo
	products   *mocks.MockProductRepo
	invoices   *mocks.MockInvoiceService
	svc        service.BatchService
}

func newBatchServiceFixture() *batchServiceFixture {
	f := &batchServiceFixture{
		batches:    new(mocks.MockBatchRepo),
		items:      new(mocks.MockBatchItemRepo),
		businesses: new(mocks.MockBusinessRepo),
		storage:    new(mocks.MockObjectStorage),
		customers:  new(mocks.MockCustomerRepo),
		products:   new(mocks.MockProductRepo),
		invoices:   new(mocks.MockInvoiceService),
	}
	worker := service.NewBatchWorker(f.items, f.batches, f.invoices, 1)
	f.svc = service.NewBatchService(
		f.batches, f.items, f.businesses, f.storage,
		ingest.NewIngestor(f.items, 0),
		validator.NewRowValidator(f.customers, f.products),
		worker, "batch-archive", 1,
	)
	return f
}

func uploadInput(business *domain.Business, fileName, content string) *service.UploadBatchInput {
	return &service.UploadBatchInput{
		BusinessID: business.ID,
		UploadedBy: uuid.New(),
		FileName:   fileName,
		FileSize:   int64(len(content)),
		File:       uploadFile{bytes.NewReader([]byte(content))},
	}
}

func TestBatchUpload_RejectsInactiveBusiness(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	business.IsActive = false
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	_, err := f.svc.Upload(context.Background(), uploadInput(business, "rows.csv", "x"))
	assert.ErrorIs(t, err, domain.ErrBusinessInactive)
	f.batches.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBatchUpload_RejectsUnsupportedExtension(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	_, err := f.svc.Upload(context.Background(), uploadInput(business, "rows.pdf", "x"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}

func TestBatchUpload_RejectsOversizedFile(t *testing.T) {
	f := newBatchServiceFixture() // limit is 1 MB
	business := sandboxBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	input := uploadInput(business, "rows.csv", "x")
	input.FileSize = 2 * 1024 * 1024
	_, err := f.svc.Upload(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestBatchUpload_IngestsValidatesAndStartsProcessing(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	f.batches.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.BulkInvoiceBatch).ID = uuid.New()
		}).Return(nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.batches.On("Update", mock.Anything, mock.Anything).Return(nil)
	f.items.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.items.On("Update", mock.Anything, mock.Anything).Return(nil)

	ingested := validatedRow(uuid.New(), 1)
	ingested.Stage = domain.StageIngested
	f.items.On("ListByStage", mock.Anything, mock.Anything, domain.StageIngested).
		Return([]domain.BulkInvoiceItem{ingested}, nil)
	f.customers.On("ExistsByCode", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.products.On("ExistsByCode", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	f.batches.On("RefreshCounters", mock.Anything, mock.Anything, false).
		Return(&domain.BulkInvoiceBatch{
			BusinessID:       business.ID,
			ProcessingStatus: domain.BatchStatusValidating,
			TotalRecords:     1,
			ValidRecords:     1,
		}, nil)

	// the detached submission pass may or may not run before the test ends
	f.items.On("ListByStage", mock.Anything, mock.Anything, domain.StageValidated).
		Return([]domain.BulkInvoiceItem{}, nil).Maybe()

	content := "local_id,customer_code,invoice_date,product_code,description,hs_code," +
		"quantity,unit_price,tax_rate,tax_amount,total_value,subtotal,tax_total,discount,total_amount\n" +
		"row-1,CUST-1,2025-06-01,P-1,Widget,,1,1000,17,170,1000,1000,170,0,1170"

	batch, err := f.svc.Upload(context.Background(), uploadInput(business, "rows.csv", content))
	require.NoError(t, err)

	assert.Equal(t, domain.BatchStatusProcessing, batch.ProcessingStatus)
	assert.Equal(t, domain.BatchValidationValidated, batch.ValidationStatus)
	assert.Equal(t, 1, batch.TotalRecords)

	uploaded := f.storage.Calls[0].Arguments.Get(1).(port.UploadInput)
	assert.Equal(t, "batch-archive", uploaded.Bucket)
	assert.True(t, strings.HasPrefix(uploaded.Key, "batches/"+business.ID.String()+"/"))
	assert.Equal(t, "text/csv", uploaded.ContentType)
}

func TestRetryFailedRows_ResetsOnlyTransientFailures(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	batchID := uuid.New()
	batch := &domain.BulkInvoiceBatch{
		ID:               batchID,
		BusinessID:       business.ID,
		ProcessingStatus: domain.BatchStatusComplete,
	}

	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)
	f.batches.On("GetByID", mock.Anything, business.ID, batchID).Return(batch, nil)

	transient := validatedRow(batchID, 1)
	transient.Stage = domain.StageFailed
	transient.FailureKind = domain.FailureTransient
	permanent := validatedRow(batchID, 2)
	permanent.Stage = domain.StageFailed
	permanent.FailureKind = domain.FailureValidation
	f.items.On("ListByStage", mock.Anything, batchID, domain.StageFailed).
		Return([]domain.BulkInvoiceItem{transient, permanent}, nil)

	var resetRows []int
	f.items.On("Update", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			row := args.Get(1).(*domain.BulkInvoiceItem)
			if row.Stage == domain.StageValidated {
				resetRows = append(resetRows, row.RowNumber)
			}
		}).Return(nil)
	f.batches.On("Update", mock.Anything, mock.Anything).Return(nil)

	// reprocessing pass: nothing to submit once the worker picks the batch up
	f.items.On("ListByStage", mock.Anything, batchID, domain.StageValidated).
		Return([]domain.BulkInvoiceItem{}, nil)
	f.batches.On("RefreshCounters", mock.Anything, batchID, false).
		Return(completedBatch(batchID, business.ID), nil)

	_, err := f.svc.RetryFailedRows(context.Background(), business.ID, batchID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, resetRows, "only the transient failure is re-queued")
}

func TestRetryFailedRows_NothingRetryable(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	batchID := uuid.New()
	batch := &domain.BulkInvoiceBatch{ID: batchID, BusinessID: business.ID}

	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)
	f.batches.On("GetByID", mock.Anything, business.ID, batchID).Return(batch, nil)

	permanent := validatedRow(batchID, 1)
	permanent.Stage = domain.StageFailed
	permanent.FailureKind = domain.FailureValidation
	f.items.On("ListByStage", mock.Anything, batchID, domain.StageFailed).
		Return([]domain.BulkInvoiceItem{permanent}, nil)

	_, err := f.svc.RetryFailedRows(context.Background(), business.ID, batchID)
	assert.ErrorIs(t, err, domain.ErrBatchNotRetryable)
	f.batches.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestBatchCancel(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	batchID := uuid.New()
	batch := &domain.BulkInvoiceBatch{
		ID:               batchID,
		BusinessID:       business.ID,
		ProcessingStatus: domain.BatchStatusProcessing,
	}

	f.batches.On("GetByID", mock.Anything, business.ID, batchID).Return(batch, nil)
	f.batches.On("Update", mock.Anything, mock.Anything).Return(nil)

	cancelled, err := f.svc.Cancel(context.Background(), business.ID, batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, cancelled.ProcessingStatus)
	assert.NotNil(t, cancelled.CompletedAt)
}

func TestBatchCancel_CompletedBatchRejected(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	batchID := uuid.New()
	now := time.Now().UTC()
	batch := &domain.BulkInvoiceBatch{
		ID:               batchID,
		BusinessID:       business.ID,
		ProcessingStatus: domain.BatchStatusComplete,
		CompletedAt:      &now,
	}

	f.batches.On("GetByID", mock.Anything, business.ID, batchID).Return(batch, nil)

	_, err := f.svc.Cancel(context.Background(), business.ID, batchID)
	assert.ErrorIs(t, err, domain.ErrBatchNotCancellable)
	f.batches.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestGetStatus(t *testing.T) {
	f := newBatchServiceFixture()
	business := sandboxBusiness()
	batchID := uuid.New()
	batch := &domain.BulkInvoiceBatch{ID: batchID, BusinessID: business.ID, TotalRecords: 2}

	invoiceID := uuid.New()
	errsJSON, _ := json.Marshal([]domain.FieldError{{Field: "customer_code", Message: "required"}})
	rows := []domain.BulkInvoiceItem{
		{RowNumber: 1, LocalID: "a", Stage: domain.StageSandboxSubmitted, InvoiceID: &invoiceID},
		{RowNumber: 2, LocalID: "b", Stage: domain.StageFailed, FailureKind: domain.FailureValidation, ValidationErrors: errsJSON},
	}
	f.batches.On("GetByID", mock.Anything, business.ID, batchID).Return(batch, nil)
	f.items.On("ListByBatch", mock.Anything, batchID).Return(rows, nil)

	summary, err := f.svc.GetStatus(context.Background(), business.ID, batchID)
	require.NoError(t, err)
	require.Len(t, summary.Rows, 2)
	assert.Equal(t, &invoiceID, summary.Rows[0].InvoiceID)
	assert.Equal(t, domain.FailureValidation, summary.Rows[1].FailureKind)
	assert.JSONEq(t, string(errsJSON), string(summary.Rows[1].ValidationErrors))
}
