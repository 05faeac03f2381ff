package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/ingest"
	"fbrgate/internal/port"
	"fbrgate/internal/validator"
)

// UploadBatchInput is the DTO for a bulk file upload.
type UploadBatchInput struct {
	BusinessID uuid.UUID
	UploadedBy uuid.UUID
	FileName   string
	FileSize   int64
	File       multipart.File
}

// BatchRowDetail is one row's view in a batch status response.
type BatchRowDetail struct {
	RowNumber        int                `json:"row_number"`
	LocalID          string             `json:"local_id"`
	Stage            domain.RowStage    `json:"stage"`
	FailureKind      domain.FailureKind `json:"failure_kind,omitempty"`
	ValidationErrors json.RawMessage    `json:"validation_errors,omitempty"`
	InvoiceID        *uuid.UUID         `json:"invoice_id,omitempty"`
}

// BatchSummary is the full status view of a batch.
type BatchSummary struct {
	Batch *domain.BulkInvoiceBatch `json:"batch"`
	Rows  []BatchRowDetail         `json:"rows"`
}

// BatchService orchestrates the bulk pipeline: upload, archive, ingest,
// validate, then hand valid rows to the worker pool for submission.
type BatchService interface {
	Upload(ctx context.Context, input *UploadBatchInput) (*domain.BulkInvoiceBatch, error)
	GetStatus(ctx context.Context, businessID, batchID uuid.UUID) (*BatchSummary, error)
	List(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error)

	// ProcessBatch runs validation and submission for every row that still
	// needs it. Safe to call again on a partially processed batch.
	ProcessBatch(ctx context.Context, businessID, batchID uuid.UUID) error

	// RetryFailedRows resets transiently failed rows and reprocesses them.
	// Rows failed for validation or auth reasons are left alone.
	RetryFailedRows(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error)

	// Cancel stops a batch before submission work begins. Rows already
	// submitted are unaffected; cancellation is not a recall.
	Cancel(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error)
}

var allowedBatchExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

type batchService struct {
	batches    port.BatchRepository
	items      port.BatchItemRepository
	businesses port.BusinessRepository
	storage    port.ObjectStorage
	ingestor   *ingest.Ingestor
	rows       validator.RowValidator
	worker     *BatchWorker
	bucket     string
	maxSize    int64
}

// NewBatchService creates a BatchService.
func NewBatchService(
	batches port.BatchRepository,
	items port.BatchItemRepository,
	businesses port.BusinessRepository,
	storage port.ObjectStorage,
	ingestor *ingest.Ingestor,
	rows validator.RowValidator,
	worker *BatchWorker,
	bucket string,
	maxSizeMB int64,
) BatchService {
	return &batchService{
		batches:    batches,
		items:      items,
		businesses: businesses,
		storage:    storage,
		ingestor:   ingestor,
		rows:       rows,
		worker:     worker,
		bucket:     bucket,
		maxSize:    maxSizeMB * 1024 * 1024,
	}
}

func (s *batchService) Upload(ctx context.Context, input *UploadBatchInput) (*domain.BulkInvoiceBatch, error) {
	business, err := s.businesses.GetByID(ctx, input.BusinessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, domain.ErrBusinessInactive
	}

	ext := strings.ToLower(filepath.Ext(input.FileName))
	if !allowedBatchExtensions[ext] {
		return nil, domain.ErrUnsupportedFileType
	}
	if s.maxSize > 0 && input.FileSize > s.maxSize {
		return nil, domain.ErrFileTooLarge
	}

	batch := &domain.BulkInvoiceBatch{
		BusinessID:       business.ID,
		UploadedBy:       input.UploadedBy,
		FileName:         input.FileName,
		ProcessingStatus: domain.BatchStatusUploading,
		ValidationStatus: domain.BatchValidationPending,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	// buffer once: the same bytes go to the archive and the parser
	content, err := io.ReadAll(input.File)
	if err != nil {
		return nil, s.failBatch(ctx, batch, fmt.Errorf("reading upload: %w", err))
	}

	batch.S3Key = fmt.Sprintf("batches/%s/%s/%s%s", business.ID, batch.ID, time.Now().UTC().Format("20060102T150405"), ext)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         batch.S3Key,
		Body:        bytes.NewReader(content),
		ContentType: contentTypeFor(ext),
	}); err != nil {
		return nil, s.failBatch(ctx, batch, fmt.Errorf("archiving upload: %w", err))
	}

	batch.ProcessingStatus = domain.BatchStatusParsing
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}

	total, err := s.ingestor.Ingest(ctx, batch.ID, input.FileName, bytes.NewReader(content))
	if err != nil {
		return nil, s.failBatch(ctx, batch, err)
	}
	batch.TotalRecords = total

	batch.ProcessingStatus = domain.BatchStatusValidating
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}

	if err := s.validateIngested(ctx, business, batch); err != nil {
		return nil, s.failBatch(ctx, batch, err)
	}

	batch, err = s.batches.RefreshCounters(ctx, batch.ID, business.ProductionEnabled)
	if err != nil {
		return nil, err
	}
	batch.ValidationStatus = validationStatusFor(batch)
	batch.ProcessingStatus = domain.BatchStatusProcessing
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}

	// submission runs detached from the request; status is polled
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.worker.Run(bg, business, batch.ID); err != nil {
			log.Printf("batchService: processing batch %s: %v", batch.ID, err)
		}
	}()

	return batch, nil
}

// validateIngested runs the row validator over every ingested row, advancing
// each to validated or marking it failed with its field errors. A row failure
// never aborts the pass.
func (s *batchService) validateIngested(ctx context.Context, business *domain.Business, batch *domain.BulkInvoiceBatch) error {
	rows, err := s.items.ListByStage(ctx, batch.ID, domain.StageIngested)
	if err != nil {
		return err
	}

	for i := range rows {
		row := &rows[i]

		var data domain.RowInvoiceData
		if err := json.Unmarshal(row.InvoiceData, &data); err != nil {
			markRowFailed(row, domain.FailureValidation, []domain.FieldError{
				{Field: "row", Message: "stored payload is not readable"},
			})
			if err := s.items.Update(ctx, row); err != nil {
				return err
			}
			continue
		}

		ok, fieldErrs, err := s.rows.ValidateRow(ctx, business.ID, &data)
		if err != nil {
			return fmt.Errorf("validating row %d: %w", row.RowNumber, err)
		}
		if !ok {
			markRowFailed(row, domain.FailureValidation, fieldErrs)
		} else if err := row.AdvanceStage(domain.StageValidated); err != nil {
			return err
		}
		if err := s.items.Update(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *batchService) GetStatus(ctx context.Context, businessID, batchID uuid.UUID) (*BatchSummary, error) {
	batch, err := s.batches.GetByID(ctx, businessID, batchID)
	if err != nil {
		return nil, err
	}
	rows, err := s.items.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{Batch: batch, Rows: make([]BatchRowDetail, 0, len(rows))}
	for _, row := range rows {
		summary.Rows = append(summary.Rows, BatchRowDetail{
			RowNumber:        row.RowNumber,
			LocalID:          row.LocalID,
			Stage:            row.Stage,
			FailureKind:      row.FailureKind,
			ValidationErrors: row.ValidationErrors,
			InvoiceID:        row.InvoiceID,
		})
	}
	return summary, nil
}

func (s *batchService) List(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error) {
	return s.batches.ListByBusiness(ctx, businessID, offset, limit)
}

func (s *batchService) ProcessBatch(ctx context.Context, businessID, batchID uuid.UUID) error {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return err
	}
	if _, err := s.batches.GetByID(ctx, businessID, batchID); err != nil {
		return err
	}
	return s.worker.Run(ctx, business, batchID)
}

func (s *batchService) RetryFailedRows(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.GetByID(ctx, businessID, batchID)
	if err != nil {
		return nil, err
	}

	rows, err := s.items.ListByStage(ctx, batchID, domain.StageFailed)
	if err != nil {
		return nil, err
	}

	reset := 0
	for i := range rows {
		row := &rows[i]
		if err := row.ResetForRetry(); err != nil {
			continue // validation and auth failures stay failed
		}
		if err := s.items.Update(ctx, row); err != nil {
			return nil, err
		}
		reset++
	}
	if reset == 0 {
		return batch, domain.ErrBatchNotRetryable
	}

	batch.ProcessingStatus = domain.BatchStatusProcessing
	batch.CompletedAt = nil
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}

	if err := s.worker.Run(ctx, business, batchID); err != nil {
		return batch, err
	}
	return s.batches.GetByID(ctx, businessID, batchID)
}

func (s *batchService) Cancel(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	batch, err := s.batches.GetByID(ctx, businessID, batchID)
	if err != nil {
		return nil, err
	}
	switch batch.ProcessingStatus {
	case domain.BatchStatusUploading, domain.BatchStatusParsing,
		domain.BatchStatusValidating, domain.BatchStatusProcessing:
	default:
		return nil, domain.ErrBatchNotCancellable
	}

	batch.ProcessingStatus = domain.BatchStatusCancelled
	now := time.Now().UTC()
	batch.CompletedAt = &now
	if err := s.batches.Update(ctx, batch); err != nil {
		return nil, err
	}
	s.worker.RequestCancel(batchID)
	return batch, nil
}

func (s *batchService) failBatch(ctx context.Context, batch *domain.BulkInvoiceBatch, cause error) error {
	batch.ProcessingStatus = domain.BatchStatusFailed
	detail, _ := json.Marshal(map[string]string{"error": cause.Error()})
	batch.ErrorDetail = detail
	now := time.Now().UTC()
	batch.CompletedAt = &now
	if err := s.batches.Update(ctx, batch); err != nil {
		log.Printf("batchService: marking batch %s failed: %v", batch.ID, err)
	}
	return cause
}

func validationStatusFor(batch *domain.BulkInvoiceBatch) domain.BatchValidationStatus {
	if batch.InvalidRecords > 0 {
		return domain.BatchValidationFailed
	}
	return domain.BatchValidationValidated
}

func markRowFailed(row *domain.BulkInvoiceItem, kind domain.FailureKind, fieldErrs []domain.FieldError) {
	row.Stage = domain.StageFailed
	row.FailureKind = kind
	row.AppendValidationErrors(fieldErrs)
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
