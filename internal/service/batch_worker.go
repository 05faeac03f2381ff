package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/metrics"
	"fbrgate/internal/port"
)

// BatchWorker submits a batch's validated rows through a bounded worker pool.
// Each row is isolated: its invoice, its lease, its outcome. An auth failure
// short-circuits the rest of the batch since every remaining row would hit the
// same dead token.
type BatchWorker struct {
	items    port.BatchItemRepository
	batches  port.BatchRepository
	invoices InvoiceService
	poolSize int

	mu        sync.Mutex
	cancelled map[uuid.UUID]bool
}

// NewBatchWorker creates a BatchWorker with the given pool size.
func NewBatchWorker(items port.BatchItemRepository, batches port.BatchRepository, invoices InvoiceService, poolSize int) *BatchWorker {
	if poolSize <= 0 {
		poolSize = 8
	}
	return &BatchWorker{
		items:     items,
		batches:   batches,
		invoices:  invoices,
		poolSize:  poolSize,
		cancelled: make(map[uuid.UUID]bool),
	}
}

// RequestCancel marks a batch so no further rows are dispatched. Rows already
// in flight run to completion.
func (w *BatchWorker) RequestCancel(batchID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelled[batchID] = true
}

func (w *BatchWorker) isCancelled(batchID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled[batchID]
}

func (w *BatchWorker) clearCancel(batchID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.cancelled, batchID)
}

// Run drives every validated row of the batch through submission and then
// refreshes the batch's counters. It returns once all dispatched rows finish.
func (w *BatchWorker) Run(ctx context.Context, business *domain.Business, batchID uuid.UUID) error {
	defer w.clearCancel(batchID)

	rows, err := w.items.ListByStage(ctx, batchID, domain.StageValidated)
	if err != nil {
		return err
	}
	if business.ProductionEnabled {
		// a row that got its sandbox pre-flight but not its production call
		// is still non-terminal; pick it up where it stopped
		resumed, err := w.items.ListByStage(ctx, batchID, domain.StageSandboxSubmitted)
		if err != nil {
			return err
		}
		rows = append(rows, resumed...)
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, w.poolSize)
		authStop = make(chan struct{})
		authOnce sync.Once
	)

dispatch:
	for i := range rows {
		if w.isCancelled(batchID) {
			log.Printf("batchWorker: batch %s cancelled, %d rows not dispatched", batchID, len(rows)-i)
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		// the halt closes before the failing worker frees its slot, so this
		// check observes it once a slot is available
		select {
		case <-authStop:
			<-sem
			break dispatch
		default:
		}

		wg.Add(1)
		go func(row domain.BulkInvoiceItem) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := w.processRow(ctx, business, &row); err != nil {
				if domain.FailureKindOf(err) == domain.FailureAuth {
					authOnce.Do(func() { close(authStop) })
				}
				log.Printf("batchWorker: batch %s row %d: %v", batchID, row.RowNumber, err)
			}
		}(rows[i])
	}
	wg.Wait()

	w.finishBatch(ctx, business, batchID)
	return nil
}

// processRow drives one row end to end. Production-enabled businesses get a
// sandbox pre-flight first; its outcome is recorded on the row only, and the
// production call decides the invoice's fate. With production off, the sandbox
// call is the authoritative one.
func (w *BatchWorker) processRow(ctx context.Context, business *domain.Business, row *domain.BulkInvoiceItem) error {
	var data domain.RowInvoiceData
	if err := json.Unmarshal(row.InvoiceData, &data); err != nil {
		return w.failRow(ctx, row, domain.FailureValidation, fmt.Errorf("row payload unreadable: %w", err))
	}

	inv, err := w.ensureInvoice(ctx, business, row, &data)
	if err != nil {
		return err
	}

	if inv.Status == domain.InvoiceStatusDraft || inv.Status == domain.InvoiceStatusFailed {
		if err := w.invoices.Finalize(ctx, business, inv); err != nil {
			return w.failRow(ctx, row, domain.FailureKindOf(err), err)
		}
	}

	switch {
	case business.IntegrationMode == domain.ModeLocal:
		if _, err := w.invoices.SubmitPending(ctx, business, inv, domain.ModeLocal); err != nil {
			return w.failRow(ctx, row, domain.FailureKindOf(err), err)
		}
		return w.recordStages(ctx, row, domain.StageSandboxSubmitted)

	case business.ProductionEnabled:
		return w.submitTwoPhase(ctx, business, row, inv)

	default:
		result, err := w.invoices.SubmitPending(ctx, business, inv, domain.ModeSandbox)
		if err != nil {
			row.SandboxResponse = rawOf(err)
			return w.failRow(ctx, row, domain.FailureKindOf(err), err)
		}
		row.SandboxResponse = result.Raw
		metrics.BatchRowsProcessed.WithLabelValues("sandbox_validated").Inc()
		return w.recordStages(ctx, row, domain.StageSandboxSubmitted)
	}
}

func (w *BatchWorker) submitTwoPhase(ctx context.Context, business *domain.Business, row *domain.BulkInvoiceItem, inv *domain.Invoice) error {
	if row.Stage == domain.StageValidated {
		preflight, err := w.invoices.SandboxPreflight(ctx, business, inv)
		if err != nil {
			row.SandboxResponse = rawOf(err)
			return w.failRow(ctx, row, domain.FailureKindOf(err), err)
		}
		row.SandboxResponse = preflight.Raw
		if err := w.recordStages(ctx, row, domain.StageSandboxSubmitted); err != nil {
			return err
		}
	}

	result, err := w.invoices.SubmitPending(ctx, business, inv, domain.ModeProduction)
	if err != nil {
		row.ProductionResponse = rawOf(err)
		return w.failRow(ctx, row, domain.FailureKindOf(err), err)
	}
	row.ProductionResponse = result.Raw
	metrics.BatchRowsProcessed.WithLabelValues("production_submitted").Inc()
	return w.recordStages(ctx, row, domain.StageProductionSubmitted)
}

// ensureInvoice creates the row's invoice on first contact and reuses it on
// every retry, so a re-driven row never allocates a second sequence.
func (w *BatchWorker) ensureInvoice(ctx context.Context, business *domain.Business, row *domain.BulkInvoiceItem, data *domain.RowInvoiceData) (*domain.Invoice, error) {
	if row.InvoiceID != nil {
		inv, err := w.invoices.GetByID(ctx, business.ID, *row.InvoiceID)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, domain.ErrInvoiceNotFound) {
			return nil, err
		}
	}

	inv, err := w.invoices.CreateFromRow(ctx, business.ID, data)
	if err != nil {
		return nil, w.failRow(ctx, row, domain.FailureValidation, err)
	}
	row.InvoiceID = &inv.ID
	if err := w.items.Update(ctx, row); err != nil {
		return nil, err
	}
	return inv, nil
}

func (w *BatchWorker) recordStages(ctx context.Context, row *domain.BulkInvoiceItem, to domain.RowStage) error {
	if err := row.AdvanceStage(to); err != nil {
		return err
	}
	row.FailureKind = domain.FailureNone
	return w.items.Update(ctx, row)
}

// failRow records the classified failure on the row and returns the cause so
// the dispatcher can inspect it. The row's invoice keeps its own failed state.
func (w *BatchWorker) failRow(ctx context.Context, row *domain.BulkInvoiceItem, kind domain.FailureKind, cause error) error {
	row.Stage = domain.StageFailed
	if kind == domain.FailureNone {
		kind = domain.FailureValidation
	}
	row.FailureKind = kind

	var vf *domain.ValidationFailedError
	if errors.As(cause, &vf) {
		row.AppendValidationErrors(vf.Fields)
	}

	metrics.BatchRowsProcessed.WithLabelValues("failed_" + string(kind)).Inc()
	if err := w.items.Update(ctx, row); err != nil {
		log.Printf("batchWorker: persisting failed row %s: %v", row.ID, err)
	}
	return cause
}

func (w *BatchWorker) finishBatch(ctx context.Context, business *domain.Business, batchID uuid.UUID) {
	batch, err := w.batches.RefreshCounters(ctx, batchID, business.ProductionEnabled)
	if err != nil {
		log.Printf("batchWorker: refreshing counters for batch %s: %v", batchID, err)
		return
	}
	if batch.ProcessingStatus == domain.BatchStatusCancelled {
		return
	}
	if batch.CompletedAt != nil && batch.ProcessingStatus != domain.BatchStatusComplete {
		batch.ProcessingStatus = domain.BatchStatusComplete
		if err := w.batches.Update(ctx, batch); err != nil {
			log.Printf("batchWorker: completing batch %s: %v", batchID, err)
		}
	}
}

// rawOf extracts the authority's raw response from a classified error, if any.
func rawOf(err error) json.RawMessage {
	var fe *domain.FBRError
	if errors.As(err, &fe) && len(fe.Raw) > 0 {
		return fe.Raw
	}
	return nil
}
