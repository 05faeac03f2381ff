package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/metrics"
	"fbrgate/internal/port"
	"fbrgate/internal/qr"
)

const (
	sequenceRetryAttempts = 3
	defaultLeaseTTL       = 60 * time.Second
)

// InvoiceItemInput is the DTO for one invoice line at creation time.
type InvoiceItemInput struct {
	Description string
	HSCode      string
	Quantity    int64
	UnitPrice   int64
	TaxRate     float64
	TaxAmount   int64
	TotalValue  int64
}

// CreateInvoiceInput is the DTO for creating a draft invoice.
type CreateInvoiceInput struct {
	BusinessID   uuid.UUID
	CustomerCode string
	InvoiceDate  time.Time
	Items        []InvoiceItemInput
	Subtotal     int64
	TaxAmount    int64
	Discount     int64
	TotalAmount  int64
}

// InvoiceService drives the invoice submission state machine. Status changes
// happen only through domain transition guards; every FBR call is classified
// and recorded.
type InvoiceService interface {
	Create(ctx context.Context, input *CreateInvoiceInput) (*domain.Invoice, error)
	CreateFromRow(ctx context.Context, businessID uuid.UUID, data *domain.RowInvoiceData) (*domain.Invoice, error)
	GetByID(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)
	ListItems(ctx context.Context, businessID, invoiceID uuid.UUID) ([]domain.InvoiceItem, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Invoice, int, error)

	// Submit drives an invoice from draft (or failed, for resubmission) all
	// the way through the business's current integration mode. The invoice
	// returned reflects the final persisted state; err carries the FBR
	// classification when the submission did not validate.
	Submit(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)
	Cancel(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)

	// Finalize performs draft->pending (or failed->pending on resubmission):
	// monetary invariants are checked and the sequence is allocated exactly
	// once, inside the transaction that persists the transition.
	Finalize(ctx context.Context, business *domain.Business, inv *domain.Invoice) error

	// SubmitPending performs pending->submitted->{validated|failed} against
	// the given mode, with bounded retry on transient failures.
	SubmitPending(ctx context.Context, business *domain.Business, inv *domain.Invoice, mode domain.IntegrationMode) (*port.FBRResult, error)

	// SandboxPreflight submits the payload to sandbox without touching the
	// invoice's state machine. Used by the bulk path when production is the
	// authoritative target.
	SandboxPreflight(ctx context.Context, business *domain.Business, inv *domain.Invoice) (*port.FBRResult, error)
}

type invoiceService struct {
	invoices   port.InvoiceRepository
	businesses port.BusinessRepository
	customers  port.CustomerRepository
	sequences  port.SequenceAllocator
	tx         port.Transactor
	fbr        port.FBRClient
	locker     port.SubmissionLocker
	alerts     port.AlertSender
	backoff    BackoffPolicy
	leaseTTL   time.Duration
}

// NewInvoiceService creates an InvoiceService.
func NewInvoiceService(
	invoices port.InvoiceRepository,
	businesses port.BusinessRepository,
	customers port.CustomerRepository,
	sequences port.SequenceAllocator,
	tx port.Transactor,
	fbrClient port.FBRClient,
	locker port.SubmissionLocker,
	alerts port.AlertSender,
	backoff BackoffPolicy,
	leaseTTL time.Duration,
) InvoiceService {
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &invoiceService{
		invoices:   invoices,
		businesses: businesses,
		customers:  customers,
		sequences:  sequences,
		tx:         tx,
		fbr:        fbrClient,
		locker:     locker,
		alerts:     alerts,
		backoff:    backoff.normalized(),
		leaseTTL:   leaseTTL,
	}
}

func (s *invoiceService) Create(ctx context.Context, input *CreateInvoiceInput) (*domain.Invoice, error) {
	business, err := s.businesses.GetByID(ctx, input.BusinessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, domain.ErrBusinessInactive
	}

	inv := &domain.Invoice{
		BusinessID:  business.ID,
		Status:      domain.InvoiceStatusDraft,
		Mode:        business.IntegrationMode,
		InvoiceDate: input.InvoiceDate,
		Subtotal:    input.Subtotal,
		TaxAmount:   input.TaxAmount,
		Discount:    input.Discount,
		TotalAmount: input.TotalAmount,
	}

	if input.CustomerCode != "" {
		customer, err := s.customers.GetByCode(ctx, business.ID, input.CustomerCode)
		if err != nil {
			return nil, fmt.Errorf("resolving customer %q: %w", input.CustomerCode, err)
		}
		inv.CustomerID = &customer.ID
	}

	items := make([]domain.InvoiceItem, 0, len(input.Items))
	for _, it := range input.Items {
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

	if err := s.invoices.Create(ctx, inv, items); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) CreateFromRow(ctx context.Context, businessID uuid.UUID, data *domain.RowInvoiceData) (*domain.Invoice, error) {
	input := &CreateInvoiceInput{
		BusinessID:   businessID,
		CustomerCode: data.CustomerCode,
		InvoiceDate:  data.InvoiceDate,
		Subtotal:     data.Subtotal,
		TaxAmount:    data.TaxAmount,
		Discount:     data.Discount,
		TotalAmount:  data.TotalAmount,
	}
	for _, it := range data.Items {
		input.Items = append(input.Items, InvoiceItemInput{
			Description: it.Description,
			HSCode:      it.HSCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxAmount:   it.TaxAmount,
			TotalValue:  it.TotalValue,
		})
	}
	return s.Create(ctx, input)
}

func (s *invoiceService) GetByID(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.invoices.GetByID(ctx, businessID, invoiceID)
}

func (s *invoiceService) ListItems(ctx context.Context, businessID, invoiceID uuid.UUID) ([]domain.InvoiceItem, error) {
	if _, err := s.invoices.GetByID(ctx, businessID, invoiceID); err != nil {
		return nil, err
	}
	return s.invoices.ListItems(ctx, invoiceID)
}

func (s *invoiceService) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Invoice, int, error) {
	return s.invoices.ListByBusiness(ctx, businessID, offset, limit)
}

func (s *invoiceService) Submit(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, domain.ErrBusinessInactive
	}

	inv, err := s.invoices.GetByID(ctx, businessID, invoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case domain.InvoiceStatusDraft, domain.InvoiceStatusFailed:
		if err := s.Finalize(ctx, business, inv); err != nil {
			return inv, err
		}
	case domain.InvoiceStatusPending:
		// a prior attempt finalized but never concluded; resume
	default:
		return inv, &domain.StateConflictError{
			Entity: "invoice", From: string(inv.Status), To: string(domain.InvoiceStatusPending),
		}
	}

	inv.Mode = business.IntegrationMode
	_, err = s.SubmitPending(ctx, business, inv, business.IntegrationMode)
	return inv, err
}

func (s *invoiceService) Cancel(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, businessID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.TransitionTo(domain.InvoiceStatusCancelled); err != nil {
		return inv, err
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) Finalize(ctx context.Context, business *domain.Business, inv *domain.Invoice) error {
	if !domain.CanTransition(inv.Status, domain.InvoiceStatusPending) {
		return &domain.StateConflictError{
			Entity: "invoice", From: string(inv.Status), To: string(domain.InvoiceStatusPending),
		}
	}

	items, err := s.invoices.ListItems(ctx, inv.ID)
	if err != nil {
		return err
	}
	if fieldErrs := inv.ValidateAmounts(items); len(fieldErrs) > 0 {
		// invoice stays in its current status
		return &domain.ValidationFailedError{Fields: fieldErrs}
	}

	finalize := func(ctx context.Context) error {
		if inv.InvoiceSequence == nil {
			seq, err := s.sequences.Allocate(ctx, business.ID)
			if err != nil {
				return err
			}
			inv.InvoiceSequence = &seq
			metrics.SequenceAllocations.Inc()
		}
		if err := inv.TransitionTo(domain.InvoiceStatusPending); err != nil {
			return err
		}
		inv.FailureKind = domain.FailureNone
		return s.invoices.Update(ctx, inv)
	}

	// Allocator storage failures are retried a small fixed number of times;
	// each retry reruns the whole transaction so an aborted attempt rolls the
	// increment back and leaves no gap.
	var lastErr error
	for attempt := 1; attempt <= sequenceRetryAttempts; attempt++ {
		lastErr = s.tx.WithTransaction(ctx, finalize)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, domain.ErrBusinessNotFound) {
			return lastErr
		}
		var conflict *domain.StateConflictError
		if errors.As(lastErr, &conflict) {
			return lastErr
		}
		// reset for the next transaction attempt
		inv.Status = rollbackStatus(inv.Status)
		log.Printf("invoiceService: finalize attempt %d for invoice %s failed: %v", attempt, inv.ID, lastErr)
	}
	return &domain.SequenceError{BusinessID: business.ID.String(), Err: lastErr}
}

// rollbackStatus undoes an in-memory pending transition after a failed
// transaction so the next attempt starts from the persisted status.
func rollbackStatus(status domain.InvoiceStatus) domain.InvoiceStatus {
	if status == domain.InvoiceStatusPending {
		return domain.InvoiceStatusDraft
	}
	return status
}

func (s *invoiceService) SubmitPending(ctx context.Context, business *domain.Business, inv *domain.Invoice, mode domain.IntegrationMode) (*port.FBRResult, error) {
	if inv.Status != domain.InvoiceStatusPending {
		return nil, &domain.StateConflictError{
			Entity: "invoice", From: string(inv.Status), To: string(domain.InvoiceStatusSubmitted),
		}
	}
	if inv.InvoiceSequence == nil {
		return nil, fmt.Errorf("invoice %s is pending without a sequence", inv.ID)
	}

	if mode == domain.ModeLocal {
		return s.concludeLocal(ctx, business, inv)
	}

	result, err := s.callWithRetry(ctx, business, inv, mode)
	if err != nil {
		return nil, s.concludeFailure(ctx, inv, err)
	}
	if err := s.concludeSuccess(ctx, inv, result); err != nil {
		return result, err
	}
	if mode == domain.ModeSandbox && !business.SandboxValidated {
		s.markSandboxValidated(ctx, business)
	}
	return result, nil
}

// markSandboxValidated records the business's first accepted sandbox
// submission, which unlocks production enablement.
func (s *invoiceService) markSandboxValidated(ctx context.Context, business *domain.Business) {
	business.SandboxValidated = true
	if err := s.businesses.UpdateIntegration(ctx, business); err != nil {
		log.Printf("invoiceService: marking sandbox validated for business %s: %v", business.ID, err)
	}
}

func (s *invoiceService) SandboxPreflight(ctx context.Context, business *domain.Business, inv *domain.Invoice) (*port.FBRResult, error) {
	if inv.InvoiceSequence == nil {
		return nil, fmt.Errorf("invoice %s has no sequence; finalize before preflight", inv.ID)
	}
	return s.callWithRetry(ctx, business, inv, domain.ModeSandbox)
}

// callWithRetry performs the external call with the single-flight lease held
// and bounded exponential backoff on transient failures. Auth failures halt
// the business+mode across all instances and alert the operator.
func (s *invoiceService) callWithRetry(ctx context.Context, business *domain.Business, inv *domain.Invoice, mode domain.IntegrationMode) (*port.FBRResult, error) {
	halted, err := s.locker.IsAuthHalted(ctx, business.ID, mode)
	if err != nil {
		return nil, err
	}
	if halted {
		return nil, &domain.FBRError{
			Kind:    domain.FBRErrAuth,
			Code:    "AUTH_HALTED",
			Message: fmt.Sprintf("submissions for %s are halted pending token rotation", mode),
		}
	}

	release, err := s.locker.AcquireInvoiceLease(ctx, business.ID, *inv.InvoiceSequence, s.leaseTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := s.buildRequest(ctx, business, inv)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.backoff.MaxAttempts; attempt++ {
		if err := sleepCtx(ctx, s.backoff.Delay(attempt)); err != nil {
			return nil, err
		}

		start := time.Now()
		result, err := s.fbr.Submit(ctx, mode, business.Token(mode), req)
		metrics.FBRSubmitDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.FBRSubmissions.WithLabelValues(string(mode), "accepted").Inc()
			return result, nil
		}
		lastErr = err

		kind, ok := domain.FBRKindOf(err)
		if !ok {
			return nil, err
		}
		metrics.FBRSubmissions.WithLabelValues(string(mode), string(kind)).Inc()

		switch kind {
		case domain.FBRErrTransient:
			log.Printf("invoiceService: transient FBR failure for invoice %s (attempt %d/%d): %v",
				inv.ID, attempt, s.backoff.MaxAttempts, err)
			continue
		case domain.FBRErrAuth:
			s.handleAuthFailure(ctx, business, mode)
			return nil, err
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *invoiceService) handleAuthFailure(ctx context.Context, business *domain.Business, mode domain.IntegrationMode) {
	// The halt flag stops every instance from burning rate-limit budget on a
	// dead token; it expires on its own so a rotated token resumes service.
	if err := s.locker.SetAuthHalt(ctx, business.ID, mode, 24*time.Hour); err != nil {
		log.Printf("invoiceService: setting auth halt for business %s: %v", business.ID, err)
	}
	if err := s.alerts.SendAuthFailureAlert(ctx, business, mode); err != nil {
		log.Printf("invoiceService: sending auth alert for business %s: %v", business.ID, err)
	}
}

func (s *invoiceService) buildRequest(ctx context.Context, business *domain.Business, inv *domain.Invoice) (*port.FBRInvoiceRequest, error) {
	items, err := s.invoices.ListItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	req := &port.FBRInvoiceRequest{
		BusinessNTN:        business.NTN,
		BusinessInvoiceRef: fmt.Sprintf("%s-%d", business.NTN, *inv.InvoiceSequence),
		InvoiceDate:        inv.InvoiceDate,
		Subtotal:           inv.Subtotal,
		TaxAmount:          inv.TaxAmount,
		Discount:           inv.Discount,
		TotalAmount:        inv.TotalAmount,
	}
	if inv.CustomerID != nil {
		customer, err := s.customers.GetByID(ctx, business.ID, *inv.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolving buyer %s: %w", *inv.CustomerID, err)
		}
		req.BuyerNTN = customer.NTN
		req.BuyerName = customer.Name
	}
	for _, it := range items {
		req.Items = append(req.Items, port.FBRLineItem{
			Description: it.Description,
			HSCode:      it.HSCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxAmount:   it.TaxAmount,
			TotalValue:  it.TotalValue,
		})
	}
	return req, nil
}

func (s *invoiceService) concludeLocal(ctx context.Context, business *domain.Business, inv *domain.Invoice) (*port.FBRResult, error) {
	if err := inv.TransitionTo(domain.InvoiceStatusSubmitted); err != nil {
		return nil, err
	}
	if err := inv.TransitionTo(domain.InvoiceStatusValidated); err != nil {
		return nil, err
	}
	inv.FBRInvoiceNumber = fmt.Sprintf("LOCAL-%s-%06d", business.NTN, *inv.InvoiceSequence)
	inv.QRPayload = qr.Payload(inv.FBRInvoiceNumber, inv.TotalAmount, inv.InvoiceDate)
	inv.FailureKind = domain.FailureNone
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return &port.FBRResult{Accepted: true, InvoiceNumber: inv.FBRInvoiceNumber}, nil
}

func (s *invoiceService) concludeSuccess(ctx context.Context, inv *domain.Invoice, result *port.FBRResult) error {
	if err := inv.TransitionTo(domain.InvoiceStatusSubmitted); err != nil {
		return err
	}
	if err := inv.TransitionTo(domain.InvoiceStatusValidated); err != nil {
		return err
	}
	inv.FBRTransmissionID = result.TransmissionID
	inv.FBRAcknowledgmentNumber = result.AcknowledgmentNumber
	inv.FBRInvoiceNumber = result.InvoiceNumber
	inv.FBRResponse = result.Raw
	inv.FailureKind = domain.FailureNone
	inv.QRPayload = qr.Payload(inv.FBRInvoiceNumber, inv.TotalAmount, inv.InvoiceDate)
	return s.invoices.Update(ctx, inv)
}

// concludeFailure records a classified failure on the invoice. Transient
// failures that exhausted their retry budget leave the invoice failed but
// resubmittable with the same sequence.
func (s *invoiceService) concludeFailure(ctx context.Context, inv *domain.Invoice, cause error) error {
	var fe *domain.FBRError
	if !errors.As(cause, &fe) {
		return cause
	}

	if err := inv.TransitionTo(domain.InvoiceStatusSubmitted); err != nil {
		return err
	}
	if err := inv.TransitionTo(domain.InvoiceStatusFailed); err != nil {
		return err
	}
	inv.FailureKind = domain.FailureKindOf(cause)
	if len(fe.Raw) > 0 {
		inv.FBRResponse = fe.Raw
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return err
	}
	return cause
}
