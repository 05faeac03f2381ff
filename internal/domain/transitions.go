package domain

// invoiceTransitions is the single source of truth for legal status moves.
// Failed is re-enterable into pending (resubmission after correction);
// validated and cancelled are terminal.
var invoiceTransitions = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceStatusDraft: {
		InvoiceStatusPending:   true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusPending: {
		InvoiceStatusSubmitted: true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusSubmitted: {
		InvoiceStatusValidated: true,
		InvoiceStatusFailed:    true,
	},
	InvoiceStatusFailed: {
		InvoiceStatusPending: true,
	},
}

// CanTransition reports whether the move from one status to another is legal.
func CanTransition(from, to InvoiceStatus) bool {
	return invoiceTransitions[from][to]
}

// TransitionTo mutates the invoice status, or returns a *StateConflictError
// if the state table forbids the move. This is the only way status changes.
func (i *Invoice) TransitionTo(to InvoiceStatus) error {
	if !CanTransition(i.Status, to) {
		return &StateConflictError{Entity: "invoice", From: string(i.Status), To: string(to)}
	}
	i.Status = to
	return nil
}

// AdvanceStage moves a batch row forward in the progress order, or to
// StageFailed from any non-terminal stage. Skipping a stage or moving
// backwards is a conflict.
func (r *BulkInvoiceItem) AdvanceStage(to RowStage) error {
	if r.Stage == StageFailed || r.Stage == StageProductionSubmitted {
		return &StateConflictError{Entity: "batch row", From: string(r.Stage), To: string(to)}
	}
	if to == StageFailed {
		r.Stage = StageFailed
		return nil
	}
	if to.Rank() != r.Stage.Rank()+1 {
		return &StateConflictError{Entity: "batch row", From: string(r.Stage), To: string(to)}
	}
	r.Stage = to
	return nil
}

// ResetForRetry moves a failed row back to validated so the worker pool picks
// it up again. Only rows that failed for a retryable reason qualify.
func (r *BulkInvoiceItem) ResetForRetry() error {
	if r.Stage != StageFailed || r.FailureKind != FailureTransient {
		return &StateConflictError{Entity: "batch row", From: string(r.Stage), To: string(StageValidated)}
	}
	r.Stage = StageValidated
	r.FailureKind = FailureNone
	return nil
}
