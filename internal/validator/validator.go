// Package validator applies per-row validation to batch rows before they are
// submitted anywhere. Rules accumulate field errors; they never mutate the
// frozen row payload.
package validator

import (
	"context"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
)

// RowValidator validates one batch row's frozen invoice payload.
type RowValidator interface {
	// ValidateRow returns whether the row may proceed to submission, plus
	// every field error found in this pass.
	ValidateRow(ctx context.Context, businessID uuid.UUID, data *domain.RowInvoiceData) (bool, []domain.FieldError, error)
}
