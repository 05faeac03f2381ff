package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
)

// SubmissionLocker provides the cross-instance coordination primitives the
// submission path needs. Implementations must be safe across multiple
// process instances; an in-process mutex alone is not acceptable here.
type SubmissionLocker interface {
	// AcquireInvoiceLease takes the single-flight lease for one
	// (business, sequence) pair. It returns domain.ErrSubmissionLocked when
	// another worker holds the lease. The returned release function is safe
	// to call once, after the submission attempt finishes.
	AcquireInvoiceLease(ctx context.Context, businessID uuid.UUID, sequence int64, ttl time.Duration) (release func(), err error)

	// SetAuthHalt flags a business+mode as halted after an auth failure so
	// every instance stops submitting for it until an operator intervenes.
	SetAuthHalt(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode, ttl time.Duration) error

	// IsAuthHalted reports whether submissions for a business+mode are
	// currently halted.
	IsAuthHalted(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode) (bool, error)

	// ClearAuthHalt removes the halt flag, typically after a token rotation.
	ClearAuthHalt(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode) error
}
