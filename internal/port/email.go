package port

import (
	"context"

	"fbrgate/internal/domain"
)

// AlertSender defines the contract for operator notifications.
type AlertSender interface {
	// SendAuthFailureAlert tells the business operator that the FBR token for
	// the given mode was rejected and submissions are halted.
	SendAuthFailureAlert(ctx context.Context, business *domain.Business, mode domain.IntegrationMode) error
}
