package noop

import (
	"context"
	"log"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op AlertSender that logs alerts to stdout.
func NewNoopSender() port.AlertSender {
	return &noopSender{}
}

func (s *noopSender) SendAuthFailureAlert(_ context.Context, business *domain.Business, mode domain.IntegrationMode) error {
	log.Printf("[NOOP ALERT] FBR %s token rejected for business %s (%s); submissions halted",
		mode, business.Name, business.ID)
	return nil
}
