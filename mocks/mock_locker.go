package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fbrgate/internal/domain"
)

// MockSubmissionLocker is a mock implementation of port.SubmissionLocker.
type MockSubmissionLocker struct {
	mock.Mock
}

func (m *MockSubmissionLocker) AcquireInvoiceLease(ctx context.Context, businessID uuid.UUID, sequence int64, ttl time.Duration) (func(), error) {
	args := m.Called(ctx, businessID, sequence, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func (m *MockSubmissionLocker) SetAuthHalt(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode, ttl time.Duration) error {
	args := m.Called(ctx, businessID, mode, ttl)
	return args.Error(0)
}

func (m *MockSubmissionLocker) IsAuthHalted(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode) (bool, error) {
	args := m.Called(ctx, businessID, mode)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubmissionLocker) ClearAuthHalt(ctx context.Context, businessID uuid.UUID, mode domain.IntegrationMode) error {
	args := m.Called(ctx, businessID, mode)
	return args.Error(0)
}

// MockAlertSender is a mock implementation of port.AlertSender.
type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendAuthFailureAlert(ctx context.Context, business *domain.Business, mode domain.IntegrationMode) error {
	args := m.Called(ctx, business, mode)
	return args.Error(0)
}
