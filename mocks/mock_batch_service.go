package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fbrgate/internal/domain"
	"fbrgate/internal/service"
)

// MockBatchService is a mock implementation of service.BatchService.
type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) Upload(ctx context.Context, input *service.UploadBatchInput) (*domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceBatch), args.Error(1)
}

func (m *MockBatchService) GetStatus(ctx context.Context, businessID, batchID uuid.UUID) (*service.BatchSummary, error) {
	args := m.Called(ctx, businessID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchSummary), args.Error(1)
}

func (m *MockBatchService) List(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error) {
	args := m.Called(ctx, businessID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.BulkInvoiceBatch), args.Int(1), args.Error(2)
}

func (m *MockBatchService) ProcessBatch(ctx context.Context, businessID, batchID uuid.UUID) error {
	args := m.Called(ctx, businessID, batchID)
	return args.Error(0)
}

func (m *MockBatchService) RetryFailedRows(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, businessID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceBatch), args.Error(1)
}

func (m *MockBatchService) Cancel(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, businessID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceBatch), args.Error(1)
}
