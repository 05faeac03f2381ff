package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fbrgate/internal/domain"
)

// MockBatchRepo is a mock implementation of port.BatchRepository.
type MockBatchRepo struct {
	mock.Mock
}

func (m *MockBatchRepo) Create(ctx context.Context, batch *domain.BulkInvoiceBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepo) GetByID(ctx context.Context, businessID, batchID uuid.UUID) (*domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, businessID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceBatch), args.Error(1)
}

func (m *MockBatchRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.BulkInvoiceBatch, int, error) {
	args := m.Called(ctx, businessID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.BulkInvoiceBatch), args.Int(1), args.Error(2)
}

func (m *MockBatchRepo) Update(ctx context.Context, batch *domain.BulkInvoiceBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepo) RefreshCounters(ctx context.Context, batchID uuid.UUID, productionEnabled bool) (*domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, batchID, productionEnabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceBatch), args.Error(1)
}

func (m *MockBatchRepo) ListWithRetryableRows(ctx context.Context, limit int) ([]domain.BulkInvoiceBatch, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BulkInvoiceBatch), args.Error(1)
}

// MockBatchItemRepo is a mock implementation of port.BatchItemRepository.
type MockBatchItemRepo struct {
	mock.Mock
}

func (m *MockBatchItemRepo) Create(ctx context.Context, item *domain.BulkInvoiceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockBatchItemRepo) GetByID(ctx context.Context, batchID, itemID uuid.UUID) (*domain.BulkInvoiceItem, error) {
	args := m.Called(ctx, batchID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkInvoiceItem), args.Error(1)
}

func (m *MockBatchItemRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]domain.BulkInvoiceItem, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BulkInvoiceItem), args.Error(1)
}

func (m *MockBatchItemRepo) ListByStage(ctx context.Context, batchID uuid.UUID, stage domain.RowStage) ([]domain.BulkInvoiceItem, error) {
	args := m.Called(ctx, batchID, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BulkInvoiceItem), args.Error(1)
}

func (m *MockBatchItemRepo) Update(ctx context.Context, item *domain.BulkInvoiceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}
