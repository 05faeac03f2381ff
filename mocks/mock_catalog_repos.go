package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fbrgate/internal/domain"
)

// MockCustomerRepo is a mock implementation of port.CustomerRepository.
type MockCustomerRepo struct {
	mock.Mock
}

func (m *MockCustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCustomerRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Customer, error) {
	args := m.Called(ctx, businessID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepo) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Customer, error) {
	args := m.Called(ctx, businessID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepo) ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, businessID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustomerRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Customer, int, error) {
	args := m.Called(ctx, businessID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Customer), args.Int(1), args.Error(2)
}

// MockProductRepo is a mock implementation of port.ProductRepository.
type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProductRepo) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Product, error) {
	args := m.Called(ctx, businessID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepo) ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, businessID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Product, int, error) {
	args := m.Called(ctx, businessID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}
