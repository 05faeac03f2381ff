package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

// MockFBRClient is a mock implementation of port.FBRClient.
type MockFBRClient struct {
	mock.Mock
}

func (m *MockFBRClient) Submit(ctx context.Context, mode domain.IntegrationMode, token string, req *port.FBRInvoiceRequest) (*port.FBRResult, error) {
	args := m.Called(ctx, mode, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.FBRResult), args.Error(1)
}
