package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fbrgate/internal/domain"
	"fbrgate/internal/service"
	"fbrgate/mocks"
)

type businessServiceFixture struct {
	businesses *mocks.MockBusinessRepo
	locker     *mocks.MockSubmissionLocker
	svc        service.BusinessService
}

func newBusinessServiceFixture() *businessServiceFixture {
	f := &businessServiceFixture{
		businesses: new(mocks.MockBusinessRepo),
		locker:     new(mocks.MockSubmissionLocker),
	}
	f.svc = service.NewBusinessService(f.businesses, f.locker)
	return f
}

func storedBusiness() *domain.Business {
	return &domain.Business{
		ID:              uuid.New(),
		Name:            "Acme Traders",
		NTN:             "1234567",
		IntegrationMode: domain.ModeSandbox,
		IsActive:        true,
	}
}

func TestBusinessCreate_DefaultsToLocalMode(t *testing.T) {
	f := newBusinessServiceFixture()
	f.businesses.On("Create", mock.Anything, mock.Anything).Return(nil)

	business, err := f.svc.Create(context.Background(), &service.CreateBusinessInput{
		Name: "Acme Traders",
		NTN:  "1234567",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeLocal, business.IntegrationMode)
	assert.True(t, business.IsActive)
	assert.False(t, business.SandboxValidated)
	assert.False(t, business.ProductionEnabled)
}

func TestUpdateIntegration_ProductionRequiresSandboxValidation(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	mode := domain.ModeProduction
	_, err := f.svc.UpdateIntegration(context.Background(), business.ID, &service.UpdateIntegrationInput{
		IntegrationMode: &mode,
	})
	assert.ErrorIs(t, err, domain.ErrSandboxNotValidated)
	f.businesses.AssertNotCalled(t, "UpdateIntegration", mock.Anything, mock.Anything)
}

func TestUpdateIntegration_ProductionFlagRequiresSandboxValidation(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	enabled := true
	_, err := f.svc.UpdateIntegration(context.Background(), business.ID, &service.UpdateIntegrationInput{
		ProductionEnabled: &enabled,
	})
	assert.ErrorIs(t, err, domain.ErrSandboxNotValidated)
}

func TestUpdateIntegration_ValidatedBusinessGoesToProduction(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	business.SandboxValidated = true
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)
	f.businesses.On("UpdateIntegration", mock.Anything, mock.Anything).Return(nil)

	mode := domain.ModeProduction
	enabled := true
	updated, err := f.svc.UpdateIntegration(context.Background(), business.ID, &service.UpdateIntegrationInput{
		IntegrationMode:   &mode,
		ProductionEnabled: &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeProduction, updated.IntegrationMode)
	assert.True(t, updated.ProductionEnabled)
}

func TestUpdateIntegration_RejectsUnknownMode(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	mode := domain.IntegrationMode("staging")
	_, err := f.svc.UpdateIntegration(context.Background(), business.ID, &service.UpdateIntegrationInput{
		IntegrationMode: &mode,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIntegrationMode)
}

func TestUpdateIntegration_TokenRotationClearsAuthHalt(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)
	f.businesses.On("UpdateIntegration", mock.Anything, mock.Anything).Return(nil)
	f.locker.On("ClearAuthHalt", mock.Anything, business.ID, domain.ModeSandbox).Return(nil)

	token := "fresh-sandbox-token"
	updated, err := f.svc.UpdateIntegration(context.Background(), business.ID, &service.UpdateIntegrationInput{
		SandboxToken: &token,
	})
	require.NoError(t, err)
	assert.Equal(t, token, updated.SandboxToken)
	f.locker.AssertCalled(t, "ClearAuthHalt", mock.Anything, business.ID, domain.ModeSandbox)
	f.locker.AssertNotCalled(t, "ClearAuthHalt", mock.Anything, business.ID, domain.ModeProduction)
}

func TestMarkSandboxValidated_Idempotent(t *testing.T) {
	f := newBusinessServiceFixture()
	business := storedBusiness()
	business.SandboxValidated = true
	f.businesses.On("GetByID", mock.Anything, business.ID).Return(business, nil)

	require.NoError(t, f.svc.MarkSandboxValidated(context.Background(), business.ID))
	f.businesses.AssertNotCalled(t, "UpdateIntegration", mock.Anything, mock.Anything)
}

func TestCatalog_DuplicateCodeRejected(t *testing.T) {
	businesses := new(mocks.MockBusinessRepo)
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	svc := service.NewCatalogService(businesses, customers, products)

	businessID := uuid.New()
	businesses.On("GetByID", mock.Anything, businessID).Return(&domain.Business{ID: businessID}, nil)
	customers.On("ExistsByCode", mock.Anything, businessID, "CUST-1").Return(true, nil)

	_, err := svc.CreateCustomer(context.Background(), businessID, &service.CreateCustomerInput{
		Code: "CUST-1",
		Name: "Existing",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	customers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCatalog_CreateProduct(t *testing.T) {
	businesses := new(mocks.MockBusinessRepo)
	customers := new(mocks.MockCustomerRepo)
	products := new(mocks.MockProductRepo)
	svc := service.NewCatalogService(businesses, customers, products)

	businessID := uuid.New()
	businesses.On("GetByID", mock.Anything, businessID).Return(&domain.Business{ID: businessID}, nil)
	products.On("ExistsByCode", mock.Anything, businessID, "P-1").Return(false, nil)
	products.On("Create", mock.Anything, mock.Anything).Return(nil)

	product, err := svc.CreateProduct(context.Background(), businessID, &service.CreateProductInput{
		Code:        "P-1",
		Description: "Widget",
		UnitPrice:   1000,
		TaxRate:     17,
	})
	require.NoError(t, err)
	assert.Equal(t, businessID, product.BusinessID)
	assert.Equal(t, "P-1", product.Code)
}
