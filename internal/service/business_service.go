package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

// CreateBusinessInput is the DTO for registering a business.
type CreateBusinessInput struct {
	Name          string `json:"name" binding:"required"`
	NTN           string `json:"ntn" binding:"required"`
	OperatorEmail string `json:"operator_email"`
}

// UpdateIntegrationInput is the DTO for changing a business's FBR integration
// settings. Nil fields are left untouched.
type UpdateIntegrationInput struct {
	IntegrationMode   *domain.IntegrationMode `json:"integration_mode"`
	SandboxToken      *string                 `json:"sandbox_token"`
	ProductionToken   *string                 `json:"production_token"`
	ProductionEnabled *bool                   `json:"production_enabled"`
}

// BusinessService manages businesses and their integration settings.
type BusinessService interface {
	Create(ctx context.Context, input *CreateBusinessInput) (*domain.Business, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	List(ctx context.Context, offset, limit int) ([]domain.Business, int, error)

	// UpdateIntegration applies integration changes. Enabling production (via
	// the flag or the mode) requires a prior validated sandbox submission.
	// Rotating a token clears that mode's auth halt.
	UpdateIntegration(ctx context.Context, id uuid.UUID, input *UpdateIntegrationInput) (*domain.Business, error)

	// MarkSandboxValidated records the first successful sandbox validation.
	MarkSandboxValidated(ctx context.Context, id uuid.UUID) error
}

type businessService struct {
	businesses port.BusinessRepository
	locker     port.SubmissionLocker
}

// NewBusinessService creates a BusinessService.
func NewBusinessService(businesses port.BusinessRepository, locker port.SubmissionLocker) BusinessService {
	return &businessService{businesses: businesses, locker: locker}
}

func (s *businessService) Create(ctx context.Context, input *CreateBusinessInput) (*domain.Business, error) {
	business := &domain.Business{
		Name:            input.Name,
		NTN:             input.NTN,
		OperatorEmail:   input.OperatorEmail,
		IntegrationMode: domain.ModeLocal,
		IsActive:        true,
	}
	if err := s.businesses.Create(ctx, business); err != nil {
		return nil, err
	}
	return business, nil
}

func (s *businessService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	return s.businesses.GetByID(ctx, id)
}

func (s *businessService) List(ctx context.Context, offset, limit int) ([]domain.Business, int, error) {
	return s.businesses.List(ctx, offset, limit)
}

func (s *businessService) UpdateIntegration(ctx context.Context, id uuid.UUID, input *UpdateIntegrationInput) (*domain.Business, error) {
	business, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.IntegrationMode != nil {
		if !domain.ValidIntegrationModes[*input.IntegrationMode] {
			return nil, domain.ErrInvalidIntegrationMode
		}
		business.IntegrationMode = *input.IntegrationMode
	}
	if input.ProductionEnabled != nil {
		business.ProductionEnabled = *input.ProductionEnabled
	}

	needsSandbox := business.IntegrationMode == domain.ModeProduction || business.ProductionEnabled
	if needsSandbox && !business.SandboxValidated {
		return nil, domain.ErrSandboxNotValidated
	}

	if input.SandboxToken != nil {
		business.SandboxToken = *input.SandboxToken
		s.clearHalt(ctx, business.ID, domain.ModeSandbox)
	}
	if input.ProductionToken != nil {
		business.ProductionToken = *input.ProductionToken
		s.clearHalt(ctx, business.ID, domain.ModeProduction)
	}

	if err := s.businesses.UpdateIntegration(ctx, business); err != nil {
		return nil, err
	}
	return business, nil
}

func (s *businessService) MarkSandboxValidated(ctx context.Context, id uuid.UUID) error {
	business, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if business.SandboxValidated {
		return nil
	}
	business.SandboxValidated = true
	return s.businesses.UpdateIntegration(ctx, business)
}

func (s *businessService) clearHalt(ctx context.Context, id uuid.UUID, mode domain.IntegrationMode) {
	if err := s.locker.ClearAuthHalt(ctx, id, mode); err != nil {
		log.Printf("businessService: clearing %s auth halt for business %s: %v", mode, id, err)
	}
}

// CreateCustomerInput is the DTO for registering a customer under a business.
type CreateCustomerInput struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	NTN     string `json:"ntn"`
	Address string `json:"address"`
}

// CreateProductInput is the DTO for registering a product under a business.
type CreateProductInput struct {
	Code        string  `json:"code" binding:"required"`
	Description string  `json:"description" binding:"required"`
	HSCode      string  `json:"hs_code"`
	UnitPrice   int64   `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
}

// CatalogService manages the customers and products batch rows are validated
// against.
type CatalogService interface {
	CreateCustomer(ctx context.Context, businessID uuid.UUID, input *CreateCustomerInput) (*domain.Customer, error)
	ListCustomers(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Customer, int, error)
	CreateProduct(ctx context.Context, businessID uuid.UUID, input *CreateProductInput) (*domain.Product, error)
	ListProducts(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Product, int, error)
}

type catalogService struct {
	businesses port.BusinessRepository
	customers  port.CustomerRepository
	products   port.ProductRepository
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(businesses port.BusinessRepository, customers port.CustomerRepository, products port.ProductRepository) CatalogService {
	return &catalogService{businesses: businesses, customers: customers, products: products}
}

func (s *catalogService) CreateCustomer(ctx context.Context, businessID uuid.UUID, input *CreateCustomerInput) (*domain.Customer, error) {
	if _, err := s.businesses.GetByID(ctx, businessID); err != nil {
		return nil, err
	}
	exists, err := s.customers.ExistsByCode(ctx, businessID, input.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateCode
	}

	customer := &domain.Customer{
		BusinessID: businessID,
		Code:       input.Code,
		Name:       input.Name,
		NTN:        input.NTN,
		Address:    input.Address,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *catalogService) ListCustomers(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Customer, int, error) {
	return s.customers.ListByBusiness(ctx, businessID, offset, limit)
}

func (s *catalogService) CreateProduct(ctx context.Context, businessID uuid.UUID, input *CreateProductInput) (*domain.Product, error) {
	if _, err := s.businesses.GetByID(ctx, businessID); err != nil {
		return nil, err
	}
	exists, err := s.products.ExistsByCode(ctx, businessID, input.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateCode
	}

	product := &domain.Product{
		BusinessID:  businessID,
		Code:        input.Code,
		Description: input.Description,
		HSCode:      input.HSCode,
		UnitPrice:   input.UnitPrice,
		TaxRate:     input.TaxRate,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Product, int, error) {
	return s.products.ListByBusiness(ctx, businessID, offset, limit)
}
