package port

import (
	"context"

	"github.com/google/uuid"

	"fbrgate/internal/domain"
)

// Transactor runs a function inside a database transaction. Repositories
// called with the context it passes to fn participate in the same
// transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BusinessRepository defines the contract for business (tenant) persistence.
type BusinessRepository interface {
	Create(ctx context.Context, b *domain.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	List(ctx context.Context, offset, limit int) ([]domain.Business, int, error)
	Update(ctx context.Context, b *domain.Business) error
	UpdateIntegration(ctx context.Context, b *domain.Business) error
}

// CustomerRepository defines the contract for customer persistence.
// All query methods include businessID to enforce tenant isolation.
type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Customer, error)
	GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Customer, error)
	ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Customer, int, error)
}

// ProductRepository defines the contract for product persistence.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Product, error)
	ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Product, int, error)
}
