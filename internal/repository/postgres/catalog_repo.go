package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type customerRepo struct {
	db *sqlx.DB
}

// NewCustomerRepo creates a new PostgreSQL-backed CustomerRepository.
func NewCustomerRepo(db *sqlx.DB) port.CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := ext(ctx, r.db).ExecContext(ctx,
		`INSERT INTO customers (id, business_id, code, name, ntn, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.BusinessID, c.Code, c.Name, c.NTN, c.Address, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("customerRepo.Create: %w", err)
	}
	return nil
}

func (r *customerRepo) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &c,
		"SELECT * FROM customers WHERE business_id = $1 AND id = $2", businessID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("customerRepo.GetByID: %w", err)
	}
	return &c, nil
}

func (r *customerRepo) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Customer, error) {
	var c domain.Customer
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &c,
		"SELECT * FROM customers WHERE business_id = $1 AND code = $2", businessID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("customerRepo.GetByCode: %w", err)
	}
	return &c, nil
}

func (r *customerRepo) ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM customers WHERE business_id = $1 AND code = $2)", businessID, code)
	if err != nil {
		return false, fmt.Errorf("customerRepo.ExistsByCode: %w", err)
	}
	return exists, nil
}

func (r *customerRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Customer, int, error) {
	var total int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &total,
		"SELECT COUNT(*) FROM customers WHERE business_id = $1", businessID)
	if err != nil {
		return nil, 0, fmt.Errorf("customerRepo.ListByBusiness count: %w", err)
	}

	var customers []domain.Customer
	err = sqlx.SelectContext(ctx, ext(ctx, r.db), &customers,
		`SELECT * FROM customers WHERE business_id = $1 ORDER BY code LIMIT $2 OFFSET $3`,
		businessID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("customerRepo.ListByBusiness: %w", err)
	}
	return customers, total, nil
}

type productRepo struct {
	db *sqlx.DB
}

// NewProductRepo creates a new PostgreSQL-backed ProductRepository.
func NewProductRepo(db *sqlx.DB) port.ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := ext(ctx, r.db).ExecContext(ctx,
		`INSERT INTO products (id, business_id, code, description, hs_code, unit_price, tax_rate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.BusinessID, p.Code, p.Description, p.HSCode, p.UnitPrice, p.TaxRate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("productRepo.Create: %w", err)
	}
	return nil
}

func (r *productRepo) GetByCode(ctx context.Context, businessID uuid.UUID, code string) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &p,
		"SELECT * FROM products WHERE business_id = $1 AND code = $2", businessID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("productRepo.GetByCode: %w", err)
	}
	return &p, nil
}

func (r *productRepo) ExistsByCode(ctx context.Context, businessID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists,
		"SELECT EXISTS (SELECT 1 FROM products WHERE business_id = $1 AND code = $2)", businessID, code)
	if err != nil {
		return false, fmt.Errorf("productRepo.ExistsByCode: %w", err)
	}
	return exists, nil
}

func (r *productRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID, offset, limit int) ([]domain.Product, int, error) {
	var total int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &total,
		"SELECT COUNT(*) FROM products WHERE business_id = $1", businessID)
	if err != nil {
		return nil, 0, fmt.Errorf("productRepo.ListByBusiness count: %w", err)
	}

	var products []domain.Product
	err = sqlx.SelectContext(ctx, ext(ctx, r.db), &products,
		`SELECT * FROM products WHERE business_id = $1 ORDER BY code LIMIT $2 OFFSET $3`,
		businessID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("productRepo.ListByBusiness: %w", err)
	}
	return products, total, nil
}
