package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

type businessRepo struct {
	db *sqlx.DB
}

// NewBusinessRepo creates a new PostgreSQL-backed BusinessRepository.
func NewBusinessRepo(db *sqlx.DB) port.BusinessRepository {
	return &businessRepo{db: db}
}

func (r *businessRepo) Create(ctx context.Context, b *domain.Business) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.IntegrationMode == "" {
		b.IntegrationMode = domain.ModeLocal
	}

	query := `INSERT INTO businesses (
		id, name, ntn, integration_mode, sandbox_token, production_token,
		sandbox_validated, production_enabled, operator_email, is_active,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := ext(ctx, r.db).ExecContext(ctx, query,
		b.ID, b.Name, b.NTN, b.IntegrationMode, b.SandboxToken, b.ProductionToken,
		b.SandboxValidated, b.ProductionEnabled, b.OperatorEmail, b.IsActive,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), "ntn") {
			return fmt.Errorf("businessRepo.Create: NTN already registered: %w", err)
		}
		return fmt.Errorf("businessRepo.Create: %w", err)
	}
	return nil
}

func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	var b domain.Business
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &b, "SELECT * FROM businesses WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBusinessNotFound
		}
		return nil, fmt.Errorf("businessRepo.GetByID: %w", err)
	}
	return &b, nil
}

func (r *businessRepo) List(ctx context.Context, offset, limit int) ([]domain.Business, int, error) {
	var total int
	err := sqlx.GetContext(ctx, ext(ctx, r.db), &total, "SELECT COUNT(*) FROM businesses")
	if err != nil {
		return nil, 0, fmt.Errorf("businessRepo.List count: %w", err)
	}

	var businesses []domain.Business
	err = sqlx.SelectContext(ctx, ext(ctx, r.db), &businesses,
		"SELECT * FROM businesses ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("businessRepo.List: %w", err)
	}
	return businesses, total, nil
}

func (r *businessRepo) Update(ctx context.Context, b *domain.Business) error {
	b.UpdatedAt = time.Now().UTC()
	query := `UPDATE businesses SET
		name = $1, ntn = $2, operator_email = $3, is_active = $4, updated_at = $5
		WHERE id = $6`
	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		b.Name, b.NTN, b.OperatorEmail, b.IsActive, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("businessRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBusinessNotFound
	}
	return nil
}

func (r *businessRepo) UpdateIntegration(ctx context.Context, b *domain.Business) error {
	b.UpdatedAt = time.Now().UTC()
	query := `UPDATE businesses SET
		integration_mode = $1, sandbox_token = $2, production_token = $3,
		sandbox_validated = $4, production_enabled = $5, updated_at = $6
		WHERE id = $7`
	result, err := ext(ctx, r.db).ExecContext(ctx, query,
		b.IntegrationMode, b.SandboxToken, b.ProductionToken,
		b.SandboxValidated, b.ProductionEnabled, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("businessRepo.UpdateIntegration: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBusinessNotFound
	}
	return nil
}
