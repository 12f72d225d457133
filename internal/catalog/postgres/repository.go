package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tallybook/tallybook/internal/catalog"
)

// Repository resolves companies, the tenants of the gateway.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, companyID string) (catalog.Company, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return catalog.Company{}, catalog.ErrNotFound
	}

	query := `
SELECT id, name, base_currency, created_at
FROM company
WHERE id = $1`

	var company catalog.Company
	if err := r.db.QueryRowContext(ctx, query, companyID).Scan(
		&company.CompanyID,
		&company.Name,
		&company.BaseCurrency,
		&company.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Company{}, catalog.ErrNotFound
		}
		return catalog.Company{}, fmt.Errorf("get company: %w", err)
	}
	return company, nil
}

func (r *Repository) ListCompanies(ctx context.Context) ([]catalog.Company, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, base_currency, created_at
FROM company
ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	companies := make([]catalog.Company, 0)
	for rows.Next() {
		var company catalog.Company
		if err := rows.Scan(&company.CompanyID, &company.Name, &company.BaseCurrency, &company.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company row: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company rows: %w", err)
	}
	return companies, nil
}
