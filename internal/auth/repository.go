package auth

import (
	"context"
	"fmt"

	"github.com/fixpoint-erp/fixpoint-erp/internal/platform/db"
	"github.com/fixpoint-erp/fixpoint-erp/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// PgRepository implements Repository over PostgreSQL.
type PgRepository struct {
	store db.Store
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(store db.Store) *PgRepository {
	return &PgRepository{store: store}
}

// FindByEmail fetches an active-or-not user by email. Deployments differ on
// whether users carry a role column, so it is probed like the other
// optional schema pieces.
func (r *PgRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	roleCol, err := r.store.ColumnExists(ctx, "users", "role")
	if err != nil {
		return nil, fmt.Errorf("auth: probe users.role: %w", err)
	}
	roleExpr := "'" + shared.RoleStaff + "' AS role"
	if roleCol {
		roleExpr = "COALESCE(role, '" + shared.RoleStaff + "') AS role"
	}
	query := fmt.Sprintf(`
		SELECT id, company_id, name, email, password, %s,
		       COALESCE(is_active, TRUE) AS is_active, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
		LIMIT 1`, roleExpr)
	rows, err := r.store.FetchRows(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("auth: find user by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, shared.ErrNotFound
	}
	row := rows[0]
	active, _ := row["is_active"].(bool)
	user := &User{
		ID:           row.Int64("id"),
		CompanyID:    row.Int64("company_id"),
		Name:         row.String("name"),
		Email:        row.String("email"),
		PasswordHash: row.String("password"),
		Role:         row.String("role"),
		IsActive:     active,
		CreatedAt:    row.Time("created_at"),
	}
	return user, nil
}

var _ Repository = (*PgRepository)(nil)
