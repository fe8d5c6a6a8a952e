package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/presence-api/internal/models"
)

const userColumns = `id, matricule, first_name, last_name, email, role, referentiel`

// UserRepository reads learners from the externally managed users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByMatricule returns the user holding the matricule or sql.ErrNoRows.
func (r *UserRepository) FindByMatricule(ctx context.Context, matricule string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE matricule = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, matricule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by matricule: %w", err)
	}
	return &user, nil
}

// ListLearners returns every APPRENANT with a non-null matricule.
func (r *UserRepository) ListLearners(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
WHERE role = $1 AND matricule IS NOT NULL AND matricule <> ''
ORDER BY last_name ASC, first_name ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleApprenant); err != nil {
		return nil, fmt.Errorf("list learners: %w", err)
	}
	return users, nil
}
