package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/models"
	"github.com/cortexlab/neuroscan/common/db"
	"github.com/jackc/pgx/v5"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepository handles database operations for user accounts
type UserRepository struct {
	db *db.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *db.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Create inserts a new user and fills in its assigned id
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (username, email, password, birth_year, gender, blood_group, address, register_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.BirthYear,
		u.Gender,
		u.BloodGroup,
		u.Address,
		u.RegisteredAt,
	).Scan(&u.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByUsernameOrEmail looks up a user by either identifier
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	query := `
		SELECT id, username, email, password, birth_year, gender, blood_group, address, register_date
		FROM users
		WHERE username = $1 OR email = $1
	`

	u := &models.User{}
	err := r.db.QueryRow(ctx, query, usernameOrEmail).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.BirthYear,
		&u.Gender,
		&u.BloodGroup,
		&u.Address,
		&u.RegisteredAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// Exists checks whether a username or email is already taken
func (r *UserRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	err := r.db.QueryRow(ctx, query, username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}
