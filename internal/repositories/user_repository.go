package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ecom_ops_backend/internal/models"
)

// userRepository implements the UserRepository interface.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser inserts a new operator. IsActive is set to true and the role
// defaults to operator when empty.
func (r *userRepository) CreateUser(ctx context.Context, user *models.User, hashedPassword string) (int64, error) {
	query := `INSERT INTO users (username, password_hash, email, full_name, role, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	          RETURNING id`

	if user.Role == "" {
		user.Role = models.RoleOperator
	}
	currentTime := time.Now()
	user.IsActive = true

	var userID int64
	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		hashedPassword,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		currentTime,
	).Scan(&userID)
	if err != nil {
		return 0, wrapDBError(err, "creating user")
	}
	user.ID = userID
	user.CreatedAt = currentTime
	user.UpdatedAt = currentTime
	return userID, nil
}

// FindUserByUsername returns the user and their hashed password.
func (r *userRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	query := `SELECT id, username, password_hash, email, full_name, role, is_active, created_at, updated_at
		FROM users WHERE username = $1`

	user := &models.User{}
	var hashedPassword string
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &hashedPassword, &user.Email, &user.FullName,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, "", wrapDBError(err, fmt.Sprintf("finding user by username %s", username))
	}
	return user, hashedPassword, nil
}

func (r *userRepository) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, email, full_name, role, is_active, created_at, updated_at
		FROM users WHERE id = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding user by id %d", id))
	}
	return user, nil
}

func (r *userRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, wrapDBError(err, "counting users")
	}
	return n, nil
}
