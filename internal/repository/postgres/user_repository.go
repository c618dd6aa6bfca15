package postgres

import (
	"context"
	"database/sql"
	"time"

	"shadownet-chat/internal/domain"
)

// UserRepository implements domain.UserRepository for PostgreSQL
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, display_name, avatar_color, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.AvatarColor,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, "users_email_key") {
			return domain.ErrEmailExists
		}
		if IsUniqueViolation(err, "users_display_name_key") {
			return domain.ErrNameExists
		}
		return err
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

// GetByDisplayName retrieves a user by display name
func (r *UserRepository) GetByDisplayName(ctx context.Context, name string) (*domain.User, error) {
	return r.getBy(ctx, "display_name", name)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, avatar_color, role, muted_until, created_at
		FROM users
		WHERE ` + column + ` = $1
	`
	user := &domain.User{}
	var mutedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarColor,
		&user.Role,
		&mutedUntil,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if mutedUntil.Valid {
		user.MutedUntil = &mutedUntil.Time
	}
	return user, err
}

// SetMutedUntil stamps a user's mute deadline
func (r *UserRepository) SetMutedUntil(ctx context.Context, userID string, until time.Time) error {
	query := `UPDATE users SET muted_until = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, userID, until)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List retrieves all users, newest first
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, email, password_hash, display_name, avatar_color, role, muted_until, created_at
		FROM users
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		var mutedUntil sql.NullTime
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.DisplayName,
			&user.AvatarColor,
			&user.Role,
			&mutedUntil,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		if mutedUntil.Valid {
			user.MutedUntil = &mutedUntil.Time
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
