package postgres

import (
	"context"
	"database/sql"

	"shadownet-chat/internal/domain"
)

// GroupRepository implements domain.GroupRepository for PostgreSQL
type GroupRepository struct {
	db *sql.DB
}

// NewGroupRepository creates a new PostgreSQL group repository
func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts a new group into the database
func (r *GroupRepository) Create(ctx context.Context, group *domain.Group) error {
	query := `
		INSERT INTO groups (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		group.Name,
		group.Description,
		group.CreatedBy,
	).Scan(&group.ID, &group.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, "groups_name_key") {
			return domain.ErrNameExists
		}
		return err
	}
	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	query := `
		SELECT id, name, description, created_by, created_at
		FROM groups
		WHERE id = $1
	`
	group := &domain.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatedBy,
		&group.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrGroupNotFound
	}
	return group, err
}

// List retrieves all groups ordered by name
func (r *GroupRepository) List(ctx context.Context) ([]*domain.Group, error) {
	query := `
		SELECT id, name, description, created_by, created_at
		FROM groups
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		group := &domain.Group{}
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.Description,
			&group.CreatedBy,
			&group.CreatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// Delete removes a group and, via cascade, its messages
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}
