package postgres

import (
	"context"
	"database/sql"

	"shadownet-chat/internal/domain"
)

// EditHistoryRepository implements domain.EditHistoryRepository for PostgreSQL
type EditHistoryRepository struct {
	db *sql.DB
}

// NewEditHistoryRepository creates a new PostgreSQL edit history repository
func NewEditHistoryRepository(db *sql.DB) *EditHistoryRepository {
	return &EditHistoryRepository{db: db}
}

// Append records the body a message held immediately before an edit
func (r *EditHistoryRepository) Append(ctx context.Context, entry *domain.EditHistoryEntry) error {
	query := `
		INSERT INTO edit_history (message_id, old_body, edited_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		entry.MessageID,
		entry.OldBody,
		entry.EditedAt,
	).Scan(&entry.ID)
}

// ListByMessage retrieves a message's edit log, oldest first
func (r *EditHistoryRepository) ListByMessage(ctx context.Context, messageID string) ([]*domain.EditHistoryEntry, error) {
	query := `
		SELECT id, message_id, old_body, edited_at
		FROM edit_history
		WHERE message_id = $1
		ORDER BY edited_at
	`
	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.EditHistoryEntry
	for rows.Next() {
		entry := &domain.EditHistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.MessageID, &entry.OldBody, &entry.EditedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
