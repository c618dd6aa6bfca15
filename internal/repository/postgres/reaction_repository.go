package postgres

import (
	"context"
	"database/sql"

	"shadownet-chat/internal/domain"
)

// ReactionRepository implements domain.ReactionRepository for PostgreSQL
type ReactionRepository struct {
	db *sql.DB
}

// NewReactionRepository creates a new PostgreSQL reaction repository
func NewReactionRepository(db *sql.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Get retrieves a user's reaction to a message
func (r *ReactionRepository) Get(ctx context.Context, messageID, userID string) (*domain.Reaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions
		WHERE message_id = $1 AND user_id = $2
	`
	reaction := &domain.Reaction{}
	err := r.db.QueryRowContext(ctx, query, messageID, userID).Scan(
		&reaction.MessageID,
		&reaction.UserID,
		&reaction.Emoji,
		&reaction.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReactionNotFound
	}
	return reaction, err
}

// Upsert inserts or replaces a user's reaction; the (message, user) pair is
// the primary key so a user holds at most one reaction per message
func (r *ReactionRepository) Upsert(ctx context.Context, reaction *domain.Reaction) error {
	query := `
		INSERT INTO reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji, created_at = now()
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		reaction.MessageID,
		reaction.UserID,
		reaction.Emoji,
	).Scan(&reaction.CreatedAt)
}

// Delete removes a user's reaction from a message
func (r *ReactionRepository) Delete(ctx context.Context, messageID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = $1 AND user_id = $2`,
		messageID, userID)
	return err
}
