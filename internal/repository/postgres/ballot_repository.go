package postgres

import (
	"context"
	"database/sql"

	"shadownet-chat/internal/domain"
)

// BallotRepository implements domain.BallotRepository for PostgreSQL
type BallotRepository struct {
	db *sql.DB
}

// NewBallotRepository creates a new PostgreSQL ballot repository
func NewBallotRepository(db *sql.DB) *BallotRepository {
	return &BallotRepository{db: db}
}

// Upsert records a user's poll choice, overwriting any previous one
func (r *BallotRepository) Upsert(ctx context.Context, ballot *domain.PollBallot) error {
	query := `
		INSERT INTO poll_ballots (message_id, user_id, option_index)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET option_index = EXCLUDED.option_index, created_at = now()
		RETURNING created_at
	`
	return r.db.QueryRowContext(ctx, query,
		ballot.MessageID,
		ballot.UserID,
		ballot.OptionIndex,
	).Scan(&ballot.CreatedAt)
}
