package postgres

import (
	"context"
	"database/sql"
	"strings"

	"shadownet-chat/internal/domain"
)

// BannedTermRepository implements domain.BannedTermRepository for PostgreSQL
type BannedTermRepository struct {
	db *sql.DB
}

// NewBannedTermRepository creates a new PostgreSQL banned term repository
func NewBannedTermRepository(db *sql.DB) *BannedTermRepository {
	return &BannedTermRepository{db: db}
}

// List retrieves all banned terms
func (r *BannedTermRepository) List(ctx context.Context) ([]*domain.BannedTerm, error) {
	query := `
		SELECT id, term, mute_minutes
		FROM banned_terms
		ORDER BY term
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []*domain.BannedTerm
	for rows.Next() {
		term := &domain.BannedTerm{}
		if err := rows.Scan(&term.ID, &term.Term, &term.MuteMinutes); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// Create inserts a banned term; terms are stored lower-cased
func (r *BannedTermRepository) Create(ctx context.Context, term *domain.BannedTerm) error {
	term.Term = strings.ToLower(term.Term)
	query := `
		INSERT INTO banned_terms (term, mute_minutes)
		VALUES ($1, $2)
		ON CONFLICT (term) DO UPDATE SET mute_minutes = EXCLUDED.mute_minutes
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, term.Term, term.MuteMinutes).Scan(&term.ID)
}

// DeleteByTerm removes a banned term by its text
func (r *BannedTermRepository) DeleteByTerm(ctx context.Context, term string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM banned_terms WHERE term = $1`,
		strings.ToLower(term))
	return err
}
