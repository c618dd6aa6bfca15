package domain

import "context"

// BannedTerm pairs a forbidden term with the mute it earns. Matching is a
// case-insensitive substring check over message text.
type BannedTerm struct {
	ID          string `json:"id"`
	Term        string `json:"term"`
	MuteMinutes int    `json:"mute_minutes"`
}

// BannedTermRepository defines the interface for the durable banned-term
// table. The moderation cache is a point-in-time materialization of it.
type BannedTermRepository interface {
	List(ctx context.Context) ([]*BannedTerm, error)
	Create(ctx context.Context, term *BannedTerm) error
	DeleteByTerm(ctx context.Context, term string) error
}
